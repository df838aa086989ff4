package calculator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

type fallbackFake struct {
	calls  int
	req    domain.FallbackRequest
	result domain.FallbackResult
	err    error
}

func (f *fallbackFake) Calculate(_ context.Context, req domain.FallbackRequest) (domain.FallbackResult, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return domain.FallbackResult{}, f.err
	}
	return f.result, nil
}

func npvCard() *domain.DefinitionCard {
	return &domain.DefinitionCard{
		ID:               "npv_basic",
		Name:             "Net Present Value",
		ShortDescription: "NPV of a single cash flow",
		Inputs: []domain.InputSpec{
			{Name: "x", Type: "float"},
			{Name: "C1", Type: "float"},
			{Name: "r", Type: "float"},
		},
		OutputVar: "NPV",
		Formulas: []domain.FormulaStep{
			{Variable: "PV", Formula: "C1/(1+r)"},
			{Variable: "NPV", Formula: "PV - x"},
		},
	}
}

func TestEvaluateNPVChain(t *testing.T) {
	engine := NewEngine(nil)
	inputs := map[string]float64{"x": 1000, "C1": 1100, "r": 0.1}

	res, err := engine.Evaluate(context.Background(), npvCard(), inputs, "")
	require.NoError(t, err)

	require.Len(t, res.Steps, 2)
	assert.Equal(t, "PV", res.Steps[0].Variable)
	assert.Equal(t, "C1/(1+r)", res.Steps[0].Formula)
	assert.InDelta(t, 1000.0, res.Steps[0].Value, 1e-9)
	assert.Equal(t, "NPV", res.Steps[1].Variable)
	assert.InDelta(t, 0.0, res.Steps[1].Value, 1e-9)
	assert.Equal(t, "NPV", res.OutputVar)
	assert.InDelta(t, 0.0, res.OutputValue, 1e-9)
	assert.False(t, res.Fallback)
	assert.Equal(t, map[string]float64{"x": 1000, "C1": 1100, "r": 0.1}, inputs)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	engine := NewEngine(nil)
	inputs := map[string]float64{"x": 250, "C1": 990, "r": 0.07}

	first, err := engine.Evaluate(context.Background(), npvCard(), inputs, "")
	require.NoError(t, err)
	second, err := engine.Evaluate(context.Background(), npvCard(), inputs, "")
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("results differ (-first +second):\n%s", diff)
	}
}

func TestEvaluateOutputMayBeAnInput(t *testing.T) {
	card := npvCard()
	card.OutputVar = "C1"

	res, err := NewEngine(nil).Evaluate(context.Background(), card, map[string]float64{"x": 1, "C1": 2, "r": 0}, "")
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.OutputValue)
}

func TestEvaluateSchemaErrors(t *testing.T) {
	engine := NewEngine(&fallbackFake{})

	noFormulas := npvCard()
	noFormulas.Formulas = nil
	_, err := engine.Evaluate(context.Background(), noFormulas, nil, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrSchema))

	unresolved := npvCard()
	unresolved.OutputVar = "IRR"
	_, err = engine.Evaluate(context.Background(), unresolved, map[string]float64{"x": 1, "C1": 2, "r": 0.1}, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrSchema))
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "npv_basic", schemaErr.CardID)
}

func TestEvaluateForwardReferenceFailsWithoutFallback(t *testing.T) {
	card := npvCard()
	card.Formulas = []domain.FormulaStep{
		{Variable: "NPV", Formula: "PV - x"},
		{Variable: "PV", Formula: "C1/(1+r)"},
	}

	_, err := NewEngine(nil).Evaluate(context.Background(), card, map[string]float64{"x": 1000, "C1": 1100, "r": 0.1}, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrEvaluation))
	var evalErr *domain.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "NPV", evalErr.Variable)
}

func TestEvaluateMissingInputIsNeverZero(t *testing.T) {
	_, err := NewEngine(nil).Evaluate(context.Background(), npvCard(), map[string]float64{"x": 1000, "C1": 1100}, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrEvaluation))
}

func TestEvaluateNonFiniteStepFails(t *testing.T) {
	_, err := NewEngine(nil).Evaluate(context.Background(), npvCard(), map[string]float64{"x": 1, "C1": 1, "r": -1}, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrEvaluation))
}

func TestEvaluateDelegatesUnparsableCardToFallback(t *testing.T) {
	card := npvCard()
	card.Formulas = []domain.FormulaStep{
		{Variable: "PV", Formula: "C1 discounted at r%"},
		{Variable: "NPV", Formula: "PV - x"},
	}
	fb := &fallbackFake{result: domain.FallbackResult{
		Steps: []domain.CalculationStep{
			{Variable: "PV", Formula: "C1/(1+r)", Value: 1000},
			{Variable: "NPV", Formula: "PV - x", Value: 0},
		},
		OutputValue: 0,
	}}
	inputs := map[string]float64{"x": 1000, "C1": 1100, "r": 0.1}

	res, err := NewEngine(fb).Evaluate(context.Background(), card, inputs, "What is the NPV?")
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, fb.result.Steps, res.Steps)
	assert.Equal(t, "NPV", res.OutputVar)
	assert.Equal(t, 0.0, res.OutputValue)

	assert.Equal(t, 1, fb.calls)
	assert.Equal(t, "npv_basic", fb.req.CardID)
	assert.Equal(t, "What is the NPV?", fb.req.Question)
	assert.Equal(t, card.Formulas, fb.req.Formulas)
	assert.Equal(t, "NPV", fb.req.OutputVar)
	assert.Equal(t, "NPV of a single cash flow", fb.req.Description)
	assert.Equal(t, inputs, fb.req.Inputs)
}

func TestEvaluateWithoutFallbackSurfacesEvaluationError(t *testing.T) {
	card := npvCard()
	card.Formulas[0].Formula = "C1 discounted at r%"

	_, err := NewEngine(nil).Evaluate(context.Background(), card, map[string]float64{"x": 1000, "C1": 1100, "r": 0.1}, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrEvaluation))
}

func TestEvaluateConditionalFormulaReachesFallback(t *testing.T) {
	card := npvCard()
	card.Formulas[0].Formula = "r > 0 ? C1/(1+r) : C1"
	fb := &fallbackFake{result: domain.FallbackResult{OutputValue: 0}}

	res, err := NewEngine(fb).Evaluate(context.Background(), card, map[string]float64{"x": 1000, "C1": 1100, "r": 0.1}, "")
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, 1, fb.calls)

	_, err = NewEngine(nil).Evaluate(context.Background(), card, map[string]float64{"x": 1000, "C1": 1100, "r": 0.1}, "")
	var evalErr *domain.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "PV", evalErr.Variable)
}

func TestEvaluateFallbackIsNotUsedWhenLocalSucceeds(t *testing.T) {
	fb := &fallbackFake{}
	_, err := NewEngine(fb).Evaluate(context.Background(), npvCard(), map[string]float64{"x": 1, "C1": 2, "r": 0}, "")
	require.NoError(t, err)
	assert.Zero(t, fb.calls)
}

func TestEvaluateFallbackFailures(t *testing.T) {
	card := npvCard()
	card.Formulas[0].Formula = "C1 ÷ (1+r)"
	inputs := map[string]float64{"x": 1000, "C1": 1100, "r": 0.1}

	errBackend := errors.New("model unavailable")
	_, err := NewEngine(&fallbackFake{err: errBackend}).Evaluate(context.Background(), card, inputs, "q")
	assert.ErrorIs(t, err, errBackend)

	_, err = NewEngine(&fallbackFake{result: domain.FallbackResult{OutputValue: math.Inf(1)}}).Evaluate(context.Background(), card, inputs, "q")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrEvaluation))
}
