package calculator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/ports"
)

// Engine evaluates a card's formula chain. When a step cannot be computed
// locally and a fallback is configured, the whole card is delegated to it.
type Engine struct {
	evaluator *Evaluator
	fallback  ports.CalculationFallback
}

// NewEngine creates an engine. fallback may be nil.
func NewEngine(fallback ports.CalculationFallback) *Engine {
	return &Engine{
		evaluator: NewEvaluator(),
		fallback:  fallback,
	}
}

func (e *Engine) Evaluate(
	ctx context.Context,
	card *domain.DefinitionCard,
	inputs map[string]float64,
	question string,
) (*domain.CalculationResult, error) {
	if card == nil {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "evaluate", errors.New("card is nil"))
	}
	if len(card.Formulas) == 0 {
		return nil, domain.NewSchemaError(card.ID, "no formulas")
	}

	result, err := e.evaluateLocal(card, inputs)
	if err == nil {
		return result, nil
	}

	var evalErr *domain.EvaluationError
	if !errors.As(err, &evalErr) || e.fallback == nil {
		return nil, err
	}

	slog.Warn("calculation_fallback",
		"card_id", card.ID,
		"variable", evalErr.Variable,
		"error", evalErr.Err,
	)
	return e.delegate(ctx, card, inputs, question)
}

func (e *Engine) evaluateLocal(card *domain.DefinitionCard, inputs map[string]float64) (*domain.CalculationResult, error) {
	env := make(map[string]float64, len(inputs)+len(card.Formulas))
	for name, v := range inputs {
		env[name] = v
	}

	steps := make([]domain.CalculationStep, 0, len(card.Formulas))
	for _, f := range card.Formulas {
		value, err := e.evaluator.Eval(f.Formula, env)
		if err != nil {
			return nil, &domain.EvaluationError{
				CardID:   card.ID,
				Variable: f.Variable,
				Formula:  f.Formula,
				Err:      err,
			}
		}
		env[f.Variable] = value
		steps = append(steps, domain.CalculationStep{
			Variable: f.Variable,
			Formula:  f.Formula,
			Value:    value,
		})
	}

	output, ok := env[card.OutputVar]
	if card.OutputVar == "" || !ok {
		return nil, domain.NewSchemaError(card.ID, "output variable %q not resolved", card.OutputVar)
	}
	return &domain.CalculationResult{
		Steps:       steps,
		OutputVar:   card.OutputVar,
		OutputValue: output,
	}, nil
}

func (e *Engine) delegate(
	ctx context.Context,
	card *domain.DefinitionCard,
	inputs map[string]float64,
	question string,
) (*domain.CalculationResult, error) {
	req := domain.FallbackRequest{
		CardID:      card.ID,
		Description: card.ShortDescription,
		Formulas:    append([]domain.FormulaStep(nil), card.Formulas...),
		OutputVar:   card.OutputVar,
		Inputs:      make(map[string]float64, len(inputs)),
		Question:    question,
	}
	for name, v := range inputs {
		req.Inputs[name] = v
	}

	res, err := e.fallback.Calculate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("calculation fallback: %w", err)
	}
	if math.IsNaN(res.OutputValue) || math.IsInf(res.OutputValue, 0) {
		return nil, &domain.EvaluationError{
			CardID:   card.ID,
			Variable: card.OutputVar,
			Formula:  "<fallback>",
			Err:      errNotFinite,
		}
	}

	return &domain.CalculationResult{
		Steps:       res.Steps,
		OutputVar:   card.OutputVar,
		OutputValue: res.OutputValue,
		Fallback:    true,
	}, nil
}
