package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/retrieval"
)

var errBoom = errors.New("boom")

type retrieverFake struct {
	candidates []domain.RetrievalCandidate
	err        error
	queries    []domain.RetrievalQuery
}

func (f *retrieverFake) RetrieveTopK(_ context.Context, q domain.RetrievalQuery) ([]domain.RetrievalCandidate, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type selectorFake struct {
	selection domain.Selection
	err       error
	calls     int
}

func (f *selectorFake) Select(context.Context, string, []domain.RetrievalCandidate) (domain.Selection, error) {
	f.calls++
	if f.err != nil {
		return domain.Selection{}, f.err
	}
	return f.selection, nil
}

type extractorFake struct {
	extraction domain.Extraction
	err        error
	calls      int
}

func (f *extractorFake) Extract(context.Context, string, *domain.DefinitionCard) (domain.Extraction, error) {
	f.calls++
	if f.err != nil {
		return domain.Extraction{}, f.err
	}
	return f.extraction, nil
}

type calculatorFake struct {
	result *domain.CalculationResult
	err    error
	calls  int
	inputs map[string]float64
}

func (f *calculatorFake) Evaluate(_ context.Context, _ *domain.DefinitionCard, inputs map[string]float64, _ string) (*domain.CalculationResult, error) {
	f.calls++
	f.inputs = inputs
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.SolveEvent
	err    error
}

func (f *publisherFake) PublishSolveEvent(_ context.Context, event domain.SolveEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type observerFake struct {
	outcomes []*domain.SolveOutcome
	errs     []error
}

func (f *observerFake) ObserveSolve(outcome *domain.SolveOutcome, _ int, _ time.Duration, err error) {
	f.outcomes = append(f.outcomes, outcome)
	f.errs = append(f.errs, err)
}

type embedderFake struct {
	model string
}

func (f *embedderFake) Model() string { return f.model }

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)%7) + 1, 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 1}, nil
}

type catalogSourceFake struct {
	catalog *domain.Catalog
	err     error
	filter  domain.CardFilter
}

func (f *catalogSourceFake) Load(_ context.Context, filter domain.CardFilter) (*domain.Catalog, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.catalog, nil
}

type snapshotRepoFake struct {
	saved   map[string]retrieval.Snapshot
	saveErr error
}

func newSnapshotRepoFake() *snapshotRepoFake {
	return &snapshotRepoFake{saved: map[string]retrieval.Snapshot{}}
}

func (f *snapshotRepoFake) SaveSnapshot(_ context.Context, key string, snap retrieval.Snapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[key] = snap
	return nil
}

func (f *snapshotRepoFake) LoadSnapshot(_ context.Context, key string) (retrieval.Snapshot, error) {
	snap, ok := f.saved[key]
	if !ok {
		return retrieval.Snapshot{}, domain.WrapError(domain.ErrNotFound, "load snapshot", errors.New(key))
	}
	return snap, nil
}

func npvCard() *domain.DefinitionCard {
	return &domain.DefinitionCard{
		ID:               "npv_basic",
		Name:             "Net Present Value",
		ShortDescription: "Discounted value of two cash flows.",
		Domain:           "corporate_finance",
		Topic:            "capital_budgeting",
		Inputs: []domain.InputSpec{
			{Name: "C0", Type: "float", Description: "initial outlay"},
			{Name: "C1", Type: "float", Description: "cash flow at t=1"},
			{Name: "r", Type: "float", Description: "discount rate"},
		},
		OutputVar: "NPV",
		Formulas: []domain.FormulaStep{
			{Variable: "PV1", Formula: "C1 / (1 + r)"},
			{Variable: "NPV", Formula: "C0 + PV1"},
		},
	}
}

func currentRatioCard() *domain.DefinitionCard {
	return &domain.DefinitionCard{
		ID:        "current_ratio",
		Name:      "Current Ratio",
		Domain:    "financial_statements",
		Topic:     "liquidity",
		Inputs:    []domain.InputSpec{{Name: "CA"}, {Name: "CL"}},
		OutputVar: "ratio",
		Formulas:  []domain.FormulaStep{{Variable: "ratio", Formula: "CA / CL"}},
	}
}

func candidatesFor(cards ...*domain.DefinitionCard) []domain.RetrievalCandidate {
	out := make([]domain.RetrievalCandidate, len(cards))
	for i, card := range cards {
		out[i] = domain.RetrievalCandidate{Card: card, Score: 1 - float64(i)*0.1}
	}
	return out
}
