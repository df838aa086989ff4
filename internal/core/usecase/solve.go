package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/ports"
)

const (
	DefaultTopK  = 3
	DefaultAlpha = 0.4
)

type SolveOptions struct {
	TopK  int
	Alpha float64
}

func DefaultSolveOptions() SolveOptions {
	return SolveOptions{TopK: DefaultTopK, Alpha: DefaultAlpha}
}

func (o SolveOptions) normalize() SolveOptions {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if math.IsNaN(o.Alpha) || o.Alpha < 0 || o.Alpha > 1 {
		o.Alpha = DefaultAlpha
	}
	return o
}

// SolveUseCase sequences retrieval, selection, extraction and calculation.
type SolveUseCase struct {
	retriever  ports.CardRetriever
	selector   ports.CardSelector
	extractor  ports.InputExtractor
	calculator ports.CardCalculator
	events     ports.SolveEventPublisher
	observer   ports.SolveObserver
	opts       SolveOptions
}

func NewSolveUseCase(
	retriever ports.CardRetriever,
	selector ports.CardSelector,
	extractor ports.InputExtractor,
	calculator ports.CardCalculator,
	opts SolveOptions,
) *SolveUseCase {
	return &SolveUseCase{
		retriever:  retriever,
		selector:   selector,
		extractor:  extractor,
		calculator: calculator,
		opts:       opts.normalize(),
	}
}

// WithEvents sets the publisher that receives an event per completed solve.
func (uc *SolveUseCase) WithEvents(events ports.SolveEventPublisher) *SolveUseCase {
	uc.events = events
	return uc
}

func (uc *SolveUseCase) WithObserver(observer ports.SolveObserver) *SolveUseCase {
	uc.observer = observer
	return uc
}

func (uc *SolveUseCase) Solve(ctx context.Context, req domain.SolveRequest) (*domain.SolveOutcome, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "solve", fmt.Errorf("question is empty"))
	}

	started := time.Now()
	candidates := 0
	outcome, err := uc.solve(ctx, question, req, &candidates)

	elapsed := time.Since(started)
	if uc.observer != nil {
		uc.observer.ObserveSolve(outcome, candidates, elapsed, err)
	}
	if err != nil {
		slog.Error("solve_failed", "error", err, "candidates", candidates)
		return nil, err
	}
	uc.publish(ctx, question, outcome, candidates, elapsed)
	return outcome, nil
}

func (uc *SolveUseCase) solve(ctx context.Context, question string, req domain.SolveRequest, candidateCount *int) (*domain.SolveOutcome, error) {
	query := domain.RetrievalQuery{
		Text:   question,
		TopK:   uc.opts.TopK,
		Alpha:  uc.opts.Alpha,
		Filter: req.Filter,
	}
	if req.TopK != 0 {
		query.TopK = req.TopK
	}
	if req.Alpha != nil {
		query.Alpha = *req.Alpha
	}

	candidates, err := uc.retriever.RetrieveTopK(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}
	*candidateCount = len(candidates)
	if len(candidates) == 0 {
		return domain.Refuse(domain.RefusalNoCandidates), nil
	}

	selection, err := uc.selector.Select(ctx, question, candidates)
	if err != nil {
		return nil, fmt.Errorf("select card: %w", err)
	}
	chosen, ok := domain.FindCandidate(candidates, selection.ChosenID)
	if !ok {
		return domain.Refuse(fmt.Sprintf("LLM selected card %s which was not retrieved.", selection.ChosenID)), nil
	}
	card := chosen.Card

	extraction, err := uc.extractor.Extract(ctx, question, card)
	if err != nil {
		return nil, fmt.Errorf("extract inputs: %w", err)
	}
	inputs, missing := completeInputs(card, extraction)
	if len(missing) > 0 {
		return domain.Refuse(domain.RefusalMissingInputs, missing...), nil
	}

	result, err := uc.calculator.Evaluate(ctx, card, inputs, question)
	if err != nil {
		return nil, fmt.Errorf("evaluate card %s: %w", card.ID, err)
	}

	return &domain.SolveOutcome{
		Status:          domain.SolveSuccess,
		CardID:          card.ID,
		SelectionReason: selection.Reason,
		Inputs:          inputs,
		Result:          result,
	}, nil
}

// completeInputs keeps the extractor's missing list as reported and appends
// every required input that has no finite provided value.
func completeInputs(card *domain.DefinitionCard, extraction domain.Extraction) (map[string]float64, []string) {
	missing := make([]string, 0, len(extraction.Missing))
	seen := make(map[string]struct{}, len(card.Inputs))
	for _, name := range extraction.Missing {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		missing = append(missing, name)
	}

	inputs := make(map[string]float64, len(card.Inputs))
	for _, name := range card.InputNames() {
		if _, flagged := seen[name]; flagged {
			continue
		}
		v, ok := extraction.Provided[name]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			seen[name] = struct{}{}
			missing = append(missing, name)
			continue
		}
		inputs[name] = v
	}
	return inputs, missing
}

func (uc *SolveUseCase) publish(ctx context.Context, question string, outcome *domain.SolveOutcome, candidates int, elapsed time.Duration) {
	if uc.events == nil || outcome == nil {
		return
	}
	event := domain.SolveEvent{
		ID:         uuid.NewString(),
		Question:   question,
		Status:     outcome.Status,
		Reason:     outcome.Reason,
		CardID:     outcome.CardID,
		Candidates: candidates,
		Duration:   float64(elapsed.Microseconds()) / 1000.0,
		At:         time.Now().UTC(),
	}
	if outcome.Result != nil {
		event.Fallback = outcome.Result.Fallback
	}
	if err := uc.events.PublishSolveEvent(ctx, event); err != nil {
		slog.Warn("solve_event_publish_failed", "event_id", event.ID, "error", err)
	}
}
