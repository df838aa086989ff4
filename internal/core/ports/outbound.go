package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

// Embedder builds vectors for card documents and query text. Model names the
// embedding model so persisted vectors can be checked against it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// CatalogSource loads definition cards from their authoring format.
type CatalogSource interface {
	Load(ctx context.Context, filter domain.CardFilter) (*domain.Catalog, error)
}

// ArtifactStorage stores serialized index artifacts.
type ArtifactStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// CardRetriever ranks catalog cards against a query.
type CardRetriever interface {
	RetrieveTopK(ctx context.Context, query domain.RetrievalQuery) ([]domain.RetrievalCandidate, error)
}

// CardSelector picks exactly one card among retrieved candidates.
type CardSelector interface {
	Select(ctx context.Context, question string, candidates []domain.RetrievalCandidate) (domain.Selection, error)
}

// InputExtractor parses required input values out of the question text.
type InputExtractor interface {
	Extract(ctx context.Context, question string, card *domain.DefinitionCard) (domain.Extraction, error)
}

// CalculationFallback evaluates a whole card when local evaluation fails.
type CalculationFallback interface {
	Calculate(ctx context.Context, req domain.FallbackRequest) (domain.FallbackResult, error)
}

// CardCalculator evaluates a card's formula chain.
type CardCalculator interface {
	Evaluate(ctx context.Context, card *domain.DefinitionCard, inputs map[string]float64, question string) (*domain.CalculationResult, error)
}

// SolveEventPublisher receives solve outcomes for auditing.
type SolveEventPublisher interface {
	PublishSolveEvent(ctx context.Context, event domain.SolveEvent) error
}

// SolveObserver records solve metrics.
type SolveObserver interface {
	ObserveSolve(outcome *domain.SolveOutcome, candidates int, elapsed time.Duration, err error)
}
