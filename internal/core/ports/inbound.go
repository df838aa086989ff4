package ports

import (
	"context"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

// QuestionSolver is the inbound contract for the end-to-end solve flow.
type QuestionSolver interface {
	Solve(ctx context.Context, req domain.SolveRequest) (*domain.SolveOutcome, error)
}

// CardSearcher is the inbound contract for retrieval-only lookups.
type CardSearcher interface {
	Search(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievalCandidate, error)
}

// CatalogReader exposes read-only catalog lookups.
type CatalogReader interface {
	CardByID(id string) (*domain.DefinitionCard, error)
	Facets() []domain.DomainFacet
}
