package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/ports"
)

// SearchUseCase exposes ranked retrieval without selection or calculation.
type SearchUseCase struct {
	retriever ports.CardRetriever
	opts      SolveOptions
}

func NewSearchUseCase(retriever ports.CardRetriever, opts SolveOptions) *SearchUseCase {
	return &SearchUseCase{retriever: retriever, opts: opts.normalize()}
}

func (uc *SearchUseCase) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievalCandidate, error) {
	text := strings.TrimSpace(req.Query)
	if text == "" {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "search", fmt.Errorf("query is empty"))
	}
	query := domain.RetrievalQuery{
		Text:   text,
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
		return nil, fmt.Errorf("search cards: %w", err)
	}
	return candidates, nil
}

// CatalogService answers read-only lookups against the loaded catalog.
type CatalogService struct {
	catalog *domain.Catalog
}

func NewCatalogService(catalog *domain.Catalog) *CatalogService {
	return &CatalogService{catalog: catalog}
}

func (s *CatalogService) CardByID(id string) (*domain.DefinitionCard, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "card by id", fmt.Errorf("id is empty"))
	}
	card, ok := s.catalog.ByID(id)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "card by id", fmt.Errorf("card %q", id))
	}
	return card, nil
}

func (s *CatalogService) Facets() []domain.DomainFacet {
	return s.catalog.Facets()
}
