package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

func posInf() float64 { return math.Inf(1) }

func TestSearchUsesDefaults(t *testing.T) {
	retriever := &retrieverFake{candidates: candidatesFor(npvCard())}
	uc := NewSearchUseCase(retriever, SolveOptions{TopK: 2, Alpha: 0.7})

	got, err := uc.Search(context.Background(), domain.SearchRequest{Query: " npv "})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one candidate, got %d", len(got))
	}
	q := retriever.queries[0]
	if q.Text != "npv" || q.TopK != 2 || q.Alpha != 0.7 {
		t.Fatalf("unexpected query: %+v", q)
	}
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	uc := NewSearchUseCase(&retrieverFake{}, SolveOptions{})
	if _, err := uc.Search(context.Background(), domain.SearchRequest{}); !domain.IsKind(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestSearchPassesInvalidTopKToRetriever(t *testing.T) {
	retriever := &retrieverFake{}
	uc := NewSearchUseCase(retriever, SolveOptions{})
	_, _ = uc.Search(context.Background(), domain.SearchRequest{Query: "x", TopK: -1})
	if retriever.queries[0].TopK != -1 {
		t.Fatalf("negative top_k must reach the retriever for validation")
	}
}

func TestSolveOptionsNormalize(t *testing.T) {
	got := SolveOptions{TopK: -3, Alpha: 1.5}.normalize()
	if got.TopK != DefaultTopK || got.Alpha != DefaultAlpha {
		t.Fatalf("unexpected normalized options: %+v", got)
	}
}

func TestCatalogServiceLookups(t *testing.T) {
	catalog, err := domain.NewCatalog([]domain.CardRecord{{Card: *npvCard()}, {Card: *currentRatioCard()}})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	svc := NewCatalogService(catalog)

	card, err := svc.CardByID("current_ratio")
	if err != nil || card.Name != "Current Ratio" {
		t.Fatalf("CardByID() = %+v, %v", card, err)
	}
	if _, err := svc.CardByID("nope"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.CardByID(" "); !domain.IsKind(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if facets := svc.Facets(); len(facets) != 2 || facets[0].Domain != "corporate_finance" {
		t.Fatalf("unexpected facets: %+v", facets)
	}
}
