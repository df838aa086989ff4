package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/ports"
)

// Snapshot is the persisted form of an index. Rows of Embeddings and Tokens
// are parallel to Records.
type Snapshot struct {
	Model      string
	Records    []domain.CardRecord
	Embeddings [][]float32
	Tokens     [][]string
}

// Validate checks that all parallel arrays line up.
func (s *Snapshot) Validate() error {
	if strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("missing embedding model")
	}
	n := len(s.Records)
	if n == 0 {
		return fmt.Errorf("no cards")
	}
	if len(s.Tokens) != n {
		return fmt.Errorf("tokenized documents %d != cards %d", len(s.Tokens), n)
	}
	if len(s.Embeddings) != n {
		return fmt.Errorf("embedding rows %d != cards %d", len(s.Embeddings), n)
	}
	dim := len(s.Embeddings[0])
	if dim == 0 {
		return fmt.Errorf("empty embedding vectors")
	}
	for i, row := range s.Embeddings {
		if len(row) != dim {
			return fmt.Errorf("embedding row %d has dimension %d, want %d", i, len(row), dim)
		}
	}
	return nil
}

// Index ranks catalog cards by a blend of BM25 and embedding cosine
// similarity. It is immutable after construction and safe for concurrent
// use.
type Index struct {
	model    string
	catalog  *domain.Catalog
	tokens   [][]string
	vectors  [][]float32
	norms    []float64
	bm25     *BM25
	embedder ports.Embedder
}

// New reconstructs an index from a snapshot without re-embedding. The
// embedder is only used for queries and must report the snapshot's model.
func New(snap Snapshot, embedder ports.Embedder) (*Index, error) {
	if err := snap.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrCorruptArtifact, "new index", err)
	}
	if embedder == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "new index", fmt.Errorf("embedder is required"))
	}
	if embedder.Model() != snap.Model {
		return nil, domain.WrapError(domain.ErrConfiguration, "new index",
			fmt.Errorf("embedding model mismatch: index built with %q, embedder uses %q", snap.Model, embedder.Model()))
	}

	catalog, err := domain.NewCatalog(snap.Records)
	if err != nil {
		return nil, err
	}
	if catalog.Len() != len(snap.Records) {
		return nil, domain.WrapError(domain.ErrCorruptArtifact, "new index", fmt.Errorf("duplicate card ids in snapshot"))
	}

	norms := make([]float64, len(snap.Embeddings))
	for i, row := range snap.Embeddings {
		norms[i] = norm(row)
	}

	return &Index{
		model:    snap.Model,
		catalog:  catalog,
		tokens:   snap.Tokens,
		vectors:  snap.Embeddings,
		norms:    norms,
		bm25:     NewBM25(snap.Tokens),
		embedder: embedder,
	}, nil
}

func (ix *Index) Model() string            { return ix.model }
func (ix *Index) Len() int                 { return ix.catalog.Len() }
func (ix *Index) Catalog() *domain.Catalog { return ix.catalog }

// Snapshot returns the persisted form of the index.
func (ix *Index) Snapshot() Snapshot {
	return Snapshot{
		Model:      ix.model,
		Records:    ix.catalog.Records(),
		Embeddings: ix.vectors,
		Tokens:     ix.tokens,
	}
}

// RetrieveTopK returns at most query.TopK candidates from the filtered set
// in descending hybrid score. Equal scores keep catalog order.
func (ix *Index) RetrieveTopK(ctx context.Context, query domain.RetrievalQuery) ([]domain.RetrievalCandidate, error) {
	if math.IsNaN(query.Alpha) || query.Alpha < 0 || query.Alpha > 1 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "retrieve", fmt.Errorf("alpha must be between 0 and 1, got %v", query.Alpha))
	}
	if strings.TrimSpace(query.Text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "retrieve", fmt.Errorf("query is empty"))
	}
	if query.TopK < 1 {
		return nil, domain.WrapError(domain.ErrInvalidArgument, "retrieve", fmt.Errorf("top_k must be positive, got %d", query.TopK))
	}

	started := time.Now()
	filtered := ix.filter(query.Filter)
	if len(filtered) == 0 {
		slog.Debug("retrieval_no_match", "domain", query.Filter.Domain, "topic", query.Filter.Topic)
		return []domain.RetrievalCandidate{}, nil
	}

	queryVec, err := ix.embedder.EmbedQuery(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVec) != len(ix.vectors[0]) {
		return nil, domain.WrapError(domain.ErrConfiguration, "retrieve",
			fmt.Errorf("query embedding dimension %d, index dimension %d", len(queryVec), len(ix.vectors[0])))
	}
	queryNorm := norm(queryVec)

	bm25All := ix.bm25.Scores(Tokenize(query.Text))
	lexical := make([]float64, len(filtered))
	semantic := make([]float64, len(filtered))
	for i, idx := range filtered {
		lexical[i] = bm25All[idx]
		semantic[i] = cosineWithNorm(ix.vectors[idx], ix.norms[idx], queryVec, queryNorm)
	}

	lexNorm := NormalizeMinMax(lexical)
	semNorm := NormalizeMinMax(semantic)
	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(filtered))
	for i, idx := range filtered {
		ranked[i] = scored{idx: idx, score: query.Alpha*lexNorm[i] + (1-query.Alpha)*semNorm[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].idx < ranked[j].idx
	})
	if len(ranked) > query.TopK {
		ranked = ranked[:query.TopK]
	}

	out := make([]domain.RetrievalCandidate, 0, len(ranked))
	for _, r := range ranked {
		rec := ix.catalog.At(r.idx)
		out = append(out, domain.RetrievalCandidate{
			Card:   &rec.Card,
			Source: rec.Source,
			Score:  r.score,
		})
	}

	slog.Debug("retrieval_completed",
		"filtered", len(filtered),
		"returned", len(out),
		"alpha", query.Alpha,
		"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
	)
	return out, nil
}

func (ix *Index) filter(f domain.CardFilter) []int {
	out := make([]int, 0, ix.catalog.Len())
	for i := 0; i < ix.catalog.Len(); i++ {
		if f.IsEmpty() || ix.catalog.At(i).Card.MatchesFilter(f) {
			out = append(out, i)
		}
	}
	return out
}
