package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/ports"
)

type BuildOptions struct {
	BatchSize int
	Workers   int
}

func (o BuildOptions) normalize() BuildOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 32
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	return o
}

// Build tokenizes and embeds every card of the catalog. Embedding batches
// run concurrently; row order always follows catalog order.
func Build(ctx context.Context, catalog *domain.Catalog, embedder ports.Embedder, opts BuildOptions) (*Index, error) {
	if catalog == nil || catalog.Len() == 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "build index", fmt.Errorf("catalog is empty"))
	}
	if embedder == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "build index", fmt.Errorf("embedder is required"))
	}
	opts = opts.normalize()
	started := time.Now()

	records := catalog.Records()
	docs := make([]string, len(records))
	tokens := make([][]string, len(records))
	for i := range records {
		docs[i] = records[i].Card.SearchDocument()
		tokens[i] = Tokenize(docs[i])
	}

	vectors := make([][]float32, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for start := 0; start < len(docs); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(docs))
		g.Go(func() error {
			batch, err := embedder.Embed(gctx, docs[start:end])
			if err != nil {
				return fmt.Errorf("embed cards %d-%d: %w", start, end-1, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("embed cards %d-%d: got %d vectors", start, end-1, len(batch))
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ix, err := New(Snapshot{
		Model:      embedder.Model(),
		Records:    records,
		Embeddings: vectors,
		Tokens:     tokens,
	}, embedder)
	if err != nil {
		return nil, err
	}

	slog.Info("index_built",
		"cards", len(records),
		"model", embedder.Model(),
		"dimension", len(vectors[0]),
		"duration_ms", float64(time.Since(started).Microseconds())/1000.0,
	)
	return ix, nil
}
