package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/verifiquant/internal/core/domain"
	"github.com/kirillkom/verifiquant/internal/core/ports"
	"github.com/kirillkom/verifiquant/internal/core/retrieval"
)

// SnapshotRepository persists index snapshots under a key.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, key string, snap retrieval.Snapshot) error
	LoadSnapshot(ctx context.Context, key string) (retrieval.Snapshot, error)
}

type BuildRequest struct {
	Key    string
	Filter domain.CardFilter
}

type BuildReport struct {
	Key   string
	Model string
	Cards int
}

// IndexUseCase builds retrieval indexes from the catalog source and reloads
// them from persisted snapshots.
type IndexUseCase struct {
	source   ports.CatalogSource
	embedder ports.Embedder
	repo     SnapshotRepository
	opts     retrieval.BuildOptions
}

func NewIndexUseCase(
	source ports.CatalogSource,
	embedder ports.Embedder,
	repo SnapshotRepository,
	opts retrieval.BuildOptions,
) *IndexUseCase {
	return &IndexUseCase{
		source:   source,
		embedder: embedder,
		repo:     repo,
		opts:     opts,
	}
}

func (uc *IndexUseCase) Build(ctx context.Context, req BuildRequest) (*retrieval.Index, BuildReport, error) {
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return nil, BuildReport{}, domain.WrapError(domain.ErrInvalidArgument, "build index", fmt.Errorf("artifact key is empty"))
	}
	if uc.source == nil {
		return nil, BuildReport{}, domain.WrapError(domain.ErrConfiguration, "build index", fmt.Errorf("catalog source is not configured"))
	}

	catalog, err := uc.source.Load(ctx, req.Filter)
	if err != nil {
		return nil, BuildReport{}, fmt.Errorf("load catalog: %w", err)
	}
	index, err := retrieval.Build(ctx, catalog, uc.embedder, uc.opts)
	if err != nil {
		return nil, BuildReport{}, fmt.Errorf("build index: %w", err)
	}
	if err := uc.repo.SaveSnapshot(ctx, key, index.Snapshot()); err != nil {
		return nil, BuildReport{}, fmt.Errorf("save index %s: %w", key, err)
	}

	report := BuildReport{Key: key, Model: index.Model(), Cards: index.Len()}
	slog.Info("index_saved", "key", report.Key, "model", report.Model, "cards", report.Cards)
	return index, report, nil
}

// Load restores a persisted index. The configured embedder must use the
// model the index was built with.
func (uc *IndexUseCase) Load(ctx context.Context, key string) (*retrieval.Index, error) {
	snap, err := uc.repo.LoadSnapshot(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", key, err)
	}
	index, err := retrieval.New(snap, uc.embedder)
	if err != nil {
		return nil, fmt.Errorf("restore index %s: %w", key, err)
	}
	slog.Info("index_loaded", "key", key, "model", index.Model(), "cards", index.Len())
	return index, nil
}
