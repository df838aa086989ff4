package artifact

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/verifiquant/internal/core/ports"
	"github.com/kirillkom/verifiquant/internal/core/retrieval"
)

// Repository stores index snapshots through an artifact storage backend.
type Repository struct {
	storage ports.ArtifactStorage
	now     func() time.Time
}

func NewRepository(storage ports.ArtifactStorage) *Repository {
	return &Repository{storage: storage, now: time.Now}
}

func (r *Repository) SaveSnapshot(ctx context.Context, key string, snap retrieval.Snapshot) error {
	var buf bytes.Buffer
	if err := Encode(&buf, FromIndex(snap, r.now())); err != nil {
		return err
	}
	if err := r.storage.Save(ctx, key, &buf); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	return nil
}

func (r *Repository) LoadSnapshot(ctx context.Context, key string) (retrieval.Snapshot, error) {
	snap, err := r.Inspect(ctx, key)
	if err != nil {
		return retrieval.Snapshot{}, err
	}
	return snap.ToIndex(), nil
}

// Inspect decodes the stored artifact including its build metadata.
func (r *Repository) Inspect(ctx context.Context, key string) (Snapshot, error) {
	rc, err := r.storage.Open(ctx, key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open artifact: %w", err)
	}
	defer rc.Close()
	return Decode(rc)
}
