package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

// ArtifactStorage keeps one artifact payload per key.
type ArtifactStorage struct {
	db *sql.DB
}

func NewArtifactStorage(db *sql.DB) *ArtifactStorage {
	return &ArtifactStorage{db: db}
}

func (s *ArtifactStorage) Save(ctx context.Context, key string, data io.Reader) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.WrapError(domain.ErrInvalidArgument, "save artifact", fmt.Errorf("key is empty"))
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("read artifact payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin artifact tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
INSERT INTO index_artifacts (key, payload, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
`
	if _, err := tx.ExecContext(ctx, query, key, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert artifact: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit artifact tx: %w", err)
	}
	return nil
}

func (s *ArtifactStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	const query = `SELECT payload FROM index_artifacts WHERE key = $1`
	var payload []byte
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "open artifact", fmt.Errorf("key %q", key))
		}
		return nil, fmt.Errorf("select artifact: %w", err)
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}
