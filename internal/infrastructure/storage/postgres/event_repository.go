package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

// SolveEventRepository records solve events as an audit table.
type SolveEventRepository struct {
	db *sql.DB
}

func NewSolveEventRepository(db *sql.DB) *SolveEventRepository {
	return &SolveEventRepository{db: db}
}

func (r *SolveEventRepository) PublishSolveEvent(ctx context.Context, event domain.SolveEvent) error {
	const query = `
INSERT INTO solve_events (id, question, status, reason, card_id, fallback, candidates, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING
`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Question,
		string(event.Status),
		nullableString(event.Reason),
		nullableString(event.CardID),
		event.Fallback,
		event.Candidates,
		event.Duration,
		event.At,
	)
	if err != nil {
		return fmt.Errorf("insert solve event: %w", err)
	}
	return nil
}

// RecentSolveEvents returns the newest events first.
func (r *SolveEventRepository) RecentSolveEvents(ctx context.Context, limit int) ([]domain.SolveEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
SELECT id, question, status, COALESCE(reason, ''), COALESCE(card_id, ''), fallback, candidates, duration_ms, created_at
FROM solve_events
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select solve events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SolveEvent, 0, limit)
	for rows.Next() {
		var (
			event  domain.SolveEvent
			status string
		)
		if err := rows.Scan(
			&event.ID,
			&event.Question,
			&status,
			&event.Reason,
			&event.CardID,
			&event.Fallback,
			&event.Candidates,
			&event.Duration,
			&event.At,
		); err != nil {
			return nil, fmt.Errorf("scan solve event: %w", err)
		}
		event.Status = domain.SolveStatus(status)
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate solve events: %w", err)
	}
	return out, nil
}
