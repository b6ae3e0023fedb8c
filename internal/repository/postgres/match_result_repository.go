package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/minhngvu/stocktrace/internal/domain"
)

// MatchResultRepository stores matcher decisions for audit reporting.
type MatchResultRepository struct {
	db *sqlx.DB
}

func NewMatchResultRepository(db *DB) *MatchResultRepository {
	return &MatchResultRepository{db: db.DB}
}

func (r *MatchResultRepository) Save(ctx context.Context, res *domain.MatchResult) error {
	query := `
		INSERT INTO match_results (movement_id, lot_id, score, auto_created)
		VALUES ($1, $2, $3, $4)
		RETURNING id, matched_at`

	err := r.db.QueryRowContext(ctx, query,
		res.MovementID, res.LotID, res.Score, res.AutoCreated,
	).Scan(&res.ID, &res.MatchedAt)
	if err != nil {
		return fmt.Errorf("save match result for movement %d: %w", res.MovementID, err)
	}
	return nil
}

func (r *MatchResultRepository) ListRecent(ctx context.Context, limit int) ([]domain.MatchResult, error) {
	query := `
		SELECT id, movement_id, lot_id, score, auto_created, matched_at
		FROM match_results
		ORDER BY matched_at DESC, id DESC
		LIMIT $1`

	var results []domain.MatchResult
	if err := r.db.SelectContext(ctx, &results, query, limit); err != nil {
		return nil, fmt.Errorf("list recent match results: %w", err)
	}
	return results, nil
}
