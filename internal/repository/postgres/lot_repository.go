package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/normalize"
	"github.com/minhngvu/stocktrace/internal/repository"
)

type LotRepository struct {
	db *sqlx.DB
}

func NewLotRepository(db *DB) *LotRepository {
	return &LotRepository{db: db.DB}
}

const lotColumns = `
	id, factory, material_code, po_number, imd,
	COALESCE(opening_stock, 0)  AS opening_stock,
	COALESCE(received_qty, 0)   AS received_qty,
	COALESCE(exported_qty, 0)   AS exported_qty,
	COALESCE(adjustment_qty, 0) AS adjustment_qty,
	COALESCE(location, '')      AS location,
	COALESCE(qc_disposition, 'awaiting_inspection') AS qc_disposition,
	COALESCE(qc_inspector_id, '') AS qc_inspector_id,
	qc_inspected_at, last_modified`

func (r *LotRepository) GetByID(ctx context.Context, id int64) (*domain.MaterialLot, error) {
	query := `SELECT` + lotColumns + ` FROM material_lots WHERE id = $1`

	var lot domain.MaterialLot
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get lot %d: %w", id, err)
	}
	return &lot, nil
}

func (r *LotRepository) FindByIdentity(ctx context.Context, materialCode, poNumber, imd string) (*domain.MaterialLot, error) {
	query := `SELECT` + lotColumns + `
		FROM material_lots
		WHERE material_code = $1 AND po_number = $2 AND imd = $3
		ORDER BY id
		LIMIT 1`

	var lot domain.MaterialLot
	err := r.db.GetContext(ctx, &lot, query,
		normalize.Key(materialCode), normalize.Key(poNumber), imd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find lot %s/%s/%s: %w", materialCode, poNumber, imd, err)
	}
	return &lot, nil
}

func (r *LotRepository) ListByMaterial(ctx context.Context, materialCode, poNumber string) ([]domain.MaterialLot, error) {
	query := `SELECT` + lotColumns + ` FROM material_lots WHERE material_code = $1`
	args := []any{normalize.Key(materialCode)}

	if poNumber != "" {
		query += ` AND po_number = $2`
		args = append(args, normalize.Key(poNumber))
	}
	query += ` ORDER BY id`

	var lots []domain.MaterialLot
	if err := r.db.SelectContext(ctx, &lots, query, args...); err != nil {
		return nil, fmt.Errorf("list lots for %s: %w", materialCode, err)
	}
	return lots, nil
}

func (r *LotRepository) Create(ctx context.Context, lot *domain.MaterialLot) error {
	query := `
		INSERT INTO material_lots
			(factory, material_code, po_number, imd, opening_stock, received_qty,
			 exported_qty, adjustment_qty, location, qc_disposition, qc_inspector_id,
			 qc_inspected_at, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING id, last_modified`

	err := r.db.QueryRowContext(ctx, query,
		lot.Factory,
		normalize.Key(lot.MaterialCode),
		normalize.Key(lot.PONumber),
		lot.IMD,
		lot.OpeningStock,
		lot.ReceivedQty,
		lot.ExportedQty,
		lot.AdjustmentQty,
		lot.Location,
		lot.QCDisposition,
		lot.QCInspectorID,
		lot.QCInspectedAt,
	).Scan(&lot.ID, &lot.LastModified)
	if err != nil {
		return fmt.Errorf("create lot %s/%s/%s: %w", lot.MaterialCode, lot.PONumber, lot.IMD, err)
	}
	return nil
}

func (r *LotRepository) AddExported(ctx context.Context, id int64, qty float64) error {
	query := `
		UPDATE material_lots
		SET exported_qty = COALESCE(exported_qty, 0) + $2, last_modified = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, qty)
	if err != nil {
		return fmt.Errorf("add exported qty to lot %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateDisposition persists a QC transition and returns the server-assigned
// inspection timestamp.
func (r *LotRepository) UpdateDisposition(ctx context.Context, lotID int64, state domain.QCState, inspectorID string) (time.Time, error) {
	query := `
		UPDATE material_lots
		SET qc_disposition = $2, qc_inspector_id = $3, qc_inspected_at = NOW(), last_modified = NOW()
		WHERE id = $1
		RETURNING qc_inspected_at`

	var inspectedAt time.Time
	err := r.db.QueryRowContext(ctx, query, lotID, state, inspectorID).Scan(&inspectedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, repository.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("update disposition of lot %d: %w", lotID, err)
	}
	return inspectedAt, nil
}

func (r *LotRepository) CountPending(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM material_lots
		WHERE COALESCE(qc_disposition, 'awaiting_inspection')
			IN ('awaiting_inspection', 'awaiting_confirmation')`

	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count pending lots: %w", err)
	}
	return count, nil
}

func (r *LotRepository) CheckedSince(ctx context.Context, since time.Time, limit int) ([]domain.QCCheckInfo, error) {
	query := `
		SELECT material_code, po_number, imd,
			COALESCE(location, '') AS location,
			qc_disposition,
			COALESCE(qc_inspector_id, '') AS qc_inspector_id,
			qc_inspected_at
		FROM material_lots
		WHERE qc_inspected_at >= $1
		ORDER BY qc_inspected_at DESC
		LIMIT $2`

	var checks []domain.QCCheckInfo
	if err := r.db.SelectContext(ctx, &checks, query, since, limit); err != nil {
		return nil, fmt.Errorf("list checked lots since %s: %w", since.Format(time.RFC3339), err)
	}
	return checks, nil
}
