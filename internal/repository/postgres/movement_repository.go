package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/normalize"
)

// IntakeRepository reads and writes goods-receipt records.
type IntakeRepository struct {
	db *sqlx.DB
}

func NewIntakeRepository(db *DB) *IntakeRepository {
	return &IntakeRepository{db: db.DB}
}

func (r *IntakeRepository) List(ctx context.Context, materialCode, poNumber string) ([]domain.IntakeRecord, error) {
	query := `
		SELECT id, factory, material_code, po_number,
			COALESCE(quantity, 0) AS quantity,
			COALESCE(import_date, '') AS import_date,
			COALESCE(batch_number, '') AS batch_number,
			created_at
		FROM intake_records
		WHERE material_code = $1`
	args := []any{normalize.Key(materialCode)}

	if poNumber != "" {
		query += ` AND po_number = $2`
		args = append(args, normalize.Key(poNumber))
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list intakes for %s: %w", materialCode, err)
	}
	defer rows.Close()

	var records []domain.IntakeRecord
	for rows.Next() {
		var rec domain.IntakeRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("scan intake record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate intake records: %w", err)
	}

	if err := r.loadEmployees(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// loadEmployees fills EmployeeIDs from the array column in one query.
func (r *IntakeRepository) loadEmployees(ctx context.Context, records []domain.IntakeRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]int64, len(records))
	index := make(map[int64]*domain.IntakeRecord, len(records))
	for i := range records {
		ids[i] = records[i].ID
		index[records[i].ID] = &records[i]
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, COALESCE(employee_ids, '{}') FROM intake_records WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load intake employees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var employees pq.StringArray
		if err := rows.Scan(&id, &employees); err != nil {
			return fmt.Errorf("scan intake employees: %w", err)
		}
		if rec, ok := index[id]; ok {
			rec.EmployeeIDs = employees
		}
	}
	return rows.Err()
}

func (r *IntakeRepository) Create(ctx context.Context, rec *domain.IntakeRecord) error {
	query := `
		INSERT INTO intake_records
			(factory, material_code, po_number, quantity, import_date, batch_number, employee_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		rec.Factory,
		normalize.Key(rec.MaterialCode),
		normalize.Key(rec.PONumber),
		rec.Quantity,
		rec.ImportDate,
		rec.BatchNumber,
		pq.StringArray(rec.EmployeeIDs),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create intake for %s/%s: %w", rec.MaterialCode, rec.PONumber, err)
	}
	return nil
}

// OutboundRepository reads and writes stock movements. Movements are
// append-only: reconciliation reads them but never mutates them.
type OutboundRepository struct {
	db *sqlx.DB
}

func NewOutboundRepository(db *DB) *OutboundRepository {
	return &OutboundRepository{db: db.DB}
}

const outboundColumns = `
	id, factory, material_code, po_number,
	COALESCE(export_qty, 0) AS export_qty,
	export_date,
	COALESCE(import_date, '') AS import_date,
	COALESCE(production_order, '') AS production_order,
	COALESCE(operator_id, '') AS operator_id,
	created_at`

func (r *OutboundRepository) List(ctx context.Context, materialCode, poNumber string) ([]domain.OutboundMovement, error) {
	query := `SELECT` + outboundColumns + ` FROM outbound_movements WHERE material_code = $1`
	args := []any{normalize.Key(materialCode)}

	if poNumber != "" {
		query += ` AND po_number = $2`
		args = append(args, normalize.Key(poNumber))
	}
	query += ` ORDER BY export_date, id`

	var movements []domain.OutboundMovement
	if err := r.db.SelectContext(ctx, &movements, query, args...); err != nil {
		return nil, fmt.Errorf("list outbound movements for %s: %w", materialCode, err)
	}
	return movements, nil
}

func (r *OutboundRepository) ListUnreconciled(ctx context.Context, limit int) ([]domain.OutboundMovement, error) {
	query := `SELECT` + outboundColumns + `
		FROM outbound_movements o
		WHERE NOT EXISTS (SELECT 1 FROM match_results m WHERE m.movement_id = o.id)
		ORDER BY o.id
		LIMIT $1`

	var movements []domain.OutboundMovement
	if err := r.db.SelectContext(ctx, &movements, query, limit); err != nil {
		return nil, fmt.Errorf("list unreconciled movements: %w", err)
	}
	return movements, nil
}

func (r *OutboundRepository) Create(ctx context.Context, mv *domain.OutboundMovement) error {
	query := `
		INSERT INTO outbound_movements
			(factory, material_code, po_number, export_qty, export_date,
			 import_date, production_order, operator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		mv.Factory,
		normalize.Key(mv.MaterialCode),
		normalize.Key(mv.PONumber),
		mv.ExportQty,
		mv.ExportDate,
		mv.ImportDate,
		mv.ProductionOrder,
		mv.OperatorID,
	).Scan(&mv.ID, &mv.CreatedAt)
	if err != nil {
		return fmt.Errorf("create outbound movement for %s/%s: %w", mv.MaterialCode, mv.PONumber, err)
	}
	return nil
}
