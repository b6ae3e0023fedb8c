package repository

import (
	"context"
	"errors"
	"time"

	"github.com/minhngvu/stocktrace/internal/domain"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("repository: not found")

// LotRepository is the lot-snapshot collection. It doubles as the QC
// workflow's store and counter source.
type LotRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.MaterialLot, error)
	// FindByIdentity resolves the (material, po, imd) triple a scanned label
	// carries. Returns ErrNotFound when no lot matches.
	FindByIdentity(ctx context.Context, materialCode, poNumber, imd string) (*domain.MaterialLot, error)
	// ListByMaterial returns lots for a material, optionally PO-scoped when
	// poNumber is non-empty.
	ListByMaterial(ctx context.Context, materialCode, poNumber string) ([]domain.MaterialLot, error)
	Create(ctx context.Context, lot *domain.MaterialLot) error
	// AddExported increments the exported quantity. Deliberately not atomic
	// with the read that selected the lot; see the matcher docs.
	AddExported(ctx context.Context, id int64, qty float64) error

	UpdateDisposition(ctx context.Context, lotID int64, state domain.QCState, inspectorID string) (time.Time, error)
	CountPending(ctx context.Context) (int, error)
	CheckedSince(ctx context.Context, since time.Time, limit int) ([]domain.QCCheckInfo, error)
}

// IntakeRepository is the goods-receipt collection.
type IntakeRepository interface {
	List(ctx context.Context, materialCode, poNumber string) ([]domain.IntakeRecord, error)
	Create(ctx context.Context, rec *domain.IntakeRecord) error
}

// OutboundRepository is the stock-movement collection. Movements are
// append-only; reconciliation never mutates them.
type OutboundRepository interface {
	List(ctx context.Context, materialCode, poNumber string) ([]domain.OutboundMovement, error)
	// ListUnreconciled returns movements with no match result yet, oldest
	// first, for the batch reconciliation run.
	ListUnreconciled(ctx context.Context, limit int) ([]domain.OutboundMovement, error)
	Create(ctx context.Context, mv *domain.OutboundMovement) error
}

// MatchResultRepository stores matcher decisions for audit.
type MatchResultRepository interface {
	Save(ctx context.Context, res *domain.MatchResult) error
	ListRecent(ctx context.Context, limit int) ([]domain.MatchResult, error)
}
