// Package ingest is the record-push boundary: the one place raw intake,
// outbound, and lot-snapshot records enter the system. Identity fields are
// normalized here so everything downstream can compare keys directly.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minhngvu/stocktrace/internal/cache"
	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/normalize"
	"github.com/minhngvu/stocktrace/internal/repository"
)

// ValidationError names the field that made a pushed record unacceptable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: field %s %s", e.Field, e.Reason)
}

type Service struct {
	intakes   repository.IntakeRepository
	outbounds repository.OutboundRepository
	lots      repository.LotRepository
	cache     cache.LedgerCache
	now       func() time.Time
}

func NewService(
	intakes repository.IntakeRepository,
	outbounds repository.OutboundRepository,
	lots repository.LotRepository,
	cacheImpl cache.LedgerCache,
) *Service {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopLedgerCache()
	}
	return &Service{
		intakes:   intakes,
		outbounds: outbounds,
		lots:      lots,
		cache:     cacheImpl,
		now:       time.Now,
	}
}

// PushIntake normalizes and stores one goods-receipt line. The import date is
// canonicalized to DDMMYYYY; an unparseable value is replaced with today and
// flagged in the data-quality log rather than rejected.
func (s *Service) PushIntake(ctx context.Context, rec *domain.IntakeRecord) error {
	rec.MaterialCode = normalize.Key(rec.MaterialCode)
	rec.PONumber = normalize.Key(rec.PONumber)
	if rec.MaterialCode == "" {
		return &ValidationError{Field: "material_code", Reason: "is required"}
	}
	if rec.PONumber == "" {
		return &ValidationError{Field: "po_number", Reason: "is required"}
	}
	if rec.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}

	rec.ImportDate, _ = normalize.Date(rec.ImportDate, s.now())

	if err := s.intakes.Create(ctx, rec); err != nil {
		return fmt.Errorf("store intake record: %w", err)
	}
	s.invalidate(ctx, rec.MaterialCode)
	return nil
}

// PushOutbound stores one stock movement. The movement's copy of the intake
// date is kept raw: the matcher canonicalizes it at comparison time and must
// see the original value.
func (s *Service) PushOutbound(ctx context.Context, mv *domain.OutboundMovement) error {
	mv.MaterialCode = normalize.Key(mv.MaterialCode)
	mv.PONumber = normalize.Key(mv.PONumber)
	if mv.MaterialCode == "" {
		return &ValidationError{Field: "material_code", Reason: "is required"}
	}
	if mv.ExportQty <= 0 {
		return &ValidationError{Field: "export_qty", Reason: "must be positive"}
	}
	if mv.ExportDate.IsZero() {
		mv.ExportDate = s.now()
	}

	if err := s.outbounds.Create(ctx, mv); err != nil {
		return fmt.Errorf("store outbound movement: %w", err)
	}
	s.invalidate(ctx, mv.MaterialCode)
	return nil
}

// PushLot stores one lot snapshot. The IMD is derived from the import date
// and batch number when absent.
func (s *Service) PushLot(ctx context.Context, lot *domain.MaterialLot, importDate any, batchNumber string) error {
	lot.MaterialCode = normalize.Key(lot.MaterialCode)
	lot.PONumber = normalize.Key(lot.PONumber)
	if lot.MaterialCode == "" {
		return &ValidationError{Field: "material_code", Reason: "is required"}
	}
	if lot.PONumber == "" {
		return &ValidationError{Field: "po_number", Reason: "is required"}
	}

	if !normalize.ValidIMD(lot.IMD) {
		lot.IMD, _ = normalize.IMD(importDate, batchNumber, s.now())
	}
	if lot.QCDisposition == "" {
		lot.QCDisposition = domain.QCAwaitingInspection
	}
	lot.LastModified = s.now()

	if err := s.lots.Create(ctx, lot); err != nil {
		return fmt.Errorf("store lot snapshot: %w", err)
	}
	s.invalidate(ctx, lot.MaterialCode)
	return nil
}

func (s *Service) invalidate(ctx context.Context, materialCode string) {
	if err := s.cache.Invalidate(ctx, materialCode); err != nil {
		log.Warn().Err(err).Str("material_code", materialCode).Msg("ingest: cache invalidation failed")
	}
}
