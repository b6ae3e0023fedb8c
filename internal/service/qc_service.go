package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minhngvu/stocktrace/internal/cache"
	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/normalize"
	"github.com/minhngvu/stocktrace/internal/qc"
	"github.com/minhngvu/stocktrace/internal/repository"
)

// ErrLotNotResolved carries the identity that failed to resolve so the
// operator knows what to correct on the physical label.
type ErrLotNotResolved struct {
	MaterialCode string
	PONumber     string
	IMD          string
}

func (e *ErrLotNotResolved) Error() string {
	return fmt.Sprintf("no lot found for material %s, po %s, imd %s", e.MaterialCode, e.PONumber, e.IMD)
}

// QCService fronts the QC workflow: scan resolution, state transitions, and
// the derived counters, plus the best-effort periodic counter refresh.
type QCService struct {
	lots     repository.LotRepository
	workflow *qc.Workflow
	cache    cache.LedgerCache
	interval time.Duration
}

func NewQCService(lots repository.LotRepository, workflow *qc.Workflow, cacheImpl cache.LedgerCache, refreshInterval time.Duration) *QCService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopLedgerCache()
	}
	return &QCService{
		lots:     lots,
		workflow: workflow,
		cache:    cacheImpl,
		interval: refreshInterval,
	}
}

// ResolveScan decodes a pipe-delimited QR payload and resolves the lot it
// names. Decoding failures already name the failing segment; a decode that
// succeeds but matches no lot reports the full identity instead.
func (s *QCService) ResolveScan(ctx context.Context, payload string) (*domain.MaterialLot, error) {
	in, err := normalize.Scan(payload)
	if err != nil {
		log.Warn().Err(err).Str("payload", payload).Msg("qc: scan rejected")
		return nil, err
	}

	lot, err := s.lots.FindByIdentity(ctx, in.MaterialCode, in.PONumber, in.IMD)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ErrLotNotResolved{
				MaterialCode: in.MaterialCode,
				PONumber:     in.PONumber,
				IMD:          in.IMD,
			}
		}
		return nil, fmt.Errorf("resolve scanned lot: %w", err)
	}
	return lot, nil
}

// Transition moves a lot to a new disposition. On success the traced-ledger
// cache for the material is invalidated so the next trace shows the new
// disposition.
func (s *QCService) Transition(ctx context.Context, lotID int64, next domain.QCState, inspectorID string) (*domain.MaterialLot, error) {
	lot, err := s.lots.GetByID(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("load lot %d: %w", lotID, err)
	}

	if err := s.workflow.Transition(ctx, lot, next, inspectorID); err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, lot.MaterialCode); err != nil {
		log.Warn().Err(err).Str("material_code", lot.MaterialCode).Msg("qc: ledger cache invalidation failed")
	}
	return lot, nil
}

func (s *QCService) Counters(ctx context.Context) (*domain.QCCounters, error) {
	return s.workflow.Counters(ctx)
}

// StartRefresh launches the periodic counter re-derivation. Best effort: a
// failed refresh keeps the previous counters and logs, correctness does not
// depend on it.
func (s *QCService) StartRefresh(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.workflow.Refresh(ctx); err != nil {
					log.Warn().Err(err).Msg("qc: background counter refresh failed")
				}
			}
		}
	}()
}
