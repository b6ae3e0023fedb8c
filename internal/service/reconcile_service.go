package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minhngvu/stocktrace/internal/cache"
	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/match"
	"github.com/minhngvu/stocktrace/internal/repository"
	"github.com/minhngvu/stocktrace/internal/storage"
)

// RunEntry is one movement's outcome in a reconciliation run.
type RunEntry struct {
	MovementID   int64   `json:"movement_id"`
	MaterialCode string  `json:"material_code"`
	PONumber     string  `json:"po_number"`
	Quantity     float64 `json:"quantity"`
	LotID        int64   `json:"lot_id"`
	Score        int     `json:"score"`
	AutoCreated  bool    `json:"auto_created"`
}

// RunReport summarizes one batch run. AutoCreated entries are the ones a
// human needs to look at.
type RunReport struct {
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
	Processed   int        `json:"processed"`
	Linked      int        `json:"linked"`
	AutoCreated int        `json:"auto_created"`
	Entries     []RunEntry `json:"entries"`
}

// ReconcileService runs the scored matcher over unreconciled outbound
// movements. Movements are processed one at a time, each lot write awaited
// before the next movement, keeping the read-then-write pattern locally
// consistent; two runs executing concurrently can still double-count a lot,
// which is the documented limitation of this batch design.
type ReconcileService struct {
	lots      repository.LotRepository
	outbounds repository.OutboundRepository
	results   repository.MatchResultRepository
	matcher   *match.Matcher
	archive   storage.ObjectStorage // nil disables report archiving
	cache     cache.LedgerCache
	now       func() time.Time
}

func NewReconcileService(
	lots repository.LotRepository,
	outbounds repository.OutboundRepository,
	results repository.MatchResultRepository,
	matcher *match.Matcher,
	archive storage.ObjectStorage,
	cacheImpl cache.LedgerCache,
) *ReconcileService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopLedgerCache()
	}
	return &ReconcileService{
		lots:      lots,
		outbounds: outbounds,
		results:   results,
		matcher:   matcher,
		archive:   archive,
		cache:     cacheImpl,
		now:       time.Now,
	}
}

// Run reconciles up to limit pending movements. A movement that fails to
// persist is logged and skipped; it stays unreconciled for the next run
// rather than aborting the batch.
func (s *ReconcileService) Run(ctx context.Context, limit int) (*RunReport, error) {
	report := &RunReport{StartedAt: s.now()}

	movements, err := s.outbounds.ListUnreconciled(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list unreconciled movements: %w", err)
	}

	for i := range movements {
		mv := &movements[i]
		entry, err := s.reconcileOne(ctx, mv)
		if err != nil {
			log.Error().Err(err).
				Int64("movement_id", mv.ID).
				Str("material_code", mv.MaterialCode).
				Msg("reconcile: movement skipped")
			continue
		}

		report.Processed++
		if entry.AutoCreated {
			report.AutoCreated++
		} else {
			report.Linked++
		}
		report.Entries = append(report.Entries, *entry)

		if err := s.cache.Invalidate(ctx, mv.MaterialCode); err != nil {
			log.Warn().Err(err).Str("material_code", mv.MaterialCode).Msg("reconcile: cache invalidation failed")
		}
	}

	report.FinishedAt = s.now()
	s.archiveReport(ctx, report)

	log.Info().
		Int("processed", report.Processed).
		Int("linked", report.Linked).
		Int("auto_created", report.AutoCreated).
		Msg("reconcile: run finished")
	return report, nil
}

func (s *ReconcileService) reconcileOne(ctx context.Context, mv *domain.OutboundMovement) (*RunEntry, error) {
	candidates, err := s.lots.ListByMaterial(ctx, mv.MaterialCode, "")
	if err != nil {
		return nil, fmt.Errorf("load candidate lots: %w", err)
	}

	ptrs := make([]*domain.MaterialLot, len(candidates))
	for i := range candidates {
		ptrs[i] = &candidates[i]
	}

	outcome := s.matcher.Select(ptrs, mv)
	if outcome.AutoCreated {
		if err := s.lots.Create(ctx, outcome.Lot); err != nil {
			return nil, fmt.Errorf("create fallback lot: %w", err)
		}
	} else {
		s.matcher.Apply(outcome)
		if err := s.lots.AddExported(ctx, outcome.Lot.ID, mv.ExportQty); err != nil {
			return nil, fmt.Errorf("apply match to lot %d: %w", outcome.Lot.ID, err)
		}
	}

	result := &domain.MatchResult{
		MovementID:  mv.ID,
		LotID:       outcome.Lot.ID,
		Score:       outcome.Score,
		AutoCreated: outcome.AutoCreated,
	}
	if err := s.results.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("save match result: %w", err)
	}

	return &RunEntry{
		MovementID:   mv.ID,
		MaterialCode: mv.MaterialCode,
		PONumber:     mv.PONumber,
		Quantity:     mv.ExportQty,
		LotID:        outcome.Lot.ID,
		Score:        outcome.Score,
		AutoCreated:  outcome.AutoCreated,
	}, nil
}

// archiveReport pushes the run report to object storage for the manual
// follow-up queue. Best effort: archive failure never fails the run.
func (s *ReconcileService) archiveReport(ctx context.Context, report *RunReport) {
	if s.archive == nil || report.Processed == 0 {
		return
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("reconcile: encode run report failed")
		return
	}

	key := fmt.Sprintf("reconcile/%s/run-%s.json",
		report.StartedAt.Format("2006/01/02"),
		report.StartedAt.Format("150405"))
	if err := s.archive.UploadObject(ctx, key, payload); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("reconcile: archive upload failed")
		return
	}
	log.Info().Str("key", key).Msg("reconcile: run report archived")
}

// RecentResults lists the latest matcher decisions for the audit endpoint.
func (s *ReconcileService) RecentResults(ctx context.Context, limit int) ([]domain.MatchResult, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.results.ListRecent(ctx, limit)
}
