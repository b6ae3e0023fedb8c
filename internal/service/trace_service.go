package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/minhngvu/stocktrace/internal/cache"
	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/ledger"
	"github.com/minhngvu/stocktrace/internal/normalize"
	"github.com/minhngvu/stocktrace/internal/repository"
)

// TraceService answers buildLedger queries: it loads the raw collections,
// hands them to the ledger builder, and caches the result.
type TraceService struct {
	intakes   repository.IntakeRepository
	outbounds repository.OutboundRepository
	lots      repository.LotRepository
	builder   *ledger.Builder
	cache     cache.LedgerCache
}

func NewTraceService(
	intakes repository.IntakeRepository,
	outbounds repository.OutboundRepository,
	lots repository.LotRepository,
	builder *ledger.Builder,
	cacheImpl cache.LedgerCache,
) *TraceService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopLedgerCache()
	}
	return &TraceService{
		intakes:   intakes,
		outbounds: outbounds,
		lots:      lots,
		builder:   builder,
		cache:     cacheImpl,
	}
}

// BuildLedger assembles the audit timeline for a material, optionally scoped
// to one PO. Each source collection is loaded independently: one unreachable
// collection degrades its section to empty instead of failing the trace.
func (s *TraceService) BuildLedger(ctx context.Context, materialCode, poNumber string) (*domain.Ledger, error) {
	material := normalize.Key(materialCode)
	po := normalize.Key(poNumber)

	if led, ok, err := s.cache.Get(ctx, material, po); err == nil && ok {
		return led, nil
	} else if err != nil {
		log.Warn().Err(err).Str("material_code", material).Msg("trace: cache get failed")
	}

	var src ledger.Sources

	intakes, err := s.loadIntakes(ctx, material, po)
	if err != nil {
		log.Warn().Err(err).Str("material_code", material).Msg("trace: intake collection unreachable")
		src.Missing = append(src.Missing, "intake")
	} else {
		src.Intakes = intakes
	}

	outbounds, err := s.loadOutbounds(ctx, material, po)
	if err != nil {
		log.Warn().Err(err).Str("material_code", material).Msg("trace: outbound collection unreachable")
		src.Missing = append(src.Missing, "outbound")
	} else {
		src.Outbounds = outbounds
	}

	lots, err := s.loadLots(ctx, material, po)
	if err != nil {
		log.Warn().Err(err).Str("material_code", material).Msg("trace: lot collection unreachable")
		src.Missing = append(src.Missing, "lot")
	} else {
		src.Lots = lots
	}

	led := s.builder.Build(material, po, src)

	// Degraded traces are not cached: the next query should retry the
	// unreachable collection rather than pin an empty section for the TTL.
	if len(src.Missing) == 0 {
		if err := s.cache.Set(ctx, led); err != nil {
			log.Warn().Err(err).Str("material_code", material).Msg("trace: cache set failed")
		}
	}

	return led, nil
}

// The source collections do not agree on PO formatting, so a PO-scoped query
// that comes back empty falls back to an unscoped one for the same material.
func (s *TraceService) loadIntakes(ctx context.Context, material, po string) ([]domain.IntakeRecord, error) {
	if po != "" {
		records, err := s.intakes.List(ctx, material, po)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			return records, nil
		}
	}
	return s.intakes.List(ctx, material, "")
}

func (s *TraceService) loadOutbounds(ctx context.Context, material, po string) ([]domain.OutboundMovement, error) {
	if po != "" {
		movements, err := s.outbounds.List(ctx, material, po)
		if err != nil {
			return nil, err
		}
		if len(movements) > 0 {
			return movements, nil
		}
	}
	return s.outbounds.List(ctx, material, "")
}

func (s *TraceService) loadLots(ctx context.Context, material, po string) ([]domain.MaterialLot, error) {
	if po != "" {
		lots, err := s.lots.ListByMaterial(ctx, material, po)
		if err != nil {
			return nil, err
		}
		if len(lots) > 0 {
			return lots, nil
		}
	}
	return s.lots.ListByMaterial(ctx, material, "")
}
