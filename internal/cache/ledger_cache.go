package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minhngvu/stocktrace/internal/config"
	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/normalize"
)

const (
	ledgerKeyPrefix     = "ledger:trace"
	ledgerScanBatchSize = 100
)

// LedgerCache holds built ledgers keyed by traced identity. Entries are
// invalidated when a write succeeds against the underlying collections
// (QC transitions, reconciliation runs, record ingest), so a cached entry is
// never older than the last known write plus the TTL.
type LedgerCache interface {
	Get(ctx context.Context, materialCode, poNumber string) (*domain.Ledger, bool, error)
	Set(ctx context.Context, ledger *domain.Ledger) error
	Invalidate(ctx context.Context, materialCode string) error
	InvalidateAll(ctx context.Context) error
}

type redisLedgerCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopLedgerCache struct{}

func NewLedgerCache(cfg config.CacheConfig) (LedgerCache, error) {
	if !cfg.Enabled {
		return &noopLedgerCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisLedgerCache{client: client, ttl: ttl}, nil
}

func NewNoopLedgerCache() LedgerCache {
	return &noopLedgerCache{}
}

func (c *redisLedgerCache) Get(ctx context.Context, materialCode, poNumber string) (*domain.Ledger, bool, error) {
	payload, err := c.client.Get(ctx, ledgerKey(materialCode, poNumber)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var ledger domain.Ledger
	if err := json.Unmarshal(payload, &ledger); err != nil {
		return nil, false, fmt.Errorf("decode ledger cache: %w", err)
	}
	return &ledger, true, nil
}

func (c *redisLedgerCache) Set(ctx context.Context, ledger *domain.Ledger) error {
	payload, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("encode ledger cache: %w", err)
	}

	key := ledgerKey(ledger.MaterialCode, ledger.PONumber)
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops every cached trace for a material, PO-scoped or not: a
// write against any of its lots can change all of them.
func (c *redisLedgerCache) Invalidate(ctx context.Context, materialCode string) error {
	prefix := fmt.Sprintf("%s:%s", ledgerKeyPrefix, normalize.Key(materialCode))
	return deleteKeysWithPrefix(ctx, c.client, prefix, ledgerScanBatchSize)
}

func (c *redisLedgerCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, ledgerKeyPrefix, ledgerScanBatchSize)
}

func (n *noopLedgerCache) Get(ctx context.Context, materialCode, poNumber string) (*domain.Ledger, bool, error) {
	return nil, false, nil
}

func (n *noopLedgerCache) Set(ctx context.Context, ledger *domain.Ledger) error { return nil }

func (n *noopLedgerCache) Invalidate(ctx context.Context, materialCode string) error { return nil }

func (n *noopLedgerCache) InvalidateAll(ctx context.Context) error { return nil }

func ledgerKey(materialCode, poNumber string) string {
	material := normalize.Key(materialCode)
	po := normalize.Key(poNumber)
	if po == "" {
		po = "-"
	}
	return fmt.Sprintf("%s:%s:%s", ledgerKeyPrefix, material, po)
}
