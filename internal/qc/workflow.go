// Package qc drives the quality-check disposition of material lots: a small
// state machine with optimistic local mutation and rollback when the store
// write fails. Physical scanning is effectively single-actor per lot, so no
// distributed locking is attempted across concurrent inspectors.
package qc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/normalize"
	"github.com/minhngvu/stocktrace/pkg/logger"
)

var (
	// ErrNoInspector rejects any transition without an authenticated
	// inspector identity. Fails closed: the lot state is unchanged.
	ErrNoInspector = errors.New("qc: transition requires an inspector identity")
	// ErrInvalidTransition rejects a move the state machine does not allow.
	ErrInvalidTransition = errors.New("qc: invalid state transition")
	// ErrUnknownState rejects a disposition value outside the enum.
	ErrUnknownState = errors.New("qc: unknown disposition")
)

// transitions lists the allowed moves. AwaitingInspection is the initial
// state; the three terminal dispositions and AwaitingConfirmation are only
// reachable through an explicit inspector action.
var transitions = map[domain.QCState][]domain.QCState{
	domain.QCAwaitingInspection: {
		domain.QCPass, domain.QCFail, domain.QCSpecialRelease, domain.QCAwaitingConfirmation,
	},
	domain.QCAwaitingConfirmation: {
		domain.QCPass, domain.QCFail, domain.QCSpecialRelease,
	},
}

// CanTransition reports whether the state machine allows moving from one
// disposition to another.
func CanTransition(from, to domain.QCState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Store is the persistence side of a transition. UpdateDisposition returns
// the server-assigned inspection timestamp on success.
type Store interface {
	UpdateDisposition(ctx context.Context, lotID int64, state domain.QCState, inspectorID string) (time.Time, error)
}

// CounterSource supplies the raw numbers the derived counters are computed
// from. Counters are recomputed from the store on demand, never maintained by
// hand-incrementing session state.
type CounterSource interface {
	CountPending(ctx context.Context) (int, error)
	CheckedSince(ctx context.Context, since time.Time, limit int) ([]domain.QCCheckInfo, error)
}

// command captures the pre- and post-transition state so a failed persistence
// write rolls back by applying the captured previous value, not by re-deriving
// it ad hoc.
type command struct {
	lotID int64
	prev  domain.QCState
	next  domain.QCState
}

type Workflow struct {
	store    Store
	counters CounterSource
	bypass   map[string]struct{}
	limit    int
	now      func() time.Time

	mu     sync.RWMutex
	local  map[int64]domain.QCState // optimistic overlay keyed by lot id
	cached *domain.QCCounters
}

func NewWorkflow(store Store, counters CounterSource, bypassLocations []string, recentLimit int) *Workflow {
	if recentLimit <= 0 {
		recentLimit = 20
	}
	bypass := make(map[string]struct{}, len(bypassLocations))
	for _, loc := range bypassLocations {
		bypass[normalize.Key(loc)] = struct{}{}
	}
	return &Workflow{
		store:    store,
		counters: counters,
		bypass:   bypass,
		limit:    recentLimit,
		now:      time.Now,
		local:    make(map[int64]domain.QCState),
	}
}

// StateOf returns the effective disposition of a lot: the optimistic local
// overlay when present, otherwise the stored value.
func (w *Workflow) StateOf(lot *domain.MaterialLot) domain.QCState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if s, ok := w.local[lot.ID]; ok {
		return s
	}
	if lot.QCDisposition == "" {
		return domain.QCAwaitingInspection
	}
	return lot.QCDisposition
}

// Transition moves a lot to a new disposition. The local state is mutated
// first so callers see the change immediately; the store write follows, and
// on failure the captured previous state is restored and the error surfaced
// with enough context to retry manually.
func (w *Workflow) Transition(ctx context.Context, lot *domain.MaterialLot, next domain.QCState, inspectorID string) error {
	if inspectorID == "" {
		return ErrNoInspector
	}
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownState, next)
	}

	from := w.StateOf(lot)
	if !CanTransition(from, next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, next)
	}

	cmd := command{lotID: lot.ID, prev: from, next: next}
	w.applyLocal(cmd.lotID, cmd.next)

	inspectedAt, err := w.store.UpdateDisposition(ctx, lot.ID, next, inspectorID)
	if err != nil {
		w.applyLocal(cmd.lotID, cmd.prev)
		logger.Log.Error().Err(err).
			Int64("lot_id", lot.ID).
			Str("material_code", lot.MaterialCode).
			Str("po_number", lot.PONumber).
			Str("imd", lot.IMD).
			Str("from", string(cmd.prev)).
			Str("to", string(cmd.next)).
			Str("inspector_id", inspectorID).
			Msg("qc transition persistence failed, local state rolled back")
		return fmt.Errorf("persist qc transition: %w", err)
	}

	lot.QCDisposition = next
	lot.QCInspectorID = inspectorID
	lot.QCInspectedAt = &inspectedAt
	lot.LastModified = inspectedAt

	// Derived counters are served from a cache that is only invalidated on
	// write success, so a failed write leaves them at their pre-transition
	// values with no bookkeeping.
	w.invalidateCounters()
	return nil
}

// Counters returns the derived QC counters, from cache when warm. AutoPass
// checks (bypass locations) stay in the recent list but are excluded from the
// inspector-attributed CheckedToday count.
func (w *Workflow) Counters(ctx context.Context) (*domain.QCCounters, error) {
	w.mu.RLock()
	cached := w.cached
	w.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return w.Refresh(ctx)
}

// Refresh recomputes the counters from the store, replacing the cache. Used
// both on demand and by the periodic background refresh that corrects drift
// from concurrent inspectors.
func (w *Workflow) Refresh(ctx context.Context) (*domain.QCCounters, error) {
	pending, err := w.counters.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending lots: %w", err)
	}

	now := w.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	checked, err := w.counters.CheckedSince(ctx, midnight, w.limit)
	if err != nil {
		return nil, fmt.Errorf("list checked lots: %w", err)
	}

	counters := &domain.QCCounters{Pending: pending, RecentlyChecked: checked}
	for i := range checked {
		if _, auto := w.bypass[normalize.Key(checked[i].Location)]; auto {
			checked[i].AutoPass = true
			continue
		}
		counters.CheckedToday++
	}

	w.mu.Lock()
	w.cached = counters
	w.mu.Unlock()
	return counters, nil
}

func (w *Workflow) applyLocal(lotID int64, state domain.QCState) {
	w.mu.Lock()
	w.local[lotID] = state
	w.mu.Unlock()
}

func (w *Workflow) invalidateCounters() {
	w.mu.Lock()
	w.cached = nil
	w.mu.Unlock()
}
