package qc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhngvu/stocktrace/internal/domain"
)

type fakeStore struct {
	failNext bool
	updates  int
	lastLot  int64
	lastNext domain.QCState
	stamp    time.Time
}

func (f *fakeStore) UpdateDisposition(_ context.Context, lotID int64, state domain.QCState, _ string) (time.Time, error) {
	if f.failNext {
		return time.Time{}, errors.New("store unavailable")
	}
	f.updates++
	f.lastLot = lotID
	f.lastNext = state
	return f.stamp, nil
}

type fakeCounters struct {
	pending int
	checked []domain.QCCheckInfo
	calls   int
}

func (f *fakeCounters) CountPending(context.Context) (int, error) {
	f.calls++
	return f.pending, nil
}

func (f *fakeCounters) CheckedSince(_ context.Context, _ time.Time, _ int) ([]domain.QCCheckInfo, error) {
	out := make([]domain.QCCheckInfo, len(f.checked))
	copy(out, f.checked)
	return out, nil
}

func newTestWorkflow(store *fakeStore, counters *fakeCounters) *Workflow {
	return NewWorkflow(store, counters, []string{"BYPASS-DOCK"}, 10)
}

func pendingLot(id int64) *domain.MaterialLot {
	return &domain.MaterialLot{
		ID:            id,
		MaterialCode:  "MAT01",
		PONumber:      "PO1",
		IMD:           "01012024",
		QCDisposition: domain.QCAwaitingInspection,
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to domain.QCState
		want     bool
	}{
		{domain.QCAwaitingInspection, domain.QCPass, true},
		{domain.QCAwaitingInspection, domain.QCFail, true},
		{domain.QCAwaitingInspection, domain.QCSpecialRelease, true},
		{domain.QCAwaitingInspection, domain.QCAwaitingConfirmation, true},
		{domain.QCAwaitingConfirmation, domain.QCPass, true},
		{domain.QCAwaitingConfirmation, domain.QCFail, true},
		{domain.QCAwaitingConfirmation, domain.QCSpecialRelease, true},
		{domain.QCAwaitingConfirmation, domain.QCAwaitingInspection, false},
		{domain.QCPass, domain.QCFail, false},
		{domain.QCFail, domain.QCPass, false},
		{domain.QCSpecialRelease, domain.QCPass, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s to %s", tt.from, tt.to)
	}
}

func TestTransition_Success(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{stamp: stamp}
	w := newTestWorkflow(store, &fakeCounters{})
	lot := pendingLot(42)

	err := w.Transition(context.Background(), lot, domain.QCPass, "INS1")
	require.NoError(t, err)

	assert.Equal(t, 1, store.updates)
	assert.Equal(t, int64(42), store.lastLot)
	assert.Equal(t, domain.QCPass, lot.QCDisposition)
	assert.Equal(t, "INS1", lot.QCInspectorID)
	require.NotNil(t, lot.QCInspectedAt)
	assert.Equal(t, stamp, *lot.QCInspectedAt)
	assert.Equal(t, domain.QCPass, w.StateOf(lot))
}

func TestTransition_FailsClosedWithoutInspector(t *testing.T) {
	store := &fakeStore{}
	w := newTestWorkflow(store, &fakeCounters{})
	lot := pendingLot(1)

	err := w.Transition(context.Background(), lot, domain.QCPass, "")
	assert.ErrorIs(t, err, ErrNoInspector)
	assert.Equal(t, 0, store.updates, "no write may be attempted")
	assert.Equal(t, domain.QCAwaitingInspection, w.StateOf(lot))
}

func TestTransition_RejectsIllegalMove(t *testing.T) {
	w := newTestWorkflow(&fakeStore{}, &fakeCounters{})
	lot := pendingLot(1)
	lot.QCDisposition = domain.QCPass

	err := w.Transition(context.Background(), lot, domain.QCFail, "INS1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_RejectsUnknownState(t *testing.T) {
	w := newTestWorkflow(&fakeStore{}, &fakeCounters{})
	err := w.Transition(context.Background(), pendingLot(1), domain.QCState("scrapped"), "INS1")
	assert.ErrorIs(t, err, ErrUnknownState)
}

// Simulated persistence failure after a local Pass: the disposition and the
// derived counters must come back exactly as they were.
func TestTransition_RollbackOnPersistenceFailure(t *testing.T) {
	store := &fakeStore{failNext: true}
	counters := &fakeCounters{pending: 5}
	w := newTestWorkflow(store, counters)
	lot := pendingLot(7)

	before, err := w.Counters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, before.Pending)

	err = w.Transition(context.Background(), lot, domain.QCPass, "INS1")
	require.Error(t, err)

	assert.Equal(t, domain.QCAwaitingInspection, w.StateOf(lot))
	assert.Equal(t, domain.QCAwaitingInspection, lot.QCDisposition)
	assert.Nil(t, lot.QCInspectedAt)

	after, err := w.Counters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed write must not disturb derived counters")
	assert.Equal(t, 1, counters.calls, "cache still warm: no re-derivation happened")
}

func TestTransition_InvalidatesCountersOnSuccess(t *testing.T) {
	counters := &fakeCounters{pending: 5}
	w := newTestWorkflow(&fakeStore{stamp: time.Now()}, counters)

	_, err := w.Counters(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, counters.calls)

	counters.pending = 4
	require.NoError(t, w.Transition(context.Background(), pendingLot(9), domain.QCPass, "INS1"))

	got, err := w.Counters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, got.Pending, "write success invalidates the cache")
	assert.Equal(t, 2, counters.calls)
}

func TestCounters_AutoPassExcludedFromCheckedToday(t *testing.T) {
	now := time.Now()
	counters := &fakeCounters{
		pending: 2,
		checked: []domain.QCCheckInfo{
			{MaterialCode: "MAT01", Location: "WH-A", Disposition: domain.QCPass, InspectorID: "INS1", InspectedAt: now},
			{MaterialCode: "MAT02", Location: "bypass-dock", Disposition: domain.QCPass, InspectedAt: now},
			{MaterialCode: "MAT03", Location: "WH-B", Disposition: domain.QCFail, InspectorID: "INS2", InspectedAt: now},
		},
	}
	w := newTestWorkflow(&fakeStore{}, counters)

	got, err := w.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, got.Pending)
	assert.Equal(t, 2, got.CheckedToday, "bypass check is not inspector-attributed")
	require.Len(t, got.RecentlyChecked, 3)
	assert.True(t, got.RecentlyChecked[1].AutoPass)
	assert.False(t, got.RecentlyChecked[0].AutoPass)
}

func TestTransition_AwaitingConfirmationPath(t *testing.T) {
	store := &fakeStore{stamp: time.Now()}
	w := newTestWorkflow(store, &fakeCounters{})
	lot := pendingLot(3)

	require.NoError(t, w.Transition(context.Background(), lot, domain.QCAwaitingConfirmation, "INS1"))
	require.NoError(t, w.Transition(context.Background(), lot, domain.QCSpecialRelease, "INS2"))
	assert.Equal(t, domain.QCSpecialRelease, lot.QCDisposition)
	assert.Equal(t, "INS2", lot.QCInspectorID)
}
