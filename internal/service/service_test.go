package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhngvu/stocktrace/internal/cache"
	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/ledger"
	"github.com/minhngvu/stocktrace/internal/match"
	"github.com/minhngvu/stocktrace/internal/normalize"
	"github.com/minhngvu/stocktrace/internal/repository"
)

type fakeLotRepo struct {
	lots     []domain.MaterialLot
	listErr  error
	created  []*domain.MaterialLot
	exported map[int64]float64
}

func (f *fakeLotRepo) GetByID(ctx context.Context, id int64) (*domain.MaterialLot, error) {
	for i := range f.lots {
		if f.lots[i].ID == id {
			lot := f.lots[i]
			return &lot, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeLotRepo) FindByIdentity(ctx context.Context, materialCode, poNumber, imd string) (*domain.MaterialLot, error) {
	for i := range f.lots {
		l := &f.lots[i]
		if l.MaterialCode == materialCode && l.PONumber == poNumber && l.IMD == imd {
			lot := *l
			return &lot, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeLotRepo) ListByMaterial(ctx context.Context, materialCode, poNumber string) ([]domain.MaterialLot, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.MaterialLot
	for _, l := range f.lots {
		if l.MaterialCode != materialCode {
			continue
		}
		if poNumber != "" && l.PONumber != poNumber {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeLotRepo) Create(ctx context.Context, lot *domain.MaterialLot) error {
	lot.ID = int64(len(f.lots) + len(f.created) + 1000)
	f.created = append(f.created, lot)
	return nil
}

func (f *fakeLotRepo) AddExported(ctx context.Context, id int64, qty float64) error {
	if f.exported == nil {
		f.exported = make(map[int64]float64)
	}
	f.exported[id] += qty
	return nil
}

func (f *fakeLotRepo) UpdateDisposition(ctx context.Context, lotID int64, state domain.QCState, inspectorID string) (time.Time, error) {
	return time.Now(), nil
}

func (f *fakeLotRepo) CountPending(ctx context.Context) (int, error) { return 0, nil }

func (f *fakeLotRepo) CheckedSince(ctx context.Context, since time.Time, limit int) ([]domain.QCCheckInfo, error) {
	return nil, nil
}

type fakeIntakeRepo struct {
	records []domain.IntakeRecord
	err     error
	queries []string
}

func (f *fakeIntakeRepo) List(ctx context.Context, materialCode, poNumber string) ([]domain.IntakeRecord, error) {
	f.queries = append(f.queries, poNumber)
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.IntakeRecord
	for _, r := range f.records {
		if r.MaterialCode != materialCode {
			continue
		}
		if poNumber != "" && r.PONumber != poNumber {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeIntakeRepo) Create(ctx context.Context, rec *domain.IntakeRecord) error {
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *rec)
	return nil
}

type fakeOutboundRepo struct {
	movements []domain.OutboundMovement
	err       error
}

func (f *fakeOutboundRepo) List(ctx context.Context, materialCode, poNumber string) ([]domain.OutboundMovement, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.OutboundMovement
	for _, m := range f.movements {
		if m.MaterialCode != materialCode {
			continue
		}
		if poNumber != "" && m.PONumber != poNumber {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeOutboundRepo) ListUnreconciled(ctx context.Context, limit int) ([]domain.OutboundMovement, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.movements) {
		return f.movements[:limit], nil
	}
	return f.movements, nil
}

func (f *fakeOutboundRepo) Create(ctx context.Context, mv *domain.OutboundMovement) error {
	mv.ID = int64(len(f.movements) + 1)
	f.movements = append(f.movements, *mv)
	return nil
}

type fakeResultRepo struct {
	saved []domain.MatchResult
}

func (f *fakeResultRepo) Save(ctx context.Context, res *domain.MatchResult) error {
	res.ID = int64(len(f.saved) + 1)
	res.MatchedAt = time.Now()
	f.saved = append(f.saved, *res)
	return nil
}

func (f *fakeResultRepo) ListRecent(ctx context.Context, limit int) ([]domain.MatchResult, error) {
	if limit > 0 && limit < len(f.saved) {
		return f.saved[:limit], nil
	}
	return f.saved, nil
}

type fakeCache struct {
	sets        int
	invalidated []string
	invalidAlls int
}

func (f *fakeCache) Get(ctx context.Context, materialCode, poNumber string) (*domain.Ledger, bool, error) {
	return nil, false, nil
}

func (f *fakeCache) Set(ctx context.Context, led *domain.Ledger) error {
	f.sets++
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, materialCode string) error {
	f.invalidated = append(f.invalidated, materialCode)
	return nil
}

func (f *fakeCache) InvalidateAll(ctx context.Context) error {
	f.invalidAlls++
	return nil
}

var _ cache.LedgerCache = (*fakeCache)(nil)

func TestReconcileRunLinksAndAutoCreates(t *testing.T) {
	lots := &fakeLotRepo{lots: []domain.MaterialLot{
		{ID: 1, MaterialCode: "MAT01", PONumber: "PO100", IMD: "02022024", OpeningStock: 100},
	}}
	outbounds := &fakeOutboundRepo{movements: []domain.OutboundMovement{
		{ID: 11, MaterialCode: "MAT01", PONumber: "PO100", ExportQty: 30, ImportDate: "02022024"},
		{ID: 12, MaterialCode: "MAT99", PONumber: "PO999", ExportQty: 12, ExportDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}}
	results := &fakeResultRepo{}
	cacheFake := &fakeCache{}

	svc := NewReconcileService(lots, outbounds, results, match.New(match.DefaultConfig()), nil, cacheFake)

	report, err := svc.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Linked)
	assert.Equal(t, 1, report.AutoCreated)

	assert.InDelta(t, 30.0, lots.exported[1], 0.001)

	require.Len(t, lots.created, 1)
	auto := lots.created[0]
	assert.Equal(t, "MAT99", auto.MaterialCode)
	assert.Equal(t, domain.LocationAutoCreated, auto.Location)
	assert.Equal(t, domain.QCAwaitingInspection, auto.QCDisposition)

	require.Len(t, results.saved, 2)
	assert.Equal(t, 150, results.saved[0].Score)
	assert.False(t, results.saved[0].AutoCreated)
	assert.Equal(t, 0, results.saved[1].Score)
	assert.True(t, results.saved[1].AutoCreated)

	assert.Equal(t, []string{"MAT01", "MAT99"}, cacheFake.invalidated)
}

func TestReconcileRunSkipsFailedMovement(t *testing.T) {
	lots := &fakeLotRepo{listErr: errors.New("connection reset")}
	outbounds := &fakeOutboundRepo{movements: []domain.OutboundMovement{
		{ID: 11, MaterialCode: "MAT01", PONumber: "PO100", ExportQty: 30},
	}}
	results := &fakeResultRepo{}

	svc := NewReconcileService(lots, outbounds, results, match.New(match.DefaultConfig()), nil, nil)

	report, err := svc.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Processed)
	assert.Empty(t, results.saved)
}

func TestBuildLedgerDegradesOnUnreachableSource(t *testing.T) {
	intakes := &fakeIntakeRepo{records: []domain.IntakeRecord{
		{ID: 1, MaterialCode: "MAT01", PONumber: "PO100", Quantity: 100, ImportDate: "02022024"},
	}}
	outbounds := &fakeOutboundRepo{err: errors.New("collection offline")}
	lots := &fakeLotRepo{}
	cacheFake := &fakeCache{}

	svc := NewTraceService(intakes, outbounds, lots, ledger.NewBuilder(ledger.DefaultConfig()), cacheFake)

	led, err := svc.BuildLedger(context.Background(), "MAT01", "PO100")
	require.NoError(t, err)

	assert.Equal(t, []string{"outbound"}, led.MissingSources)
	assert.Len(t, led.Events, 1)
	assert.Equal(t, 0, cacheFake.sets, "degraded traces must not be cached")
}

func TestBuildLedgerFallsBackToUnscopedQuery(t *testing.T) {
	// The intake collection stores the PO with different punctuation, so the
	// scoped query finds nothing and the unscoped one must be tried.
	intakes := &fakeIntakeRepo{records: []domain.IntakeRecord{
		{ID: 1, MaterialCode: "MAT01", PONumber: "PO-100", Quantity: 40, ImportDate: "02022024"},
	}}
	outbounds := &fakeOutboundRepo{}
	lots := &fakeLotRepo{}

	svc := NewTraceService(intakes, outbounds, lots, ledger.NewBuilder(ledger.DefaultConfig()), nil)

	led, err := svc.BuildLedger(context.Background(), "MAT01", "PO100")
	require.NoError(t, err)

	assert.Equal(t, []string{"PO100", ""}, intakes.queries)
	assert.Len(t, led.Events, 1)
	assert.Empty(t, led.MissingSources)
}

func TestResolveScanUnknownIdentity(t *testing.T) {
	lots := &fakeLotRepo{}
	svc := NewQCService(lots, nil, nil, 0)

	_, err := svc.ResolveScan(context.Background(), "MAT01|PO100|25|02022024")

	var notResolved *ErrLotNotResolved
	require.ErrorAs(t, err, &notResolved)
	assert.Equal(t, "MAT01", notResolved.MaterialCode)
	assert.Equal(t, "PO100", notResolved.PONumber)
	assert.Equal(t, "02022024", notResolved.IMD)
}

func TestResolveScanMalformedPayload(t *testing.T) {
	lots := &fakeLotRepo{}
	svc := NewQCService(lots, nil, nil, 0)

	_, err := svc.ResolveScan(context.Background(), "MAT01|PO100|not-a-number|02022024")

	var scanErr *normalize.ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Equal(t, "quantity", scanErr.Field)
}

func TestResolveScanFindsLot(t *testing.T) {
	lots := &fakeLotRepo{lots: []domain.MaterialLot{
		{ID: 7, MaterialCode: "MAT01", PONumber: "PO100", IMD: "02022024"},
	}}
	svc := NewQCService(lots, nil, nil, 0)

	lot, err := svc.ResolveScan(context.Background(), "mat01|po100|25|02022024")
	require.NoError(t, err)
	assert.Equal(t, int64(7), lot.ID)
}
