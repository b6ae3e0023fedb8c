package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhngvu/stocktrace/internal/domain"
)

func lot(id int64, po, imd string) *domain.MaterialLot {
	return &domain.MaterialLot{
		ID:           id,
		MaterialCode: "MAT01",
		PONumber:     po,
		IMD:          imd,
	}
}

func movement(po, importDate string, qty float64) *domain.OutboundMovement {
	return &domain.OutboundMovement{
		MaterialCode: "MAT01",
		PONumber:     po,
		ExportQty:    qty,
		ExportDate:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		ImportDate:   importDate,
	}
}

func TestScore_Tiers(t *testing.T) {
	m := New(DefaultConfig())

	tests := []struct {
		name string
		lot  *domain.MaterialLot
		mv   *domain.OutboundMovement
		want int
	}{
		{"exact po and imd", lot(1, "PO-1", "01012024"), movement("po-1", "01/01/2024", 5), 150},
		{"exact po only", lot(1, "PO-1", "01012024"), movement("PO-1", "09/09/2023", 5), 100},
		{"loose po only", lot(1, "PO-1", "01012024"), movement("PO1", "09/09/2023", 5), 50},
		{"loose po and imd", lot(1, "PO-1", "01012024"), movement("PO.1", "01012024", 5), 100},
		{"imd only", lot(1, "PO-1", "01012024"), movement("PO-2", "01012024", 5), 50},
		{"nothing", lot(1, "PO-1", "01012024"), movement("PO-2", "09/09/2023", 5), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Score(tt.lot, tt.mv))
		})
	}
}

func TestScore_LooseTierCanBeDisabled(t *testing.T) {
	m := New(Config{LoosePOFallback: false, AcceptThreshold: 50})
	assert.Equal(t, 0, m.Score(lot(1, "PO-1", "01012024"), movement("PO1", "09/09/2023", 5)))
}

// A movement matching PO and IMD must never score below one matching IMD alone
// against the same lot set.
func TestScore_Monotonicity(t *testing.T) {
	m := New(DefaultConfig())
	l := lot(1, "PO-1", "01012024")

	both := m.Score(l, movement("PO-1", "01012024", 5))
	imdOnly := m.Score(l, movement("ZZZ", "01012024", 5))
	assert.GreaterOrEqual(t, both, imdOnly)
}

func TestSelect_Deterministic(t *testing.T) {
	m := New(DefaultConfig())
	lots := []*domain.MaterialLot{
		lot(1, "PO-9", "01012024"),
		lot(2, "PO-1", "05052024"),
		lot(3, "PO-1", "01012024"),
	}
	mv := movement("PO-1", "01012024", 10)

	first := m.Select(lots, mv)
	for i := 0; i < 10; i++ {
		again := m.Select(lots, mv)
		assert.Equal(t, first.Lot.ID, again.Lot.ID)
		assert.Equal(t, first.Score, again.Score)
	}
	assert.Equal(t, int64(3), first.Lot.ID)
	assert.Equal(t, 150, first.Score)
}

func TestSelect_TieKeepsFirstEncountered(t *testing.T) {
	m := New(DefaultConfig())
	lots := []*domain.MaterialLot{
		lot(7, "PO-1", "02022024"),
		lot(8, "PO-1", "03032024"),
	}
	out := m.Select(lots, movement("PO-1", "09/09/2023", 4))

	require.False(t, out.AutoCreated)
	assert.Equal(t, int64(7), out.Lot.ID)
	assert.Equal(t, 100, out.Score)
}

// End-to-end scenario: intake of MAT01/PO1 qty 100, outbound qty 30 on the
// same PO links on the exact tier and leaves 70 available.
func TestSelectAndApply_ExactPOMatch(t *testing.T) {
	m := New(DefaultConfig())
	target := &domain.MaterialLot{
		ID:           1,
		MaterialCode: "MAT01",
		PONumber:     "PO1",
		IMD:          "01012024",
		ReceivedQty:  100,
	}
	mv := movement("PO1", "", 30)

	out := m.Select([]*domain.MaterialLot{target}, mv)
	require.False(t, out.AutoCreated)
	require.GreaterOrEqual(t, out.Score, 100)

	m.Apply(out)
	assert.Equal(t, 30.0, target.ExportedQty)
	assert.Equal(t, 70.0, target.AvailableStock())
	assert.False(t, target.LastModified.IsZero())
}

// End-to-end scenario: an outbound with no matching lot creates a flagged lot
// carrying the movement quantity, reported at score 0.
func TestSelect_AutoCreateFallback(t *testing.T) {
	m := New(DefaultConfig())
	mv := &domain.OutboundMovement{
		Factory:      "F2",
		MaterialCode: "mat02",
		PONumber:     "po9",
		ExportQty:    12,
		ExportDate:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}

	out := m.Select(nil, mv)
	require.True(t, out.AutoCreated)
	assert.Equal(t, 0, out.Score)
	assert.Equal(t, domain.LocationAutoCreated, out.Lot.Location)
	assert.Equal(t, "MAT02", out.Lot.MaterialCode)
	assert.Equal(t, "PO9", out.Lot.PONumber)
	assert.Equal(t, 0.0, out.Lot.OpeningStock)
	assert.Equal(t, 12.0, out.Lot.ExportedQty)
	assert.Equal(t, domain.QCAwaitingInspection, out.Lot.QCDisposition)

	// Apply is a no-op for auto-created lots; quantity is already absorbed.
	m.Apply(out)
	assert.Equal(t, 12.0, out.Lot.ExportedQty)
}

func TestSelect_BelowThresholdFallsBack(t *testing.T) {
	m := New(Config{LoosePOFallback: true, AcceptThreshold: 150})
	out := m.Select([]*domain.MaterialLot{lot(1, "PO-1", "09092023")}, movement("PO-1", "", 3))

	assert.True(t, out.AutoCreated)
	assert.Equal(t, 0, out.Score)
}
