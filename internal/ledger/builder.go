// Package ledger reconstructs the auditable event history of a material lot
// from the intake, outbound, and snapshot collections. The ledger is a pure
// function of its source records: it is rebuilt on every query and never
// incrementally maintained.
package ledger

import (
	"sort"
	"time"

	"github.com/minhngvu/stocktrace/internal/domain"
	"github.com/minhngvu/stocktrace/internal/normalize"
)

// Sources holds the raw records loaded for one trace query. Missing lists the
// collections that could not be loaded; their events are simply absent and the
// trace degrades instead of failing.
type Sources struct {
	Intakes   []domain.IntakeRecord
	Outbounds []domain.OutboundMovement
	Lots      []domain.MaterialLot
	Missing   []string
}

type Config struct {
	// QCWindow bounds how far from the intake date a quality check may fall
	// and still be attached to that intake. 24h in the legacy scripts.
	QCWindow time.Duration
	// BypassLocations are warehouse locations whose lots auto-pass inspection.
	// Their QC events are kept in the timeline but tagged AutoPass and never
	// attributed to an inspector.
	BypassLocations []string
}

func DefaultConfig() Config {
	return Config{QCWindow: 24 * time.Hour}
}

type Builder struct {
	cfg    Config
	now    func() time.Time
	bypass map[string]struct{}
}

func NewBuilder(cfg Config) *Builder {
	if cfg.QCWindow <= 0 {
		cfg.QCWindow = 24 * time.Hour
	}
	bypass := make(map[string]struct{}, len(cfg.BypassLocations))
	for _, loc := range cfg.BypassLocations {
		bypass[normalize.Key(loc)] = struct{}{}
	}
	return &Builder{cfg: cfg, now: time.Now, bypass: bypass}
}

// keyed wraps an event with its sort key. Attached QC events borrow the sort
// date and anchor of their intake so they always follow it immediately, even
// when timestamps tie to the second; the displayed event date is untouched.
type keyed struct {
	ev       domain.LedgerEvent
	sortDate time.Time
	anchor   int
	sub      int
}

// Build assembles the ordered, balance-annotated timeline for one identity.
// Rebuilding from unchanged sources yields an identical result.
func (b *Builder) Build(materialCode, poNumber string, src Sources) *domain.Ledger {
	material := normalize.Key(materialCode)
	po := normalize.Key(poNumber)
	now := b.now()

	var events []keyed
	seq := 0
	add := func(ev domain.LedgerEvent, sortDate time.Time) int {
		events = append(events, keyed{ev: ev, sortDate: sortDate, anchor: seq})
		seq++
		return len(events) - 1
	}

	type intakeRef struct {
		idx  int
		date time.Time
	}
	var intakes []intakeRef

	for _, in := range src.Intakes {
		date := b.recordDate(in.ImportDate, now)
		idx := add(domain.LedgerEvent{
			Type:         domain.EventIntake,
			Date:         date,
			MaterialCode: material,
			PONumber:     normalize.Key(in.PONumber),
			Quantity:     in.Quantity,
			Intake: &domain.IntakePayload{
				BatchNumber: in.BatchNumber,
				EmployeeIDs: in.EmployeeIDs,
			},
		}, date)
		intakes = append(intakes, intakeRef{idx: idx, date: date})
	}

	for _, out := range src.Outbounds {
		add(domain.LedgerEvent{
			Type:         domain.EventOutbound,
			Date:         out.ExportDate,
			MaterialCode: material,
			PONumber:     normalize.Key(out.PONumber),
			Quantity:     -out.ExportQty,
			Outbound: &domain.OutboundPayload{
				ProductionOrder: out.ProductionOrder,
				OperatorID:      out.OperatorID,
			},
		}, out.ExportDate)
	}

	var latestSnapshot *domain.MaterialLot
	var qcEvents []int
	for i := range src.Lots {
		lot := &src.Lots[i]

		if lot.QCInspectedAt != nil {
			auto := b.isBypass(lot.Location)
			inspector := lot.QCInspectorID
			if auto {
				inspector = ""
			}
			idx := add(domain.LedgerEvent{
				Type:         domain.EventQualityCheck,
				Date:         *lot.QCInspectedAt,
				MaterialCode: material,
				PONumber:     normalize.Key(lot.PONumber),
				QC: &domain.QCPayload{
					Disposition: lot.QCDisposition,
					InspectorID: inspector,
					InspectedAt: *lot.QCInspectedAt,
					AutoPass:    auto,
				},
			}, *lot.QCInspectedAt)
			qcEvents = append(qcEvents, idx)
		}

		add(domain.LedgerEvent{
			Type:         domain.EventSnapshot,
			Date:         lot.LastModified,
			MaterialCode: material,
			PONumber:     normalize.Key(lot.PONumber),
			Snapshot: &domain.SnapshotPayload{
				Available: lot.AvailableStock(),
				Location:  lot.Location,
			},
		}, lot.LastModified)

		if latestSnapshot == nil || lot.LastModified.After(latestSnapshot.LastModified) {
			latestSnapshot = lot
		}
	}

	// Attach each quality check to the earliest intake whose window covers it.
	// Attachment is a sort-key change only.
	sort.Slice(intakes, func(i, j int) bool { return intakes[i].date.Before(intakes[j].date) })
	claimed := make(map[int]bool)
	var firstPair *struct {
		intake time.Time
		qc     time.Time
	}
	for _, in := range intakes {
		inPO := events[in.idx].ev.PONumber
		for _, qi := range qcEvents {
			if claimed[qi] {
				continue
			}
			qc := events[qi].ev
			if qc.PONumber != inPO {
				continue
			}
			// The window compares whole days: an inspection any time on the
			// day after a receipt still counts as "close to receipt".
			delta := dayOf(qc.Date).Sub(in.date)
			if delta < -b.cfg.QCWindow || delta > b.cfg.QCWindow {
				continue
			}
			claimed[qi] = true
			events[qi].sortDate = events[in.idx].sortDate
			events[qi].anchor = events[in.idx].anchor
			events[qi].sub = 1
			if firstPair == nil {
				firstPair = &struct {
					intake time.Time
					qc     time.Time
				}{intake: in.date, qc: qc.Date}
			}
			break
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		x, y := events[i], events[j]
		if !x.sortDate.Equal(y.sortDate) {
			return x.sortDate.Before(y.sortDate)
		}
		if x.anchor != y.anchor {
			return x.anchor < y.anchor
		}
		return x.sub < y.sub
	})

	result := &domain.Ledger{
		MaterialCode:   material,
		PONumber:       po,
		Events:         make([]domain.LedgerEvent, 0, len(events)),
		MissingSources: src.Missing,
	}

	balance := 0.0
	for _, k := range events {
		ev := k.ev
		switch ev.Type {
		case domain.EventIntake, domain.EventOutbound:
			balance += ev.Quantity
		}
		ev.Balance = balance
		result.Events = append(result.Events, ev)
	}

	// The snapshot is authoritative for current stock: it can include
	// adjustments (damage write-offs and the like) that never produced a
	// ledger event, so it is not re-derived by summing the timeline.
	if latestSnapshot != nil {
		result.CurrentStock = latestSnapshot.AvailableStock()
		result.FromSnapshot = true
	} else {
		result.CurrentStock = balance
	}

	if firstPair != nil {
		wait := firstPair.qc.Sub(firstPair.intake)
		result.QCWait = HumanizeWait(wait)
		result.QCWaitSeconds = int64(wait / time.Second)
	} else {
		result.QCWait = domain.QCWaitPending
	}

	return result
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (b *Builder) isBypass(location string) bool {
	_, ok := b.bypass[normalize.Key(location)]
	return ok
}

// recordDate canonicalizes a raw intake date to midnight of that day. The
// normalizer already logs the data-quality event when it falls back.
func (b *Builder) recordDate(raw string, now time.Time) time.Time {
	imd, _ := normalize.Date(raw, now)
	if t, ok := normalize.IMDDate(imd); ok {
		return t
	}
	return now
}
