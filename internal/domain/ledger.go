package domain

import "time"

// LedgerEventType tags the variants of a LedgerEvent.
type LedgerEventType string

const (
	EventIntake       LedgerEventType = "intake"
	EventOutbound     LedgerEventType = "outbound"
	EventQualityCheck LedgerEventType = "quality_check"
	EventSnapshot     LedgerEventType = "snapshot"
)

// LedgerEvent is one entry in a material/lot audit timeline. Exactly one of
// the payload pointers is set, matching Type. Events are immutable once built;
// the ledger is rebuilt from source records on every query.
type LedgerEvent struct {
	Type         LedgerEventType  `json:"type"`
	Date         time.Time        `json:"date"`
	MaterialCode string           `json:"material_code"`
	PONumber     string           `json:"po_number"`
	Quantity     float64          `json:"quantity,omitempty"` // signed: intake +, outbound -
	Balance      float64          `json:"balance"`            // running balance after this event
	Intake       *IntakePayload   `json:"intake,omitempty"`
	Outbound     *OutboundPayload `json:"outbound,omitempty"`
	QC           *QCPayload       `json:"qc,omitempty"`
	Snapshot     *SnapshotPayload `json:"snapshot,omitempty"`
}

type IntakePayload struct {
	BatchNumber string   `json:"batch_number"`
	EmployeeIDs []string `json:"employee_ids"`
}

type OutboundPayload struct {
	ProductionOrder string `json:"production_order"`
	OperatorID      string `json:"operator_id"`
}

type QCPayload struct {
	Disposition QCState   `json:"disposition"`
	InspectorID string    `json:"inspector_id"`
	InspectedAt time.Time `json:"inspected_at"`
	// AutoPass marks dispositions produced by the bypass-location policy;
	// those are not attributed to an inspector.
	AutoPass bool `json:"auto_pass"`
}

type SnapshotPayload struct {
	Available float64 `json:"available"`
	Location  string  `json:"location"`
}

// Ledger is the result of a trace query: the ordered event timeline plus the
// current-stock figure and the QC wait summary.
type Ledger struct {
	MaterialCode string        `json:"material_code"`
	PONumber     string        `json:"po_number,omitempty"`
	Events       []LedgerEvent `json:"events"`
	// CurrentStock is the snapshot balance when one exists (authoritative,
	// may include write-offs with no ledger event), otherwise the final
	// running balance.
	CurrentStock     float64 `json:"current_stock"`
	FromSnapshot     bool    `json:"from_snapshot"`
	QCWait           string  `json:"qc_wait"` // humanized, or "not yet inspected"
	QCWaitSeconds    int64   `json:"qc_wait_seconds,omitempty"`
	// MissingSources names source collections that could not be loaded;
	// their sections are empty rather than the whole trace failing.
	MissingSources []string `json:"missing_sources,omitempty"`
}

// QCWaitPending is the explicit marker used when no quality check was found
// for any intake of the traced identity.
const QCWaitPending = "not yet inspected"
