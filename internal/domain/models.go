package domain

import (
	"math"
	"time"
)

// QCState is the quality-check disposition of a material lot.
type QCState string

const (
	QCAwaitingInspection   QCState = "awaiting_inspection"
	QCAwaitingConfirmation QCState = "awaiting_confirmation"
	QCPass                 QCState = "pass"
	QCFail                 QCState = "fail"
	QCSpecialRelease       QCState = "special_release"
)

// Valid reports whether s is a known disposition value.
func (s QCState) Valid() bool {
	switch s {
	case QCAwaitingInspection, QCAwaitingConfirmation, QCPass, QCFail, QCSpecialRelease:
		return true
	}
	return false
}

// Terminal reports whether s is a final disposition.
func (s QCState) Terminal() bool {
	switch s {
	case QCPass, QCFail, QCSpecialRelease:
		return true
	}
	return false
}

// LocationAutoCreated marks lots the matcher created because no existing lot
// scored above zero for an outbound movement. Downstream consumers flag these
// for manual reconciliation.
const LocationAutoCreated = "AUTO-CREATED"

// MaterialLot is one physical receipt of a material code under one purchase
// order, further distinguished by its IMD (import-date identifier, DDMMYYYY
// plus an optional same-day sequence suffix).
type MaterialLot struct {
	ID            int64      `json:"id" db:"id"`
	Factory       string     `json:"factory" db:"factory"`
	MaterialCode  string     `json:"material_code" db:"material_code"`
	PONumber      string     `json:"po_number" db:"po_number"`
	IMD           string     `json:"imd" db:"imd"`
	OpeningStock  float64    `json:"opening_stock" db:"opening_stock"`
	ReceivedQty   float64    `json:"received_qty" db:"received_qty"`
	ExportedQty   float64    `json:"exported_qty" db:"exported_qty"`
	AdjustmentQty float64    `json:"adjustment_qty" db:"adjustment_qty"`
	Location      string     `json:"location" db:"location"`
	QCDisposition QCState    `json:"qc_disposition" db:"qc_disposition"`
	QCInspectorID string     `json:"qc_inspector_id" db:"qc_inspector_id"`
	QCInspectedAt *time.Time `json:"qc_inspected_at,omitempty" db:"qc_inspected_at"`
	LastModified  time.Time  `json:"last_modified" db:"last_modified"`
}

// AvailableStock computes opening + received - exported - adjustment.
// Non-finite inputs (NaN/Inf sneaking in from bad source records) are treated
// as zero so the result is always a usable number.
func (l *MaterialLot) AvailableStock() float64 {
	return finite(l.OpeningStock) + finite(l.ReceivedQty) - finite(l.ExportedQty) - finite(l.AdjustmentQty)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// OutboundMovement is a request to decrement stock. It carries its own copy of
// the PO number and intake date, which may disagree in formatting with the lot
// it should decrement. Immutable once recorded.
type OutboundMovement struct {
	ID              int64     `json:"id" db:"id"`
	Factory         string    `json:"factory" db:"factory"`
	MaterialCode    string    `json:"material_code" db:"material_code"`
	PONumber        string    `json:"po_number" db:"po_number"`
	ExportQty       float64   `json:"export_qty" db:"export_qty"`
	ExportDate      time.Time `json:"export_date" db:"export_date"`
	ImportDate      string    `json:"import_date" db:"import_date"` // raw copy of the lot intake date, any supported shape
	ProductionOrder string    `json:"production_order" db:"production_order"`
	OperatorID      string    `json:"operator_id" db:"operator_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// IntakeRecord is one goods-receipt line.
type IntakeRecord struct {
	ID           int64     `json:"id" db:"id"`
	Factory      string    `json:"factory" db:"factory"`
	MaterialCode string    `json:"material_code" db:"material_code"`
	PONumber     string    `json:"po_number" db:"po_number"`
	Quantity     float64   `json:"quantity" db:"quantity"`
	ImportDate   string    `json:"import_date" db:"import_date"` // raw, any supported shape
	BatchNumber  string    `json:"batch_number" db:"batch_number"`
	EmployeeIDs  []string  `json:"employee_ids" db:"-"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// MatchResult records one matcher decision for audit. Score 0 together with
// AutoCreated means no existing lot could absorb the movement.
type MatchResult struct {
	ID          int64     `json:"id" db:"id"`
	MovementID  int64     `json:"movement_id" db:"movement_id"`
	LotID       int64     `json:"lot_id" db:"lot_id"`
	Score       int       `json:"score" db:"score"`
	AutoCreated bool      `json:"auto_created" db:"auto_created"`
	MatchedAt   time.Time `json:"matched_at" db:"matched_at"`
}

// QCCheckInfo is one recently-inspected lot, as shown on the QC dashboard.
type QCCheckInfo struct {
	MaterialCode string    `json:"material_code" db:"material_code"`
	PONumber     string    `json:"po_number" db:"po_number"`
	IMD          string    `json:"imd" db:"imd"`
	Location     string    `json:"location" db:"location"`
	Disposition  QCState   `json:"disposition" db:"qc_disposition"`
	InspectorID  string    `json:"inspector_id" db:"qc_inspector_id"`
	InspectedAt  time.Time `json:"inspected_at" db:"qc_inspected_at"`
	AutoPass     bool      `json:"auto_pass" db:"-"`
}

// QCCounters are derived from the store on demand rather than maintained as
// mutable session counters. AutoPass checks are excluded from CheckedToday.
type QCCounters struct {
	Pending         int           `json:"pending"`
	CheckedToday    int           `json:"checked_today"`
	RecentlyChecked []QCCheckInfo `json:"recently_checked"`
}

// ScanInput is the decoded pipe-delimited QR payload
// materialCode|poNumber|quantity|IMD.
type ScanInput struct {
	MaterialCode string  `json:"material_code"`
	PONumber     string  `json:"po_number"`
	Quantity     float64 `json:"quantity"`
	IMD          string  `json:"imd"`
}
