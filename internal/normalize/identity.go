package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/minhngvu/stocktrace/internal/domain"
)

// Key upper-cases and trims an identity field (material code, PO number).
func Key(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// LoosePO strips every non-alphanumeric character from a normalized PO number.
// Used only as a fallback match tier; two POs that agree loosely but not
// exactly score lower than an exact match.
func LoosePO(s string) string {
	var b strings.Builder
	for _, r := range Key(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ScanError names the identity field that failed to resolve, so an operator
// can correct the physical label instead of guessing at a generic failure.
type ScanError struct {
	Field  string
	Reason string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan: %s %s", e.Field, e.Reason)
}

const scanSegments = 4

// Scan decodes the pipe-delimited QR payload
// materialCode|poNumber|quantity|IMD.
func Scan(payload string) (*domain.ScanInput, error) {
	parts := strings.Split(payload, "|")
	if len(parts) < scanSegments {
		return nil, &ScanError{Field: "payload", Reason: fmt.Sprintf("has %d segments, want %d", len(parts), scanSegments)}
	}

	material := Key(parts[0])
	if material == "" {
		return nil, &ScanError{Field: "material code", Reason: "is empty"}
	}

	po := Key(parts[1])
	if po == "" {
		return nil, &ScanError{Field: "po number", Reason: "is empty"}
	}

	qty, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || qty < 0 {
		return nil, &ScanError{Field: "quantity", Reason: "is not a non-negative number"}
	}

	imd := strings.TrimSpace(parts[3])
	if !ValidIMD(imd) {
		return nil, &ScanError{Field: "imd", Reason: "is not a DDMMYYYY identifier"}
	}

	return &domain.ScanInput{
		MaterialCode: material,
		PONumber:     po,
		Quantity:     qty,
		IMD:          imd,
	}, nil
}
