package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "MAT01", Key("  mat01 "))
	assert.Equal(t, "PO-2024/001", Key("po-2024/001"))
	assert.Equal(t, "", Key("   "))
}

func TestLoosePO(t *testing.T) {
	assert.Equal(t, "PO2024001", LoosePO("PO-2024/001"))
	assert.Equal(t, "PO2024001", LoosePO(" po 2024.001 "))
	assert.Equal(t, "", LoosePO("---"))
}

func TestScan_Valid(t *testing.T) {
	in, err := Scan("mat01|po-99|12.5|050320241")
	require.NoError(t, err)
	assert.Equal(t, "MAT01", in.MaterialCode)
	assert.Equal(t, "PO-99", in.PONumber)
	assert.Equal(t, 12.5, in.Quantity)
	assert.Equal(t, "050320241", in.IMD)
}

func TestScan_ErrorsNameTheFailingField(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"too few segments", "MAT01|PO1|5", "payload"},
		{"empty material", " |PO1|5|05032024", "material code"},
		{"empty po", "MAT01| |5|05032024", "po number"},
		{"bad quantity", "MAT01|PO1|abc|05032024", "quantity"},
		{"negative quantity", "MAT01|PO1|-3|05032024", "quantity"},
		{"bad imd", "MAT01|PO1|5|2024-03-05", "imd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Scan(tt.payload)
			require.Error(t, err)
			var scanErr *ScanError
			require.ErrorAs(t, err, &scanErr)
			assert.Equal(t, tt.field, scanErr.Field)
		})
	}
}
