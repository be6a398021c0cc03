package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInvoiceNumber(t *testing.T) {
	may := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		series  string
		prefix  string
		padding int
		at      time.Time
		seq     int64
		want    string
	}{
		{"default format", "", "MRC", 5, may, 42, "MRC/2025-26/00042"},
		{"fiscal year before april", DefaultSeriesFormat, "MRC", 5, feb, 7, "MRC/2025-26/00007"},
		{"run length padding", "{PREFIX}-{YYYY}{MM}-{NNNN}", "INV", 0, may, 9, "INV-202505-0009"},
		{"short year", "{YY}/{NNN}", "", 0, may, 1234, "25/1234"},
		{"padding overrides run", "{PREFIX}{NN}", "A", 6, may, 3, "A000003"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FormatInvoiceNumber(tc.series, tc.prefix, tc.padding, tc.at, tc.seq)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatInvoiceNumberErrors(t *testing.T) {
	at := time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)

	_, err := FormatInvoiceNumber("{PREFIX}/{NNNN}", "X", 4, at, 0)
	assert.Error(t, err)

	_, err = FormatInvoiceNumber("{PREFIX}/{DD}/{NNNN}", "X", 4, at, 1)
	assert.Error(t, err)

	_, err = FormatInvoiceNumber("{PREFIX}/{FY}", "X", 4, at, 1)
	assert.Error(t, err)
}

func TestFiscalYear(t *testing.T) {
	assert.Equal(t, "2024-25", FiscalYear(time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2025-26", FiscalYear(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2099-00", FiscalYear(time.Date(2099, 12, 1, 0, 0, 0, 0, time.UTC)))
}
