package format

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const DefaultSeriesFormat = "{PREFIX}/{FY}/{NNNNN}"

var seqRe = regexp.MustCompile(`\{(N+)\}`)

// FormatInvoiceNumber renders seq through series. Supported tokens are
// {PREFIX}, {FY} (Indian fiscal year starting in April, e.g. 2025-26),
// {YYYY}, {YY}, {MM} and a run of N such as {NNNNN}. The run is padded to
// padding digits, or to its own length when padding is zero.
//
// The function is pure; the allocator calls it with the reserved sequence.
func FormatInvoiceNumber(series, prefix string, padding int, issuedAt time.Time, seq int64) (string, error) {
	if strings.TrimSpace(series) == "" {
		series = DefaultSeriesFormat
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}
	if padding < 0 {
		return "", fmt.Errorf("invalid invoice padding: %d", padding)
	}
	if !seqRe.MatchString(series) {
		return "", fmt.Errorf("series format %q has no sequence token", series)
	}

	out := series
	out = strings.ReplaceAll(out, "{PREFIX}", prefix)
	out = strings.ReplaceAll(out, "{FY}", FiscalYear(issuedAt))
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))

	out = seqRe.ReplaceAllStringFunc(out, func(m string) string {
		width := padding
		if width == 0 {
			width = len(m) - 2
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in invoice format: %s", out)
	}
	return out, nil
}

// FiscalYear returns the Indian financial year containing t, e.g. "2025-26"
// for any date from 1 April 2025 to 31 March 2026.
func FiscalYear(t time.Time) string {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}
