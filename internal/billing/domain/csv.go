package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// StatementHeader is the column contract consumed positionally by
// ParseStatementSummary and by merchants' spreadsheets.
var StatementHeader = []string{
	"order_number",
	"date",
	"customer_name",
	"base_amount",
	"cgst",
	"sgst",
	"igst",
	"platform_fee",
	"total",
	"status",
}

const (
	colBase   = 3
	colCGST   = 4
	colSGST   = 5
	colIGST   = 6
	colTotal  = 8
	colStatus = 9
)

// WriteCSV writes the header followed by one line per row. Amounts are
// rupees with two decimals.
func WriteCSV(w io.Writer, rows []StatementRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(StatementHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.OrderNumber,
			row.Date.UTC().Format("2006-01-02"),
			spreadsheetSafe(row.CustomerName),
			Rupees(row.TaxablePaise),
			Rupees(row.CGSTPaise),
			Rupees(row.SGSTPaise),
			Rupees(row.IGSTPaise),
			Rupees(row.PlatformFeePaise),
			Rupees(row.TotalPaise),
			row.Status,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// spreadsheetSafe prefixes shopper-supplied text that a spreadsheet would
// evaluate as a formula.
func spreadsheetSafe(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + value
	}
	return value
}

// ParseStatementSummary reads a statement written by WriteCSV and totals
// base, GST and total columns, skipping cancelled orders.
func ParseStatementSummary(r io.Reader) (Summary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(StatementHeader)

	var summary Summary
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return summary, nil
	}
	if err != nil {
		return summary, err
	}
	if header[0] != StatementHeader[0] {
		return summary, fmt.Errorf("unexpected statement header %q", strings.Join(header, ","))
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
		if err != nil {
			return summary, err
		}
		if record[colStatus] == StatusCancelled {
			continue
		}

		var amounts [colTotal + 1]int64
		for _, col := range []int{colBase, colCGST, colSGST, colIGST, colTotal} {
			paise, err := ParseRupees(record[col])
			if err != nil {
				return summary, fmt.Errorf("line %d column %s: %w", line, StatementHeader[col], err)
			}
			amounts[col] = paise
		}
		summary.Orders++
		summary.TaxablePaise += amounts[colBase]
		summary.GSTPaise += amounts[colCGST] + amounts[colSGST] + amounts[colIGST]
		summary.TotalPaise += amounts[colTotal]
	}
}

// Rupees formats paise as a two decimal rupee amount.
func Rupees(paise int64) string {
	return decimal.New(paise, -2).StringFixed(2)
}

func ParseRupees(value string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
