// Package pdf renders billing documents with maroto.
package pdf

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type Party struct {
	Name      string
	GSTIN     string
	StateCode string
	Address   string
}

type InvoiceLine struct {
	OrderNumber string
	Date        string
	Customer    string
	Taxable     string
	GST         string
	Total       string
	Status      string
}

// InvoiceData is the presentation model of a tax invoice. Amounts arrive
// already formatted.
type InvoiceData struct {
	Title     string
	Reference string
	Period    string
	IssueDate string
	Currency  string

	Seller   Party
	Platform Party

	Lines []InvoiceLine

	Taxable string
	CGST    string
	SGST    string
	IGST    string
	Total   string

	Cancelled bool
	Footer    string
}

var watermarkColor = &props.Color{Red: 200, Green: 30, Blue: 30}

// RenderInvoice returns the PDF bytes for data.
func RenderInvoice(data InvoiceData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	if data.Cancelled {
		m.AddRow(18,
			text.NewCol(12, "CANCELLED", props.Text{
				Size:  32,
				Style: fontstyle.Bold,
				Align: align.Center,
				Color: watermarkColor,
			}),
		)
	}

	m.AddRow(12,
		text.NewCol(12, data.Title, props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Reference: "+data.Reference, props.Text{Top: 0}),
			text.New("Date of issue: "+data.IssueDate, props.Text{Top: 4}),
			text.New("Period: "+data.Period, props.Text{Top: 8}),
			text.New("Currency: "+data.Currency, props.Text{Top: 12}),
		),
		col.New(6),
	)

	m.AddRow(30,
		partyCol("Seller", data.Seller),
		col.New(2),
		partyCol("Issued via", data.Platform),
	)

	m.AddRow(8,
		text.NewCol(2, "Order", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Date", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Customer", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Taxable", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(1, "GST", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, l := range data.Lines {
		customer := l.Customer
		if l.Status != "" {
			customer = fmt.Sprintf("%s (%s)", l.Customer, l.Status)
		}
		m.AddRow(7,
			text.NewCol(2, l.OrderNumber, props.Text{Size: 8}),
			text.NewCol(2, l.Date, props.Text{Size: 8}),
			text.NewCol(3, customer, props.Text{Size: 8}),
			text.NewCol(2, l.Taxable, props.Text{Size: 8, Align: align.Right}),
			text.NewCol(1, l.GST, props.Text{Size: 8, Align: align.Right}),
			text.NewCol(2, l.Total, props.Text{Size: 8, Align: align.Right}),
		)
	}
	if len(data.Lines) == 0 {
		m.AddRow(8, text.NewCol(12, "No orders in this period.", props.Text{Size: 9, Align: align.Center}))
	}

	m.AddRow(2, line.NewCol(12))
	m.AddRow(7, totalCols("Taxable value", data.Taxable, false)...)
	m.AddRow(7, totalCols("CGST", data.CGST, false)...)
	m.AddRow(7, totalCols("SGST", data.SGST, false)...)
	m.AddRow(7, totalCols("IGST", data.IGST, false)...)
	m.AddRow(9, totalCols("Total", data.Total, true)...)

	if data.Footer != "" {
		m.AddRow(12, text.NewCol(12, data.Footer, props.Text{Size: 8, Top: 4, Align: align.Center}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func partyCol(title string, p Party) core.Col {
	c := col.New(5).Add(
		text.New(title, props.Text{Style: fontstyle.Bold}),
		text.New(p.Name, props.Text{Top: 5}),
		text.New(p.Address, props.Text{Top: 10, Size: 8}),
	)
	if p.GSTIN != "" {
		c.Add(text.New("GSTIN: "+p.GSTIN, props.Text{Top: 18, Size: 8}))
	}
	if p.StateCode != "" {
		c.Add(text.New("State code: "+p.StateCode, props.Text{Top: 22, Size: 8}))
	}
	return c
}

func totalCols(label, value string, bold bool) []core.Col {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	return []core.Col{
		col.New(7),
		text.NewCol(3, label, props.Text{Size: 9, Style: style}),
		text.NewCol(2, value, props.Text{Size: 9, Style: style, Align: align.Right}),
	}
}
