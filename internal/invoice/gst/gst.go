// Package gst splits amounts into Indian GST components.
package gst

import (
	"strings"

	"github.com/shopspring/decimal"
)

var bpsScale = decimal.NewFromInt(10000)

type Breakdown struct {
	Taxable int64 `json:"taxable"`
	CGST    int64 `json:"cgst"`
	SGST    int64 `json:"sgst"`
	IGST    int64 `json:"igst"`
	Total   int64 `json:"total"`
}

func (b Breakdown) Tax() int64 {
	return b.CGST + b.SGST + b.IGST
}

func (b Breakdown) Add(o Breakdown) Breakdown {
	return Breakdown{
		Taxable: b.Taxable + o.Taxable,
		CGST:    b.CGST + o.CGST,
		SGST:    b.SGST + o.SGST,
		IGST:    b.IGST + o.IGST,
		Total:   b.Total + o.Total,
	}
}

// IntraState reports whether supply between the two states is taxed as CGST
// plus SGST. An unknown state on either side is treated as inter-state.
func IntraState(sellerState, buyerState string) bool {
	seller := strings.TrimSpace(sellerState)
	return seller != "" && seller == strings.TrimSpace(buyerState)
}

// Split computes the GST on amount paise at rateBps. When inclusive, amount
// already contains the tax and is the total; otherwise tax is added on top.
// Tax is rounded half up to the paisa and an odd paisa goes to SGST.
func Split(amount, rateBps int64, sellerState, buyerState string, inclusive bool) Breakdown {
	if amount <= 0 || rateBps <= 0 {
		return Breakdown{Taxable: amount, Total: amount}
	}

	value := decimal.NewFromInt(amount)
	rate := decimal.NewFromInt(rateBps)

	var tax int64
	var out Breakdown
	if inclusive {
		tax = value.Mul(rate).Div(bpsScale.Add(rate)).Round(0).IntPart()
		out.Taxable = amount - tax
		out.Total = amount
	} else {
		tax = value.Mul(rate).Div(bpsScale).Round(0).IntPart()
		out.Taxable = amount
		out.Total = amount + tax
	}

	if IntraState(sellerState, buyerState) {
		out.CGST = tax / 2
		out.SGST = tax - out.CGST
	} else {
		out.IGST = tax
	}
	return out
}
