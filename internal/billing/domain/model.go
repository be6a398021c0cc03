package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
)

const StatusCancelled = "CANCELLED"

// StatementRequest selects ledger activity in [From, To]. A nil MerchantID
// spans every merchant and is reserved for admins.
type StatementRequest struct {
	MerchantID *snowflake.ID
	From       time.Time
	To         time.Time
}

// StatementRow is one order in a billing statement. Amounts are paise and
// the order total is split into its GST inclusive parts.
type StatementRow struct {
	OrderID          snowflake.ID `json:"order_id"`
	MerchantID       snowflake.ID `json:"merchant_id"`
	OrderNumber      string       `json:"order_number"`
	InvoiceNumber    string       `json:"invoice_number,omitempty"`
	Date             time.Time    `json:"date"`
	CustomerName     string       `json:"customer_name"`
	TaxablePaise     int64        `json:"taxable_paise"`
	CGSTPaise        int64        `json:"cgst_paise"`
	SGSTPaise        int64        `json:"sgst_paise"`
	IGSTPaise        int64        `json:"igst_paise"`
	PlatformFeePaise int64        `json:"platform_fee_paise"`
	TotalPaise       int64        `json:"total_paise"`
	Status           string       `json:"status"`
	InvoiceCancelled bool         `json:"invoice_cancelled,omitempty"`
}

func (r StatementRow) GSTPaise() int64 {
	return r.CGSTPaise + r.SGSTPaise + r.IGSTPaise
}

// Cancelled reports whether the order or its tax invoice was cancelled.
func (r StatementRow) Cancelled() bool {
	return r.Status == StatusCancelled || r.InvoiceCancelled
}

// Summary totals the rows that were not cancelled.
type Summary struct {
	Orders       int   `json:"orders"`
	TaxablePaise int64 `json:"taxable_paise"`
	GSTPaise     int64 `json:"gst_paise"`
	TotalPaise   int64 `json:"total_paise"`
}

func (s *Summary) Add(row StatementRow) {
	if row.Status == StatusCancelled {
		return
	}
	s.Orders++
	s.TaxablePaise += row.TaxablePaise
	s.GSTPaise += row.GSTPaise()
	s.TotalPaise += row.TotalPaise
}

type Statement struct {
	MerchantID *snowflake.ID  `json:"merchant_id,omitempty"`
	From       time.Time      `json:"from"`
	To         time.Time      `json:"to"`
	Rows       []StatementRow `json:"rows"`
	Summary    Summary        `json:"summary"`
}

type Service interface {
	Statement(ctx context.Context, req StatementRequest) (*Statement, error)
	// InvoicePDF renders the merchant's tax invoice for the range.
	InvoicePDF(ctx context.Context, req StatementRequest) ([]byte, error)
}

var (
	ErrInvalidRange     = apperror.Validation("invalid_time_range", "from and to are required and from must not be after to")
	ErrMerchantRequired = apperror.Validation("merchant_required", "merchant id is required")
	ErrMerchantNotFound = apperror.NotFound("merchant_not_found", "merchant not found")
	ErrRenderFailed     = apperror.Internal("invoice_render_failed", "failed to render invoice")
)
