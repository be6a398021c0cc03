package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
)

type Service interface {
	// IssueOrderInvoice returns the order's invoice, issuing it on first call.
	IssueOrderInvoice(ctx context.Context, orderID snowflake.ID) (*OrderInvoice, error)
	GetOrderInvoice(ctx context.Context, orderID snowflake.ID) (*OrderInvoice, error)
	CancelOrderInvoice(ctx context.Context, req StatusRequest) (*OrderInvoice, error)

	// GenerateWeeklyInvoice bills one merchant's platform fees for the
	// period. It returns nil when the period carries no fees and the
	// existing invoice when the period was already billed.
	GenerateWeeklyInvoice(ctx context.Context, req GenerateRequest) (*PlatformInvoice, error)
	GenerateWeeklyInvoices(ctx context.Context, periodStart, periodEnd time.Time) (GenerationSummary, error)
	// AdminGenerateInvoice is GenerateWeeklyInvoice triggered by an admin
	// and audited.
	AdminGenerateInvoice(ctx context.Context, req GenerateRequest) (*PlatformInvoice, error)
	GetPlatformInvoice(ctx context.Context, id snowflake.ID) (*PlatformInvoice, error)
	ListPlatformInvoices(ctx context.Context, req ListRequest) ([]PlatformInvoice, error)
	CancelPlatformInvoice(ctx context.Context, req StatusRequest) (*PlatformInvoice, error)
	MarkPlatformInvoicePaid(ctx context.Context, req StatusRequest) (*PlatformInvoice, error)
}

type GenerateRequest struct {
	MerchantID  snowflake.ID `json:"merchant_id" validate:"required"`
	PeriodStart time.Time    `json:"period_start" validate:"required"`
	PeriodEnd   time.Time    `json:"period_end" validate:"required,gtfield=PeriodStart"`
	Reason      string       `json:"reason"`
}

type StatusRequest struct {
	InvoiceID snowflake.ID `json:"-"`
	Reason    string       `json:"reason"`
}

type ListRequest struct {
	MerchantID *snowflake.ID          `json:"merchant_id"`
	Status     *PlatformInvoiceStatus `json:"status"`
	From       time.Time              `json:"from"`
	To         time.Time              `json:"to"`
}

type MerchantFailure struct {
	MerchantID snowflake.ID `json:"merchant_id"`
	Error      string       `json:"error"`
}

type GenerationSummary struct {
	PeriodStart time.Time         `json:"period_start"`
	PeriodEnd   time.Time         `json:"period_end"`
	Generated   int               `json:"generated"`
	Skipped     int               `json:"skipped"`
	Failed      []MerchantFailure `json:"failed,omitempty"`
}

// FailureNotifier hears about merchants the weekly run could not bill.
type FailureNotifier interface {
	InvoiceGenerationFailed(ctx context.Context, merchantID snowflake.ID, periodStart, periodEnd time.Time, cause error)
}

var (
	ErrInvalidID         = apperror.Validation("invalid_invoice_id", "invalid invoice id")
	ErrInvalidPeriod     = apperror.Validation("invalid_invoice_period", "period end must be after period start")
	ErrOrderNotFound     = apperror.NotFound("order_not_found", "order not found")
	ErrOrderCancelled    = apperror.BusinessRule("order_cancelled", "cannot invoice a cancelled order")
	ErrInvoiceNotFound   = apperror.NotFound("invoice_not_found", "invoice not found")
	ErrInvalidTransition = apperror.BusinessRule("invalid_invoice_transition", "invalid invoice status transition")
	ErrAlreadyCancelled  = apperror.BusinessRule("invoice_already_cancelled", "invoice is already cancelled")
	ErrMerchantNotFound  = apperror.NotFound("merchant_not_found", "merchant not found")
	ErrNoFees            = apperror.BusinessRule("no_platform_fees", "no platform fees in period")
)
