// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type OrderInvoiceStatus string

const (
	OrderInvoiceIssued    OrderInvoiceStatus = "ISSUED"
	OrderInvoiceCancelled OrderInvoiceStatus = "CANCELLED"
)

// OrderInvoice is the GST tax invoice a merchant issues to its customer for
// one order.
type OrderInvoice struct {
	ID               snowflake.ID       `gorm:"primaryKey" json:"id"`
	InvoiceNumber    string             `gorm:"type:text;not null;uniqueIndex:ux_order_invoices_number,priority:2" json:"invoice_number"`
	BillingProfileID snowflake.ID       `gorm:"not null;uniqueIndex:ux_order_invoices_number,priority:1" json:"billing_profile_id"`
	OrderID          snowflake.ID       `gorm:"not null;uniqueIndex:ux_order_invoices_order" json:"order_id"`
	OrderNumber      string             `gorm:"type:text;not null" json:"order_number"`
	MerchantID       snowflake.ID       `gorm:"not null;index" json:"merchant_id"`
	SellerStateCode  string             `gorm:"type:text" json:"seller_state_code,omitempty"`
	BuyerStateCode   string             `gorm:"type:text" json:"buyer_state_code,omitempty"`
	TaxablePaise     int64              `gorm:"not null" json:"taxable_paise"`
	CGSTPaise        int64              `gorm:"column:cgst_paise;not null" json:"cgst_paise"`
	SGSTPaise        int64              `gorm:"column:sgst_paise;not null" json:"sgst_paise"`
	IGSTPaise        int64              `gorm:"column:igst_paise;not null" json:"igst_paise"`
	TotalPaise       int64              `gorm:"not null" json:"total_paise"`
	Status           OrderInvoiceStatus `gorm:"type:text;not null" json:"status"`
	IssuedAt         time.Time          `gorm:"not null" json:"issued_at"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"not null" json:"updated_at"`
}

func (OrderInvoice) TableName() string { return "order_invoices" }

type PlatformInvoiceStatus string

const (
	PlatformInvoiceIssued    PlatformInvoiceStatus = "ISSUED"
	PlatformInvoicePaid      PlatformInvoiceStatus = "PAID"
	PlatformInvoiceCancelled PlatformInvoiceStatus = "CANCELLED"
)

// PlatformInvoice bills a merchant for the platform fees of one period.
// Parties snapshots the seller and buyer identities at issue time.
type PlatformInvoice struct {
	ID               snowflake.ID          `gorm:"primaryKey" json:"id"`
	InvoiceNumber    string                `gorm:"type:text;not null;uniqueIndex:ux_platform_invoices_number" json:"invoice_number"`
	BillingProfileID snowflake.ID          `gorm:"not null" json:"billing_profile_id"`
	MerchantID       snowflake.ID          `gorm:"not null;uniqueIndex:ux_platform_invoices_period,priority:1" json:"merchant_id"`
	PeriodStart      time.Time             `gorm:"not null;uniqueIndex:ux_platform_invoices_period,priority:2" json:"period_start"`
	PeriodEnd        time.Time             `gorm:"not null;uniqueIndex:ux_platform_invoices_period,priority:3" json:"period_end"`
	FeeTotalPaise    int64                 `gorm:"not null" json:"fee_total_paise"`
	TaxablePaise     int64                 `gorm:"not null" json:"taxable_paise"`
	CGSTPaise        int64                 `gorm:"column:cgst_paise;not null" json:"cgst_paise"`
	SGSTPaise        int64                 `gorm:"column:sgst_paise;not null" json:"sgst_paise"`
	IGSTPaise        int64                 `gorm:"column:igst_paise;not null" json:"igst_paise"`
	TotalPaise       int64                 `gorm:"not null" json:"total_paise"`
	Status           PlatformInvoiceStatus `gorm:"type:text;not null;index" json:"status"`
	IssuedAt         time.Time             `gorm:"not null" json:"issued_at"`
	DueAt            time.Time             `gorm:"not null" json:"due_at"`
	PaidAt           *time.Time            `json:"paid_at,omitempty"`
	CancelledAt      *time.Time            `json:"cancelled_at,omitempty"`
	Parties          datatypes.JSONMap     `json:"parties,omitempty"`
	CreatedAt        time.Time             `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time             `gorm:"not null" json:"updated_at"`

	Lines []PlatformInvoiceLine `gorm:"-" json:"lines,omitempty"`
}

func (PlatformInvoice) TableName() string { return "platform_invoices" }

type PlatformInvoiceLine struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	OrderID     snowflake.ID `gorm:"not null" json:"order_id"`
	OrderNumber string       `gorm:"type:text;not null" json:"order_number"`
	Description string       `gorm:"type:text;not null" json:"description"`
	FeePaise    int64        `gorm:"not null" json:"fee_paise"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

func (PlatformInvoiceLine) TableName() string { return "platform_invoice_lines" }

func Models() []any {
	return []any{&OrderInvoice{}, &PlatformInvoice{}, &PlatformInvoiceLine{}}
}

// PreviousWeek returns the last complete week before now that opens on
// start, as an inclusive [from, to] range in UTC.
func PreviousWeek(now time.Time, start time.Weekday) (time.Time, time.Time) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(today.Weekday()) - int(start) + 7) % 7
	currentStart := today.AddDate(0, 0, -offset)
	from := currentStart.AddDate(0, 0, -7)
	return from, currentStart.Add(-time.Nanosecond)
}
