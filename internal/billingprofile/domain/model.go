package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Kind string

const (
	KindPlatform Kind = "platform"
	KindMerchant Kind = "merchant"
)

// BillingProfile owns one invoice number series. The counter is only ever
// advanced by the allocator.
type BillingProfile struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	Code              string        `gorm:"type:text;not null;uniqueIndex:ux_billing_profiles_code" json:"code"`
	Kind              Kind          `gorm:"type:text;not null" json:"kind"`
	MerchantID        *snowflake.ID `gorm:"index" json:"merchant_id,omitempty"`
	LegalName         string        `gorm:"type:text;not null" json:"legal_name"`
	GSTIN             string        `gorm:"column:gstin;type:text" json:"gstin,omitempty"`
	StateCode         string        `gorm:"type:text" json:"state_code,omitempty"`
	Address           string        `gorm:"type:text" json:"address,omitempty"`
	InvoicePrefix     string        `gorm:"type:text;not null" json:"invoice_prefix"`
	InvoiceNextNumber int64         `gorm:"not null;default:1" json:"invoice_next_number"`
	InvoicePadding    int           `gorm:"not null;default:5" json:"invoice_padding"`
	SeriesFormat      string        `gorm:"type:text;not null" json:"series_format"`
	CreatedAt         time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null" json:"updated_at"`
}

func (BillingProfile) TableName() string { return "billing_profiles" }

func MerchantProfileCode(merchantID snowflake.ID) string {
	return "merchant:" + merchantID.String()
}

// Allocation is one reserved invoice number.
type Allocation struct {
	ProfileID snowflake.ID `json:"profile_id"`
	Sequence  int64        `json:"sequence"`
	Number    string       `json:"number"`
}
