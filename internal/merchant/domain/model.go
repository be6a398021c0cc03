package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusDisabled  AccountStatus = "DISABLED"
)

type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "PENDING"
	KYCStatusVerified KYCStatus = "VERIFIED"
	KYCStatusRejected KYCStatus = "REJECTED"
)

// Merchant is a tenant. Rows are never deleted; disabling flips IsActive and
// AccountStatus.
type Merchant struct {
	ID                       snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name                     string        `gorm:"type:text;not null" json:"name"`
	StoreSlug                string        `gorm:"type:text;not null;uniqueIndex:ux_merchants_store_slug" json:"store_slug"`
	Email                    string        `gorm:"type:text;not null" json:"email"`
	IsActive                 bool          `gorm:"not null;default:true" json:"is_active"`
	AccountStatus            AccountStatus `gorm:"type:text;not null" json:"account_status"`
	KYCStatus                KYCStatus     `gorm:"column:kyc_status;type:text;not null" json:"kyc_status"`
	DomainSubscriptionActive bool          `gorm:"not null;default:false" json:"domain_subscription_active"`
	CreatedAt                time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt                time.Time     `gorm:"not null" json:"updated_at"`
}

func (Merchant) TableName() string { return "merchants" }

// Onboarding is the merchant's tax identity used on invoices.
type Onboarding struct {
	MerchantID snowflake.ID `gorm:"primaryKey" json:"merchant_id"`
	LegalName  string       `gorm:"type:text;not null" json:"legal_name"`
	GSTIN      string       `gorm:"column:gstin;type:text" json:"gstin,omitempty"`
	StateCode  string       `gorm:"type:text;not null" json:"state_code"`
	Address    string       `gorm:"type:text" json:"address,omitempty"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

func (Onboarding) TableName() string { return "merchant_onboardings" }

type BankAccount struct {
	MerchantID    snowflake.ID `gorm:"primaryKey" json:"merchant_id"`
	AccountHolder string       `gorm:"type:text;not null" json:"account_holder"`
	AccountNumber string       `gorm:"type:text;not null" json:"account_number"`
	IFSC          string       `gorm:"column:ifsc;type:text;not null" json:"ifsc"`
	IsVerified    bool         `gorm:"not null;default:false" json:"is_verified"`
	VerifiedAt    *time.Time   `json:"verified_at,omitempty"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (BankAccount) TableName() string { return "merchant_bank_accounts" }

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&Merchant{}, &Onboarding{}, &BankAccount{}}
}
