package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PayoutFrequency string

const (
	PayoutDaily   PayoutFrequency = "DAILY"
	PayoutWeekly  PayoutFrequency = "WEEKLY"
	PayoutMonthly PayoutFrequency = "MONTHLY"
)

type PackageStatus string

const (
	PackageDraft     PackageStatus = "DRAFT"
	PackagePublished PackageStatus = "PUBLISHED"
	PackageArchived  PackageStatus = "ARCHIVED"
)

// PricingPackage is a reusable bundle of fee and payout terms. Only
// PUBLISHED packages take effect.
type PricingPackage struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	Code            string          `gorm:"type:text;not null;uniqueIndex:ux_pricing_packages_code" json:"code"`
	Name            string          `gorm:"type:text;not null" json:"name"`
	FixedFeePaise   int64           `gorm:"not null" json:"fixed_fee_paise"`
	VariableFeeBps  int64           `gorm:"not null" json:"variable_fee_bps"`
	HoldbackBps     int64           `gorm:"not null;default:0" json:"holdback_bps"`
	PayoutFrequency PayoutFrequency `gorm:"type:text;not null" json:"payout_frequency"`
	IsPayoutHold    bool            `gorm:"not null;default:false" json:"is_payout_hold"`
	DomainIncluded  bool            `gorm:"not null;default:false" json:"domain_included"`
	DomainAllowed   bool            `gorm:"not null" json:"domain_allowed"`
	Status          PackageStatus   `gorm:"type:text;not null" json:"status"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (PricingPackage) TableName() string { return "pricing_packages" }

// MerchantFeeConfig joins a merchant to a package. Non-nil overrides win over
// the package. The Fee* columns are the pre-package legacy fields.
type MerchantFeeConfig struct {
	ID                      snowflake.ID     `gorm:"primaryKey" json:"id"`
	MerchantID              snowflake.ID     `gorm:"not null;uniqueIndex:ux_merchant_fee_configs_merchant" json:"merchant_id"`
	PricingPackageID        *snowflake.ID    `json:"pricing_package_id,omitempty"`
	FixedFeeOverridePaise   *int64           `json:"fixed_fee_override_paise,omitempty"`
	VariableFeeOverrideBps  *int64           `json:"variable_fee_override_bps,omitempty"`
	HoldbackOverrideBps     *int64           `json:"holdback_override_bps,omitempty"`
	PayoutFrequencyOverride *PayoutFrequency `gorm:"type:text" json:"payout_frequency_override,omitempty"`
	IsPayoutHoldOverride    *bool            `json:"is_payout_hold_override,omitempty"`
	FeeFlatPaise            *int64           `json:"fee_flat_paise,omitempty"`
	FeePercentageBps        *int64           `json:"fee_percentage_bps,omitempty"`
	FeeMaxCapPaise          *int64           `json:"fee_max_cap_paise,omitempty"`
	DomainIncludedApplied   bool             `gorm:"not null;default:false" json:"domain_included_applied"`
	CreatedAt               time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt               time.Time        `gorm:"not null" json:"updated_at"`
}

func (MerchantFeeConfig) TableName() string { return "merchant_fee_configs" }

func (c *MerchantFeeConfig) HasOverrides() bool {
	return c.FixedFeeOverridePaise != nil ||
		c.VariableFeeOverrideBps != nil ||
		c.HoldbackOverrideBps != nil ||
		c.PayoutFrequencyOverride != nil ||
		c.IsPayoutHoldOverride != nil
}

func Models() []any {
	return []any{&PricingPackage{}, &MerchantFeeConfig{}}
}
