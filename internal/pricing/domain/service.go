package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	"gorm.io/gorm"
)

// Resolver produces the effective fee terms for a merchant. Missing rows
// resolve to defaults; only database failures are returned.
type Resolver interface {
	Resolve(ctx context.Context, merchantID snowflake.ID) (EffectiveFeeConfig, error)
	// ResolveWithDB resolves using db, typically a checkout transaction.
	ResolveWithDB(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (EffectiveFeeConfig, error)
	// EnsureFeeConfig returns the merchant's fee config, creating it against
	// the platform default package when absent.
	EnsureFeeConfig(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*MerchantFeeConfig, error)
	EnsureDefaultPackage(ctx context.Context, db *gorm.DB) (*PricingPackage, error)
}

type AdminService interface {
	ListPackages(ctx context.Context) ([]PricingPackage, error)
	CreatePackage(ctx context.Context, req CreatePackageRequest) (*PricingPackage, error)
	PublishPackage(ctx context.Context, req PackageTransitionRequest) (*PricingPackage, error)
	ArchivePackage(ctx context.Context, req PackageTransitionRequest) (*PricingPackage, error)

	GetFeeConfig(ctx context.Context, merchantID snowflake.ID) (*MerchantFeeConfig, error)
	AssignPackage(ctx context.Context, req AssignPackageRequest) (*MerchantFeeConfig, error)
	SetOverrides(ctx context.Context, req SetOverridesRequest) (*MerchantFeeConfig, error)
	ClearOverrides(ctx context.Context, req ClearOverridesRequest) (*MerchantFeeConfig, error)
	PreviewFee(ctx context.Context, merchantID snowflake.ID, grossPaise int64) (*FeePreview, error)
}

type CreatePackageRequest struct {
	Code            string          `json:"code" validate:"notblank,max=64"`
	Name            string          `json:"name" validate:"notblank,max=120"`
	FixedFeePaise   int64           `json:"fixed_fee_paise" validate:"gte=0"`
	VariableFeeBps  int64           `json:"variable_fee_bps" validate:"gte=0,lte=10000"`
	HoldbackBps     int64           `json:"holdback_bps" validate:"gte=0,lte=10000"`
	PayoutFrequency PayoutFrequency `json:"payout_frequency" validate:"required,oneof=DAILY WEEKLY MONTHLY"`
	IsPayoutHold    bool            `json:"is_payout_hold"`
	DomainIncluded  bool            `json:"domain_included"`
	DomainAllowed   *bool           `json:"domain_allowed"`
	Reason          string          `json:"reason"`
}

type PackageTransitionRequest struct {
	PackageID snowflake.ID `json:"-"`
	Reason    string       `json:"reason"`
}

type AssignPackageRequest struct {
	MerchantID snowflake.ID `json:"-"`
	PackageID  snowflake.ID `json:"package_id" validate:"required"`
	Reason     string       `json:"reason"`
}

type SetOverridesRequest struct {
	MerchantID              snowflake.ID     `json:"-"`
	FixedFeeOverridePaise   *int64           `json:"fixed_fee_override_paise" validate:"omitempty,gte=0"`
	VariableFeeOverrideBps  *int64           `json:"variable_fee_override_bps" validate:"omitempty,gte=0,lte=10000"`
	HoldbackOverrideBps     *int64           `json:"holdback_override_bps" validate:"omitempty,gte=0,lte=10000"`
	PayoutFrequencyOverride *PayoutFrequency `json:"payout_frequency_override" validate:"omitempty,oneof=DAILY WEEKLY MONTHLY"`
	IsPayoutHoldOverride    *bool            `json:"is_payout_hold_override"`
	FeeFlatPaise            *int64           `json:"fee_flat_paise" validate:"omitempty,gte=0"`
	FeePercentageBps        *int64           `json:"fee_percentage_bps" validate:"omitempty,gte=0,lte=10000"`
	FeeMaxCapPaise          *int64           `json:"fee_max_cap_paise" validate:"omitempty,gte=0"`
	Reason                  string           `json:"reason"`
}

type ClearOverridesRequest struct {
	MerchantID snowflake.ID `json:"-"`
	Reason     string       `json:"reason"`
}

// FeePreview shows what an order of GrossPaise would cost under the package
// model and under the legacy fields.
type FeePreview struct {
	GrossPaise             int64              `json:"gross_paise"`
	Effective              EffectiveFeeConfig `json:"effective"`
	PlatformFeePaise       int64              `json:"platform_fee_paise"`
	NetPayablePaise        int64              `json:"net_payable_paise"`
	HoldbackPaise          int64              `json:"holdback_paise"`
	Legacy                 LegacyFeeConfig    `json:"legacy"`
	LegacyStored           bool               `json:"legacy_stored"`
	LegacyPlatformFeePaise int64              `json:"legacy_platform_fee_paise"`
	LegacyNetPayablePaise  int64              `json:"legacy_net_payable_paise"`
}

var (
	ErrInvalidPackageID    = apperror.Validation("invalid_package_id", "invalid pricing package id")
	ErrPackageNotFound     = apperror.NotFound("pricing_package_not_found", "pricing package not found")
	ErrPackageCodeTaken    = apperror.Conflict("pricing_package_code_taken", "pricing package code already exists")
	ErrPackageNotPublished = apperror.BusinessRule("pricing_package_not_published", "only published packages can be assigned")
	ErrInvalidTransition   = apperror.BusinessRule("invalid_package_transition", "invalid pricing package status transition")
	ErrArchiveDefault      = apperror.BusinessRule("archive_default_package", "the platform default package cannot be archived")
	ErrNoOverrides         = apperror.Validation("no_overrides", "at least one override is required")
	ErrInvalidGross        = apperror.FieldValidation("gross_paise", "invalid_gross", "gross amount must not be negative")
)
