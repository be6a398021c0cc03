package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Platform defaults used when no published package applies.
const (
	DefaultFixedFeePaise   int64           = 1000
	DefaultVariableFeeBps  int64           = 100
	DefaultHoldbackBps     int64           = 0
	DefaultPayoutFrequency PayoutFrequency = PayoutWeekly
	DefaultPackageName                     = "Starter"

	bpsDenominator = 10000
)

type FeeSource string

const (
	SourceMerchantPackage FeeSource = "merchant_package"
	SourcePlatformDefault FeeSource = "platform_default"
	SourceFallback        FeeSource = "fallback"
)

// EffectiveFeeConfig is the merged view used at checkout.
type EffectiveFeeConfig struct {
	Source                   FeeSource       `json:"source"`
	PricingPackageID         *snowflake.ID   `json:"pricing_package_id,omitempty"`
	PackageCode              string          `json:"package_code,omitempty"`
	FixedFeePaise            int64           `json:"fixed_fee_paise"`
	VariableFeeBps           int64           `json:"variable_fee_bps"`
	HoldbackBps              int64           `json:"holdback_bps"`
	PayoutFrequency          PayoutFrequency `json:"payout_frequency"`
	IsPayoutHold             bool            `json:"is_payout_hold"`
	DomainSubscriptionActive bool            `json:"domain_subscription_active"`
}

// FallbackFeeConfig is returned when neither the merchant's package nor the
// platform default is published.
func FallbackFeeConfig() EffectiveFeeConfig {
	return EffectiveFeeConfig{
		Source:          SourceFallback,
		FixedFeePaise:   DefaultFixedFeePaise,
		VariableFeeBps:  DefaultVariableFeeBps,
		HoldbackBps:     DefaultHoldbackBps,
		PayoutFrequency: DefaultPayoutFrequency,
	}
}

// Merge applies cfg overrides on top of pkg, or on top of the fallback
// constants when pkg is nil. Domain flags are not resolved here.
func Merge(pkg *PricingPackage, cfg *MerchantFeeConfig) EffectiveFeeConfig {
	out := FallbackFeeConfig()
	if pkg != nil {
		id := pkg.ID
		out.PricingPackageID = &id
		out.PackageCode = pkg.Code
		out.FixedFeePaise = pkg.FixedFeePaise
		out.VariableFeeBps = pkg.VariableFeeBps
		out.HoldbackBps = pkg.HoldbackBps
		out.PayoutFrequency = pkg.PayoutFrequency
		out.IsPayoutHold = pkg.IsPayoutHold
	}
	if cfg == nil {
		return out
	}
	if cfg.FixedFeeOverridePaise != nil {
		out.FixedFeePaise = *cfg.FixedFeeOverridePaise
	}
	if cfg.VariableFeeOverrideBps != nil {
		out.VariableFeeBps = *cfg.VariableFeeOverrideBps
	}
	if cfg.HoldbackOverrideBps != nil {
		out.HoldbackBps = *cfg.HoldbackOverrideBps
	}
	if cfg.PayoutFrequencyOverride != nil {
		out.PayoutFrequency = *cfg.PayoutFrequencyOverride
	}
	if cfg.IsPayoutHoldOverride != nil {
		out.IsPayoutHold = *cfg.IsPayoutHoldOverride
	}
	return out
}

// ComputePlatformFee returns fixed + floor(gross * bps / 10000) and the net
// payable. The fee is never capped, so net may be negative for tiny orders.
func ComputePlatformFee(grossPaise int64, cfg EffectiveFeeConfig) (fee int64, net int64) {
	fee = cfg.FixedFeePaise + bpsOf(grossPaise, cfg.VariableFeeBps)
	return fee, grossPaise - fee
}

// ComputeHoldback returns the share of net withheld from payout.
func ComputeHoldback(netPaise int64, cfg EffectiveFeeConfig) int64 {
	if netPaise <= 0 || cfg.HoldbackBps <= 0 {
		return 0
	}
	return bpsOf(netPaise, cfg.HoldbackBps)
}

// LegacyFeeConfig mirrors the flat/percentage/cap columns that predate
// pricing packages.
type LegacyFeeConfig struct {
	FeeFlatPaise     int64 `json:"fee_flat_paise"`
	FeePercentageBps int64 `json:"fee_percentage_bps"`
	FeeMaxCapPaise   int64 `json:"fee_max_cap_paise"`
}

// EffectiveFeeConfigToLegacy expresses cfg in legacy terms. Packages have no
// cap, so FeeMaxCapPaise is zero.
func EffectiveFeeConfigToLegacy(cfg EffectiveFeeConfig) LegacyFeeConfig {
	return LegacyFeeConfig{
		FeeFlatPaise:     cfg.FixedFeePaise,
		FeePercentageBps: cfg.VariableFeeBps,
	}
}

// StoredLegacy returns the legacy columns of c if any of them is set.
func (c *MerchantFeeConfig) StoredLegacy() (LegacyFeeConfig, bool) {
	if c == nil || (c.FeeFlatPaise == nil && c.FeePercentageBps == nil && c.FeeMaxCapPaise == nil) {
		return LegacyFeeConfig{}, false
	}
	out := LegacyFeeConfig{}
	if c.FeeFlatPaise != nil {
		out.FeeFlatPaise = *c.FeeFlatPaise
	}
	if c.FeePercentageBps != nil {
		out.FeePercentageBps = *c.FeePercentageBps
	}
	if c.FeeMaxCapPaise != nil {
		out.FeeMaxCapPaise = *c.FeeMaxCapPaise
	}
	return out, true
}

// ComputeLegacyPlatformFee applies the legacy formula, honouring the max cap
// when it is positive.
func ComputeLegacyPlatformFee(grossPaise int64, legacy LegacyFeeConfig) (fee int64, net int64) {
	fee = legacy.FeeFlatPaise + bpsOf(grossPaise, legacy.FeePercentageBps)
	if legacy.FeeMaxCapPaise > 0 && fee > legacy.FeeMaxCapPaise {
		fee = legacy.FeeMaxCapPaise
	}
	return fee, grossPaise - fee
}

func bpsOf(amount, bps int64) int64 {
	if amount == 0 || bps == 0 {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(bps)).
		Div(decimal.NewFromInt(bpsDenominator)).
		Floor().
		IntPart()
}
