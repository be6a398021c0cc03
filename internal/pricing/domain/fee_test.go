package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func TestComputePlatformFeeStarterExample(t *testing.T) {
	fee, net := ComputePlatformFee(100000, FallbackFeeConfig())
	assert.Equal(t, int64(2000), fee)
	assert.Equal(t, int64(98000), net)
}

func TestComputePlatformFeeFloorsVariablePart(t *testing.T) {
	cfg := EffectiveFeeConfig{FixedFeePaise: 0, VariableFeeBps: 175}
	fee, net := ComputePlatformFee(999, cfg)
	// 999 * 175 / 10000 = 17.4825
	assert.Equal(t, int64(17), fee)
	assert.Equal(t, int64(982), net)
}

func TestComputePlatformFeeIsNotCapped(t *testing.T) {
	fee, net := ComputePlatformFee(500, FallbackFeeConfig())
	assert.Equal(t, int64(1005), fee)
	assert.Equal(t, int64(-505), net)
}

func TestComputeLegacyPlatformFeeHonoursCap(t *testing.T) {
	legacy := LegacyFeeConfig{FeeFlatPaise: 1000, FeePercentageBps: 200, FeeMaxCapPaise: 2500}
	fee, net := ComputeLegacyPlatformFee(100000, legacy)
	assert.Equal(t, int64(2500), fee)
	assert.Equal(t, int64(97500), net)

	legacy.FeeMaxCapPaise = 0
	fee, _ = ComputeLegacyPlatformFee(100000, legacy)
	assert.Equal(t, int64(3000), fee)
}

func TestEffectiveFeeConfigToLegacy(t *testing.T) {
	legacy := EffectiveFeeConfigToLegacy(EffectiveFeeConfig{FixedFeePaise: 700, VariableFeeBps: 150})
	assert.Equal(t, LegacyFeeConfig{FeeFlatPaise: 700, FeePercentageBps: 150}, legacy)

	gross := int64(123456)
	newFee, _ := ComputePlatformFee(gross, EffectiveFeeConfig{FixedFeePaise: 700, VariableFeeBps: 150})
	legacyFee, _ := ComputeLegacyPlatformFee(gross, legacy)
	assert.Equal(t, newFee, legacyFee)
}

func TestMergeOverridePrecedence(t *testing.T) {
	pkg := &PricingPackage{Code: "starter", FixedFeePaise: 1000, VariableFeeBps: 100, PayoutFrequency: PayoutWeekly}
	cfg := &MerchantFeeConfig{FixedFeeOverridePaise: int64Ptr(500)}

	assert.Equal(t, int64(500), Merge(pkg, cfg).FixedFeePaise)
	assert.Equal(t, int64(100), Merge(pkg, cfg).VariableFeeBps)

	cfg.FixedFeeOverridePaise = nil
	assert.Equal(t, int64(1000), Merge(pkg, cfg).FixedFeePaise)

	daily := PayoutDaily
	hold := true
	cfg.PayoutFrequencyOverride = &daily
	cfg.IsPayoutHoldOverride = &hold
	merged := Merge(pkg, cfg)
	assert.Equal(t, PayoutDaily, merged.PayoutFrequency)
	assert.True(t, merged.IsPayoutHold)
}

func TestMergeWithoutPackageUsesFallback(t *testing.T) {
	merged := Merge(nil, &MerchantFeeConfig{VariableFeeOverrideBps: int64Ptr(250)})
	assert.Equal(t, DefaultFixedFeePaise, merged.FixedFeePaise)
	assert.Equal(t, int64(250), merged.VariableFeeBps)
	assert.Equal(t, DefaultPayoutFrequency, merged.PayoutFrequency)
	assert.False(t, merged.IsPayoutHold)
	assert.Nil(t, merged.PricingPackageID)
}

func TestPlatformFeeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("gross - fee == net", prop.ForAll(
		func(gross, fixed, bps int64) bool {
			fee, net := ComputePlatformFee(gross, EffectiveFeeConfig{FixedFeePaise: fixed, VariableFeeBps: bps})
			return gross-fee == net
		},
		gen.Int64Range(0, 1_000_000_000),
		gen.Int64Range(0, 100_000),
		gen.Int64Range(0, 10_000),
	))

	properties.Property("variable part never exceeds the exact share", prop.ForAll(
		func(gross, bps int64) bool {
			fee, _ := ComputePlatformFee(gross, EffectiveFeeConfig{VariableFeeBps: bps})
			return fee*10000 <= gross*bps && (fee+1)*10000 > gross*bps
		},
		gen.Int64Range(0, 1_000_000_000),
		gen.Int64Range(0, 10_000),
	))

	properties.Property("legacy cap bounds the fee", prop.ForAll(
		func(gross, flat, bps, capPaise int64) bool {
			fee, net := ComputeLegacyPlatformFee(gross, LegacyFeeConfig{FeeFlatPaise: flat, FeePercentageBps: bps, FeeMaxCapPaise: capPaise})
			return fee <= capPaise && gross-fee == net
		},
		gen.Int64Range(0, 1_000_000_000),
		gen.Int64Range(0, 100_000),
		gen.Int64Range(0, 10_000),
		gen.Int64Range(1, 1_000_000),
	))

	properties.TestingRun(t)
}
