package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBillingSettings(t *testing.T) {
	require.NoError(t, ValidateBillingSettings(DefaultBillingSettings()))

	bad := DefaultBillingSettings()
	bad.GSTIN = "not-a-gstin"
	assert.Error(t, ValidateBillingSettings(bad))

	bad = DefaultBillingSettings()
	bad.StateCode = "123"
	assert.Error(t, ValidateBillingSettings(bad))

	bad = DefaultBillingSettings()
	bad.FeeGSTRateBps = 10001
	assert.Error(t, ValidateBillingSettings(bad))

	bad = DefaultBillingSettings()
	bad.CycleWeekday = "someday"
	assert.Error(t, ValidateBillingSettings(bad))
}

func TestCycleStart(t *testing.T) {
	s := DefaultBillingSettings()
	assert.Equal(t, time.Monday, s.CycleStart())

	s.CycleWeekday = "Sunday"
	assert.Equal(t, time.Sunday, s.CycleStart())

	s.CycleWeekday = ""
	assert.Equal(t, time.Monday, s.CycleStart())
}

func TestStaticHolder(t *testing.T) {
	s := DefaultBillingSettings()
	s.StateCode = "27"
	holder := NewStaticBillingSettings(s)
	assert.Equal(t, "27", holder.Get().StateCode)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_BASE_URL", "https://merceton.test/")
	t.Setenv("SCHEDULER_INTERVAL", "bogus")
	t.Setenv("DATABASE_MAX_OPEN_CONN", "7")

	cfg := Load()
	assert.Equal(t, "https://merceton.test", cfg.AppBaseURL)
	assert.Equal(t, time.Hour, cfg.SchedulerInterval)
	assert.Equal(t, 7, cfg.DBMaxOpenConn)
	assert.Equal(t, "ops@merceton.com", cfg.Email.OpsAlertEmail)
	assert.Equal(t, "starter", cfg.DefaultPricingPackageCode)
}
