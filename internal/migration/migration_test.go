package migration

import (
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/audit/audittest"
	"github.com/merceton/merceton/internal/authorization"
	billingprofiledomain "github.com/merceton/merceton/internal/billingprofile/domain"
	billingprofilerepo "github.com/merceton/merceton/internal/billingprofile/repository"
	billingprofileservice "github.com/merceton/merceton/internal/billingprofile/service"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/config"
	merchantrepo "github.com/merceton/merceton/internal/merchant/repository"
	pricingdomain "github.com/merceton/merceton/internal/pricing/domain"
	pricingrepo "github.com/merceton/merceton/internal/pricing/repository"
	pricingservice "github.com/merceton/merceton/internal/pricing/service"
	"github.com/merceton/merceton/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAutoMigrateModels(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, AutoMigrateModels(db))

	for _, table := range []string{
		"merchants",
		"products",
		"pricing_packages",
		"merchant_fee_configs",
		"orders",
		"order_items",
		"order_number_counters",
		"ledger_entries",
		"billing_profiles",
		"order_invoices",
		"platform_invoices",
		"admin_users",
		"admin_audit_logs",
		"support_tickets",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestEmbeddedMigrationsPaired(t *testing.T) {
	entries, err := embeddedMigrations.ReadDir(migrationsDir)
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)
}

func TestRunSeedsDefaultsOnce(t *testing.T) {
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{
		DBType:                     "sqlite",
		DefaultPricingPackageCode:  "starter",
		PlatformBillingProfileCode: "platform",
		BootstrapAdminEmail:        "ops@merceton.com",
	}
	require.NoError(t, AutoMigrateModels(db))

	params := Params{
		DB:     db,
		Config: cfg,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Pricing: pricingservice.NewResolver(pricingservice.ResolverParams{
			DB:           db,
			Log:          zap.NewNop(),
			GenID:        node,
			Clock:        clk,
			Config:       cfg,
			Repo:         pricingrepo.Provide(),
			MerchantRepo: merchantrepo.Provide(),
		}),
		Profiles: billingprofileservice.NewAccessor(billingprofileservice.Params{
			DB:           db,
			Log:          zap.NewNop(),
			GenID:        node,
			Clock:        clk,
			Config:       cfg,
			Settings:     config.NewStaticBillingSettings(config.DefaultBillingSettings()),
			Repo:         billingprofilerepo.Provide(),
			MerchantRepo: merchantrepo.Provide(),
			AuditSvc:     audittest.New(t, db, node, clk),
		}),
	}

	require.NoError(t, Run(params))
	require.NoError(t, Run(params))

	var packages []pricingdomain.PricingPackage
	require.NoError(t, db.Find(&packages).Error)
	require.Len(t, packages, 1)
	assert.Equal(t, "starter", packages[0].Code)

	var profiles []billingprofiledomain.BillingProfile
	require.NoError(t, db.Find(&profiles).Error)
	require.Len(t, profiles, 1)
	assert.Equal(t, billingprofiledomain.KindPlatform, profiles[0].Kind)

	var admins []authorization.AdminUser
	require.NoError(t, db.Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, authorization.RoleAdmin, admins[0].Role)
}
