package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingprofiledomain "github.com/merceton/merceton/internal/billingprofile/domain"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/config"
	pricingdomain "github.com/merceton/merceton/internal/pricing/domain"
	"github.com/merceton/merceton/internal/seed"
	dbpkg "github.com/merceton/merceton/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Config   config.Config
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Pricing  pricingdomain.Resolver
	Profiles billingprofiledomain.ProfileAccessor
}

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// Run brings the schema up to date and seeds platform defaults.
func Run(p Params) error {
	log := p.Log.Named("migrations")
	if p.Config.DBType == dbpkg.TypeSQLite {
		if err := AutoMigrateModels(p.DB); err != nil {
			return err
		}
	} else {
		sqlDB, err := p.DB.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
	}
	log.Info("schema ready", zap.String("db_type", p.Config.DBType))

	ctx := context.Background()
	if err := seed.EnsurePlatformDefaults(ctx, p.DB, p.Pricing, p.Profiles); err != nil {
		return err
	}
	return seed.EnsureBootstrapAdmin(ctx, p.DB, p.GenID, p.Clock, log, p.Config.BootstrapAdminEmail)
}
