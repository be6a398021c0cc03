package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/merceton/merceton/internal/audit/domain"
	"github.com/merceton/merceton/internal/authorization"
	billingprofiledomain "github.com/merceton/merceton/internal/billingprofile/domain"
	catalogdomain "github.com/merceton/merceton/internal/catalog/domain"
	invoicedomain "github.com/merceton/merceton/internal/invoice/domain"
	ledgerdomain "github.com/merceton/merceton/internal/ledger/domain"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	orderdomain "github.com/merceton/merceton/internal/order/domain"
	pricingdomain "github.com/merceton/merceton/internal/pricing/domain"
	supportdomain "github.com/merceton/merceton/internal/support/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres schema.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}

// Models lists every table the service owns. sqlite deployments build the
// schema from these instead of the SQL files.
func Models() []any {
	models := []any{
		&catalogdomain.Product{},
		&ledgerdomain.LedgerEntry{},
		&billingprofiledomain.BillingProfile{},
		&auditdomain.AdminAuditLog{},
		&authorization.AdminUser{},
	}
	models = append(models, merchantdomain.Models()...)
	models = append(models, pricingdomain.Models()...)
	models = append(models, orderdomain.Models()...)
	models = append(models, invoicedomain.Models()...)
	models = append(models, supportdomain.Models()...)
	return models
}

func AutoMigrateModels(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
