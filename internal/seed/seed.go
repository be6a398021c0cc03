package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/authorization"
	billingprofiledomain "github.com/merceton/merceton/internal/billingprofile/domain"
	"github.com/merceton/merceton/internal/clock"
	pricingdomain "github.com/merceton/merceton/internal/pricing/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsurePlatformDefaults seeds the default pricing package and the platform
// billing profile. Safe to run on every boot.
func EnsurePlatformDefaults(ctx context.Context, db *gorm.DB, pricing pricingdomain.Resolver, profiles billingprofiledomain.ProfileAccessor) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := pricing.EnsureDefaultPackage(ctx, tx); err != nil {
			return err
		}
		_, err := profiles.PlatformProfile(ctx, tx)
		return err
	})
}

// EnsureBootstrapAdmin creates an admin user for email unless one exists.
// An empty email is a no-op.
func EnsureBootstrapAdmin(ctx context.Context, db *gorm.DB, node *snowflake.Node, clk clock.Clock, log *zap.Logger, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	if db == nil {
		return errors.New("seed database handle is required")
	}

	user := authorization.AdminUser{
		ID:        node.Generate(),
		Email:     email,
		Role:      authorization.RoleAdmin,
		IsActive:  true,
		CreatedAt: clk.Now(),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&user)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		log.Info("bootstrap admin created", zap.String("email", email), zap.String("admin_id", user.ID.String()))
	}
	return nil
}
