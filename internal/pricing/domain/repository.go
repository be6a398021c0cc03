package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPackage(ctx context.Context, db *gorm.DB, pkg *PricingPackage) error
	FindPackageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PricingPackage, error)
	FindPackageByCode(ctx context.Context, db *gorm.DB, code string) (*PricingPackage, error)
	ListPackages(ctx context.Context, db *gorm.DB) ([]PricingPackage, error)
	UpdatePackageStatus(ctx context.Context, db *gorm.DB, pkg *PricingPackage) error

	FindFeeConfig(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*MerchantFeeConfig, error)
	InsertFeeConfig(ctx context.Context, db *gorm.DB, cfg *MerchantFeeConfig) error
	SaveFeeConfig(ctx context.Context, db *gorm.DB, cfg *MerchantFeeConfig) error
	MarkDomainIncludedApplied(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
