package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/pricing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertPackage(ctx context.Context, db *gorm.DB, pkg *domain.PricingPackage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pricing_packages (id, code, name, fixed_fee_paise, variable_fee_bps, holdback_bps, payout_frequency, is_payout_hold, domain_included, domain_allowed, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pkg.ID,
		pkg.Code,
		pkg.Name,
		pkg.FixedFeePaise,
		pkg.VariableFeeBps,
		pkg.HoldbackBps,
		pkg.PayoutFrequency,
		pkg.IsPayoutHold,
		pkg.DomainIncluded,
		pkg.DomainAllowed,
		pkg.Status,
		pkg.CreatedAt,
		pkg.UpdatedAt,
	).Error
}

func (r *repo) FindPackageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PricingPackage, error) {
	var pkg domain.PricingPackage
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&pkg).Error; err != nil {
		return nil, err
	}
	if pkg.ID == 0 {
		return nil, nil
	}
	return &pkg, nil
}

func (r *repo) FindPackageByCode(ctx context.Context, db *gorm.DB, code string) (*domain.PricingPackage, error) {
	var pkg domain.PricingPackage
	if err := db.WithContext(ctx).Where("code = ?", code).Limit(1).Find(&pkg).Error; err != nil {
		return nil, err
	}
	if pkg.ID == 0 {
		return nil, nil
	}
	return &pkg, nil
}

func (r *repo) ListPackages(ctx context.Context, db *gorm.DB) ([]domain.PricingPackage, error) {
	var items []domain.PricingPackage
	if err := db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdatePackageStatus(ctx context.Context, db *gorm.DB, pkg *domain.PricingPackage) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pricing_packages SET status = ?, updated_at = ? WHERE id = ?`,
		pkg.Status,
		pkg.UpdatedAt,
		pkg.ID,
	).Error
}

func (r *repo) FindFeeConfig(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*domain.MerchantFeeConfig, error) {
	var cfg domain.MerchantFeeConfig
	if err := db.WithContext(ctx).Where("merchant_id = ?", merchantID).Limit(1).Find(&cfg).Error; err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) InsertFeeConfig(ctx context.Context, db *gorm.DB, cfg *domain.MerchantFeeConfig) error {
	return db.WithContext(ctx).Create(cfg).Error
}

func (r *repo) SaveFeeConfig(ctx context.Context, db *gorm.DB, cfg *domain.MerchantFeeConfig) error {
	return db.WithContext(ctx).Save(cfg).Error
}

func (r *repo) MarkDomainIncludedApplied(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE merchant_fee_configs SET domain_included_applied = ?, updated_at = ? WHERE id = ?`,
		true,
		time.Now().UTC(),
		id,
	).Error
}
