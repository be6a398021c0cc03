package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/merchant/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, m *domain.Merchant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO merchants (id, name, store_slug, email, is_active, account_status, kyc_status, domain_subscription_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.Name,
		m.StoreSlug,
		m.Email,
		m.IsActive,
		m.AccountStatus,
		m.KYCStatus,
		m.DomainSubscriptionActive,
		m.CreatedAt,
		m.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Merchant, error) {
	var m domain.Merchant
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, store_slug, email, is_active, account_status, kyc_status, domain_subscription_active, created_at, updated_at
		 FROM merchants WHERE id = ?`,
		id,
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		return nil, nil
	}
	return &m, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Merchant, error) {
	var m domain.Merchant
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, store_slug, email, is_active, account_status, kyc_status, domain_subscription_active, created_at, updated_at
		 FROM merchants WHERE store_slug = ?`,
		slug,
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		return nil, nil
	}
	return &m, nil
}

func (r *repo) SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Merchant{}).Where("store_slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]domain.Merchant, error) {
	var items []domain.Merchant
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, m *domain.Merchant) error {
	return db.WithContext(ctx).Exec(
		`UPDATE merchants SET is_active = ?, account_status = ?, updated_at = ? WHERE id = ?`,
		m.IsActive,
		m.AccountStatus,
		m.UpdatedAt,
		m.ID,
	).Error
}

func (r *repo) SetDomainSubscription(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE merchants SET domain_subscription_active = ?, updated_at = ? WHERE id = ?`,
		active,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) FindOnboarding(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*domain.Onboarding, error) {
	var o domain.Onboarding
	err := db.WithContext(ctx).Raw(
		`SELECT merchant_id, legal_name, gstin, state_code, address, updated_at
		 FROM merchant_onboardings WHERE merchant_id = ?`,
		merchantID,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.MerchantID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) SaveOnboarding(ctx context.Context, db *gorm.DB, o *domain.Onboarding) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "merchant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"legal_name", "gstin", "state_code", "address", "updated_at"}),
	}).Create(o).Error
}

func (r *repo) FindBankAccount(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*domain.BankAccount, error) {
	var a domain.BankAccount
	err := db.WithContext(ctx).Raw(
		`SELECT merchant_id, account_holder, account_number, ifsc, is_verified, verified_at, updated_at
		 FROM merchant_bank_accounts WHERE merchant_id = ?`,
		merchantID,
	).Scan(&a).Error
	if err != nil {
		return nil, err
	}
	if a.MerchantID == 0 {
		return nil, nil
	}
	return &a, nil
}

func (r *repo) SaveBankAccount(ctx context.Context, db *gorm.DB, a *domain.BankAccount) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "merchant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_holder", "account_number", "ifsc", "is_verified", "verified_at", "updated_at"}),
	}).Create(a).Error
}
