package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, merchant_id, name, sku, hsn_code, price_paise, gst_rate_bps, stock, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.MerchantID,
		p.Name,
		p.SKU,
		p.HSNCode,
		p.PricePaise,
		p.GSTRateBps,
		p.Stock,
		p.IsActive,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, merchant_id, name, sku, hsn_code, price_paise, gst_rate_bps, stock, is_active, created_at, updated_at
		 FROM products WHERE id = ?`,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Product
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, activeOnly bool) ([]domain.Product, error) {
	var items []domain.Product
	stmt := db.WithContext(ctx).Where("merchant_id = ?", merchantID)
	if activeOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	if err := stmt.Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateActive(ctx context.Context, db *gorm.DB, p *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`UPDATE products SET is_active = ?, updated_at = ? WHERE id = ?`,
		p.IsActive,
		p.UpdatedAt,
		p.ID,
	).Error
}

func (r *repo) AddStock(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", delta),
			"updated_at": at,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, domain.ErrNotFound
	}

	var stock int64
	if err := db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", id).Select("stock").Scan(&stock).Error; err != nil {
		return 0, err
	}
	return stock, nil
}
