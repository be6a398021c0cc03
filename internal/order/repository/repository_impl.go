package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, order_number, merchant_id, store_slug, customer_name, customer_email, customer_phone, shipping_address, shipping_state_code, payment_method, gross_amount, platform_fee, net_payable, stage, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID,
		o.OrderNumber,
		o.MerchantID,
		o.StoreSlug,
		o.CustomerName,
		o.CustomerEmail,
		o.CustomerPhone,
		o.ShippingAddress,
		o.ShippingStateCode,
		o.PaymentMethod,
		o.GrossAmount,
		o.PlatformFee,
		o.NetPayable,
		o.Stage,
		o.CreatedAt,
		o.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, p *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (id, order_id, method, amount_paise, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.OrderID,
		p.Method,
		p.AmountPaise,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&o).Error; err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var orders []domain.Order
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, f domain.ListFilter) ([]domain.Order, error) {
	stmt := db.WithContext(ctx).Model(&domain.Order{})
	if f.MerchantID != 0 {
		stmt = stmt.Where("merchant_id = ?", f.MerchantID)
	}
	if f.Stage != "" {
		stmt = stmt.Where("stage = ?", f.Stage)
	}
	if f.AfterID != 0 {
		stmt = stmt.Where("id < ?", f.AfterID)
	}
	if f.Limit > 0 {
		stmt = stmt.Limit(f.Limit)
	}

	var orders []domain.Order
	err := stmt.Order("id DESC").Find(&orders).Error
	return orders, err
}

func (r *repo) ItemsByOrderIDs(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) ([]domain.OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var items []domain.OrderItem
	err := db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("order_id ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.Payment, error) {
	var p domain.Payment
	if err := db.WithContext(ctx).Where("order_id = ?", orderID).Limit(1).Find(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) UpdateStage(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Stage, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders SET stage = ?, updated_at = ? WHERE id = ? AND stage = ?`,
		to,
		at,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) UpdatePaymentStatus(ctx context.Context, db *gorm.DB, orderID snowflake.ID, status domain.PaymentStatus, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET status = ?, updated_at = ? WHERE order_id = ?`,
		status,
		at,
		orderID,
	).Error
}

func (r *repo) IncrementCounter(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, year int, at time.Time) (int64, bool, error) {
	var next []int64
	err := db.WithContext(ctx).Raw(
		`UPDATE order_number_counters
		 SET next_value = next_value + 1, updated_at = ?
		 WHERE merchant_id = ? AND year = ?
		 RETURNING next_value`,
		at,
		merchantID,
		year,
	).Scan(&next).Error
	if err != nil {
		return 0, false, err
	}
	if len(next) == 0 {
		return 0, false, nil
	}
	return next[0] - 1, true, nil
}

func (r *repo) InsertCounter(ctx context.Context, db *gorm.DB, c *domain.OrderNumberCounter) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_number_counters (merchant_id, year, next_value, updated_at) VALUES (?, ?, ?, ?)`,
		c.MerchantID,
		c.Year,
		c.NextValue,
		c.UpdatedAt,
	).Error
}
