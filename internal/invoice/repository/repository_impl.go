package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertOrderInvoice(ctx context.Context, db *gorm.DB, inv *domain.OrderInvoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_invoices (
			id, invoice_number, billing_profile_id, order_id, order_number, merchant_id,
			seller_state_code, buyer_state_code, taxable_paise, cgst_paise, sgst_paise, igst_paise,
			total_paise, status, issued_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.InvoiceNumber,
		inv.BillingProfileID,
		inv.OrderID,
		inv.OrderNumber,
		inv.MerchantID,
		inv.SellerStateCode,
		inv.BuyerStateCode,
		inv.TaxablePaise,
		inv.CGSTPaise,
		inv.SGSTPaise,
		inv.IGSTPaise,
		inv.TotalPaise,
		inv.Status,
		inv.IssuedAt,
		inv.CreatedAt,
		inv.UpdatedAt,
	).Error
}

func (r *repo) FindOrderInvoiceByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.OrderInvoice, error) {
	var inv domain.OrderInvoice
	if err := db.WithContext(ctx).Where("order_id = ?", orderID).Limit(1).Find(&inv).Error; err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return nil, nil
	}
	return &inv, nil
}

func (r *repo) FindOrderInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.OrderInvoice, error) {
	var inv domain.OrderInvoice
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&inv).Error; err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return nil, nil
	}
	return &inv, nil
}

func (r *repo) CancelOrderInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE order_invoices
		 SET status = ?, cancelled_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.OrderInvoiceCancelled,
		at,
		at,
		id,
		domain.OrderInvoiceIssued,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListOrderInvoicesByOrders(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) ([]domain.OrderInvoice, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	var items []domain.OrderInvoice
	err := db.WithContext(ctx).Where("order_id IN ?", orderIDs).Find(&items).Error
	return items, err
}

func (r *repo) InsertPlatformInvoice(ctx context.Context, db *gorm.DB, inv *domain.PlatformInvoice) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO platform_invoices (
			id, invoice_number, billing_profile_id, merchant_id, period_start, period_end,
			fee_total_paise, taxable_paise, cgst_paise, sgst_paise, igst_paise, total_paise,
			status, issued_at, due_at, parties, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (merchant_id, period_start, period_end) DO NOTHING`,
		inv.ID,
		inv.InvoiceNumber,
		inv.BillingProfileID,
		inv.MerchantID,
		inv.PeriodStart,
		inv.PeriodEnd,
		inv.FeeTotalPaise,
		inv.TaxablePaise,
		inv.CGSTPaise,
		inv.SGSTPaise,
		inv.IGSTPaise,
		inv.TotalPaise,
		inv.Status,
		inv.IssuedAt,
		inv.DueAt,
		inv.Parties,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertPlatformInvoiceLines(ctx context.Context, db *gorm.DB, lines []domain.PlatformInvoiceLine) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) FindPlatformInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PlatformInvoice, error) {
	var inv domain.PlatformInvoice
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&inv).Error; err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return nil, nil
	}
	return &inv, nil
}

func (r *repo) FindPlatformInvoiceByPeriod(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, start, end time.Time) (*domain.PlatformInvoice, error) {
	var inv domain.PlatformInvoice
	err := db.WithContext(ctx).
		Where("merchant_id = ? AND period_start = ? AND period_end = ?", merchantID, start, end).
		Limit(1).
		Find(&inv).Error
	if err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return nil, nil
	}
	return &inv, nil
}

func (r *repo) ListPlatformInvoices(ctx context.Context, db *gorm.DB, req domain.ListRequest) ([]domain.PlatformInvoice, error) {
	stmt := db.WithContext(ctx).Model(&domain.PlatformInvoice{})
	if req.MerchantID != nil {
		stmt = stmt.Where("merchant_id = ?", *req.MerchantID)
	}
	if req.Status != nil {
		stmt = stmt.Where("status = ?", *req.Status)
	}
	if !req.From.IsZero() {
		stmt = stmt.Where("period_start >= ?", req.From)
	}
	if !req.To.IsZero() {
		stmt = stmt.Where("period_end <= ?", req.To)
	}

	var items []domain.PlatformInvoice
	err := stmt.Order("period_start DESC, id DESC").Find(&items).Error
	return items, err
}

func (r *repo) ListPlatformInvoiceLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.PlatformInvoiceLine, error) {
	var lines []domain.PlatformInvoiceLine
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

func (r *repo) UpdatePlatformInvoiceStatus(ctx context.Context, db *gorm.DB, inv *domain.PlatformInvoice, from domain.PlatformInvoiceStatus) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE platform_invoices
		 SET status = ?, paid_at = ?, cancelled_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		inv.Status,
		inv.PaidAt,
		inv.CancelledAt,
		inv.UpdatedAt,
		inv.ID,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
