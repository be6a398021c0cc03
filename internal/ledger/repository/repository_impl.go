package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entries []domain.LedgerEntry) error {
	for _, e := range entries {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO ledger_entries (id, merchant_id, order_id, type, amount, status, description, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID,
			e.MerchantID,
			e.OrderID,
			e.Type,
			e.Amount,
			e.Status,
			e.Description,
			e.CreatedAt,
			e.UpdatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) UpdateStatusByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, from, to domain.EntryStatus, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE ledger_entries SET status = ?, updated_at = ? WHERE order_id = ? AND status = ?`,
		to,
		at,
		orderID,
		from,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.LedgerEntry, error) {
	stmt := db.WithContext(ctx).Model(&domain.LedgerEntry{})
	if filter.MerchantID != nil {
		stmt = stmt.Where("merchant_id = ?", *filter.MerchantID)
	}
	if len(filter.OrderIDs) > 0 {
		stmt = stmt.Where("order_id IN ?", filter.OrderIDs)
	}
	if len(filter.Types) > 0 {
		stmt = stmt.Where("type IN ?", filter.Types)
	}
	if len(filter.Statuses) > 0 {
		stmt = stmt.Where("status IN ?", filter.Statuses)
	}
	if len(filter.ExcludeStatus) > 0 {
		stmt = stmt.Where("status NOT IN ?", filter.ExcludeStatus)
	}
	if !filter.From.IsZero() {
		stmt = stmt.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		stmt = stmt.Where("created_at <= ?", filter.To)
	}

	var items []domain.LedgerEntry
	if err := stmt.Order("created_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SumByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, types []domain.EntryType, status domain.EntryStatus) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("merchant_id = ? AND type IN ? AND status = ?", merchantID, types, status).
		Scan(&total).Error
	return total, err
}
