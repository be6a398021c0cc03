package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/billingprofile/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *domain.BillingProfile) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_profiles (id, code, kind, merchant_id, legal_name, gstin, state_code, address, invoice_prefix, invoice_next_number, invoice_padding, series_format, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.Code,
		p.Kind,
		p.MerchantID,
		p.LegalName,
		p.GSTIN,
		p.StateCode,
		p.Address,
		p.InvoicePrefix,
		p.InvoiceNextNumber,
		p.InvoicePadding,
		p.SeriesFormat,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.BillingProfile, error) {
	var p domain.BillingProfile
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.BillingProfile, error) {
	var p domain.BillingProfile
	if err := db.WithContext(ctx).Where("code = ?", code).Limit(1).Find(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

type incrementRow struct {
	ID                snowflake.ID
	Kind              domain.Kind
	InvoiceNextNumber int64
	InvoicePrefix     string
	InvoicePadding    int
	SeriesFormat      string
}

func (r *repo) Increment(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (*domain.BillingProfile, error) {
	var row incrementRow
	res := db.WithContext(ctx).Raw(
		`UPDATE billing_profiles
		 SET invoice_next_number = invoice_next_number + 1, updated_at = ?
		 WHERE id = ?
		 RETURNING id, kind, invoice_next_number, invoice_prefix, invoice_padding, series_format`,
		at,
		id,
	).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &domain.BillingProfile{
		ID:                row.ID,
		Kind:              row.Kind,
		InvoiceNextNumber: row.InvoiceNextNumber,
		InvoicePrefix:     row.InvoicePrefix,
		InvoicePadding:    row.InvoicePadding,
		SeriesFormat:      row.SeriesFormat,
	}, nil
}

func (r *repo) UpdateSeries(ctx context.Context, db *gorm.DB, p *domain.BillingProfile) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE billing_profiles
		 SET invoice_prefix = ?, invoice_padding = ?, series_format = ?, invoice_next_number = ?, updated_at = ?
		 WHERE id = ? AND invoice_next_number <= ?`,
		p.InvoicePrefix,
		p.InvoicePadding,
		p.SeriesFormat,
		p.InvoiceNextNumber,
		p.UpdatedAt,
		p.ID,
		p.InvoiceNextNumber,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
