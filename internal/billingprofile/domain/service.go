package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	"gorm.io/gorm"
)

type Service interface {
	Get(ctx context.Context, id snowflake.ID) (*BillingProfile, error)
	// Allocate reserves the next number of profileID with a single atomic
	// update on db, which may be a caller transaction. It fails closed.
	Allocate(ctx context.Context, db *gorm.DB, profileID snowflake.ID, issuedAt time.Time) (Allocation, error)
	UpdateSeries(ctx context.Context, req UpdateSeriesRequest) (*BillingProfile, error)
}

// ProfileAccessor resolves billing profiles by role instead of by magic id.
type ProfileAccessor interface {
	// PlatformProfile returns the platform's profile with its tax identity
	// taken from the current billing settings.
	PlatformProfile(ctx context.Context, db *gorm.DB) (*BillingProfile, error)
	// MerchantProfile returns the merchant's own series, creating it on
	// first use.
	MerchantProfile(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*BillingProfile, error)
}

type UpdateSeriesRequest struct {
	ProfileID         snowflake.ID `json:"-"`
	InvoicePrefix     *string      `json:"invoice_prefix" validate:"omitempty,notblank,max=20"`
	InvoicePadding    *int         `json:"invoice_padding" validate:"omitempty,gte=0,lte=12"`
	SeriesFormat      *string      `json:"series_format" validate:"omitempty,notblank,max=64"`
	InvoiceNextNumber *int64       `json:"invoice_next_number" validate:"omitempty,gt=0"`
	Reason            string       `json:"reason"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, profile *BillingProfile) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BillingProfile, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*BillingProfile, error)
	// Increment advances the counter and returns the row as updated. A nil
	// profile means no row matched.
	Increment(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (*BillingProfile, error)
	// UpdateSeries reports false when the stored counter has already moved
	// past profile.InvoiceNextNumber.
	UpdateSeries(ctx context.Context, db *gorm.DB, profile *BillingProfile) (bool, error)
}

var (
	ErrInvalidID         = apperror.Validation("invalid_billing_profile_id", "invalid billing profile id")
	ErrNotFound          = apperror.NotFound("billing_profile_not_found", "billing profile not found")
	ErrAllocationFailed  = apperror.Internal("invoice_number_allocation_failed", "invoice number allocation failed")
	ErrCounterRegression = apperror.BusinessRule("invoice_counter_regression", "invoice counter cannot be lowered")
	ErrSeriesChanged     = apperror.Conflict("invoice_counter_changed", "invoice counter advanced concurrently, retry")
	ErrInvalidSeries     = apperror.FieldValidation("series_format", "invalid_series_format", "series format is invalid")
	ErrNothingToUpdate   = apperror.Validation("nothing_to_update", "no series field to update")
	ErrMerchantIdentity  = apperror.NotFound("merchant_not_found", "merchant not found")
)
