package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Merchant, error)
	Get(ctx context.Context, id snowflake.ID) (*Merchant, error)
	GetBySlug(ctx context.Context, slug string) (*Merchant, error)
	ListActive(ctx context.Context) ([]Merchant, error)

	GetOnboarding(ctx context.Context, merchantID snowflake.ID) (*Onboarding, error)
	UpsertOnboarding(ctx context.Context, merchantID snowflake.ID, req OnboardingRequest) (*Onboarding, error)
	UpdateBankAccount(ctx context.Context, merchantID snowflake.ID, req BankAccountRequest) (*BankAccount, error)

	// Admin operations. Each one is audited in the same transaction.
	SetStatus(ctx context.Context, req SetStatusRequest) (*Merchant, error)
	VerifyBankAccount(ctx context.Context, req VerifyBankAccountRequest) (*BankAccount, error)
}

type CreateRequest struct {
	Name      string `json:"name" validate:"notblank,max=200"`
	Email     string `json:"email" validate:"required,email"`
	StoreSlug string `json:"store_slug" validate:"omitempty,max=100"`
}

type OnboardingRequest struct {
	LegalName string `json:"legal_name" validate:"notblank,max=200"`
	GSTIN     string `json:"gstin" validate:"omitempty,gstin"`
	StateCode string `json:"state_code" validate:"required,statecode"`
	Address   string `json:"address" validate:"max=500"`
}

type BankAccountRequest struct {
	AccountHolder string `json:"account_holder" validate:"notblank,max=200"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=9,max=18"`
	IFSC          string `json:"ifsc" validate:"required,ifsc"`
}

type SetStatusRequest struct {
	MerchantID snowflake.ID  `json:"-"`
	Status     AccountStatus `json:"status" validate:"required,oneof=ACTIVE SUSPENDED DISABLED"`
	Reason     string        `json:"reason"`
}

type VerifyBankAccountRequest struct {
	MerchantID snowflake.ID `json:"-"`
	Reason     string       `json:"reason"`
}

var (
	ErrInvalidID           = apperror.Validation("invalid_merchant_id", "invalid merchant id")
	ErrNotFound            = apperror.NotFound("merchant_not_found", "merchant not found")
	ErrInactive            = apperror.BusinessRule("merchant_inactive", "merchant is not active")
	ErrSlugTaken           = apperror.Conflict("store_slug_taken", "store slug is already taken")
	ErrInvalidSlug         = apperror.FieldValidation("store_slug", "invalid_store_slug", "store slug is invalid")
	ErrOnboardingNotFound  = apperror.NotFound("onboarding_not_found", "merchant onboarding not found")
	ErrBankAccountNotFound = apperror.NotFound("bank_account_not_found", "bank account not found")
	ErrBankAccountVerified = apperror.BusinessRule("bank_account_verified", "cannot edit a verified bank account")
)
