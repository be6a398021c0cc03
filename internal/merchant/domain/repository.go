package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, merchant *Merchant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Merchant, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Merchant, error)
	SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Merchant, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, merchant *Merchant) error
	SetDomainSubscription(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error

	FindOnboarding(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*Onboarding, error)
	SaveOnboarding(ctx context.Context, db *gorm.DB, onboarding *Onboarding) error

	FindBankAccount(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*BankAccount, error)
	SaveBankAccount(ctx context.Context, db *gorm.DB, account *BankAccount) error
}
