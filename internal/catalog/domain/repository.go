package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Product, error)
	ListByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, activeOnly bool) ([]Product, error)
	UpdateActive(ctx context.Context, db *gorm.DB, product *Product) error
	// AddStock applies delta in a single statement and returns the stock
	// read back afterwards.
	AddStock(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int64, at time.Time) (int64, error)
}
