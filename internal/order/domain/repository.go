package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	MerchantID snowflake.ID
	Stage      Stage
	AfterID    snowflake.ID
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	InsertItems(ctx context.Context, db *gorm.DB, items []OrderItem) error
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Order, error)
	ItemsByOrderIDs(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) ([]OrderItem, error)
	FindPayment(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Payment, error)

	// UpdateStage moves the order only if it is still in from.
	UpdateStage(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Stage, at time.Time) (bool, error)
	UpdatePaymentStatus(ctx context.Context, db *gorm.DB, orderID snowflake.ID, status PaymentStatus, at time.Time) error

	// IncrementCounter bumps the (merchant, year) counter and returns the
	// value it held. ok is false when the row does not exist yet.
	IncrementCounter(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, year int, at time.Time) (seq int64, ok bool, err error)
	InsertCounter(ctx context.Context, db *gorm.DB, counter *OrderNumberCounter) error
}
