package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertOrderInvoice(ctx context.Context, db *gorm.DB, invoice *OrderInvoice) error
	FindOrderInvoiceByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*OrderInvoice, error)
	FindOrderInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*OrderInvoice, error)
	CancelOrderInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	ListOrderInvoicesByOrders(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) ([]OrderInvoice, error)

	// InsertPlatformInvoice reports false when the (merchant, period) row
	// already exists.
	InsertPlatformInvoice(ctx context.Context, db *gorm.DB, invoice *PlatformInvoice) (bool, error)
	InsertPlatformInvoiceLines(ctx context.Context, db *gorm.DB, lines []PlatformInvoiceLine) error
	FindPlatformInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PlatformInvoice, error)
	FindPlatformInvoiceByPeriod(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, start, end time.Time) (*PlatformInvoice, error)
	ListPlatformInvoices(ctx context.Context, db *gorm.DB, req ListRequest) ([]PlatformInvoice, error)
	ListPlatformInvoiceLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]PlatformInvoiceLine, error)
	UpdatePlatformInvoiceStatus(ctx context.Context, db *gorm.DB, invoice *PlatformInvoice, from PlatformInvoiceStatus) (bool, error)
}
