package authorization

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleAdmin   = "admin"
	RoleFinance = "finance"
	RoleSupport = "support"
	RoleSystem  = "system"
)

const (
	ObjectMerchant          = "merchant"
	ObjectPricingPackage    = "pricing_package"
	ObjectMerchantFeeConfig = "merchant_fee_config"
	ObjectProduct           = "product"
	ObjectOrder             = "order"
	ObjectOrderInvoice      = "order_invoice"
	ObjectPlatformInvoice   = "platform_invoice"
	ObjectBillingProfile    = "billing_profile"
	ObjectBillingStatement  = "billing_statement"
	ObjectSupportTicket     = "support_ticket"
	ObjectAuditLog          = "audit_log"
	ObjectPayout            = "payout"
)

const (
	ActionView   = "view"
	ActionManage = "manage"
)

// AdminUser is a back-office operator. Identity is asserted by the upstream
// gateway; this table only maps the id to a role.
type AdminUser struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Email     string       `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Role      string       `gorm:"size:32;not null" json:"role"`
	IsActive  bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}

func (AdminUser) TableName() string { return "admin_users" }

type Service interface {
	// Authorize checks that actor ("admin:<id>" or "system") may perform
	// action on object.
	Authorize(ctx context.Context, actor string, object string, action string) error
	// ResolveAdmin loads an active admin user.
	ResolveAdmin(ctx context.Context, id snowflake.ID) (AdminUser, error)
}
