package domain

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	"github.com/merceton/merceton/pkg/db/pagination"
)

// FormatOrderNumber renders ORD-{year}-{seq} with at least three digits.
func FormatOrderNumber(year int, seq int64) string {
	return fmt.Sprintf("ORD-%d-%03d", year, seq)
}

type Service interface {
	// CreateOrder never returns an error. Every failure is reported in the
	// result so storefront callers only check Success.
	CreateOrder(ctx context.Context, input CreateOrderInput) CreateOrderResult
	Get(ctx context.Context, id snowflake.ID) (*Order, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	UpdateStage(ctx context.Context, req UpdateStageRequest) (*Order, error)
}

type ItemInput struct {
	ProductID snowflake.ID `json:"product_id" validate:"required"`
	Quantity  int64        `json:"quantity" validate:"gt=0,lte=10000"`
}

type CreateOrderInput struct {
	MerchantID        snowflake.ID  `json:"merchant_id" validate:"required"`
	StoreSlug         string        `json:"store_slug" validate:"notblank"`
	Items             []ItemInput   `json:"items" validate:"required,min=1,max=100,dive"`
	CustomerName      string        `json:"customer_name" validate:"notblank,max=200"`
	CustomerEmail     string        `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone     string        `json:"customer_phone" validate:"required,min=10,max=15"`
	ShippingAddress   string        `json:"shipping_address" validate:"notblank,max=500"`
	ShippingStateCode string        `json:"shipping_state_code" validate:"required,statecode"`
	PaymentMethod     PaymentMethod `json:"payment_method" validate:"required,oneof=COD UPI CARD NETBANKING WALLET"`
}

type CreateOrderResult struct {
	Success bool   `json:"success"`
	Order   *Order `json:"order,omitempty"`
	Error   string `json:"error,omitempty"`
	// Err keeps the tagged cause for status mapping and logs.
	Err error `json:"-"`
}

func Failed(err error) CreateOrderResult {
	return CreateOrderResult{Success: false, Error: apperror.Message(err), Err: err}
}

type ListRequest struct {
	MerchantID snowflake.ID `json:"merchant_id"`
	Stage      Stage        `json:"stage"`
	pagination.Pagination
}

type ListResponse struct {
	Orders []Order `json:"orders"`
	pagination.PageInfo
}

type UpdateStageRequest struct {
	OrderID snowflake.ID `json:"-"`
	Stage   Stage        `json:"stage" validate:"required,oneof=CONFIRMED PACKED SHIPPED OUT_FOR_DELIVERY DELIVERED CANCELLED RETURNED"`
}

// Notifier is told about orders after they commit.
type Notifier interface {
	OrderCreated(ctx context.Context, merchant *merchantdomain.Merchant, order *Order)
}

var (
	ErrInvalidID         = apperror.Validation("invalid_order_id", "invalid order id")
	ErrNotFound          = apperror.NotFound("order_not_found", "order not found")
	ErrMerchantNotFound  = apperror.NotFound("merchant_not_found", "merchant not found")
	ErrMerchantInactive  = apperror.BusinessRule("merchant_inactive", "store is not accepting orders")
	ErrProductNotFound   = apperror.NotFound("product_not_found", "product not found")
	ErrProductInactive   = apperror.BusinessRule("product_inactive", "product is not available")
	ErrInsufficientStock = apperror.BusinessRule("insufficient_stock", "insufficient stock")
	ErrInvalidTransition = apperror.BusinessRule("invalid_stage_transition", "invalid stage transition")
	ErrCreateFailed      = apperror.Internal("order_create_failed", "failed to create order")
	ErrCounterFailed     = apperror.Internal("order_number_failed", "order number allocation failed")
)
