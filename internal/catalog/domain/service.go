package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Product, error)
	Get(ctx context.Context, id snowflake.ID) (*Product, error)
	ListByMerchant(ctx context.Context, merchantID snowflake.ID, activeOnly bool) ([]Product, error)
	SetActive(ctx context.Context, merchantID, productID snowflake.ID, active bool) (*Product, error)
	// AdjustStock applies an audited manual correction.
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*Product, error)
}

type CreateRequest struct {
	MerchantID snowflake.ID `json:"merchant_id" validate:"required"`
	Name       string       `json:"name" validate:"notblank,max=200"`
	SKU        string       `json:"sku" validate:"notblank,max=64"`
	HSNCode    string       `json:"hsn_code" validate:"omitempty,numeric,min=4,max=8"`
	PricePaise int64        `json:"price_paise" validate:"gt=0"`
	GSTRateBps int64        `json:"gst_rate_bps" validate:"oneof=0 25 300 500 1200 1800 2800"`
	Stock      int64        `json:"stock" validate:"gte=0"`
}

type AdjustStockRequest struct {
	ProductID snowflake.ID `json:"-"`
	Delta     int64        `json:"delta" validate:"ne=0"`
	Reason    string       `json:"reason"`
}

var (
	ErrInvalidID         = apperror.Validation("invalid_product_id", "invalid product id")
	ErrNotFound          = apperror.NotFound("product_not_found", "product not found")
	ErrSKUTaken          = apperror.Conflict("sku_taken", "sku already exists for this merchant")
	ErrNegativeStock     = apperror.BusinessRule("negative_stock", "stock cannot go below zero")
	ErrInsufficientStock = apperror.BusinessRule("insufficient_stock", "insufficient stock")
	ErrInactive          = apperror.BusinessRule("product_inactive", "product is not available")
)
