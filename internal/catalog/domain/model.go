package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Product prices are GST inclusive and held in paise.
type Product struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	MerchantID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_products_merchant_sku,priority:1" json:"merchant_id"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	SKU        string       `gorm:"column:sku;type:text;not null;uniqueIndex:ux_products_merchant_sku,priority:2" json:"sku"`
	HSNCode    string       `gorm:"column:hsn_code;type:text" json:"hsn_code,omitempty"`
	PricePaise int64        `gorm:"not null" json:"price_paise"`
	GSTRateBps int64        `gorm:"column:gst_rate_bps;not null;default:0" json:"gst_rate_bps"`
	Stock      int64        `gorm:"not null;default:0" json:"stock"`
	IsActive   bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

func (Product) TableName() string { return "products" }
