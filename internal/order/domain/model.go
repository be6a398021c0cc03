package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Stage string

const (
	StageNew            Stage = "NEW"
	StageConfirmed      Stage = "CONFIRMED"
	StagePacked         Stage = "PACKED"
	StageShipped        Stage = "SHIPPED"
	StageOutForDelivery Stage = "OUT_FOR_DELIVERY"
	StageDelivered      Stage = "DELIVERED"
	StageCancelled      Stage = "CANCELLED"
	StageReturned       Stage = "RETURNED"
)

var stageTransitions = map[Stage][]Stage{
	StageNew:            {StageConfirmed, StageCancelled},
	StageConfirmed:      {StagePacked, StageCancelled},
	StagePacked:         {StageShipped, StageCancelled},
	StageShipped:        {StageOutForDelivery},
	StageOutForDelivery: {StageDelivered},
	StageDelivered:      {StageReturned},
}

// CanTransition reports whether an order may move from one stage to another.
func CanTransition(from, to Stage) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCOD        PaymentMethod = "COD"
	PaymentUPI        PaymentMethod = "UPI"
	PaymentCard       PaymentMethod = "CARD"
	PaymentNetBanking PaymentMethod = "NETBANKING"
	PaymentWallet     PaymentMethod = "WALLET"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCreated   PaymentStatus = "CREATED"
	PaymentCaptured  PaymentStatus = "CAPTURED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// InitialPaymentStatus is PENDING for cash on delivery and CREATED for
// methods settled through a gateway.
func InitialPaymentStatus(method PaymentMethod) PaymentStatus {
	if method == PaymentCOD {
		return PaymentPending
	}
	return PaymentCreated
}

type Order struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrderNumber       string        `gorm:"type:text;not null;uniqueIndex:ux_orders_merchant_number,priority:2" json:"order_number"`
	MerchantID        snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_orders_merchant_number,priority:1" json:"merchant_id"`
	StoreSlug         string        `gorm:"type:text;not null" json:"store_slug"`
	CustomerName      string        `gorm:"type:text;not null" json:"customer_name"`
	CustomerEmail     string        `gorm:"type:text" json:"customer_email,omitempty"`
	CustomerPhone     string        `gorm:"type:text;not null" json:"customer_phone"`
	ShippingAddress   string        `gorm:"type:text;not null" json:"shipping_address"`
	ShippingStateCode string        `gorm:"type:text;not null" json:"shipping_state_code"`
	PaymentMethod     PaymentMethod `gorm:"type:text;not null" json:"payment_method"`
	GrossAmount       int64         `gorm:"not null" json:"gross_amount"`
	PlatformFee       int64         `gorm:"not null" json:"platform_fee"`
	NetPayable        int64         `gorm:"not null" json:"net_payable"`
	Stage             Stage         `gorm:"type:text;not null" json:"stage"`
	CreatedAt         time.Time     `gorm:"not null;index" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"not null" json:"updated_at"`

	Items   []OrderItem `gorm:"-" json:"items,omitempty"`
	Payment *Payment    `gorm:"-" json:"payment,omitempty"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID        snowflake.ID `gorm:"not null;index" json:"order_id"`
	ProductID      snowflake.ID `gorm:"not null" json:"product_id"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	HSNCode        string       `gorm:"column:hsn_code;type:text" json:"hsn_code,omitempty"`
	UnitPricePaise int64        `gorm:"not null" json:"unit_price_paise"`
	Quantity       int64        `gorm:"not null" json:"quantity"`
	GSTRateBps     int64        `gorm:"column:gst_rate_bps;not null" json:"gst_rate_bps"`
	LineTotalPaise int64        `gorm:"not null" json:"line_total_paise"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (OrderItem) TableName() string { return "order_items" }

type Payment struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrderID     snowflake.ID  `gorm:"not null;uniqueIndex:ux_payments_order" json:"order_id"`
	Method      PaymentMethod `gorm:"type:text;not null" json:"method"`
	AmountPaise int64         `gorm:"not null" json:"amount_paise"`
	Status      PaymentStatus `gorm:"type:text;not null" json:"status"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// OrderNumberCounter holds the next sequence to hand out for one merchant
// and calendar year.
type OrderNumberCounter struct {
	MerchantID snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"merchant_id"`
	Year       int          `gorm:"primaryKey;autoIncrement:false" json:"year"`
	NextValue  int64        `gorm:"not null" json:"next_value"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

func (OrderNumberCounter) TableName() string { return "order_number_counters" }

func Models() []any {
	return []any{&Order{}, &OrderItem{}, &Payment{}, &OrderNumberCounter{}}
}
