package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type EntryType string

const (
	EntryGrossOrderValue EntryType = "GROSS_ORDER_VALUE"
	EntryPlatformFee     EntryType = "PLATFORM_FEE"
	EntryOrderPayout     EntryType = "ORDER_PAYOUT"
	EntryPayout          EntryType = "PAYOUT"
	EntryAdjustment      EntryType = "ADJUSTMENT"
)

type EntryStatus string

const (
	StatusPending   EntryStatus = "PENDING"
	StatusCompleted EntryStatus = "COMPLETED"
	StatusFailed    EntryStatus = "FAILED"
)

// LedgerEntry is an append-only signed financial fact. Credits are positive,
// debits negative. Only Status ever changes after insert.
type LedgerEntry struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	MerchantID  snowflake.ID  `gorm:"not null;index:ix_ledger_entries_merchant_created,priority:1" json:"merchant_id"`
	OrderID     *snowflake.ID `gorm:"index" json:"order_id,omitempty"`
	Type        EntryType     `gorm:"type:text;not null;index" json:"type"`
	Amount      int64         `gorm:"not null" json:"amount"`
	Status      EntryStatus   `gorm:"type:text;not null" json:"status"`
	Description string        `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;index:ix_ledger_entries_merchant_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updated_at"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }
