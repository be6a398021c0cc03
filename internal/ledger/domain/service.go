package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	"gorm.io/gorm"
)

// OrderPosting carries the order amounts the ledger needs at checkout.
type OrderPosting struct {
	OrderID     snowflake.ID
	MerchantID  snowflake.ID
	OrderNumber string
	GrossPaise  int64
	FeePaise    int64
	NetPaise    int64
	OccurredAt  time.Time
}

type ListFilter struct {
	MerchantID    *snowflake.ID
	OrderIDs      []snowflake.ID
	Types         []EntryType
	Statuses      []EntryStatus
	ExcludeStatus []EntryStatus
	From          time.Time
	To            time.Time
}

// Balance is what the platform owes a merchant.
type Balance struct {
	MerchantID     snowflake.ID `json:"merchant_id"`
	AvailablePaise int64        `json:"available_paise"`
	PendingPaise   int64        `json:"pending_paise"`
}

type PayoutRequest struct {
	MerchantID  snowflake.ID `json:"-"`
	AmountPaise int64        `json:"amount_paise" validate:"gt=0"`
	Reference   string       `json:"reference" validate:"notblank,max=120"`
	Reason      string       `json:"reason"`
}

type Service interface {
	// AppendOrderEntries writes the three PENDING order entries on tx.
	AppendOrderEntries(ctx context.Context, tx *gorm.DB, posting OrderPosting) ([]LedgerEntry, error)
	// TransitionOrderEntries moves an order's entries from one status to
	// another and reports how many changed.
	TransitionOrderEntries(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, from, to EntryStatus) (int64, error)
	ListByRange(ctx context.Context, db *gorm.DB, filter ListFilter) ([]LedgerEntry, error)
	ListByOrder(ctx context.Context, orderID snowflake.ID) ([]LedgerEntry, error)
	MerchantBalance(ctx context.Context, merchantID snowflake.ID) (Balance, error)
	// RecordPayout debits a settled payout against the available balance.
	RecordPayout(ctx context.Context, req PayoutRequest) (*LedgerEntry, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entries []LedgerEntry) error
	UpdateStatusByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, from, to EntryStatus, at time.Time) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]LedgerEntry, error)
	SumByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, types []EntryType, status EntryStatus) (int64, error)
}

var (
	ErrUnbalancedOrder   = apperror.Internal("ledger_unbalanced", "order amounts do not balance")
	ErrInvalidPosting    = apperror.Validation("invalid_ledger_posting", "order id and merchant id are required")
	ErrInvalidTransition = apperror.BusinessRule("invalid_ledger_transition", "ledger entries can only move from PENDING to COMPLETED or FAILED")
	ErrInsufficientFunds = apperror.BusinessRule("insufficient_balance", "payout exceeds available balance")
	ErrInvalidRange      = apperror.Validation("invalid_time_range", "from must not be after to")
)
