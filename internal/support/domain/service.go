package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	"github.com/merceton/merceton/pkg/db/pagination"
	"gorm.io/gorm"
)

type OpenRequest struct {
	MerchantID snowflake.ID `json:"-"`
	Subject    string       `json:"subject" validate:"notblank,max=200"`
	Body       string       `json:"body" validate:"notblank,max=5000"`
	Priority   Priority     `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH"`
}

// ReplyRequest adds a message. AuthorID is the merchant id or admin id the
// transport authenticated.
type ReplyRequest struct {
	TicketID   snowflake.ID `json:"-"`
	AuthorType AuthorType   `json:"-"`
	AuthorID   string       `json:"-"`
	Body       string       `json:"body" validate:"notblank,max=5000"`
}

type ListRequest struct {
	MerchantID *snowflake.ID
	Status     TicketStatus
	pagination.Pagination
}

type ListResponse struct {
	Tickets  []Ticket            `json:"tickets"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type StatusRequest struct {
	TicketID snowflake.ID `json:"-"`
	Reason   string       `json:"reason"`
}

type Service interface {
	Open(ctx context.Context, req OpenRequest) (*Ticket, error)
	// Get returns the ticket with its messages, oldest first.
	Get(ctx context.Context, id snowflake.ID) (*Ticket, error)
	Reply(ctx context.Context, req ReplyRequest) (*TicketMessage, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)

	Close(ctx context.Context, req StatusRequest) (*Ticket, error)
	Reopen(ctx context.Context, req StatusRequest) (*Ticket, error)
}

type ListFilter struct {
	MerchantID *snowflake.ID
	Status     TicketStatus
	AfterID    snowflake.ID
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, ticket *Ticket) error
	InsertMessage(ctx context.Context, db *gorm.DB, msg *TicketMessage) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Ticket, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Ticket, error)
	Messages(ctx context.Context, db *gorm.DB, ticketID snowflake.ID) ([]TicketMessage, error)
	// UpdateStatus moves the ticket only if it is still in from.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to TicketStatus, closedAt *time.Time, at time.Time) (bool, error)
}

var (
	ErrInvalidID        = apperror.Validation("invalid_ticket_id", "invalid ticket id")
	ErrNotFound         = apperror.NotFound("ticket_not_found", "ticket not found")
	ErrMerchantNotFound = apperror.NotFound("merchant_not_found", "merchant not found")
	ErrClosed           = apperror.BusinessRule("ticket_closed", "cannot reply to closed ticket")
	ErrAlreadyClosed    = apperror.BusinessRule("ticket_already_closed", "ticket is already closed")
	ErrNotClosed        = apperror.BusinessRule("ticket_not_closed", "only closed tickets can be reopened")
	ErrInvalidAuthor    = apperror.Validation("invalid_ticket_author", "author type must be MERCHANT or ADMIN")
)
