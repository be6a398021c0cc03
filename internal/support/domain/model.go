package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TicketStatus string

const (
	TicketOpen    TicketStatus = "OPEN"
	TicketPending TicketStatus = "PENDING"
	TicketClosed  TicketStatus = "CLOSED"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
)

type AuthorType string

const (
	AuthorMerchant AuthorType = "MERCHANT"
	AuthorAdmin    AuthorType = "ADMIN"
)

// Ticket is a merchant support conversation. OPEN waits on support, PENDING
// waits on the merchant.
type Ticket struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Reference  string       `gorm:"type:text;not null;uniqueIndex:ux_support_tickets_reference" json:"reference"`
	MerchantID snowflake.ID `gorm:"not null;index" json:"merchant_id"`
	Subject    string       `gorm:"type:text;not null" json:"subject"`
	Status     TicketStatus `gorm:"type:text;not null;index" json:"status"`
	Priority   Priority     `gorm:"type:text;not null" json:"priority"`
	ClosedAt   *time.Time   `json:"closed_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`

	Messages []TicketMessage `gorm:"-" json:"messages,omitempty"`
}

func (Ticket) TableName() string { return "support_tickets" }

type TicketMessage struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	TicketID   snowflake.ID `gorm:"not null;index" json:"ticket_id"`
	AuthorType AuthorType   `gorm:"type:text;not null" json:"author_type"`
	AuthorID   string       `gorm:"type:text" json:"author_id,omitempty"`
	Body       string       `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (TicketMessage) TableName() string { return "support_ticket_messages" }

func Models() []any {
	return []any{&Ticket{}, &TicketMessage{}}
}
