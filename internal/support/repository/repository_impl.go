package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/support/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, t *domain.Ticket) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO support_tickets (id, reference, merchant_id, subject, status, priority, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Reference,
		t.MerchantID,
		t.Subject,
		t.Status,
		t.Priority,
		t.CreatedAt,
		t.UpdatedAt,
	).Error
}

func (r *repo) InsertMessage(ctx context.Context, db *gorm.DB, m *domain.TicketMessage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO support_ticket_messages (id, ticket_id, author_type, author_id, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.TicketID,
		m.AuthorType,
		m.AuthorID,
		m.Body,
		m.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Ticket, error) {
	var t domain.Ticket
	err := db.WithContext(ctx).Raw(
		`SELECT id, reference, merchant_id, subject, status, priority, closed_at, created_at, updated_at
		 FROM support_tickets WHERE id = ?`,
		id,
	).Scan(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, f domain.ListFilter) ([]domain.Ticket, error) {
	stmt := db.WithContext(ctx).Model(&domain.Ticket{})
	if f.MerchantID != nil {
		stmt = stmt.Where("merchant_id = ?", *f.MerchantID)
	}
	if f.Status != "" {
		stmt = stmt.Where("status = ?", f.Status)
	}
	if f.AfterID != 0 {
		stmt = stmt.Where("id < ?", f.AfterID)
	}
	if f.Limit > 0 {
		stmt = stmt.Limit(f.Limit)
	}

	var tickets []domain.Ticket
	err := stmt.Order("id DESC").Find(&tickets).Error
	return tickets, err
}

func (r *repo) Messages(ctx context.Context, db *gorm.DB, ticketID snowflake.ID) ([]domain.TicketMessage, error) {
	var msgs []domain.TicketMessage
	err := db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.TicketStatus, closedAt *time.Time, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE support_tickets SET status = ?, closed_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, closedAt, at, id, from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
