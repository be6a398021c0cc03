package repository

import (
	"context"
	"strings"

	"github.com/merceton/merceton/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AdminAuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO admin_audit_logs (
			id, actor_type, actor_id, actor_email, action_type, entity_type, entity_id,
			reason, before_state, after_state, request_id, ip_address, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ActorType,
		entry.ActorID,
		entry.ActorEmail,
		entry.ActionType,
		entry.EntityType,
		entry.EntityID,
		entry.Reason,
		entry.Before,
		entry.After,
		entry.RequestID,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.AdminAuditLog, error) {
	var logs []domain.AdminAuditLog
	stmt := db.WithContext(ctx).Model(&domain.AdminAuditLog{})

	if v := strings.TrimSpace(filter.ActionType); v != "" {
		stmt = stmt.Where("action_type = ?", v)
	}
	if v := strings.TrimSpace(filter.EntityType); v != "" {
		stmt = stmt.Where("entity_type = ?", v)
	}
	if v := strings.TrimSpace(filter.EntityID); v != "" {
		stmt = stmt.Where("entity_id = ?", v)
	}
	if v := strings.TrimSpace(filter.ActorID); v != "" {
		stmt = stmt.Where("actor_id = ?", v)
	}
	if filter.From != nil {
		stmt = stmt.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		stmt = stmt.Where("created_at <= ?", filter.To.UTC())
	}
	if filter.AfterID > 0 {
		stmt = stmt.Where("id < ?", filter.AfterID)
	}

	stmt = stmt.Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
