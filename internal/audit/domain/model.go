package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AdminAuditLog is an append-only record of one privileged mutation.
type AdminAuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"size:32;not null" json:"actor_type"`
	ActorID    string            `gorm:"size:64;not null;index" json:"actor_id"`
	ActorEmail string            `gorm:"size:255" json:"actor_email,omitempty"`
	ActionType string            `gorm:"size:96;not null;index" json:"action_type"`
	EntityType string            `gorm:"size:64;not null;index:idx_admin_audit_logs_entity" json:"entity_type"`
	EntityID   string            `gorm:"size:64;not null;index:idx_admin_audit_logs_entity" json:"entity_id"`
	Reason     string            `gorm:"size:500;not null" json:"reason"`
	Before     datatypes.JSONMap `gorm:"column:before_state" json:"before,omitempty"`
	After      datatypes.JSONMap `gorm:"column:after_state" json:"after,omitempty"`
	RequestID  string            `gorm:"size:64" json:"request_id,omitempty"`
	IPAddress  string            `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent  string            `gorm:"size:512" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AdminAuditLog) TableName() string { return "admin_audit_logs" }
