package domain

import (
	"context"
	"time"

	"github.com/merceton/merceton/internal/apperror"
	"github.com/merceton/merceton/pkg/db/pagination"
	"gorm.io/gorm"
)

// Action describes a privileged mutation about to be performed.
type Action struct {
	ActionType string
	EntityType string
	EntityID   string
	Reason     string
}

// Change is what a mutation reports back for the audit row. EntityID
// overrides Action.EntityID when the entity is created by the mutation.
type Change struct {
	EntityID string
	Before   any
	After    any
}

// MutationFunc runs inside the audit transaction. Returning an error rolls
// back both the mutation and the audit row.
type MutationFunc func(tx *gorm.DB) (Change, error)

// Entry is a fully formed audit record for Log.
type Entry struct {
	Action
	ActorType  string
	ActorID    string
	ActorEmail string
	Before     any
	After      any
}

type ListRequest struct {
	pagination.Pagination
	ActionType string     `form:"action_type"`
	EntityType string     `form:"entity_type"`
	EntityID   string     `form:"entity_id"`
	ActorID    string     `form:"actor_id"`
	From       *time.Time `form:"-"`
	To         *time.Time `form:"-"`
}

type ListResponse struct {
	pagination.PageInfo
	AuditLogs []AdminAuditLog `json:"audit_logs"`
}

type Service interface {
	// Record validates the action and the acting admin, then runs mutate
	// and inserts the audit row in one transaction.
	Record(ctx context.Context, action Action, mutate MutationFunc) error
	// Log inserts entry using db, which may be a caller transaction.
	Log(ctx context.Context, db *gorm.DB, entry Entry) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

type ListFilter struct {
	ActionType string
	EntityType string
	EntityID   string
	ActorID    string
	From       *time.Time
	To         *time.Time
	AfterID    int64
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AdminAuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AdminAuditLog, error)
}

var (
	ErrInvalidAction    = apperror.Validation("invalid_audit_action", "action type and entity type are required")
	ErrMissingActor     = apperror.Unauthorized("missing_actor", "an authenticated actor is required")
	ErrInvalidPageToken = apperror.Validation("invalid_page_token", "invalid page token")
	ErrInvalidTimeRange = apperror.Validation("invalid_time_range", "from must not be after to")
)
