package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/audit/domain"
	"github.com/merceton/merceton/internal/audit/masking"
	"github.com/merceton/merceton/internal/auditcontext"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/observability/metrics"
	"github.com/merceton/merceton/internal/validation"
	"github.com/merceton/merceton/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("audit.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, action domain.Action, mutate domain.MutationFunc) error {
	// Nothing touches the database until the action and actor are valid.
	reason, err := validation.Reason(action.Reason)
	if err != nil {
		return err
	}
	action.Reason = reason
	if err := validateAction(action); err != nil {
		return err
	}
	actorType, actorID := auditcontext.ActorFromContext(ctx)
	if strings.TrimSpace(actorID) == "" {
		return domain.ErrMissingActor
	}

	var entry *domain.AdminAuditLog
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		change, err := mutate(tx)
		if err != nil {
			return err
		}

		if change.EntityID != "" {
			action.EntityID = change.EntityID
		}
		entry, err = s.buildEntry(ctx, domain.Entry{
			Action:     action,
			ActorType:  actorType,
			ActorID:    actorID,
			ActorEmail: auditcontext.ActorEmailFromContext(ctx),
			Before:     change.Before,
			After:      change.After,
		})
		if err != nil {
			return err
		}
		return s.repo.Insert(ctx, tx, entry)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordAuditLog(ctx, entry.ActionType)
	s.log.Info("admin action recorded",
		zap.String("action_type", entry.ActionType),
		zap.String("entity_type", entry.EntityType),
		zap.String("entity_id", entry.EntityID),
		zap.String("actor_id", entry.ActorID),
	)
	return nil
}

func (s *Service) Log(ctx context.Context, db *gorm.DB, entry domain.Entry) error {
	reason, err := validation.Reason(entry.Reason)
	if err != nil {
		return err
	}
	entry.Reason = reason
	if err := validateAction(entry.Action); err != nil {
		return err
	}
	if strings.TrimSpace(entry.ActorID) == "" {
		entry.ActorType, entry.ActorID = auditcontext.ActorFromContext(ctx)
		entry.ActorEmail = auditcontext.ActorEmailFromContext(ctx)
	}
	if strings.TrimSpace(entry.ActorID) == "" {
		return domain.ErrMissingActor
	}

	row, err := s.buildEntry(ctx, entry)
	if err != nil {
		return err
	}
	if db == nil {
		db = s.db
	}
	if err := s.repo.Insert(ctx, db, row); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action_type", row.ActionType), zap.Error(err))
		return err
	}
	s.metrics.RecordAuditLog(ctx, row.ActionType)
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.From != nil && req.To != nil && req.From.After(*req.To) {
		return domain.ListResponse{}, domain.ErrInvalidTimeRange
	}
	afterID, err := pagination.CursorID(strings.TrimSpace(req.PageToken))
	if err != nil {
		return domain.ListResponse{}, domain.ErrInvalidPageToken
	}

	limit := req.Size()
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		ActionType: req.ActionType,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		ActorID:    req.ActorID,
		From:       req.From,
		To:         req.To,
		AfterID:    afterID,
		Limit:      limit,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	page, info := pagination.Trim(items, limit, func(l domain.AdminAuditLog) int64 { return l.ID.Int64() })
	if page == nil {
		page = []domain.AdminAuditLog{}
	}
	return domain.ListResponse{PageInfo: info, AuditLogs: page}, nil
}

func (s *Service) buildEntry(ctx context.Context, entry domain.Entry) (*domain.AdminAuditLog, error) {
	before, err := snapshot(entry.Before)
	if err != nil {
		return nil, fmt.Errorf("audit before snapshot: %w", err)
	}
	after, err := snapshot(entry.After)
	if err != nil {
		return nil, fmt.Errorf("audit after snapshot: %w", err)
	}

	actorType := strings.TrimSpace(entry.ActorType)
	if actorType == "" {
		actorType = auditcontext.ActorTypeAdmin
	}

	return &domain.AdminAuditLog{
		ID:         s.genID.Generate(),
		ActorType:  actorType,
		ActorID:    strings.TrimSpace(entry.ActorID),
		ActorEmail: strings.TrimSpace(entry.ActorEmail),
		ActionType: strings.TrimSpace(entry.ActionType),
		EntityType: strings.TrimSpace(entry.EntityType),
		EntityID:   strings.TrimSpace(entry.EntityID),
		Reason:     entry.Reason,
		Before:     before,
		After:      after,
		RequestID:  auditcontext.RequestIDFromContext(ctx),
		IPAddress:  auditcontext.IPAddressFromContext(ctx),
		UserAgent:  truncate(auditcontext.UserAgentFromContext(ctx), 512),
		CreatedAt:  s.clock.Now().UTC(),
	}, nil
}

func validateAction(action domain.Action) error {
	if strings.TrimSpace(action.ActionType) == "" || strings.TrimSpace(action.EntityType) == "" {
		return domain.ErrInvalidAction
	}
	return nil
}

// snapshot renders v as a JSON object. Non-object values are stored under
// "value".
func snapshot(v any) (datatypes.JSONMap, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, err
		}
		out = map[string]any{"value": value}
	}
	return datatypes.JSONMap(masking.MaskSensitive(out)), nil
}

// truncate caps value at max bytes without splitting a rune.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
