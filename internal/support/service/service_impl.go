package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	auditdomain "github.com/merceton/merceton/internal/audit/domain"
	"github.com/merceton/merceton/internal/clock"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	"github.com/merceton/merceton/internal/support/domain"
	"github.com/merceton/merceton/internal/validation"
	"github.com/merceton/merceton/pkg/db/pagination"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const referencePrefix = "TKT-"

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	MerchantRepo merchantdomain.Repository
	AuditSvc     auditdomain.Service
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	merchantRepo merchantdomain.Repository
	auditSvc     auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("support.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		merchantRepo: p.MerchantRepo,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) Open(ctx context.Context, req domain.OpenRequest) (*domain.Ticket, error) {
	if req.MerchantID == 0 {
		return nil, merchantdomain.ErrInvalidID
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	merchant, err := s.merchantRepo.FindByID(ctx, s.db, req.MerchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, domain.ErrMerchantNotFound
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	now := s.clock.Now()
	ticket := &domain.Ticket{
		ID:         s.genID.Generate(),
		Reference:  newReference(now),
		MerchantID: merchant.ID,
		Subject:    strings.TrimSpace(req.Subject),
		Status:     domain.TicketOpen,
		Priority:   priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	msg := domain.TicketMessage{
		ID:         s.genID.Generate(),
		TicketID:   ticket.ID,
		AuthorType: domain.AuthorMerchant,
		AuthorID:   merchant.ID.String(),
		Body:       strings.TrimSpace(req.Body),
		CreatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, ticket); err != nil {
			return err
		}
		return s.repo.InsertMessage(ctx, tx, &msg)
	})
	if err != nil {
		return nil, err
	}
	ticket.Messages = []domain.TicketMessage{msg}

	s.log.Info("support ticket opened",
		zap.String("reference", ticket.Reference),
		zap.String("merchant_id", ticket.MerchantID.String()),
	)
	return ticket, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Ticket, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	ticket, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrNotFound
	}
	msgs, err := s.repo.Messages(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	ticket.Messages = msgs
	return ticket, nil
}

// Reply appends a message. A merchant reply hands the ticket back to support
// and an admin reply waits on the merchant.
func (s *Service) Reply(ctx context.Context, req domain.ReplyRequest) (*domain.TicketMessage, error) {
	if req.TicketID == 0 {
		return nil, domain.ErrInvalidID
	}
	if req.AuthorType != domain.AuthorMerchant && req.AuthorType != domain.AuthorAdmin {
		return nil, domain.ErrInvalidAuthor
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var msg *domain.TicketMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := s.repo.FindByID(ctx, tx, req.TicketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return domain.ErrNotFound
		}
		if ticket.Status == domain.TicketClosed {
			return domain.ErrClosed
		}

		now := s.clock.Now()
		next := domain.TicketOpen
		if req.AuthorType == domain.AuthorAdmin {
			next = domain.TicketPending
		}
		ok, err := s.repo.UpdateStatus(ctx, tx, ticket.ID, ticket.Status, next, nil, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrClosed
		}

		msg = &domain.TicketMessage{
			ID:         s.genID.Generate(),
			TicketID:   ticket.ID,
			AuthorType: req.AuthorType,
			AuthorID:   req.AuthorID,
			Body:       strings.TrimSpace(req.Body),
			CreatedAt:  now,
		}
		return s.repo.InsertMessage(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	afterID, err := pagination.CursorID(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, apperror.FieldValidation("page_token", "invalid_page_token", "page token is invalid")
	}

	limit := req.Size()
	tickets, err := s.repo.List(ctx, s.db, domain.ListFilter{
		MerchantID: req.MerchantID,
		Status:     req.Status,
		AfterID:    snowflake.ID(afterID),
		Limit:      limit + 1,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	tickets, pageInfo := pagination.Trim(tickets, limit, func(t domain.Ticket) int64 { return t.ID.Int64() })
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return domain.ListResponse{Tickets: tickets, PageInfo: pageInfo}, nil
}

func (s *Service) Close(ctx context.Context, req domain.StatusRequest) (*domain.Ticket, error) {
	return s.transition(ctx, req, "support_ticket.close", func(t *domain.Ticket) (domain.TicketStatus, error) {
		if t.Status == domain.TicketClosed {
			return "", domain.ErrAlreadyClosed
		}
		return domain.TicketClosed, nil
	})
}

func (s *Service) Reopen(ctx context.Context, req domain.StatusRequest) (*domain.Ticket, error) {
	return s.transition(ctx, req, "support_ticket.reopen", func(t *domain.Ticket) (domain.TicketStatus, error) {
		if t.Status != domain.TicketClosed {
			return "", domain.ErrNotClosed
		}
		return domain.TicketOpen, nil
	})
}

func (s *Service) transition(ctx context.Context, req domain.StatusRequest, action string, next func(*domain.Ticket) (domain.TicketStatus, error)) (*domain.Ticket, error) {
	if req.TicketID == 0 {
		return nil, domain.ErrInvalidID
	}

	var updated domain.Ticket
	err := s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: action,
		EntityType: "support_ticket",
		EntityID:   req.TicketID.String(),
		Reason:     req.Reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		ticket, err := s.repo.FindByID(ctx, tx, req.TicketID)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if ticket == nil {
			return auditdomain.Change{}, domain.ErrNotFound
		}
		to, err := next(ticket)
		if err != nil {
			return auditdomain.Change{}, err
		}
		before := map[string]any{"status": ticket.Status, "reference": ticket.Reference}

		now := s.clock.Now()
		var closedAt *time.Time
		if to == domain.TicketClosed {
			closedAt = &now
		}
		ok, err := s.repo.UpdateStatus(ctx, tx, ticket.ID, ticket.Status, to, closedAt, now)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if !ok {
			return auditdomain.Change{}, apperror.Conflict("ticket_changed", "ticket changed concurrently, retry")
		}
		ticket.Status = to
		ticket.ClosedAt = closedAt
		ticket.UpdatedAt = now
		updated = *ticket
		return auditdomain.Change{
			Before: before,
			After:  map[string]any{"status": ticket.Status, "reference": ticket.Reference},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func newReference(at time.Time) string {
	return referencePrefix + ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}
