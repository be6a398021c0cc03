package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/merceton/merceton/internal/audit/domain"
	"github.com/merceton/merceton/internal/clock"
	ledgerdomain "github.com/merceton/merceton/internal/ledger/domain"
	obsmetrics "github.com/merceton/merceton/internal/observability/metrics"
	"github.com/merceton/merceton/internal/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       ledgerdomain.Repository
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       ledgerdomain.Repository
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) AppendOrderEntries(ctx context.Context, tx *gorm.DB, posting ledgerdomain.OrderPosting) ([]ledgerdomain.LedgerEntry, error) {
	if posting.OrderID == 0 || posting.MerchantID == 0 {
		return nil, ledgerdomain.ErrInvalidPosting
	}
	if posting.GrossPaise-posting.FeePaise != posting.NetPaise {
		return nil, ledgerdomain.ErrUnbalancedOrder.WithMessage(
			"order %s does not balance: gross %d - fee %d != net %d",
			posting.OrderNumber, posting.GrossPaise, posting.FeePaise, posting.NetPaise,
		)
	}

	at := posting.OccurredAt
	if at.IsZero() {
		at = s.clock.Now()
	}
	orderID := posting.OrderID
	entry := func(t ledgerdomain.EntryType, amount int64, desc string) ledgerdomain.LedgerEntry {
		return ledgerdomain.LedgerEntry{
			ID:          s.genID.Generate(),
			MerchantID:  posting.MerchantID,
			OrderID:     &orderID,
			Type:        t,
			Amount:      amount,
			Status:      ledgerdomain.StatusPending,
			Description: desc,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
	}
	entries := []ledgerdomain.LedgerEntry{
		entry(ledgerdomain.EntryGrossOrderValue, posting.GrossPaise, "Gross value of "+posting.OrderNumber),
		entry(ledgerdomain.EntryPlatformFee, -posting.FeePaise, "Platform fee for "+posting.OrderNumber),
		entry(ledgerdomain.EntryOrderPayout, posting.NetPaise, "Payout for "+posting.OrderNumber),
	}

	if err := s.repo.Insert(ctx, tx, entries); err != nil {
		return nil, fmt.Errorf("append order ledger entries: %w", err)
	}
	return entries, nil
}

func (s *Service) TransitionOrderEntries(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, from, to ledgerdomain.EntryStatus) (int64, error) {
	if from != ledgerdomain.StatusPending || (to != ledgerdomain.StatusCompleted && to != ledgerdomain.StatusFailed) {
		return 0, ledgerdomain.ErrInvalidTransition
	}
	if tx == nil {
		tx = s.db
	}
	n, err := s.repo.UpdateStatusByOrder(ctx, tx, orderID, from, to, s.clock.Now())
	if err != nil {
		return 0, err
	}
	s.log.Debug("ledger entries transitioned",
		zap.String("order_id", orderID.String()),
		zap.String("to", string(to)),
		zap.Int64("count", n),
	)
	return n, nil
}

func (s *Service) ListByRange(ctx context.Context, db *gorm.DB, filter ledgerdomain.ListFilter) ([]ledgerdomain.LedgerEntry, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, ledgerdomain.ErrInvalidRange
	}
	if db == nil {
		db = s.db
	}
	return s.repo.List(ctx, db, filter)
}

func (s *Service) ListByOrder(ctx context.Context, orderID snowflake.ID) ([]ledgerdomain.LedgerEntry, error) {
	return s.repo.List(ctx, s.db, ledgerdomain.ListFilter{OrderIDs: []snowflake.ID{orderID}})
}

func (s *Service) MerchantBalance(ctx context.Context, merchantID snowflake.ID) (ledgerdomain.Balance, error) {
	return s.balance(ctx, s.db, merchantID)
}

func (s *Service) balance(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (ledgerdomain.Balance, error) {
	available, err := s.repo.SumByMerchant(ctx, db, merchantID, []ledgerdomain.EntryType{
		ledgerdomain.EntryOrderPayout,
		ledgerdomain.EntryPayout,
		ledgerdomain.EntryAdjustment,
	}, ledgerdomain.StatusCompleted)
	if err != nil {
		return ledgerdomain.Balance{}, err
	}
	pending, err := s.repo.SumByMerchant(ctx, db, merchantID, []ledgerdomain.EntryType{
		ledgerdomain.EntryOrderPayout,
	}, ledgerdomain.StatusPending)
	if err != nil {
		return ledgerdomain.Balance{}, err
	}
	return ledgerdomain.Balance{MerchantID: merchantID, AvailablePaise: available, PendingPaise: pending}, nil
}

func (s *Service) RecordPayout(ctx context.Context, req ledgerdomain.PayoutRequest) (*ledgerdomain.LedgerEntry, error) {
	if req.MerchantID == 0 {
		return nil, ledgerdomain.ErrInvalidPosting
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var created ledgerdomain.LedgerEntry
	err := s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: "ledger.record_payout",
		EntityType: "ledger_entry",
		EntityID:   req.MerchantID.String(),
		Reason:     req.Reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		before, err := s.balance(ctx, tx, req.MerchantID)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if req.AmountPaise > before.AvailablePaise {
			return auditdomain.Change{}, ledgerdomain.ErrInsufficientFunds
		}

		now := s.clock.Now()
		created = ledgerdomain.LedgerEntry{
			ID:          s.genID.Generate(),
			MerchantID:  req.MerchantID,
			Type:        ledgerdomain.EntryPayout,
			Amount:      -req.AmountPaise,
			Status:      ledgerdomain.StatusCompleted,
			Description: "Payout " + req.Reference,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, tx, []ledgerdomain.LedgerEntry{created}); err != nil {
			return auditdomain.Change{}, err
		}
		after := before
		after.AvailablePaise -= req.AmountPaise
		return auditdomain.Change{EntityID: created.ID.String(), Before: before, After: after}, nil
	})
	if err != nil {
		return nil, err
	}
	s.obsMetrics.RecordLedgerEntries(ctx, string(ledgerdomain.EntryPayout), 1)
	return &created, nil
}
