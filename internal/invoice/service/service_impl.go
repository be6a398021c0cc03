package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	auditdomain "github.com/merceton/merceton/internal/audit/domain"
	billingprofiledomain "github.com/merceton/merceton/internal/billingprofile/domain"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/config"
	invoicedomain "github.com/merceton/merceton/internal/invoice/domain"
	"github.com/merceton/merceton/internal/invoice/gst"
	ledgerdomain "github.com/merceton/merceton/internal/ledger/domain"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	obsmetrics "github.com/merceton/merceton/internal/observability/metrics"
	orderdomain "github.com/merceton/merceton/internal/order/domain"
	"github.com/merceton/merceton/internal/validation"
	"github.com/merceton/merceton/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// errRaced rolls back a transaction that lost a uniqueness race so the
// allocated invoice number is not consumed.
var errRaced = errors.New("invoice already exists")

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Settings     *config.BillingSettingsHolder
	Repo         invoicedomain.Repository
	OrderRepo    orderdomain.Repository
	MerchantRepo merchantdomain.Repository
	LedgerSvc    ledgerdomain.Service
	ProfileSvc   billingprofiledomain.Service
	Profiles     billingprofiledomain.ProfileAccessor
	AuditSvc     auditdomain.Service
	Notifier     invoicedomain.FailureNotifier `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics           `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	settings     *config.BillingSettingsHolder
	repo         invoicedomain.Repository
	orderRepo    orderdomain.Repository
	merchantRepo merchantdomain.Repository
	ledgerSvc    ledgerdomain.Service
	profileSvc   billingprofiledomain.Service
	profiles     billingprofiledomain.ProfileAccessor
	auditSvc     auditdomain.Service
	notifier     invoicedomain.FailureNotifier
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("invoice.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		settings:     p.Settings,
		repo:         p.Repo,
		orderRepo:    p.OrderRepo,
		merchantRepo: p.MerchantRepo,
		ledgerSvc:    p.LedgerSvc,
		profileSvc:   p.ProfileSvc,
		profiles:     p.Profiles,
		auditSvc:     p.AuditSvc,
		notifier:     p.Notifier,
		obsMetrics:   p.ObsMetrics,
	}
}

func (s *Service) IssueOrderInvoice(ctx context.Context, orderID snowflake.ID) (*invoicedomain.OrderInvoice, error) {
	if orderID == 0 {
		return nil, invoicedomain.ErrInvalidID
	}
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, invoicedomain.ErrOrderNotFound
	}
	if order.Stage == orderdomain.StageCancelled {
		return nil, invoicedomain.ErrOrderCancelled
	}
	existing, err := s.repo.FindOrderInvoiceByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var issued *invoicedomain.OrderInvoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := s.profiles.MerchantProfile(ctx, tx, order.MerchantID)
		if err != nil {
			return err
		}
		items, err := s.orderRepo.ItemsByOrderIDs(ctx, tx, []snowflake.ID{order.ID})
		if err != nil {
			return err
		}

		var total gst.Breakdown
		for _, item := range items {
			total = total.Add(gst.Split(item.LineTotalPaise, item.GSTRateBps, profile.StateCode, order.ShippingStateCode, true))
		}

		now := s.clock.Now()
		alloc, err := s.profileSvc.Allocate(ctx, tx, profile.ID, now)
		if err != nil {
			return err
		}
		inv := &invoicedomain.OrderInvoice{
			ID:               s.genID.Generate(),
			InvoiceNumber:    alloc.Number,
			BillingProfileID: profile.ID,
			OrderID:          order.ID,
			OrderNumber:      order.OrderNumber,
			MerchantID:       order.MerchantID,
			SellerStateCode:  profile.StateCode,
			BuyerStateCode:   order.ShippingStateCode,
			TaxablePaise:     total.Taxable,
			CGSTPaise:        total.CGST,
			SGSTPaise:        total.SGST,
			IGSTPaise:        total.IGST,
			TotalPaise:       total.Total,
			Status:           invoicedomain.OrderInvoiceIssued,
			IssuedAt:         now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.repo.InsertOrderInvoice(ctx, tx, inv); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errRaced
			}
			return err
		}
		issued = inv
		return nil
	})
	if errors.Is(err, errRaced) {
		return s.GetOrderInvoice(ctx, orderID)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("order invoice issued",
		zap.String("invoice_number", issued.InvoiceNumber),
		zap.String("order_id", issued.OrderID.String()),
	)
	return issued, nil
}

func (s *Service) GetOrderInvoice(ctx context.Context, orderID snowflake.ID) (*invoicedomain.OrderInvoice, error) {
	if orderID == 0 {
		return nil, invoicedomain.ErrInvalidID
	}
	inv, err := s.repo.FindOrderInvoiceByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *Service) CancelOrderInvoice(ctx context.Context, req invoicedomain.StatusRequest) (*invoicedomain.OrderInvoice, error) {
	if req.InvoiceID == 0 {
		return nil, invoicedomain.ErrInvalidID
	}

	var updated invoicedomain.OrderInvoice
	err := s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: "order_invoice.cancel",
		EntityType: "order_invoice",
		EntityID:   req.InvoiceID.String(),
		Reason:     req.Reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		inv, err := s.repo.FindOrderInvoiceByID(ctx, tx, req.InvoiceID)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if inv == nil {
			return auditdomain.Change{}, invoicedomain.ErrInvoiceNotFound
		}
		if inv.Status == invoicedomain.OrderInvoiceCancelled {
			return auditdomain.Change{}, invoicedomain.ErrAlreadyCancelled
		}
		before := map[string]any{"status": inv.Status}

		now := s.clock.Now()
		ok, err := s.repo.CancelOrderInvoice(ctx, tx, inv.ID, now)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if !ok {
			return auditdomain.Change{}, invoicedomain.ErrAlreadyCancelled
		}
		inv.Status = invoicedomain.OrderInvoiceCancelled
		inv.CancelledAt = &now
		inv.UpdatedAt = now
		updated = *inv
		return auditdomain.Change{
			EntityID: inv.ID.String(),
			Before:   before,
			After:    map[string]any{"status": inv.Status, "invoice_number": inv.InvoiceNumber},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) GenerateWeeklyInvoice(ctx context.Context, req invoicedomain.GenerateRequest) (*invoicedomain.PlatformInvoice, error) {
	inv, _, err := s.generate(ctx, req)
	return inv, err
}

func (s *Service) AdminGenerateInvoice(ctx context.Context, req invoicedomain.GenerateRequest) (*invoicedomain.PlatformInvoice, error) {
	if err := validatePeriod(req); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindPlatformInvoiceByPeriod(ctx, s.db, req.MerchantID, req.PeriodStart.UTC(), req.PeriodEnd.UTC())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.withLines(ctx, existing)
	}

	var created *invoicedomain.PlatformInvoice
	err = s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: "platform_invoice.generate",
		EntityType: "platform_invoice",
		Reason:     req.Reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		inv, err := s.generateInTx(ctx, tx, req)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if inv == nil {
			return auditdomain.Change{}, invoicedomain.ErrNoFees
		}
		created = inv
		return auditdomain.Change{EntityID: inv.ID.String(), After: invoiceSnapshot(inv)}, nil
	})
	if errors.Is(err, errRaced) {
		return s.findByPeriod(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	s.obsMetrics.RecordPlatformInvoice(ctx, string(created.Status))
	return created, nil
}

// generate reports whether a new invoice was written.
func (s *Service) generate(ctx context.Context, req invoicedomain.GenerateRequest) (*invoicedomain.PlatformInvoice, bool, error) {
	if err := validatePeriod(req); err != nil {
		return nil, false, err
	}
	existing, err := s.repo.FindPlatformInvoiceByPeriod(ctx, s.db, req.MerchantID, req.PeriodStart.UTC(), req.PeriodEnd.UTC())
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		inv, err := s.withLines(ctx, existing)
		return inv, false, err
	}

	var created *invoicedomain.PlatformInvoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.generateInTx(ctx, tx, req)
		created = inv
		return err
	})
	if errors.Is(err, errRaced) {
		inv, err := s.findByPeriod(ctx, req)
		return inv, false, err
	}
	if err != nil {
		return nil, false, err
	}
	if created == nil {
		return nil, false, nil
	}

	s.obsMetrics.RecordPlatformInvoice(ctx, string(created.Status))
	s.log.Info("platform invoice generated",
		zap.String("invoice_number", created.InvoiceNumber),
		zap.String("merchant_id", created.MerchantID.String()),
		zap.Int64("fee_total_paise", created.FeeTotalPaise),
	)
	return created, true, nil
}

func (s *Service) generateInTx(ctx context.Context, tx *gorm.DB, req invoicedomain.GenerateRequest) (*invoicedomain.PlatformInvoice, error) {
	periodStart, periodEnd := req.PeriodStart.UTC(), req.PeriodEnd.UTC()

	merchant, err := s.merchantRepo.FindByID(ctx, tx, req.MerchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, invoicedomain.ErrMerchantNotFound
	}

	merchantID := merchant.ID
	entries, err := s.ledgerSvc.ListByRange(ctx, tx, ledgerdomain.ListFilter{
		MerchantID:    &merchantID,
		Types:         []ledgerdomain.EntryType{ledgerdomain.EntryPlatformFee},
		ExcludeStatus: []ledgerdomain.EntryStatus{ledgerdomain.StatusFailed},
		From:          periodStart,
		To:            periodEnd,
	})
	if err != nil {
		return nil, err
	}

	feeByOrder := make(map[snowflake.ID]int64)
	var orderIDs []snowflake.ID
	var feeTotal int64
	for _, entry := range entries {
		if entry.OrderID == nil {
			continue
		}
		if _, seen := feeByOrder[*entry.OrderID]; !seen {
			orderIDs = append(orderIDs, *entry.OrderID)
		}
		// Fees are stored as debits.
		feeByOrder[*entry.OrderID] += -entry.Amount
		feeTotal += -entry.Amount
	}
	if feeTotal <= 0 {
		return nil, nil
	}

	orders, err := s.orderRepo.FindByIDs(ctx, tx, orderIDs)
	if err != nil {
		return nil, err
	}
	orderNumbers := make(map[snowflake.ID]string, len(orders))
	for _, o := range orders {
		orderNumbers[o.ID] = o.OrderNumber
	}

	platform, err := s.profiles.PlatformProfile(ctx, tx)
	if err != nil {
		return nil, err
	}
	onboarding, err := s.merchantRepo.FindOnboarding(ctx, tx, merchant.ID)
	if err != nil {
		return nil, err
	}
	buyer := map[string]any{"name": merchant.Name, "merchant_id": merchant.ID.String()}
	buyerState := ""
	if onboarding != nil {
		buyerState = onboarding.StateCode
		buyer["legal_name"] = onboarding.LegalName
		buyer["gstin"] = onboarding.GSTIN
		buyer["state_code"] = onboarding.StateCode
		buyer["address"] = onboarding.Address
	}

	settings := s.settings.Get()
	tax := gst.Split(feeTotal, settings.FeeGSTRateBps, platform.StateCode, buyerState, false)

	now := s.clock.Now()
	alloc, err := s.profileSvc.Allocate(ctx, tx, platform.ID, now)
	if err != nil {
		return nil, err
	}

	inv := &invoicedomain.PlatformInvoice{
		ID:               s.genID.Generate(),
		InvoiceNumber:    alloc.Number,
		BillingProfileID: platform.ID,
		MerchantID:       merchant.ID,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		FeeTotalPaise:    feeTotal,
		TaxablePaise:     tax.Taxable,
		CGSTPaise:        tax.CGST,
		SGSTPaise:        tax.SGST,
		IGSTPaise:        tax.IGST,
		TotalPaise:       tax.Total,
		Status:           invoicedomain.PlatformInvoiceIssued,
		IssuedAt:         now,
		DueAt:            now.AddDate(0, 0, settings.InvoiceDueDays),
		Parties: datatypes.JSONMap{
			"seller": map[string]any{
				"legal_name": platform.LegalName,
				"gstin":      platform.GSTIN,
				"state_code": platform.StateCode,
				"address":    platform.Address,
			},
			"buyer":    buyer,
			"currency": settings.DefaultCurrency,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	inserted, err := s.repo.InsertPlatformInvoice(ctx, tx, inv)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, errRaced
		}
		return nil, err
	}
	if !inserted {
		return nil, errRaced
	}

	sort.Slice(orderIDs, func(i, j int) bool { return orderIDs[i] < orderIDs[j] })
	lines := make([]invoicedomain.PlatformInvoiceLine, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		number := orderNumbers[orderID]
		lines = append(lines, invoicedomain.PlatformInvoiceLine{
			ID:          s.genID.Generate(),
			InvoiceID:   inv.ID,
			OrderID:     orderID,
			OrderNumber: number,
			Description: fmt.Sprintf("Platform fee for order %s", number),
			FeePaise:    feeByOrder[orderID],
			CreatedAt:   now,
		})
	}
	if err := s.repo.InsertPlatformInvoiceLines(ctx, tx, lines); err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

func (s *Service) GenerateWeeklyInvoices(ctx context.Context, periodStart, periodEnd time.Time) (invoicedomain.GenerationSummary, error) {
	summary := invoicedomain.GenerationSummary{PeriodStart: periodStart.UTC(), PeriodEnd: periodEnd.UTC()}
	if !periodEnd.After(periodStart) {
		return summary, invoicedomain.ErrInvalidPeriod
	}

	merchants, err := s.merchantRepo.ListActive(ctx, s.db)
	if err != nil {
		return summary, err
	}

	for _, merchant := range merchants {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		inv, created, err := s.generate(ctx, invoicedomain.GenerateRequest{
			MerchantID:  merchant.ID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		})
		switch {
		case err != nil:
			s.log.Error("weekly invoice failed",
				zap.String("merchant_id", merchant.ID.String()),
				zap.Error(err),
			)
			s.obsMetrics.RecordPlatformInvoice(ctx, "failed")
			summary.Failed = append(summary.Failed, invoicedomain.MerchantFailure{
				MerchantID: merchant.ID,
				Error:      apperror.Message(err),
			})
			if s.notifier != nil {
				s.notifier.InvoiceGenerationFailed(ctx, merchant.ID, periodStart, periodEnd, err)
			}
		case inv == nil || !created:
			summary.Skipped++
		default:
			summary.Generated++
		}
	}

	s.log.Info("weekly invoice run finished",
		zap.Time("period_start", summary.PeriodStart),
		zap.Time("period_end", summary.PeriodEnd),
		zap.Int("generated", summary.Generated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", len(summary.Failed)),
	)
	return summary, nil
}

func (s *Service) GetPlatformInvoice(ctx context.Context, id snowflake.ID) (*invoicedomain.PlatformInvoice, error) {
	if id == 0 {
		return nil, invoicedomain.ErrInvalidID
	}
	inv, err := s.repo.FindPlatformInvoice(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return s.withLines(ctx, inv)
}

func (s *Service) ListPlatformInvoices(ctx context.Context, req invoicedomain.ListRequest) ([]invoicedomain.PlatformInvoice, error) {
	items, err := s.repo.ListPlatformInvoices(ctx, s.db, req)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []invoicedomain.PlatformInvoice{}
	}
	return items, nil
}

func (s *Service) CancelPlatformInvoice(ctx context.Context, req invoicedomain.StatusRequest) (*invoicedomain.PlatformInvoice, error) {
	return s.transition(ctx, req, "platform_invoice.cancel", invoicedomain.PlatformInvoiceCancelled)
}

func (s *Service) MarkPlatformInvoicePaid(ctx context.Context, req invoicedomain.StatusRequest) (*invoicedomain.PlatformInvoice, error) {
	return s.transition(ctx, req, "platform_invoice.mark_paid", invoicedomain.PlatformInvoicePaid)
}

// transition flips an ISSUED invoice to a terminal status. Invoices are never
// deleted.
func (s *Service) transition(ctx context.Context, req invoicedomain.StatusRequest, action string, to invoicedomain.PlatformInvoiceStatus) (*invoicedomain.PlatformInvoice, error) {
	if req.InvoiceID == 0 {
		return nil, invoicedomain.ErrInvalidID
	}

	var updated invoicedomain.PlatformInvoice
	err := s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: action,
		EntityType: "platform_invoice",
		EntityID:   req.InvoiceID.String(),
		Reason:     req.Reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		inv, err := s.repo.FindPlatformInvoice(ctx, tx, req.InvoiceID)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if inv == nil {
			return auditdomain.Change{}, invoicedomain.ErrInvoiceNotFound
		}
		if inv.Status != invoicedomain.PlatformInvoiceIssued {
			return auditdomain.Change{}, invoicedomain.ErrInvalidTransition.WithMessage(
				"cannot move invoice %s from %s to %s", inv.InvoiceNumber, inv.Status, to,
			)
		}
		before := invoiceSnapshot(inv)

		now := s.clock.Now()
		inv.Status = to
		inv.UpdatedAt = now
		switch to {
		case invoicedomain.PlatformInvoicePaid:
			inv.PaidAt = &now
		case invoicedomain.PlatformInvoiceCancelled:
			inv.CancelledAt = &now
		}
		ok, err := s.repo.UpdatePlatformInvoiceStatus(ctx, tx, inv, invoicedomain.PlatformInvoiceIssued)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if !ok {
			return auditdomain.Change{}, invoicedomain.ErrInvalidTransition
		}
		updated = *inv
		return auditdomain.Change{EntityID: inv.ID.String(), Before: before, After: invoiceSnapshot(inv)}, nil
	})
	if err != nil {
		return nil, err
	}
	s.obsMetrics.RecordPlatformInvoice(ctx, string(to))
	return &updated, nil
}

func (s *Service) findByPeriod(ctx context.Context, req invoicedomain.GenerateRequest) (*invoicedomain.PlatformInvoice, error) {
	inv, err := s.repo.FindPlatformInvoiceByPeriod(ctx, s.db, req.MerchantID, req.PeriodStart.UTC(), req.PeriodEnd.UTC())
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return s.withLines(ctx, inv)
}

func (s *Service) withLines(ctx context.Context, inv *invoicedomain.PlatformInvoice) (*invoicedomain.PlatformInvoice, error) {
	lines, err := s.repo.ListPlatformInvoiceLines(ctx, s.db, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

func validatePeriod(req invoicedomain.GenerateRequest) error {
	if req.MerchantID == 0 {
		return invoicedomain.ErrMerchantNotFound
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return invoicedomain.ErrInvalidPeriod
	}
	return validation.Struct(req)
}

func invoiceSnapshot(inv *invoicedomain.PlatformInvoice) map[string]any {
	return map[string]any{
		"invoice_number":  inv.InvoiceNumber,
		"merchant_id":     inv.MerchantID.String(),
		"status":          inv.Status,
		"fee_total_paise": inv.FeeTotalPaise,
		"total_paise":     inv.TotalPaise,
		"period_start":    inv.PeriodStart.Format(time.RFC3339),
		"period_end":      inv.PeriodEnd.Format(time.RFC3339),
	}
}
