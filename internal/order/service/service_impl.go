package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	catalogdomain "github.com/merceton/merceton/internal/catalog/domain"
	"github.com/merceton/merceton/internal/clock"
	ledgerdomain "github.com/merceton/merceton/internal/ledger/domain"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	obsmetrics "github.com/merceton/merceton/internal/observability/metrics"
	"github.com/merceton/merceton/internal/order/domain"
	pricingdomain "github.com/merceton/merceton/internal/pricing/domain"
	"github.com/merceton/merceton/internal/validation"
	"github.com/merceton/merceton/pkg/db"
	"github.com/merceton/merceton/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	MerchantRepo merchantdomain.Repository
	ProductRepo  catalogdomain.Repository
	Resolver     pricingdomain.Resolver
	LedgerSvc    ledgerdomain.Service
	Notifier     domain.Notifier     `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	merchantRepo merchantdomain.Repository
	productRepo  catalogdomain.Repository
	resolver     pricingdomain.Resolver
	ledgerSvc    ledgerdomain.Service
	notifier     domain.Notifier
	obsMetrics   *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("order.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		merchantRepo: p.MerchantRepo,
		productRepo:  p.ProductRepo,
		resolver:     p.Resolver,
		ledgerSvc:    p.LedgerSvc,
		notifier:     p.Notifier,
		obsMetrics:   p.ObsMetrics,
	}
}

type lineRequest struct {
	product  catalogdomain.Product
	quantity int64
}

func (s *Service) CreateOrder(ctx context.Context, input domain.CreateOrderInput) domain.CreateOrderResult {
	if err := validation.Struct(input); err != nil {
		s.obsMetrics.RecordOrderFailure(ctx, "validation")
		return domain.Failed(err)
	}

	merchant, err := s.merchantRepo.FindByID(ctx, s.db, input.MerchantID)
	if err != nil {
		return s.internalFailure(ctx, input, err)
	}
	if merchant == nil || merchant.StoreSlug != input.StoreSlug {
		s.obsMetrics.RecordOrderFailure(ctx, "merchant_not_found")
		return domain.Failed(domain.ErrMerchantNotFound)
	}
	if !merchant.IsActive || merchant.AccountStatus != merchantdomain.AccountStatusActive {
		s.obsMetrics.RecordOrderFailure(ctx, "merchant_inactive")
		return domain.Failed(domain.ErrMerchantInactive)
	}

	lines, err := s.checkProducts(ctx, merchant.ID, input.Items)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInternal {
			return s.internalFailure(ctx, input, err)
		}
		s.obsMetrics.RecordOrderFailure(ctx, string(apperror.KindOf(err)))
		return domain.Failed(err)
	}

	var gross int64
	for _, line := range lines {
		gross += line.product.PricePaise * line.quantity
	}

	now := s.clock.Now()
	order := &domain.Order{
		ID:                s.genID.Generate(),
		MerchantID:        merchant.ID,
		StoreSlug:         merchant.StoreSlug,
		CustomerName:      input.CustomerName,
		CustomerEmail:     input.CustomerEmail,
		CustomerPhone:     input.CustomerPhone,
		ShippingAddress:   input.ShippingAddress,
		ShippingStateCode: input.ShippingStateCode,
		PaymentMethod:     input.PaymentMethod,
		GrossAmount:       gross,
		Stage:             domain.StageNew,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		feeCfg, err := s.resolver.ResolveWithDB(ctx, tx, merchant.ID)
		if err != nil {
			return err
		}
		order.PlatformFee, order.NetPayable = pricingdomain.ComputePlatformFee(gross, feeCfg)

		seq, err := s.nextOrderSequence(ctx, tx, merchant.ID, now.Year())
		if err != nil {
			return err
		}
		order.OrderNumber = domain.FormatOrderNumber(now.Year(), seq)

		if err := s.repo.Insert(ctx, tx, order); err != nil {
			return err
		}

		order.Items = make([]domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			order.Items = append(order.Items, domain.OrderItem{
				ID:             s.genID.Generate(),
				OrderID:        order.ID,
				ProductID:      line.product.ID,
				Name:           line.product.Name,
				HSNCode:        line.product.HSNCode,
				UnitPricePaise: line.product.PricePaise,
				Quantity:       line.quantity,
				GSTRateBps:     line.product.GSTRateBps,
				LineTotalPaise: line.product.PricePaise * line.quantity,
				CreatedAt:      now,
			})
		}
		if err := s.repo.InsertItems(ctx, tx, order.Items); err != nil {
			return err
		}

		order.Payment = &domain.Payment{
			ID:          s.genID.Generate(),
			OrderID:     order.ID,
			Method:      order.PaymentMethod,
			AmountPaise: gross,
			Status:      domain.InitialPaymentStatus(order.PaymentMethod),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.InsertPayment(ctx, tx, order.Payment); err != nil {
			return err
		}

		for _, line := range lines {
			after, err := s.productRepo.AddStock(ctx, tx, line.product.ID, -line.quantity, now)
			if err != nil {
				return err
			}
			if after < 0 {
				return domain.ErrInsufficientStock.WithMessage("insufficient stock for %s", line.product.Name)
			}
		}

		_, err = s.ledgerSvc.AppendOrderEntries(ctx, tx, ledgerdomain.OrderPosting{
			OrderID:     order.ID,
			MerchantID:  order.MerchantID,
			OrderNumber: order.OrderNumber,
			GrossPaise:  order.GrossAmount,
			FeePaise:    order.PlatformFee,
			NetPaise:    order.NetPayable,
			OccurredAt:  now,
		})
		return err
	})
	if err != nil {
		if apperror.IsKind(err, apperror.KindBusinessRule) {
			s.obsMetrics.RecordOrderFailure(ctx, "insufficient_stock")
			return domain.Failed(err)
		}
		return s.internalFailure(ctx, input, err)
	}

	s.obsMetrics.RecordOrderCreated(ctx, string(order.PaymentMethod), order.GrossAmount)
	for _, entryType := range []ledgerdomain.EntryType{
		ledgerdomain.EntryGrossOrderValue,
		ledgerdomain.EntryPlatformFee,
		ledgerdomain.EntryOrderPayout,
	} {
		s.obsMetrics.RecordLedgerEntries(ctx, string(entryType), 1)
	}
	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("merchant_id", order.MerchantID.String()),
		zap.Int64("gross_paise", order.GrossAmount),
		zap.Int64("fee_paise", order.PlatformFee),
	)
	if s.notifier != nil {
		s.notifier.OrderCreated(ctx, merchant, order)
	}

	return domain.CreateOrderResult{Success: true, Order: order}
}

func (s *Service) internalFailure(ctx context.Context, input domain.CreateOrderInput, err error) domain.CreateOrderResult {
	s.log.Error("create order failed",
		zap.String("merchant_id", input.MerchantID.String()),
		zap.Error(err),
	)
	s.obsMetrics.RecordOrderFailure(ctx, "internal")
	return domain.Failed(domain.ErrCreateFailed.WithCause(err))
}

// checkProducts merges repeated products and verifies ownership, availability
// and stock before any write happens.
func (s *Service) checkProducts(ctx context.Context, merchantID snowflake.ID, items []domain.ItemInput) ([]lineRequest, error) {
	quantities := make(map[snowflake.ID]int64, len(items))
	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		if _, seen := quantities[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	products, err := s.productRepo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, apperror.Internal("product_lookup_failed", "product lookup failed").WithCause(err)
	}
	byID := make(map[snowflake.ID]catalogdomain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]lineRequest, 0, len(ids))
	for _, id := range ids {
		product, ok := byID[id]
		if !ok || product.MerchantID != merchantID {
			return nil, domain.ErrProductNotFound.WithMessage("product %s not found", id)
		}
		if !product.IsActive {
			return nil, domain.ErrProductInactive.WithMessage("%s is not available", product.Name)
		}
		qty := quantities[id]
		if qty > product.Stock {
			return nil, domain.ErrInsufficientStock.WithMessage(
				"insufficient stock for %s: requested %d, available %d", product.Name, qty, product.Stock,
			)
		}
		lines = append(lines, lineRequest{product: product, quantity: qty})
	}

	// Stable lock order across concurrent checkouts touching the same products.
	sort.Slice(lines, func(i, j int) bool { return lines[i].product.ID < lines[j].product.ID })
	return lines, nil
}

// nextOrderSequence takes the next number from the (merchant, year) counter
// with one atomic update, creating the row on first use.
func (s *Service) nextOrderSequence(ctx context.Context, tx *gorm.DB, merchantID snowflake.ID, year int) (int64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		seq, ok, err := s.repo.IncrementCounter(ctx, tx, merchantID, year, s.clock.Now())
		if err != nil {
			return 0, domain.ErrCounterFailed.WithCause(err)
		}
		if ok {
			return seq, nil
		}

		err = tx.Transaction(func(sp *gorm.DB) error {
			return s.repo.InsertCounter(ctx, sp, &domain.OrderNumberCounter{
				MerchantID: merchantID,
				Year:       year,
				NextValue:  2,
				UpdatedAt:  s.clock.Now(),
			})
		})
		if err == nil {
			return 1, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return 0, domain.ErrCounterFailed.WithCause(err)
		}
	}
	return 0, domain.ErrCounterFailed
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.loadDetails(ctx, s.db, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) loadDetails(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	items, err := s.repo.ItemsByOrderIDs(ctx, db, []snowflake.ID{order.ID})
	if err != nil {
		return err
	}
	payment, err := s.repo.FindPayment(ctx, db, order.ID)
	if err != nil {
		return err
	}
	order.Items = items
	order.Payment = payment
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.MerchantID == 0 {
		return domain.ListResponse{}, merchantdomain.ErrInvalidID
	}
	afterID, err := pagination.CursorID(req.PageToken)
	if err != nil {
		return domain.ListResponse{}, apperror.FieldValidation("page_token", "invalid_page_token", "page token is invalid")
	}

	limit := req.Size()
	orders, err := s.repo.List(ctx, s.db, domain.ListFilter{
		MerchantID: req.MerchantID,
		Stage:      req.Stage,
		AfterID:    snowflake.ID(afterID),
		Limit:      limit + 1,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	orders, pageInfo := pagination.Trim(orders, limit, func(o domain.Order) int64 { return o.ID.Int64() })
	if orders == nil {
		orders = []domain.Order{}
	}
	return domain.ListResponse{Orders: orders, PageInfo: pageInfo}, nil
}

func (s *Service) UpdateStage(ctx context.Context, req domain.UpdateStageRequest) (*domain.Order, error) {
	if req.OrderID == 0 {
		return nil, domain.ErrInvalidID
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var updated *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByID(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		if !domain.CanTransition(order.Stage, req.Stage) {
			return domain.ErrInvalidTransition.WithMessage("cannot move order from %s to %s", order.Stage, req.Stage)
		}

		now := s.clock.Now()
		moved, err := s.repo.UpdateStage(ctx, tx, order.ID, order.Stage, req.Stage, now)
		if err != nil {
			return err
		}
		if !moved {
			return domain.ErrInvalidTransition.WithMessage("order %s changed concurrently", order.OrderNumber)
		}
		if err := s.loadDetails(ctx, tx, order); err != nil {
			return err
		}

		switch req.Stage {
		case domain.StageCancelled:
			if err := s.restoreStock(ctx, tx, order.Items, now); err != nil {
				return err
			}
			if _, err := s.ledgerSvc.TransitionOrderEntries(ctx, tx, order.ID, ledgerdomain.StatusPending, ledgerdomain.StatusFailed); err != nil {
				return err
			}
			if err := s.repo.UpdatePaymentStatus(ctx, tx, order.ID, domain.PaymentCancelled, now); err != nil {
				return err
			}
		case domain.StageDelivered:
			if _, err := s.ledgerSvc.TransitionOrderEntries(ctx, tx, order.ID, ledgerdomain.StatusPending, ledgerdomain.StatusCompleted); err != nil {
				return err
			}
			if order.PaymentMethod == domain.PaymentCOD {
				if err := s.repo.UpdatePaymentStatus(ctx, tx, order.ID, domain.PaymentCaptured, now); err != nil {
					return err
				}
			}
		case domain.StageReturned:
			if err := s.restoreStock(ctx, tx, order.Items, now); err != nil {
				return err
			}
		}

		order.Stage = req.Stage
		order.UpdatedAt = now
		if order.Payment != nil {
			payment, err := s.repo.FindPayment(ctx, tx, order.ID)
			if err != nil {
				return err
			}
			order.Payment = payment
		}
		updated = order
		return nil
	})
	if err != nil {
		var appErr *apperror.Error
		if !errors.As(err, &appErr) {
			s.log.Error("update order stage failed", zap.String("order_id", req.OrderID.String()), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("order stage updated",
		zap.String("order_id", updated.ID.String()),
		zap.String("stage", string(updated.Stage)),
	)
	return updated, nil
}

func (s *Service) restoreStock(ctx context.Context, tx *gorm.DB, items []domain.OrderItem, at time.Time) error {
	for _, item := range items {
		if _, err := s.productRepo.AddStock(ctx, tx, item.ProductID, item.Quantity, at); err != nil {
			return err
		}
	}
	return nil
}
