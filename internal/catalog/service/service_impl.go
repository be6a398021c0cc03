package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/merceton/merceton/internal/audit/domain"
	"github.com/merceton/merceton/internal/catalog/domain"
	"github.com/merceton/merceton/internal/clock"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	"github.com/merceton/merceton/internal/validation"
	"github.com/merceton/merceton/pkg/db"
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

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("catalog.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		merchantRepo: p.MerchantRepo,
		auditSvc:     p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Product, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	merchant, err := s.merchantRepo.FindByID(ctx, s.db, req.MerchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, merchantdomain.ErrNotFound
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:         s.genID.Generate(),
		MerchantID: req.MerchantID,
		Name:       strings.TrimSpace(req.Name),
		SKU:        strings.ToUpper(strings.TrimSpace(req.SKU)),
		HSNCode:    strings.TrimSpace(req.HSNCode),
		PricePaise: req.PricePaise,
		GSTRateBps: req.GSTRateBps,
		Stock:      req.Stock,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSKUTaken
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Product, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	p, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *Service) ListByMerchant(ctx context.Context, merchantID snowflake.ID, activeOnly bool) ([]domain.Product, error) {
	if merchantID == 0 {
		return nil, merchantdomain.ErrInvalidID
	}
	items, err := s.repo.ListByMerchant(ctx, s.db, merchantID, activeOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Product{}
	}
	return items, nil
}

func (s *Service) SetActive(ctx context.Context, merchantID, productID snowflake.ID, active bool) (*domain.Product, error) {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.MerchantID != merchantID {
		return nil, domain.ErrNotFound
	}
	p.IsActive = active
	p.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateActive(ctx, s.db, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) AdjustStock(ctx context.Context, req domain.AdjustStockRequest) (*domain.Product, error) {
	if req.ProductID == 0 {
		return nil, domain.ErrInvalidID
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var updated domain.Product
	err := s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: "product.adjust_stock",
		EntityType: "product",
		EntityID:   req.ProductID.String(),
		Reason:     req.Reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		p, err := s.repo.FindByID(ctx, tx, req.ProductID)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if p == nil {
			return auditdomain.Change{}, domain.ErrNotFound
		}
		before := p.Stock

		stock, err := s.repo.AddStock(ctx, tx, p.ID, req.Delta, s.clock.Now())
		if err != nil {
			return auditdomain.Change{}, err
		}
		if stock < 0 {
			return auditdomain.Change{}, domain.ErrNegativeStock
		}
		p.Stock = stock
		updated = *p
		return auditdomain.Change{
			Before: map[string]any{"stock": before},
			After:  map[string]any{"stock": stock, "delta": req.Delta},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("stock adjusted",
		zap.String("product_id", updated.ID.String()),
		zap.Int64("delta", req.Delta),
		zap.Int64("stock", updated.Stock),
	)
	return &updated, nil
}
