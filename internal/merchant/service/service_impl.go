package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/merceton/merceton/internal/audit/domain"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/merchant/domain"
	"github.com/merceton/merceton/internal/validation"
	"github.com/merceton/merceton/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSlugAttempts = 20

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("merchant.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Merchant, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	explicit := strings.TrimSpace(req.StoreSlug) != ""
	base := slug.Make(req.StoreSlug)
	if !explicit {
		base = slug.Make(req.Name)
	}
	if base == "" {
		return nil, domain.ErrInvalidSlug
	}

	now := s.clock.Now()
	m := &domain.Merchant{
		ID:            s.genID.Generate(),
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		IsActive:      true,
		AccountStatus: domain.AccountStatusActive,
		KYCStatus:     domain.KYCStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		candidate := base
		if attempt > 1 {
			candidate = fmt.Sprintf("%s-%d", base, attempt)
		}
		exists, err := s.repo.SlugExists(ctx, s.db, candidate)
		if err != nil {
			return nil, err
		}
		if exists {
			if explicit {
				return nil, domain.ErrSlugTaken
			}
			continue
		}

		m.StoreSlug = candidate
		if err := s.repo.Insert(ctx, s.db, m); err != nil {
			if db.IsDuplicateKeyErr(err) {
				if explicit {
					return nil, domain.ErrSlugTaken
				}
				continue
			}
			return nil, err
		}
		s.log.Info("merchant created", zap.String("merchant_id", m.ID.String()), zap.String("store_slug", m.StoreSlug))
		return m, nil
	}
	return nil, domain.ErrSlugTaken
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Merchant, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	m, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (s *Service) GetBySlug(ctx context.Context, storeSlug string) (*domain.Merchant, error) {
	storeSlug = strings.ToLower(strings.TrimSpace(storeSlug))
	if storeSlug == "" {
		return nil, domain.ErrInvalidSlug
	}
	m, err := s.repo.FindBySlug(ctx, s.db, storeSlug)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (s *Service) ListActive(ctx context.Context) ([]domain.Merchant, error) {
	return s.repo.ListActive(ctx, s.db)
}

func (s *Service) GetOnboarding(ctx context.Context, merchantID snowflake.ID) (*domain.Onboarding, error) {
	o, err := s.repo.FindOnboarding(ctx, s.db, merchantID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOnboardingNotFound
	}
	return o, nil
}

func (s *Service) UpsertOnboarding(ctx context.Context, merchantID snowflake.ID, req domain.OnboardingRequest) (*domain.Onboarding, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, merchantID); err != nil {
		return nil, err
	}

	o := &domain.Onboarding{
		MerchantID: merchantID,
		LegalName:  strings.TrimSpace(req.LegalName),
		GSTIN:      strings.ToUpper(strings.TrimSpace(req.GSTIN)),
		StateCode:  req.StateCode,
		Address:    strings.TrimSpace(req.Address),
		UpdatedAt:  s.clock.Now(),
	}
	if err := s.repo.SaveOnboarding(ctx, s.db, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) UpdateBankAccount(ctx context.Context, merchantID snowflake.ID, req domain.BankAccountRequest) (*domain.BankAccount, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, merchantID); err != nil {
		return nil, err
	}

	var out *domain.BankAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindBankAccount(ctx, tx, merchantID)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsVerified {
			return domain.ErrBankAccountVerified
		}
		out = &domain.BankAccount{
			MerchantID:    merchantID,
			AccountHolder: strings.TrimSpace(req.AccountHolder),
			AccountNumber: req.AccountNumber,
			IFSC:          strings.ToUpper(req.IFSC),
			UpdatedAt:     s.clock.Now(),
		}
		return s.repo.SaveBankAccount(ctx, tx, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) SetStatus(ctx context.Context, req domain.SetStatusRequest) (*domain.Merchant, error) {
	if req.MerchantID == 0 {
		return nil, domain.ErrInvalidID
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var updated domain.Merchant
	err := s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: "merchant.set_status",
		EntityType: "merchant",
		EntityID:   req.MerchantID.String(),
		Reason:     req.Reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		m, err := s.repo.FindByID(ctx, tx, req.MerchantID)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if m == nil {
			return auditdomain.Change{}, domain.ErrNotFound
		}
		before := *m

		m.AccountStatus = req.Status
		m.IsActive = req.Status == domain.AccountStatusActive
		m.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, tx, m); err != nil {
			return auditdomain.Change{}, err
		}
		updated = *m
		return auditdomain.Change{
			Before: statusSnapshot(before),
			After:  statusSnapshot(updated),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) VerifyBankAccount(ctx context.Context, req domain.VerifyBankAccountRequest) (*domain.BankAccount, error) {
	if req.MerchantID == 0 {
		return nil, domain.ErrInvalidID
	}

	var updated domain.BankAccount
	err := s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: "merchant.verify_bank_account",
		EntityType: "merchant_bank_account",
		EntityID:   req.MerchantID.String(),
		Reason:     req.Reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		account, err := s.repo.FindBankAccount(ctx, tx, req.MerchantID)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if account == nil {
			return auditdomain.Change{}, domain.ErrBankAccountNotFound
		}
		before := *account

		now := s.clock.Now()
		account.IsVerified = true
		account.VerifiedAt = &now
		account.UpdatedAt = now
		if err := s.repo.SaveBankAccount(ctx, tx, account); err != nil {
			return auditdomain.Change{}, err
		}
		updated = *account
		return auditdomain.Change{
			Before: bankSnapshot(before),
			After:  bankSnapshot(updated),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func statusSnapshot(m domain.Merchant) map[string]any {
	return map[string]any{
		"is_active":      m.IsActive,
		"account_status": m.AccountStatus,
	}
}

func bankSnapshot(a domain.BankAccount) map[string]any {
	return map[string]any{
		"account_holder": a.AccountHolder,
		"account_number": a.AccountNumber,
		"ifsc":           a.IFSC,
		"is_verified":    a.IsVerified,
	}
}
