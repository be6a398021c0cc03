package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/merceton/merceton/internal/audit/domain"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/config"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	"github.com/merceton/merceton/internal/pricing/domain"
	"github.com/merceton/merceton/internal/validation"
	"github.com/merceton/merceton/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AdminParams struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       config.Config
	Repo         domain.Repository
	MerchantRepo merchantdomain.Repository
	Resolver     domain.Resolver
	AuditSvc     auditdomain.Service
}

type AdminService struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	defaultCode  string
	repo         domain.Repository
	merchantRepo merchantdomain.Repository
	resolver     domain.Resolver
	auditSvc     auditdomain.Service
}

func NewAdminService(p AdminParams) domain.AdminService {
	return &AdminService{
		db:           p.DB,
		log:          p.Log.Named("pricing.admin"),
		genID:        p.GenID,
		clock:        p.Clock,
		defaultCode:  strings.ToLower(strings.TrimSpace(p.Config.DefaultPricingPackageCode)),
		repo:         p.Repo,
		merchantRepo: p.MerchantRepo,
		resolver:     p.Resolver,
		auditSvc:     p.AuditSvc,
	}
}

func (s *AdminService) ListPackages(ctx context.Context) ([]domain.PricingPackage, error) {
	items, err := s.repo.ListPackages(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.PricingPackage{}
	}
	return items, nil
}

func (s *AdminService) CreatePackage(ctx context.Context, req domain.CreatePackageRequest) (*domain.PricingPackage, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	pkg := &domain.PricingPackage{
		ID:              s.genID.Generate(),
		Code:            strings.ToLower(strings.TrimSpace(req.Code)),
		Name:            strings.TrimSpace(req.Name),
		FixedFeePaise:   req.FixedFeePaise,
		VariableFeeBps:  req.VariableFeeBps,
		HoldbackBps:     req.HoldbackBps,
		PayoutFrequency: req.PayoutFrequency,
		IsPayoutHold:    req.IsPayoutHold,
		DomainIncluded:  req.DomainIncluded,
		DomainAllowed:   req.DomainAllowed == nil || *req.DomainAllowed,
		Status:          domain.PackageDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if pkg.DomainIncluded {
		pkg.DomainAllowed = true
	}

	err := s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: "pricing_package.create",
		EntityType: "pricing_package",
		Reason:     req.Reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		if err := s.repo.InsertPackage(ctx, tx, pkg); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return auditdomain.Change{}, domain.ErrPackageCodeTaken
			}
			return auditdomain.Change{}, err
		}
		return auditdomain.Change{EntityID: pkg.ID.String(), After: pkg}, nil
	})
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func (s *AdminService) PublishPackage(ctx context.Context, req domain.PackageTransitionRequest) (*domain.PricingPackage, error) {
	return s.transition(ctx, req, "pricing_package.publish", domain.PackageDraft, domain.PackagePublished)
}

func (s *AdminService) ArchivePackage(ctx context.Context, req domain.PackageTransitionRequest) (*domain.PricingPackage, error) {
	return s.transition(ctx, req, "pricing_package.archive", domain.PackagePublished, domain.PackageArchived)
}

func (s *AdminService) transition(ctx context.Context, req domain.PackageTransitionRequest, action string, from, to domain.PackageStatus) (*domain.PricingPackage, error) {
	if req.PackageID == 0 {
		return nil, domain.ErrInvalidPackageID
	}

	var updated domain.PricingPackage
	err := s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: action,
		EntityType: "pricing_package",
		EntityID:   req.PackageID.String(),
		Reason:     req.Reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		pkg, err := s.repo.FindPackageByID(ctx, tx, req.PackageID)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if pkg == nil {
			return auditdomain.Change{}, domain.ErrPackageNotFound
		}
		if pkg.Status != from {
			return auditdomain.Change{}, domain.ErrInvalidTransition.WithMessage("cannot move package from %s to %s", pkg.Status, to)
		}
		if to == domain.PackageArchived && pkg.Code == s.defaultCode {
			return auditdomain.Change{}, domain.ErrArchiveDefault
		}

		before := map[string]any{"status": pkg.Status}
		pkg.Status = to
		pkg.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdatePackageStatus(ctx, tx, pkg); err != nil {
			return auditdomain.Change{}, err
		}
		updated = *pkg
		return auditdomain.Change{Before: before, After: map[string]any{"status": pkg.Status}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *AdminService) GetFeeConfig(ctx context.Context, merchantID snowflake.ID) (*domain.MerchantFeeConfig, error) {
	if err := s.requireMerchant(ctx, s.db, merchantID); err != nil {
		return nil, err
	}
	return s.resolver.EnsureFeeConfig(ctx, s.db, merchantID)
}

func (s *AdminService) AssignPackage(ctx context.Context, req domain.AssignPackageRequest) (*domain.MerchantFeeConfig, error) {
	if req.MerchantID == 0 {
		return nil, merchantdomain.ErrInvalidID
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	return s.mutateFeeConfig(ctx, req.MerchantID, "merchant_fee_config.assign_package", req.Reason,
		func(tx *gorm.DB, cfg *domain.MerchantFeeConfig) error {
			pkg, err := s.repo.FindPackageByID(ctx, tx, req.PackageID)
			if err != nil {
				return err
			}
			if pkg == nil {
				return domain.ErrPackageNotFound
			}
			if pkg.Status != domain.PackagePublished {
				return domain.ErrPackageNotPublished
			}
			packageID := pkg.ID
			cfg.PricingPackageID = &packageID
			cfg.DomainIncludedApplied = false
			return nil
		})
}

func (s *AdminService) SetOverrides(ctx context.Context, req domain.SetOverridesRequest) (*domain.MerchantFeeConfig, error) {
	if req.MerchantID == 0 {
		return nil, merchantdomain.ErrInvalidID
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.FixedFeeOverridePaise == nil && req.VariableFeeOverrideBps == nil && req.HoldbackOverrideBps == nil &&
		req.PayoutFrequencyOverride == nil && req.IsPayoutHoldOverride == nil &&
		req.FeeFlatPaise == nil && req.FeePercentageBps == nil && req.FeeMaxCapPaise == nil {
		return nil, domain.ErrNoOverrides
	}

	return s.mutateFeeConfig(ctx, req.MerchantID, "merchant_fee_config.set_overrides", req.Reason,
		func(_ *gorm.DB, cfg *domain.MerchantFeeConfig) error {
			if req.FixedFeeOverridePaise != nil {
				cfg.FixedFeeOverridePaise = req.FixedFeeOverridePaise
			}
			if req.VariableFeeOverrideBps != nil {
				cfg.VariableFeeOverrideBps = req.VariableFeeOverrideBps
			}
			if req.HoldbackOverrideBps != nil {
				cfg.HoldbackOverrideBps = req.HoldbackOverrideBps
			}
			if req.PayoutFrequencyOverride != nil {
				cfg.PayoutFrequencyOverride = req.PayoutFrequencyOverride
			}
			if req.IsPayoutHoldOverride != nil {
				cfg.IsPayoutHoldOverride = req.IsPayoutHoldOverride
			}
			if req.FeeFlatPaise != nil {
				cfg.FeeFlatPaise = req.FeeFlatPaise
			}
			if req.FeePercentageBps != nil {
				cfg.FeePercentageBps = req.FeePercentageBps
			}
			if req.FeeMaxCapPaise != nil {
				cfg.FeeMaxCapPaise = req.FeeMaxCapPaise
			}
			return nil
		})
}

func (s *AdminService) ClearOverrides(ctx context.Context, req domain.ClearOverridesRequest) (*domain.MerchantFeeConfig, error) {
	if req.MerchantID == 0 {
		return nil, merchantdomain.ErrInvalidID
	}
	return s.mutateFeeConfig(ctx, req.MerchantID, "merchant_fee_config.clear_overrides", req.Reason,
		func(_ *gorm.DB, cfg *domain.MerchantFeeConfig) error {
			cfg.FixedFeeOverridePaise = nil
			cfg.VariableFeeOverrideBps = nil
			cfg.HoldbackOverrideBps = nil
			cfg.PayoutFrequencyOverride = nil
			cfg.IsPayoutHoldOverride = nil
			return nil
		})
}

func (s *AdminService) PreviewFee(ctx context.Context, merchantID snowflake.ID, grossPaise int64) (*domain.FeePreview, error) {
	if grossPaise < 0 {
		return nil, domain.ErrInvalidGross
	}
	if err := s.requireMerchant(ctx, s.db, merchantID); err != nil {
		return nil, err
	}

	eff, err := s.resolver.Resolve(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.repo.FindFeeConfig(ctx, s.db, merchantID)
	if err != nil {
		return nil, err
	}

	fee, net := domain.ComputePlatformFee(grossPaise, eff)
	legacy, stored := cfg.StoredLegacy()
	if !stored {
		legacy = domain.EffectiveFeeConfigToLegacy(eff)
	}
	legacyFee, legacyNet := domain.ComputeLegacyPlatformFee(grossPaise, legacy)

	return &domain.FeePreview{
		GrossPaise:             grossPaise,
		Effective:              eff,
		PlatformFeePaise:       fee,
		NetPayablePaise:        net,
		HoldbackPaise:          domain.ComputeHoldback(net, eff),
		Legacy:                 legacy,
		LegacyStored:           stored,
		LegacyPlatformFeePaise: legacyFee,
		LegacyNetPayablePaise:  legacyNet,
	}, nil
}

// mutateFeeConfig loads or creates the fee config, applies fn and saves it
// together with the audit row.
func (s *AdminService) mutateFeeConfig(ctx context.Context, merchantID snowflake.ID, action, reason string, fn func(tx *gorm.DB, cfg *domain.MerchantFeeConfig) error) (*domain.MerchantFeeConfig, error) {
	var updated domain.MerchantFeeConfig
	err := s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: action,
		EntityType: "merchant_fee_config",
		EntityID:   merchantID.String(),
		Reason:     reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		if err := s.requireMerchant(ctx, tx, merchantID); err != nil {
			return auditdomain.Change{}, err
		}
		cfg, err := s.resolver.EnsureFeeConfig(ctx, tx, merchantID)
		if err != nil {
			return auditdomain.Change{}, err
		}
		before := *cfg

		if err := fn(tx, cfg); err != nil {
			return auditdomain.Change{}, err
		}
		cfg.UpdatedAt = s.clock.Now()
		if err := s.repo.SaveFeeConfig(ctx, tx, cfg); err != nil {
			return auditdomain.Change{}, err
		}
		updated = *cfg
		return auditdomain.Change{Before: before, After: updated}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("merchant fee config updated", zap.String("merchant_id", merchantID.String()), zap.String("action", action))
	return &updated, nil
}

func (s *AdminService) requireMerchant(ctx context.Context, tx *gorm.DB, merchantID snowflake.ID) error {
	if merchantID == 0 {
		return merchantdomain.ErrInvalidID
	}
	m, err := s.merchantRepo.FindByID(ctx, tx, merchantID)
	if err != nil {
		return err
	}
	if m == nil {
		return merchantdomain.ErrNotFound
	}
	return nil
}
