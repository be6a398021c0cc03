package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/config"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	"github.com/merceton/merceton/internal/pricing/domain"
	"github.com/merceton/merceton/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ResolverParams struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       config.Config
	Repo         domain.Repository
	MerchantRepo merchantdomain.Repository
}

type Resolver struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	defaultCode  string
	repo         domain.Repository
	merchantRepo merchantdomain.Repository
}

func NewResolver(p ResolverParams) domain.Resolver {
	return newResolver(p)
}

func newResolver(p ResolverParams) *Resolver {
	code := strings.ToLower(strings.TrimSpace(p.Config.DefaultPricingPackageCode))
	if code == "" {
		code = "starter"
	}
	return &Resolver{
		db:           p.DB,
		log:          p.Log.Named("pricing.resolver"),
		genID:        p.GenID,
		clock:        p.Clock,
		defaultCode:  code,
		repo:         p.Repo,
		merchantRepo: p.MerchantRepo,
	}
}

func (r *Resolver) Resolve(ctx context.Context, merchantID snowflake.ID) (domain.EffectiveFeeConfig, error) {
	return r.ResolveWithDB(ctx, r.db, merchantID)
}

func (r *Resolver) ResolveWithDB(ctx context.Context, tx *gorm.DB, merchantID snowflake.ID) (domain.EffectiveFeeConfig, error) {
	if tx == nil {
		tx = r.db
	}

	merchant, err := r.merchantRepo.FindByID(ctx, tx, merchantID)
	if err != nil {
		return domain.EffectiveFeeConfig{}, err
	}

	var feeConfig *domain.MerchantFeeConfig
	var defaultPkg *domain.PricingPackage
	if merchant != nil {
		feeConfig, err = r.EnsureFeeConfig(ctx, tx, merchantID)
		if err != nil {
			return domain.EffectiveFeeConfig{}, err
		}
	}
	defaultPkg, err = r.repo.FindPackageByCode(ctx, tx, r.defaultCode)
	if err != nil {
		return domain.EffectiveFeeConfig{}, err
	}

	pkg, source, err := r.selectPackage(ctx, tx, feeConfig, defaultPkg)
	if err != nil {
		return domain.EffectiveFeeConfig{}, err
	}

	eff := domain.Merge(pkg, feeConfig)
	eff.Source = source
	if merchant == nil {
		return eff, nil
	}

	eff.DomainSubscriptionActive = merchant.DomainSubscriptionActive
	if pkg == nil {
		return eff, nil
	}
	switch {
	case pkg.DomainIncluded:
		eff.DomainSubscriptionActive = true
		if !feeConfig.DomainIncludedApplied {
			if err := r.merchantRepo.SetDomainSubscription(ctx, tx, merchantID, true); err != nil {
				return domain.EffectiveFeeConfig{}, err
			}
			if err := r.repo.MarkDomainIncludedApplied(ctx, tx, feeConfig.ID); err != nil {
				return domain.EffectiveFeeConfig{}, err
			}
			feeConfig.DomainIncludedApplied = true
		}
	case !pkg.DomainAllowed:
		eff.DomainSubscriptionActive = false
		if merchant.DomainSubscriptionActive {
			if err := r.merchantRepo.SetDomainSubscription(ctx, tx, merchantID, false); err != nil {
				return domain.EffectiveFeeConfig{}, err
			}
		}
	}
	return eff, nil
}

// selectPackage prefers the merchant's package, then the platform default,
// each only when PUBLISHED.
func (r *Resolver) selectPackage(ctx context.Context, tx *gorm.DB, feeConfig *domain.MerchantFeeConfig, defaultPkg *domain.PricingPackage) (*domain.PricingPackage, domain.FeeSource, error) {
	if feeConfig != nil && feeConfig.PricingPackageID != nil {
		assigned, err := r.repo.FindPackageByID(ctx, tx, *feeConfig.PricingPackageID)
		if err != nil {
			return nil, "", err
		}
		if assigned != nil && assigned.Status == domain.PackagePublished {
			if defaultPkg != nil && assigned.ID == defaultPkg.ID {
				return assigned, domain.SourcePlatformDefault, nil
			}
			return assigned, domain.SourceMerchantPackage, nil
		}
	}
	if defaultPkg != nil && defaultPkg.Status == domain.PackagePublished {
		return defaultPkg, domain.SourcePlatformDefault, nil
	}
	return nil, domain.SourceFallback, nil
}

func (r *Resolver) EnsureFeeConfig(ctx context.Context, tx *gorm.DB, merchantID snowflake.ID) (*domain.MerchantFeeConfig, error) {
	if tx == nil {
		tx = r.db
	}
	existing, err := r.repo.FindFeeConfig(ctx, tx, merchantID)
	if err != nil || existing != nil {
		return existing, err
	}

	defaultPkg, err := r.EnsureDefaultPackage(ctx, tx)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now()
	packageID := defaultPkg.ID
	cfg := &domain.MerchantFeeConfig{
		ID:               r.genID.Generate(),
		MerchantID:       merchantID,
		PricingPackageID: &packageID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	// The savepoint keeps a postgres transaction usable after a lost race.
	err = tx.Transaction(func(sp *gorm.DB) error {
		return r.repo.InsertFeeConfig(ctx, sp, cfg)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return r.repo.FindFeeConfig(ctx, tx, merchantID)
		}
		return nil, err
	}
	r.log.Info("merchant fee config created",
		zap.String("merchant_id", merchantID.String()),
		zap.String("pricing_package", defaultPkg.Code),
	)
	return cfg, nil
}

// EnsureDefaultPackage looks the default package up by code before creating
// a published Starter package with the platform constants.
func (r *Resolver) EnsureDefaultPackage(ctx context.Context, tx *gorm.DB) (*domain.PricingPackage, error) {
	if tx == nil {
		tx = r.db
	}
	pkg, err := r.repo.FindPackageByCode(ctx, tx, r.defaultCode)
	if err != nil || pkg != nil {
		return pkg, err
	}

	now := r.clock.Now()
	pkg = &domain.PricingPackage{
		ID:              r.genID.Generate(),
		Code:            r.defaultCode,
		Name:            domain.DefaultPackageName,
		FixedFeePaise:   domain.DefaultFixedFeePaise,
		VariableFeeBps:  domain.DefaultVariableFeeBps,
		HoldbackBps:     domain.DefaultHoldbackBps,
		PayoutFrequency: domain.DefaultPayoutFrequency,
		DomainAllowed:   true,
		Status:          domain.PackagePublished,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = tx.Transaction(func(sp *gorm.DB) error {
		return r.repo.InsertPackage(ctx, sp, pkg)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return r.repo.FindPackageByCode(ctx, tx, r.defaultCode)
		}
		return nil, err
	}
	r.log.Info("default pricing package created", zap.String("code", pkg.Code))
	return pkg, nil
}
