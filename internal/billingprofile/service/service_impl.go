package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/merceton/merceton/internal/audit/domain"
	"github.com/merceton/merceton/internal/billingprofile/domain"
	"github.com/merceton/merceton/internal/billingprofile/format"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/config"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	obsmetrics "github.com/merceton/merceton/internal/observability/metrics"
	"github.com/merceton/merceton/internal/validation"
	"github.com/merceton/merceton/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPlatformPrefix = "MRC"
	defaultMerchantPrefix = "INV"
	defaultPadding        = 5
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       config.Config
	Settings     *config.BillingSettingsHolder
	Repo         domain.Repository
	MerchantRepo merchantdomain.Repository
	AuditSvc     auditdomain.Service
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	platformCode string
	settings     *config.BillingSettingsHolder
	repo         domain.Repository
	merchantRepo merchantdomain.Repository
	auditSvc     auditdomain.Service
	obsMetrics   *obsmetrics.Metrics
}

func newService(p Params) *Service {
	code := strings.ToLower(strings.TrimSpace(p.Config.PlatformBillingProfileCode))
	if code == "" {
		code = "platform"
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("billingprofile.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		platformCode: code,
		settings:     p.Settings,
		repo:         p.Repo,
		merchantRepo: p.MerchantRepo,
		auditSvc:     p.AuditSvc,
		obsMetrics:   p.ObsMetrics,
	}
}

func NewService(p Params) domain.Service {
	return newService(p)
}

func NewAccessor(p Params) domain.ProfileAccessor {
	return newService(p)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.BillingProfile, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	profile, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domain.ErrNotFound
	}
	return profile, nil
}

func (s *Service) Allocate(ctx context.Context, tx *gorm.DB, profileID snowflake.ID, issuedAt time.Time) (domain.Allocation, error) {
	if profileID == 0 {
		return domain.Allocation{}, domain.ErrInvalidID
	}
	if tx == nil {
		tx = s.db
	}

	row, err := s.repo.Increment(ctx, tx, profileID, s.clock.Now())
	if err != nil {
		s.log.Error("invoice number increment failed",
			zap.String("profile_id", profileID.String()),
			zap.Error(err),
		)
		return domain.Allocation{}, domain.ErrAllocationFailed.WithCause(err)
	}
	if row == nil {
		return domain.Allocation{}, domain.ErrNotFound
	}

	sequence := row.InvoiceNextNumber - 1
	number, err := format.FormatInvoiceNumber(row.SeriesFormat, row.InvoicePrefix, row.InvoicePadding, issuedAt, sequence)
	if err != nil {
		return domain.Allocation{}, domain.ErrAllocationFailed.WithCause(err)
	}

	s.obsMetrics.RecordInvoiceNumber(ctx, string(row.Kind))

	return domain.Allocation{
		ProfileID: profileID,
		Sequence:  sequence,
		Number:    number,
	}, nil
}

func (s *Service) UpdateSeries(ctx context.Context, req domain.UpdateSeriesRequest) (*domain.BillingProfile, error) {
	if req.ProfileID == 0 {
		return nil, domain.ErrInvalidID
	}
	if req.InvoicePrefix == nil && req.InvoicePadding == nil && req.SeriesFormat == nil && req.InvoiceNextNumber == nil {
		return nil, domain.ErrNothingToUpdate
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var updated domain.BillingProfile
	err := s.auditSvc.Record(ctx, auditdomain.Action{
		ActionType: "billing_profile.update_series",
		EntityType: "billing_profile",
		EntityID:   req.ProfileID.String(),
		Reason:     req.Reason,
	}, func(tx *gorm.DB) (auditdomain.Change, error) {
		profile, err := s.repo.FindByID(ctx, tx, req.ProfileID)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if profile == nil {
			return auditdomain.Change{}, domain.ErrNotFound
		}
		before := seriesSnapshot(profile)

		if req.InvoicePrefix != nil {
			profile.InvoicePrefix = strings.TrimSpace(*req.InvoicePrefix)
		}
		if req.InvoicePadding != nil {
			profile.InvoicePadding = *req.InvoicePadding
		}
		if req.SeriesFormat != nil {
			profile.SeriesFormat = strings.TrimSpace(*req.SeriesFormat)
		}
		if req.InvoiceNextNumber != nil {
			if *req.InvoiceNextNumber < profile.InvoiceNextNumber {
				return auditdomain.Change{}, domain.ErrCounterRegression.WithMessage(
					"invoice counter is at %d and cannot move back to %d",
					profile.InvoiceNextNumber, *req.InvoiceNextNumber,
				)
			}
			profile.InvoiceNextNumber = *req.InvoiceNextNumber
		}
		if _, err := format.FormatInvoiceNumber(profile.SeriesFormat, profile.InvoicePrefix, profile.InvoicePadding, s.clock.Now(), profile.InvoiceNextNumber); err != nil {
			return auditdomain.Change{}, domain.ErrInvalidSeries.WithMessage("%s", err.Error())
		}

		profile.UpdatedAt = s.clock.Now()
		ok, err := s.repo.UpdateSeries(ctx, tx, profile)
		if err != nil {
			return auditdomain.Change{}, err
		}
		if !ok {
			return auditdomain.Change{}, domain.ErrSeriesChanged
		}
		updated = *profile
		return auditdomain.Change{
			EntityID: profile.ID.String(),
			Before:   before,
			After:    seriesSnapshot(profile),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Service) PlatformProfile(ctx context.Context, tx *gorm.DB) (*domain.BillingProfile, error) {
	if tx == nil {
		tx = s.db
	}
	settings := s.settings.Get()

	profile, err := s.repo.FindByCode(ctx, tx, s.platformCode)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		now := s.clock.Now()
		candidate := &domain.BillingProfile{
			ID:                s.genID.Generate(),
			Code:              s.platformCode,
			Kind:              domain.KindPlatform,
			LegalName:         settings.LegalName,
			GSTIN:             settings.GSTIN,
			StateCode:         settings.StateCode,
			Address:           settings.Address,
			InvoicePrefix:     defaultPlatformPrefix,
			InvoiceNextNumber: 1,
			InvoicePadding:    defaultPadding,
			SeriesFormat:      format.DefaultSeriesFormat,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		profile, err = s.insertOrLoad(ctx, tx, candidate)
		if err != nil {
			return nil, err
		}
	}

	// Tax identity follows the live settings so a reload applies to the next invoice.
	profile.LegalName = settings.LegalName
	profile.GSTIN = settings.GSTIN
	profile.StateCode = settings.StateCode
	profile.Address = settings.Address
	return profile, nil
}

func (s *Service) MerchantProfile(ctx context.Context, tx *gorm.DB, merchantID snowflake.ID) (*domain.BillingProfile, error) {
	if merchantID == 0 {
		return nil, domain.ErrInvalidID
	}
	if tx == nil {
		tx = s.db
	}

	code := domain.MerchantProfileCode(merchantID)
	profile, err := s.repo.FindByCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	merchant, err := s.merchantRepo.FindByID(ctx, tx, merchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, domain.ErrMerchantIdentity
	}
	onboarding, err := s.merchantRepo.FindOnboarding(ctx, tx, merchantID)
	if err != nil {
		return nil, err
	}

	if profile == nil {
		now := s.clock.Now()
		id := merchantID
		candidate := &domain.BillingProfile{
			ID:                s.genID.Generate(),
			Code:              code,
			Kind:              domain.KindMerchant,
			MerchantID:        &id,
			LegalName:         merchant.Name,
			InvoicePrefix:     defaultMerchantPrefix,
			InvoiceNextNumber: 1,
			InvoicePadding:    defaultPadding,
			SeriesFormat:      format.DefaultSeriesFormat,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		profile, err = s.insertOrLoad(ctx, tx, candidate)
		if err != nil {
			return nil, err
		}
	}

	if onboarding != nil {
		profile.LegalName = onboarding.LegalName
		profile.GSTIN = onboarding.GSTIN
		profile.StateCode = onboarding.StateCode
		profile.Address = onboarding.Address
	}
	return profile, nil
}

// insertOrLoad inserts candidate inside a savepoint and falls back to the
// existing row when a concurrent caller won the unique code.
func (s *Service) insertOrLoad(ctx context.Context, tx *gorm.DB, candidate *domain.BillingProfile) (*domain.BillingProfile, error) {
	err := tx.Transaction(func(sp *gorm.DB) error {
		return s.repo.Insert(ctx, sp, candidate)
	})
	if err == nil {
		s.log.Info("billing profile created",
			zap.String("code", candidate.Code),
			zap.String("kind", string(candidate.Kind)),
		)
		return candidate, nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return nil, err
	}
	existing, err := s.repo.FindByCode(ctx, tx, candidate.Code)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	return existing, nil
}

func seriesSnapshot(p *domain.BillingProfile) map[string]any {
	return map[string]any{
		"invoice_prefix":      p.InvoicePrefix,
		"invoice_padding":     p.InvoicePadding,
		"series_format":       p.SeriesFormat,
		"invoice_next_number": p.InvoiceNextNumber,
	}
}
