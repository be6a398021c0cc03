package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/config"
	invoicedomain "github.com/merceton/merceton/internal/invoice/domain"
	obsmetrics "github.com/merceton/merceton/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobWeeklyInvoices = "weekly_invoices"

	weeklyInvoiceLockPrefix = "merceton:scheduler:weekly-invoices:"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Settings   *config.BillingSettingsHolder
	InvoiceSvc invoicedomain.Service
	Locker     Locker
	Metrics    *obsmetrics.SchedulerMetrics `optional:"true"`
	Config     Config                       `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	settings   *config.BillingSettingsHolder
	invoiceSvc invoicedomain.Service
	locker     Locker
	metrics    *obsmetrics.SchedulerMetrics

	mu            sync.Mutex
	completedWeek time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Settings == nil || p.InvoiceSvc == nil || p.Locker == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		settings:   p.Settings,
		invoiceSvc: p.InvoiceSvc,
		locker:     p.Locker,
		metrics:    p.Metrics,
	}, nil
}

// runJob runs fn under a timeout. A timeout is logged and counted but is not
// returned as an error; the next tick retries.
func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, JobWeeklyInvoices, s.cfg.JobTimeout, s.WeeklyInvoicesJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// WeeklyInvoicesJob bills every active merchant for the last complete cycle
// week. Invoice generation is idempotent per merchant and period, so a rerun
// after a partial failure only bills the merchants that were missed.
func (s *Scheduler) WeeklyInvoicesJob(ctx context.Context) error {
	from, to := invoicedomain.PreviousWeek(s.clock.Now(), s.settings.Get().CycleStart())
	if s.weekCompleted(from) {
		return nil
	}

	key := weeklyInvoiceLockKey(from)
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		s.metrics.IncJobSkipped(JobWeeklyInvoices, obsmetrics.SchedulerSkipReasonLockHeld)
		s.logger(ctx).Debug("weekly invoices locked by another instance", zap.String("lock_key", key))
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger(ctx).Warn("release scheduler lock", zap.String("lock_key", key), zap.Error(err))
		}
	}()

	summary, err := s.invoiceSvc.GenerateWeeklyInvoices(ctx, from, to)
	run := jobRunFromContext(ctx)
	run.AddProcessed(summary.Generated)
	s.metrics.AddBatchProcessed(JobWeeklyInvoices, "platform_invoice", summary.Generated)
	if err != nil {
		return err
	}
	if len(summary.Failed) > 0 {
		for range summary.Failed {
			run.IncError()
		}
		return fmt.Errorf("%d merchant(s) not invoiced for week of %s", len(summary.Failed), from.Format("2006-01-02"))
	}

	s.mu.Lock()
	s.completedWeek = from
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) weekCompleted(from time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedWeek.Equal(from)
}

func weeklyInvoiceLockKey(from time.Time) string {
	return weeklyInvoiceLockPrefix + from.UTC().Format("2006-01-02")
}
