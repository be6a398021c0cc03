package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/merceton/merceton/internal/apperror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "business_rule", err: fmt.Errorf("merchant 1: %w", apperror.BusinessRule("no_fees", "nothing to invoice")), want: SchedulerJobReasonBusinessRule},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSchedulerCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSchedulerMetrics(registry, Config{ServiceName: "merceton", Environment: "test"})

	m.IncJobRun("weekly_platform_invoices")
	m.AddBatchProcessed("weekly_platform_invoices", "merchants", 3)
	m.IncJobSkipped("weekly_platform_invoices", SchedulerSkipReasonLockHeld)
	m.IncJobError("weekly_platform_invoices", context.DeadlineExceeded)
	m.ObserveJobDuration("weekly_platform_invoices", time.Second)

	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("weekly_platform_invoices")); got != 1 {
		t.Fatalf("expected 1 run, got %v", got)
	}
	if got := testutil.ToFloat64(m.batchProcessed.WithLabelValues("weekly_platform_invoices", "merchants")); got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobErrors.WithLabelValues("weekly_platform_invoices", SchedulerJobReasonDeadlineExceeded)); got != 1 {
		t.Fatalf("expected 1 deadline error, got %v", got)
	}
}
