// Package audittest wires a real audit service over a test database.
package audittest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/audit/domain"
	"github.com/merceton/merceton/internal/audit/repository"
	"github.com/merceton/merceton/internal/audit/service"
	"github.com/merceton/merceton/internal/auditcontext"
	"github.com/merceton/merceton/internal/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// New migrates the audit table into db and returns a service writing to it.
func New(t testing.TB, db *gorm.DB, node *snowflake.Node, clk clock.Clock) domain.Service {
	t.Helper()
	if err := db.AutoMigrate(&domain.AdminAuditLog{}); err != nil {
		t.Fatalf("migrate audit: %v", err)
	}
	return service.NewService(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
}

// AdminContext returns a context carrying an admin actor.
func AdminContext() context.Context {
	ctx := auditcontext.WithActor(context.Background(), auditcontext.ActorTypeAdmin, "7")
	return auditcontext.WithActorEmail(ctx, "admin@merceton.com")
}

// Entries returns every audit row for actionType, oldest first. Numbers in
// the before and after snapshots come back as int64 or float64.
func Entries(t testing.TB, db *gorm.DB, actionType string) []domain.AdminAuditLog {
	t.Helper()
	var rows []domain.AdminAuditLog
	if err := db.Where("action_type = ?", actionType).Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load audit rows: %v", err)
	}
	for i := range rows {
		normalizeNumbers(rows[i].Before)
		normalizeNumbers(rows[i].After)
	}
	return rows
}

func normalizeNumbers(m map[string]any) {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		normalizeNumbers(val)
		return val
	case []any:
		for i := range val {
			val[i] = normalizeValue(val[i])
		}
		return val
	default:
		return v
	}
}
