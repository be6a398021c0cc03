package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	"github.com/merceton/merceton/internal/audit/domain"
	"github.com/merceton/merceton/internal/audit/repository"
	"github.com/merceton/merceton/internal/auditcontext"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type widget struct {
	ID            int64 `gorm:"primaryKey"`
	Name          string
	AccountNumber string
}

func setupAuditService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t, &domain.AdminAuditLog{}, &widget{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	return svc, db
}

func adminContext() context.Context {
	ctx := auditcontext.WithActor(context.Background(), auditcontext.ActorTypeAdmin, "42")
	ctx = auditcontext.WithActorEmail(ctx, "ops@merceton.com")
	return auditcontext.WithRequestID(ctx, "req-1")
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestRecordRejectsEmptyReasonBeforeAnyWrite(t *testing.T) {
	svc, db := setupAuditService(t)

	for _, reason := range []string{"", "   "} {
		called := false
		err := svc.Record(adminContext(), domain.Action{
			ActionType: "widget.create",
			EntityType: "widget",
			Reason:     reason,
		}, func(tx *gorm.DB) (domain.Change, error) {
			called = true
			return domain.Change{}, tx.Create(&widget{ID: 1, Name: "a"}).Error
		})

		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
		assert.False(t, called)
	}
	assert.Zero(t, countRows(t, db, &widget{}))
	assert.Zero(t, countRows(t, db, &domain.AdminAuditLog{}))
}

func TestRecordRequiresActor(t *testing.T) {
	svc, db := setupAuditService(t)

	err := svc.Record(context.Background(), domain.Action{
		ActionType: "widget.create",
		EntityType: "widget",
		Reason:     "seed",
	}, func(tx *gorm.DB) (domain.Change, error) {
		return domain.Change{}, tx.Create(&widget{ID: 1}).Error
	})

	assert.ErrorIs(t, err, domain.ErrMissingActor)
	assert.Zero(t, countRows(t, db, &widget{}))
}

func TestRecordCommitsMutationAndAuditTogether(t *testing.T) {
	svc, db := setupAuditService(t)
	require.NoError(t, db.Create(&widget{ID: 7, Name: "old", AccountNumber: "123456789012"}).Error)

	err := svc.Record(adminContext(), domain.Action{
		ActionType: "widget.rename",
		EntityType: "widget",
		EntityID:   "7",
		Reason:     "  merchant requested rename ",
	}, func(tx *gorm.DB) (domain.Change, error) {
		var before widget
		if err := tx.First(&before, 7).Error; err != nil {
			return domain.Change{}, err
		}
		if err := tx.Model(&widget{}).Where("id = ?", 7).Update("name", "new").Error; err != nil {
			return domain.Change{}, err
		}
		var after widget
		if err := tx.First(&after, 7).Error; err != nil {
			return domain.Change{}, err
		}
		return domain.Change{Before: before, After: after}, nil
	})
	require.NoError(t, err)

	var logs []domain.AdminAuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	log := logs[0]
	assert.Equal(t, "42", log.ActorID)
	assert.Equal(t, "ops@merceton.com", log.ActorEmail)
	assert.Equal(t, "merchant requested rename", log.Reason)
	assert.Equal(t, "7", log.EntityID)
	assert.Equal(t, "req-1", log.RequestID)
	assert.Equal(t, "old", log.Before["Name"])
	assert.Equal(t, "new", log.After["Name"])
	assert.Equal(t, "****9012", log.After["AccountNumber"])
}

func TestRecordRollsBackMutationWhenAuditInsertFails(t *testing.T) {
	svc, db := setupAuditService(t)
	require.NoError(t, db.Migrator().DropTable(&domain.AdminAuditLog{}))

	err := svc.Record(adminContext(), domain.Action{
		ActionType: "widget.create",
		EntityType: "widget",
		Reason:     "seed",
	}, func(tx *gorm.DB) (domain.Change, error) {
		return domain.Change{EntityID: "1"}, tx.Create(&widget{ID: 1, Name: "a"}).Error
	})

	require.Error(t, err)
	assert.Zero(t, countRows(t, db, &widget{}))
}

func TestRecordRollsBackAuditWhenMutationFails(t *testing.T) {
	svc, db := setupAuditService(t)
	boom := errors.New("boom")

	err := svc.Record(adminContext(), domain.Action{
		ActionType: "widget.create",
		EntityType: "widget",
		Reason:     "seed",
	}, func(tx *gorm.DB) (domain.Change, error) {
		if err := tx.Create(&widget{ID: 1}).Error; err != nil {
			return domain.Change{}, err
		}
		return domain.Change{}, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Zero(t, countRows(t, db, &widget{}))
	assert.Zero(t, countRows(t, db, &domain.AdminAuditLog{}))
}

func TestLogWithinCallerTransaction(t *testing.T) {
	svc, db := setupAuditService(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Log(adminContext(), tx, domain.Entry{
			Action: domain.Action{ActionType: "platform_invoice.cancel", EntityType: "platform_invoice", EntityID: "9", Reason: "duplicate"},
			After:  map[string]any{"status": "CANCELLED"},
		})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, db, &domain.AdminAuditLog{}))

	err = svc.Log(adminContext(), nil, domain.Entry{
		Action: domain.Action{ActionType: "x", EntityType: "y", Reason: ""},
	})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, _ := setupAuditService(t)
	ctx := adminContext()

	for i := 0; i < 5; i++ {
		entityType := "merchant"
		if i%2 == 1 {
			entityType = "pricing_package"
		}
		require.NoError(t, svc.Log(ctx, nil, domain.Entry{
			Action: domain.Action{ActionType: entityType + ".update", EntityType: entityType, EntityID: "1", Reason: "r"},
		}))
	}

	resp, err := svc.List(ctx, domain.ListRequest{EntityType: "merchant"})
	require.NoError(t, err)
	assert.Len(t, resp.AuditLogs, 3)
	assert.False(t, resp.HasMore)

	req := domain.ListRequest{}
	req.PageSize = 2
	first, err := svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	require.True(t, first.HasMore)

	req.PageToken = first.NextPageToken
	second, err := svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 2)
	assert.Less(t, second.AuditLogs[0].ID.Int64(), first.AuditLogs[1].ID.Int64())

	req.PageToken = "!!"
	_, err = svc.List(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 512))

	ua := strings.Repeat("a", 511) + "é"
	got := truncate(ua, 512)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 511), got)

	got = truncate("日本語", 4)
	assert.Equal(t, "日", got)
}
