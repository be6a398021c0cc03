package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	"github.com/merceton/merceton/internal/audit/audittest"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/ledger/domain"
	"github.com/merceton/merceton/internal/ledger/repository"
	"github.com/merceton/merceton/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupLedger(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t, &domain.LedgerEntry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		AuditSvc: audittest.New(t, db, node, clk),
	})
	return svc, db, node, clk
}

func TestAppendOrderEntriesBalances(t *testing.T) {
	svc, db, node, _ := setupLedger(t)
	posting := domain.OrderPosting{
		OrderID:     node.Generate(),
		MerchantID:  node.Generate(),
		OrderNumber: "ORD-2025-001",
		GrossPaise:  100000,
		FeePaise:    2000,
		NetPaise:    98000,
	}

	entries, err := svc.AppendOrderEntries(context.Background(), db, posting)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byType := map[domain.EntryType]int64{}
	for _, e := range entries {
		assert.Equal(t, domain.StatusPending, e.Status)
		byType[e.Type] = e.Amount
	}
	assert.Equal(t, int64(100000), byType[domain.EntryGrossOrderValue])
	assert.Equal(t, int64(-2000), byType[domain.EntryPlatformFee])
	assert.Equal(t, int64(98000), byType[domain.EntryOrderPayout])
	assert.Equal(t, byType[domain.EntryOrderPayout], byType[domain.EntryGrossOrderValue]+byType[domain.EntryPlatformFee])

	stored, err := svc.ListByOrder(context.Background(), posting.OrderID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestAppendOrderEntriesRejectsUnbalanced(t *testing.T) {
	svc, db, node, _ := setupLedger(t)
	_, err := svc.AppendOrderEntries(context.Background(), db, domain.OrderPosting{
		OrderID:    node.Generate(),
		MerchantID: node.Generate(),
		GrossPaise: 1000,
		FeePaise:   10,
		NetPaise:   900,
	})
	require.ErrorIs(t, err, domain.ErrUnbalancedOrder)

	var n int64
	require.NoError(t, db.Model(&domain.LedgerEntry{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestTransitionOnlyFromPending(t *testing.T) {
	svc, db, node, _ := setupLedger(t)
	orderID := node.Generate()
	_, err := svc.AppendOrderEntries(context.Background(), db, domain.OrderPosting{
		OrderID: orderID, MerchantID: node.Generate(), GrossPaise: 5000, FeePaise: 1050, NetPaise: 3950,
	})
	require.NoError(t, err)

	n, err := svc.TransitionOrderEntries(context.Background(), nil, orderID, domain.StatusPending, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = svc.TransitionOrderEntries(context.Background(), nil, orderID, domain.StatusPending, domain.StatusFailed)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.TransitionOrderEntries(context.Background(), nil, orderID, domain.StatusCompleted, domain.StatusPending)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestBalanceAndPayout(t *testing.T) {
	svc, db, node, _ := setupLedger(t)
	merchantID := node.Generate()
	delivered := node.Generate()
	pending := node.Generate()

	for _, orderID := range []snowflake.ID{delivered, pending} {
		_, err := svc.AppendOrderEntries(context.Background(), db, domain.OrderPosting{
			OrderID: orderID, MerchantID: merchantID, GrossPaise: 100000, FeePaise: 2000, NetPaise: 98000,
		})
		require.NoError(t, err)
	}
	_, err := svc.TransitionOrderEntries(context.Background(), nil, delivered, domain.StatusPending, domain.StatusCompleted)
	require.NoError(t, err)

	balance, err := svc.MerchantBalance(context.Background(), merchantID)
	require.NoError(t, err)
	assert.Equal(t, int64(98000), balance.AvailablePaise)
	assert.Equal(t, int64(98000), balance.PendingPaise)

	_, err = svc.RecordPayout(audittest.AdminContext(), domain.PayoutRequest{
		MerchantID: merchantID, AmountPaise: 98001, Reference: "UTR1", Reason: "weekly settlement",
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, apperror.IsKind(err, apperror.KindBusinessRule))

	payout, err := svc.RecordPayout(audittest.AdminContext(), domain.PayoutRequest{
		MerchantID: merchantID, AmountPaise: 50000, Reference: "UTR2", Reason: "weekly settlement",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-50000), payout.Amount)

	balance, err = svc.MerchantBalance(context.Background(), merchantID)
	require.NoError(t, err)
	assert.Equal(t, int64(48000), balance.AvailablePaise)
	assert.Len(t, audittest.Entries(t, db, "ledger.record_payout"), 1)
}

func TestListByRangeFilters(t *testing.T) {
	svc, db, node, clk := setupLedger(t)
	merchantID := node.Generate()

	_, err := svc.AppendOrderEntries(context.Background(), db, domain.OrderPosting{
		OrderID: node.Generate(), MerchantID: merchantID, GrossPaise: 1000, FeePaise: 1010, NetPaise: -10,
		OccurredAt: clk.Now(),
	})
	require.NoError(t, err)
	_, err = svc.AppendOrderEntries(context.Background(), db, domain.OrderPosting{
		OrderID: node.Generate(), MerchantID: merchantID, GrossPaise: 2000, FeePaise: 1020, NetPaise: 980,
		OccurredAt: clk.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)

	items, err := svc.ListByRange(context.Background(), nil, domain.ListFilter{
		MerchantID: &merchantID,
		Types:      []domain.EntryType{domain.EntryPlatformFee},
		From:       clk.Now().Add(-time.Hour),
		To:         clk.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(-1010), items[0].Amount)

	_, err = svc.ListByRange(context.Background(), nil, domain.ListFilter{From: clk.Now(), To: clk.Now().Add(-time.Second)})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}
