package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	"github.com/merceton/merceton/internal/audit/audittest"
	"github.com/merceton/merceton/internal/catalog/domain"
	"github.com/merceton/merceton/internal/catalog/repository"
	"github.com/merceton/merceton/internal/clock"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	merchantrepo "github.com/merceton/merceton/internal/merchant/repository"
	"github.com/merceton/merceton/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupCatalog(t *testing.T) (domain.Service, *gorm.DB, snowflake.ID) {
	t.Helper()
	db := dbtest.Open(t, append(merchantdomain.Models(), &domain.Product{})...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))

	merchantID := node.Generate()
	require.NoError(t, db.Create(&merchantdomain.Merchant{
		ID:            merchantID,
		Name:          "Spice Route",
		StoreSlug:     "spice-route",
		Email:         "owner@spice.in",
		IsActive:      true,
		AccountStatus: merchantdomain.AccountStatusActive,
		KYCStatus:     merchantdomain.KYCStatusVerified,
		CreatedAt:     clk.Now(),
		UpdatedAt:     clk.Now(),
	}).Error)

	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		Repo:         repository.Provide(),
		MerchantRepo: merchantrepo.Provide(),
		AuditSvc:     audittest.New(t, db, node, clk),
	})
	return svc, db, merchantID
}

func TestCreateAndList(t *testing.T) {
	svc, _, merchantID := setupCatalog(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, domain.CreateRequest{
		MerchantID: merchantID,
		Name:       "Masala Chai 250g",
		SKU:        "chai-250",
		HSNCode:    "0902",
		PricePaise: 34900,
		GSTRateBps: 500,
		Stock:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, "CHAI-250", p.SKU)

	_, err = svc.Create(ctx, domain.CreateRequest{MerchantID: merchantID, Name: "Dup", SKU: "CHAI-250", PricePaise: 100, GSTRateBps: 500})
	assert.ErrorIs(t, err, domain.ErrSKUTaken)

	_, err = svc.Create(ctx, domain.CreateRequest{MerchantID: merchantID, Name: "Odd rate", SKU: "X", PricePaise: 100, GSTRateBps: 700})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = svc.SetActive(ctx, merchantID, p.ID, false)
	require.NoError(t, err)

	active, err := svc.ListByMerchant(ctx, merchantID, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListByMerchant(ctx, merchantID, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAdjustStockRejectsNegativeResult(t *testing.T) {
	svc, db, merchantID := setupCatalog(t)
	p, err := svc.Create(context.Background(), domain.CreateRequest{
		MerchantID: merchantID, Name: "Ghee 1L", SKU: "GHEE-1", PricePaise: 65000, GSTRateBps: 1200, Stock: 3,
	})
	require.NoError(t, err)

	_, err = svc.AdjustStock(audittest.AdminContext(), domain.AdjustStockRequest{ProductID: p.ID, Delta: -5, Reason: "damaged in transit"})
	require.ErrorIs(t, err, domain.ErrNegativeStock)

	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Stock)
	assert.Empty(t, audittest.Entries(t, db, "product.adjust_stock"))

	updated, err := svc.AdjustStock(audittest.AdminContext(), domain.AdjustStockRequest{ProductID: p.ID, Delta: 7, Reason: "restock"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), updated.Stock)

	rows := audittest.Entries(t, db, "product.adjust_stock")
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].Before["stock"])
	assert.Equal(t, int64(10), rows[0].After["stock"])
}

func TestAdjustStockRequiresReason(t *testing.T) {
	svc, _, merchantID := setupCatalog(t)
	p, err := svc.Create(context.Background(), domain.CreateRequest{
		MerchantID: merchantID, Name: "Rice", SKU: "RICE", PricePaise: 9000, GSTRateBps: 0, Stock: 1,
	})
	require.NoError(t, err)

	_, err = svc.AdjustStock(audittest.AdminContext(), domain.AdjustStockRequest{ProductID: p.ID, Delta: 4})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Stock)
}

func TestAdjustStockStampsClockTime(t *testing.T) {
	svc, db, merchantID := setupCatalog(t)
	p, err := svc.Create(context.Background(), domain.CreateRequest{
		MerchantID: merchantID, Name: "Jaggery", SKU: "JAG-1", PricePaise: 12000, GSTRateBps: 0, Stock: 2,
	})
	require.NoError(t, err)

	_, err = svc.AdjustStock(audittest.AdminContext(), domain.AdjustStockRequest{ProductID: p.ID, Delta: 3, Reason: "restock"})
	require.NoError(t, err)

	var stored domain.Product
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, int64(5), stored.Stock)
	assert.True(t, stored.UpdatedAt.Equal(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)), "updated_at = %s", stored.UpdatedAt)
}
