package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	"github.com/merceton/merceton/internal/audit/audittest"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/merchant/domain"
	"github.com/merceton/merceton/internal/merchant/repository"
	"github.com/merceton/merceton/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupMerchantService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t, domain.Models()...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		AuditSvc: audittest.New(t, db, node, clk),
	})
	return svc, db
}

func TestCreateGeneratesUniqueSlugs(t *testing.T) {
	svc, _ := setupMerchantService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.CreateRequest{Name: "Chai & Co", Email: "Owner@Chai.in"})
	require.NoError(t, err)
	assert.Equal(t, "chai-and-co", first.StoreSlug)
	assert.Equal(t, "owner@chai.in", first.Email)
	assert.True(t, first.IsActive)
	assert.Equal(t, domain.KYCStatusPending, first.KYCStatus)

	second, err := svc.Create(ctx, domain.CreateRequest{Name: "Chai & Co", Email: "two@chai.in"})
	require.NoError(t, err)
	assert.Equal(t, "chai-and-co-2", second.StoreSlug)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "Other", Email: "x@y.in", StoreSlug: "chai-and-co"})
	assert.ErrorIs(t, err, domain.ErrSlugTaken)

	found, err := svc.GetBySlug(ctx, "chai-and-co-2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := setupMerchantService(t)
	_, err := svc.Create(context.Background(), domain.CreateRequest{Name: " ", Email: "nope"})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestVerifiedBankAccountCannotBeEdited(t *testing.T) {
	svc, db := setupMerchantService(t)
	m, err := svc.Create(context.Background(), domain.CreateRequest{Name: "Kirana", Email: "k@k.in"})
	require.NoError(t, err)

	req := domain.BankAccountRequest{AccountHolder: "Kirana Stores", AccountNumber: "123456789012", IFSC: "HDFC0001234"}
	_, err = svc.UpdateBankAccount(context.Background(), m.ID, req)
	require.NoError(t, err)

	verified, err := svc.VerifyBankAccount(audittest.AdminContext(), domain.VerifyBankAccountRequest{MerchantID: m.ID, Reason: "penny drop ok"})
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	req.AccountNumber = "999999999999"
	_, err = svc.UpdateBankAccount(context.Background(), m.ID, req)
	require.ErrorIs(t, err, domain.ErrBankAccountVerified)
	assert.True(t, apperror.IsKind(err, apperror.KindBusinessRule))

	rows := audittest.Entries(t, db, "merchant.verify_bank_account")
	require.Len(t, rows, 1)
	assert.Equal(t, "****9012", rows[0].After["account_number"])
	assert.Equal(t, false, rows[0].Before["is_verified"])
}

func TestSetStatusIsAuditedAndSoft(t *testing.T) {
	svc, db := setupMerchantService(t)
	m, err := svc.Create(context.Background(), domain.CreateRequest{Name: "Dhaba", Email: "d@d.in"})
	require.NoError(t, err)

	_, err = svc.SetStatus(audittest.AdminContext(), domain.SetStatusRequest{MerchantID: m.ID, Status: domain.AccountStatusSuspended})
	require.Error(t, err)
	assert.Empty(t, audittest.Entries(t, db, "merchant.set_status"))

	updated, err := svc.SetStatus(audittest.AdminContext(), domain.SetStatusRequest{
		MerchantID: m.ID,
		Status:     domain.AccountStatusSuspended,
		Reason:     "chargeback spike",
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	got, err := svc.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusSuspended, got.AccountStatus)

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	rows := audittest.Entries(t, db, "merchant.set_status")
	require.Len(t, rows, 1)
	assert.Equal(t, "chargeback spike", rows[0].Reason)
	assert.Equal(t, "ACTIVE", rows[0].Before["account_status"])
	assert.Equal(t, "SUSPENDED", rows[0].After["account_status"])
}

func TestSetStatusUnknownMerchantRollsBack(t *testing.T) {
	svc, db := setupMerchantService(t)
	_, err := svc.SetStatus(audittest.AdminContext(), domain.SetStatusRequest{
		MerchantID: snowflake.ID(404),
		Status:     domain.AccountStatusDisabled,
		Reason:     "fraud",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, audittest.Entries(t, db, "merchant.set_status"))
}
