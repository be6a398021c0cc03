package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	"github.com/merceton/merceton/internal/audit/audittest"
	"github.com/merceton/merceton/internal/billing/domain"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/config"
	invoicedomain "github.com/merceton/merceton/internal/invoice/domain"
	invoicerepo "github.com/merceton/merceton/internal/invoice/repository"
	ledgerdomain "github.com/merceton/merceton/internal/ledger/domain"
	ledgerrepo "github.com/merceton/merceton/internal/ledger/repository"
	ledgerservice "github.com/merceton/merceton/internal/ledger/service"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	merchantrepo "github.com/merceton/merceton/internal/merchant/repository"
	orderdomain "github.com/merceton/merceton/internal/order/domain"
	orderrepo "github.com/merceton/merceton/internal/order/repository"
	"github.com/merceton/merceton/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	rangeFrom = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rangeTo   = time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
)

type billingFixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
}

func setupBilling(t *testing.T) *billingFixture {
	t.Helper()
	models := append(merchantdomain.Models(), orderdomain.Models()...)
	models = append(models, invoicedomain.Models()...)
	models = append(models, &ledgerdomain.LedgerEntry{})
	db := dbtest.Open(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clk,
		Settings: config.NewStaticBillingSettings(config.DefaultBillingSettings()),
		LedgerSvc: ledgerservice.NewService(ledgerservice.Params{
			DB:       db,
			Log:      zap.NewNop(),
			GenID:    node,
			Clock:    clk,
			Repo:     ledgerrepo.Provide(),
			AuditSvc: audittest.New(t, db, node, clk),
		}),
		OrderRepo:    orderrepo.Provide(),
		MerchantRepo: merchantrepo.Provide(),
		InvoiceRepo:  invoicerepo.Provide(),
	})
	return &billingFixture{db: db, node: node, clock: clk, svc: svc}
}

func (f *billingFixture) merchant(t *testing.T, stateCode string) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.db.Create(&merchantdomain.Merchant{
		ID:            id,
		Name:          "Chai Co",
		StoreSlug:     "chai-" + id.String(),
		Email:         "owner@chai.test",
		IsActive:      true,
		AccountStatus: merchantdomain.AccountStatusActive,
		KYCStatus:     merchantdomain.KYCStatusVerified,
		CreatedAt:     f.clock.Now(),
		UpdatedAt:     f.clock.Now(),
	}).Error)
	require.NoError(t, f.db.Create(&merchantdomain.Onboarding{
		MerchantID: id,
		LegalName:  "Chai Company LLP",
		GSTIN:      stateCode + "AAAAA0000A1Z5",
		StateCode:  stateCode,
		UpdatedAt:  f.clock.Now(),
	}).Error)
	return id
}

type line struct {
	total   int64
	rateBps int64
}

// order stores an order with its gross and fee ledger entries at the given time.
func (f *billingFixture) order(t *testing.T, merchantID snowflake.ID, number, shipState string, stage orderdomain.Stage, at time.Time, fee int64, lines ...line) *orderdomain.Order {
	t.Helper()
	o := &orderdomain.Order{
		ID:                f.node.Generate(),
		OrderNumber:       number,
		MerchantID:        merchantID,
		StoreSlug:         "chai",
		CustomerName:      "Customer " + number,
		CustomerPhone:     "9000000000",
		ShippingAddress:   "Somewhere",
		ShippingStateCode: shipState,
		PaymentMethod:     orderdomain.PaymentCOD,
		Stage:             stage,
		CreatedAt:         at,
		UpdatedAt:         at,
	}
	var items []orderdomain.OrderItem
	for _, l := range lines {
		items = append(items, orderdomain.OrderItem{
			ID:             f.node.Generate(),
			OrderID:        o.ID,
			ProductID:      1,
			Name:           "Item",
			UnitPricePaise: l.total,
			Quantity:       1,
			GSTRateBps:     l.rateBps,
			LineTotalPaise: l.total,
			CreatedAt:      at,
		})
		o.GrossAmount += l.total
	}
	o.PlatformFee = fee
	o.NetPayable = o.GrossAmount - fee
	require.NoError(t, f.db.Create(o).Error)
	if len(items) > 0 {
		require.NoError(t, f.db.Create(&items).Error)
	}

	status := ledgerdomain.StatusPending
	if stage == orderdomain.StageCancelled {
		status = ledgerdomain.StatusFailed
	}
	oid := o.ID
	require.NoError(t, f.db.Create(&[]ledgerdomain.LedgerEntry{
		{ID: f.node.Generate(), MerchantID: merchantID, OrderID: &oid, Type: ledgerdomain.EntryGrossOrderValue, Amount: o.GrossAmount, Status: status, CreatedAt: at, UpdatedAt: at},
		{ID: f.node.Generate(), MerchantID: merchantID, OrderID: &oid, Type: ledgerdomain.EntryPlatformFee, Amount: -fee, Status: status, CreatedAt: at, UpdatedAt: at},
	}).Error)
	return o
}

func TestStatementSplitsGSTPerOrder(t *testing.T) {
	f := setupBilling(t)
	merchantID := f.merchant(t, "29")
	other := f.merchant(t, "27")
	day := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	f.order(t, merchantID, "ORD-2025-001", "29", orderdomain.StageDelivered, day, 446, line{10500, 500}, line{11800, 1800})
	f.order(t, merchantID, "ORD-2025-002", "27", orderdomain.StageNew, day.Add(time.Hour), 118, line{5900, 1800})
	f.order(t, merchantID, "ORD-2025-003", "29", orderdomain.StageCancelled, day.Add(2*time.Hour), 20, line{1000, 0})
	f.order(t, merchantID, "ORD-2025-004", "29", orderdomain.StageNew, rangeTo.Add(time.Minute), 20, line{1000, 0})
	f.order(t, other, "ORD-2025-001", "27", orderdomain.StageNew, day, 20, line{1000, 0})

	stmt, err := f.svc.Statement(context.Background(), domain.StatementRequest{MerchantID: &merchantID, From: rangeFrom, To: rangeTo})
	require.NoError(t, err)
	require.Len(t, stmt.Rows, 3)

	first := stmt.Rows[0]
	assert.Equal(t, "ORD-2025-001", first.OrderNumber)
	assert.Equal(t, int64(20000), first.TaxablePaise)
	assert.Equal(t, int64(1150), first.CGSTPaise)
	assert.Equal(t, int64(1150), first.SGSTPaise)
	assert.Zero(t, first.IGSTPaise)
	assert.Equal(t, int64(22300), first.TotalPaise)
	assert.Equal(t, int64(446), first.PlatformFeePaise)

	second := stmt.Rows[1]
	assert.Equal(t, int64(5000), second.TaxablePaise)
	assert.Equal(t, int64(900), second.IGSTPaise)
	assert.Zero(t, second.CGSTPaise+second.SGSTPaise)

	assert.Equal(t, domain.StatusCancelled, stmt.Rows[2].Status)
	assert.Equal(t, domain.Summary{Orders: 2, TaxablePaise: 25000, GSTPaise: 3200, TotalPaise: 28200}, stmt.Summary)

	var buf bytes.Buffer
	require.NoError(t, domain.WriteCSV(&buf, stmt.Rows))
	parsed, err := domain.ParseStatementSummary(&buf)
	require.NoError(t, err)
	assert.Equal(t, stmt.Summary, parsed)

	all, err := f.svc.Statement(context.Background(), domain.StatementRequest{From: rangeFrom, To: rangeTo})
	require.NoError(t, err)
	assert.Len(t, all.Rows, 4)
	assert.Equal(t, 3, all.Summary.Orders)
}

func TestStatementEmptyRange(t *testing.T) {
	f := setupBilling(t)
	merchantID := f.merchant(t, "29")

	stmt, err := f.svc.Statement(context.Background(), domain.StatementRequest{MerchantID: &merchantID, From: rangeFrom, To: rangeTo})
	require.NoError(t, err)
	assert.Empty(t, stmt.Rows)
	assert.Equal(t, domain.Summary{}, stmt.Summary)

	var buf bytes.Buffer
	require.NoError(t, domain.WriteCSV(&buf, stmt.Rows))
	assert.Equal(t, "order_number,date,customer_name,base_amount,cgst,sgst,igst,platform_fee,total,status\n", buf.String())
}

func TestStatementValidation(t *testing.T) {
	f := setupBilling(t)
	ctx := context.Background()

	_, err := f.svc.Statement(ctx, domain.StatementRequest{From: rangeTo, To: rangeFrom})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	missing := snowflake.ID(99)
	_, err = f.svc.Statement(ctx, domain.StatementRequest{MerchantID: &missing, From: rangeFrom, To: rangeTo})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = f.svc.InvoicePDF(ctx, domain.StatementRequest{From: rangeFrom, To: rangeTo})
	assert.ErrorIs(t, err, domain.ErrMerchantRequired)
}

func TestInvoicePDFMarksCancelledInvoices(t *testing.T) {
	f := setupBilling(t)
	merchantID := f.merchant(t, "29")
	day := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	o := f.order(t, merchantID, "ORD-2025-001", "29", orderdomain.StageDelivered, day, 236, line{11800, 1800})

	now := f.clock.Now()
	require.NoError(t, f.db.Create(&invoicedomain.OrderInvoice{
		ID:               f.node.Generate(),
		InvoiceNumber:    "INV/2025-26/00001",
		BillingProfileID: 7,
		OrderID:          o.ID,
		OrderNumber:      o.OrderNumber,
		MerchantID:       merchantID,
		TaxablePaise:     10000,
		CGSTPaise:        900,
		SGSTPaise:        900,
		TotalPaise:       11800,
		Status:           invoicedomain.OrderInvoiceCancelled,
		IssuedAt:         now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}).Error)

	req := domain.StatementRequest{MerchantID: &merchantID, From: rangeFrom, To: rangeTo}
	stmt, err := f.svc.Statement(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, stmt.Rows, 1)
	assert.Equal(t, "INV/2025-26/00001", stmt.Rows[0].InvoiceNumber)
	assert.True(t, stmt.Rows[0].Cancelled())

	out, err := f.svc.InvoicePDF(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
