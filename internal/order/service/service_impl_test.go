package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/merceton/merceton/internal/apperror"
	"github.com/merceton/merceton/internal/audit/audittest"
	catalogdomain "github.com/merceton/merceton/internal/catalog/domain"
	catalogrepo "github.com/merceton/merceton/internal/catalog/repository"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/config"
	ledgerdomain "github.com/merceton/merceton/internal/ledger/domain"
	ledgerrepo "github.com/merceton/merceton/internal/ledger/repository"
	ledgerservice "github.com/merceton/merceton/internal/ledger/service"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	merchantrepo "github.com/merceton/merceton/internal/merchant/repository"
	"github.com/merceton/merceton/internal/order/domain"
	"github.com/merceton/merceton/internal/order/repository"
	pricingdomain "github.com/merceton/merceton/internal/pricing/domain"
	pricingrepo "github.com/merceton/merceton/internal/pricing/repository"
	pricingservice "github.com/merceton/merceton/internal/pricing/service"
	"github.com/merceton/merceton/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type orderFixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	clock  *clock.FakeClock
	svc    domain.Service
	ledger ledgerdomain.Service
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []string
}

func (n *recordingNotifier) OrderCreated(_ context.Context, _ *merchantdomain.Merchant, order *domain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order.OrderNumber)
}

func setupOrders(t *testing.T) (*orderFixture, *recordingNotifier) {
	t.Helper()
	models := append(merchantdomain.Models(), pricingdomain.Models()...)
	models = append(models, domain.Models()...)
	models = append(models, &catalogdomain.Product{}, &ledgerdomain.LedgerEntry{})
	db := dbtest.Open(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	auditSvc := audittest.New(t, db, node, clk)

	resolver := pricingservice.NewResolver(pricingservice.ResolverParams{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		Config:       config.Config{DefaultPricingPackageCode: "starter"},
		Repo:         pricingrepo.Provide(),
		MerchantRepo: merchantrepo.Provide(),
	})
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     ledgerrepo.Provide(),
		AuditSvc: auditSvc,
	})
	notifier := &recordingNotifier{}
	svc := NewService(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		Repo:         repository.Provide(),
		MerchantRepo: merchantrepo.Provide(),
		ProductRepo:  catalogrepo.Provide(),
		Resolver:     resolver,
		LedgerSvc:    ledgerSvc,
		Notifier:     notifier,
	})
	return &orderFixture{db: db, node: node, clock: clk, svc: svc, ledger: ledgerSvc}, notifier
}

func (f *orderFixture) merchant(t *testing.T, active bool) *merchantdomain.Merchant {
	t.Helper()
	id := f.node.Generate()
	m := &merchantdomain.Merchant{
		ID:            id,
		Name:          "Kirana " + id.String(),
		StoreSlug:     "kirana-" + id.String(),
		Email:         "owner@kirana.test",
		IsActive:      active,
		AccountStatus: merchantdomain.AccountStatusActive,
		KYCStatus:     merchantdomain.KYCStatusVerified,
		CreatedAt:     f.clock.Now(),
		UpdatedAt:     f.clock.Now(),
	}
	if !active {
		m.AccountStatus = merchantdomain.AccountStatusSuspended
	}
	require.NoError(t, f.db.Create(m).Error)
	return m
}

func (f *orderFixture) product(t *testing.T, merchantID snowflake.ID, name string, price, stock int64) *catalogdomain.Product {
	t.Helper()
	id := f.node.Generate()
	p := &catalogdomain.Product{
		ID:         id,
		MerchantID: merchantID,
		Name:       name,
		SKU:        "SKU-" + id.String(),
		HSNCode:    "0902",
		PricePaise: price,
		GSTRateBps: 500,
		Stock:      stock,
		IsActive:   true,
		CreatedAt:  f.clock.Now(),
		UpdatedAt:  f.clock.Now(),
	}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *orderFixture) stock(t *testing.T, productID snowflake.ID) int64 {
	t.Helper()
	var p catalogdomain.Product
	require.NoError(t, f.db.First(&p, "id = ?", productID).Error)
	return p.Stock
}

func input(m *merchantdomain.Merchant, items ...domain.ItemInput) domain.CreateOrderInput {
	return domain.CreateOrderInput{
		MerchantID:        m.ID,
		StoreSlug:         m.StoreSlug,
		Items:             items,
		CustomerName:      "Asha Rao",
		CustomerEmail:     "asha@example.com",
		CustomerPhone:     "9876543210",
		ShippingAddress:   "12 MG Road, Bengaluru",
		ShippingStateCode: "29",
		PaymentMethod:     domain.PaymentCOD,
	}
}

func TestCreateOrderStarterFees(t *testing.T) {
	f, notifier := setupOrders(t)
	m := f.merchant(t, true)
	tea := f.product(t, m.ID, "Assam Tea", 50000, 10)

	res := f.svc.CreateOrder(context.Background(), input(m, domain.ItemInput{ProductID: tea.ID, Quantity: 2}))
	require.True(t, res.Success, res.Error)
	order := res.Order

	assert.Equal(t, "ORD-2025-001", order.OrderNumber)
	assert.EqualValues(t, 100000, order.GrossAmount)
	assert.EqualValues(t, 2000, order.PlatformFee)
	assert.EqualValues(t, 98000, order.NetPayable)
	assert.Equal(t, order.GrossAmount-order.PlatformFee, order.NetPayable)
	assert.Equal(t, domain.StageNew, order.Stage)
	require.NotNil(t, order.Payment)
	assert.Equal(t, domain.PaymentPending, order.Payment.Status)
	require.Len(t, order.Items, 1)
	assert.EqualValues(t, 100000, order.Items[0].LineTotalPaise)

	assert.EqualValues(t, 8, f.stock(t, tea.ID))

	entries, err := f.ledger.ListByOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	amounts := map[ledgerdomain.EntryType]int64{}
	for _, e := range entries {
		assert.Equal(t, ledgerdomain.StatusPending, e.Status)
		amounts[e.Type] = e.Amount
	}
	assert.Equal(t, amounts[ledgerdomain.EntryOrderPayout], amounts[ledgerdomain.EntryGrossOrderValue]+amounts[ledgerdomain.EntryPlatformFee])

	assert.Equal(t, []string{"ORD-2025-001"}, notifier.orders)
}

func TestCreateOrderNumbersPerMerchantAndYear(t *testing.T) {
	f, _ := setupOrders(t)
	ctx := context.Background()
	a := f.merchant(t, true)
	b := f.merchant(t, true)
	pa := f.product(t, a.ID, "Filter Coffee", 30000, 100)
	pb := f.product(t, b.ID, "Masala Chai", 20000, 100)

	first := f.svc.CreateOrder(ctx, input(a, domain.ItemInput{ProductID: pa.ID, Quantity: 1}))
	second := f.svc.CreateOrder(ctx, input(a, domain.ItemInput{ProductID: pa.ID, Quantity: 1}))
	other := f.svc.CreateOrder(ctx, input(b, domain.ItemInput{ProductID: pb.ID, Quantity: 1}))
	require.True(t, first.Success, first.Error)
	require.True(t, second.Success, second.Error)
	require.True(t, other.Success, other.Error)

	assert.Equal(t, "ORD-2025-001", first.Order.OrderNumber)
	assert.Equal(t, "ORD-2025-002", second.Order.OrderNumber)
	assert.Equal(t, "ORD-2025-001", other.Order.OrderNumber)

	f.clock.Set(time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC))
	next := f.svc.CreateOrder(ctx, input(a, domain.ItemInput{ProductID: pa.ID, Quantity: 1}))
	require.True(t, next.Success, next.Error)
	assert.Equal(t, "ORD-2026-001", next.Order.OrderNumber)
}

func TestCreateOrderConcurrentNumbersAreDistinct(t *testing.T) {
	f, _ := setupOrders(t)
	m := f.merchant(t, true)
	p := f.product(t, m.ID, "Jaggery", 1000, 1000)

	const workers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
		fails   []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := f.svc.CreateOrder(context.Background(), input(m, domain.ItemInput{ProductID: p.ID, Quantity: 1}))
			mu.Lock()
			defer mu.Unlock()
			if !res.Success {
				fails = append(fails, res.Error)
				return
			}
			numbers[res.Order.OrderNumber] = true
		}()
	}
	wg.Wait()

	require.Empty(t, fails)
	assert.Len(t, numbers, workers)
	assert.True(t, numbers["ORD-2025-001"])
	assert.True(t, numbers["ORD-2025-012"])
	assert.EqualValues(t, 1000-workers, f.stock(t, p.ID))
}

func TestCreateOrderInsufficientStockLeavesStock(t *testing.T) {
	f, notifier := setupOrders(t)
	m := f.merchant(t, true)
	ghee := f.product(t, m.ID, "Desi Ghee", 65000, 3)

	res := f.svc.CreateOrder(context.Background(), input(m,
		domain.ItemInput{ProductID: ghee.ID, Quantity: 2},
		domain.ItemInput{ProductID: ghee.ID, Quantity: 2},
	))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Desi Ghee")
	assert.True(t, apperror.IsKind(res.Err, apperror.KindBusinessRule))

	assert.EqualValues(t, 3, f.stock(t, ghee.ID))
	var orders int64
	require.NoError(t, f.db.Model(&domain.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
	var entries int64
	require.NoError(t, f.db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
	assert.Empty(t, notifier.orders)
}

func TestCreateOrderFailures(t *testing.T) {
	f, _ := setupOrders(t)
	ctx := context.Background()
	m := f.merchant(t, true)
	other := f.merchant(t, true)
	inactive := f.merchant(t, false)
	foreign := f.product(t, other.ID, "Foreign", 1000, 5)
	p := f.product(t, m.ID, "Rice", 1000, 5)

	res := f.svc.CreateOrder(ctx, input(m))
	assert.False(t, res.Success)
	assert.True(t, apperror.IsKind(res.Err, apperror.KindValidation))

	res = f.svc.CreateOrder(ctx, input(m, domain.ItemInput{ProductID: foreign.ID, Quantity: 1}))
	assert.False(t, res.Success)
	assert.True(t, apperror.IsKind(res.Err, apperror.KindNotFound))

	res = f.svc.CreateOrder(ctx, input(inactive, domain.ItemInput{ProductID: p.ID, Quantity: 1}))
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrMerchantInactive)

	wrongSlug := input(m, domain.ItemInput{ProductID: p.ID, Quantity: 1})
	wrongSlug.StoreSlug = "someone-else"
	res = f.svc.CreateOrder(ctx, wrongSlug)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrMerchantNotFound)

	require.NoError(t, f.db.Model(&catalogdomain.Product{}).Where("id = ?", p.ID).Update("is_active", false).Error)
	res = f.svc.CreateOrder(ctx, input(m, domain.ItemInput{ProductID: p.ID, Quantity: 1}))
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrProductInactive)

	assert.EqualValues(t, 5, f.stock(t, p.ID))
}

func TestCancelRestoresStockAndFailsLedger(t *testing.T) {
	f, _ := setupOrders(t)
	ctx := context.Background()
	m := f.merchant(t, true)
	p := f.product(t, m.ID, "Honey", 40000, 5)

	res := f.svc.CreateOrder(ctx, input(m, domain.ItemInput{ProductID: p.ID, Quantity: 2}))
	require.True(t, res.Success, res.Error)
	assert.EqualValues(t, 3, f.stock(t, p.ID))

	order, err := f.svc.UpdateStage(ctx, domain.UpdateStageRequest{OrderID: res.Order.ID, Stage: domain.StageCancelled})
	require.NoError(t, err)
	assert.Equal(t, domain.StageCancelled, order.Stage)
	assert.Equal(t, domain.PaymentCancelled, order.Payment.Status)
	assert.EqualValues(t, 5, f.stock(t, p.ID))

	entries, err := f.ledger.ListByOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, ledgerdomain.StatusFailed, e.Status)
	}

	_, err = f.svc.UpdateStage(ctx, domain.UpdateStageRequest{OrderID: res.Order.ID, Stage: domain.StageConfirmed})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDeliveryCompletesLedger(t *testing.T) {
	f, _ := setupOrders(t)
	ctx := context.Background()
	m := f.merchant(t, true)
	p := f.product(t, m.ID, "Cashews", 90000, 5)

	res := f.svc.CreateOrder(ctx, input(m, domain.ItemInput{ProductID: p.ID, Quantity: 1}))
	require.True(t, res.Success, res.Error)

	_, err := f.svc.UpdateStage(ctx, domain.UpdateStageRequest{OrderID: res.Order.ID, Stage: domain.StageDelivered})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	for _, stage := range []domain.Stage{
		domain.StageConfirmed,
		domain.StagePacked,
		domain.StageShipped,
		domain.StageOutForDelivery,
		domain.StageDelivered,
	} {
		_, err := f.svc.UpdateStage(ctx, domain.UpdateStageRequest{OrderID: res.Order.ID, Stage: stage})
		require.NoError(t, err, stage)
	}

	order, err := f.svc.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageDelivered, order.Stage)
	assert.Equal(t, domain.PaymentCaptured, order.Payment.Status)

	entries, err := f.ledger.ListByOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, ledgerdomain.StatusCompleted, e.Status)
	}

	_, err = f.svc.UpdateStage(ctx, domain.UpdateStageRequest{OrderID: res.Order.ID, Stage: domain.StageCancelled})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestListOrdersPages(t *testing.T) {
	f, _ := setupOrders(t)
	ctx := context.Background()
	m := f.merchant(t, true)
	p := f.product(t, m.ID, "Saffron", 5000, 50)

	for i := 0; i < 3; i++ {
		res := f.svc.CreateOrder(ctx, input(m, domain.ItemInput{ProductID: p.ID, Quantity: 1}))
		require.True(t, res.Success, res.Error)
	}

	req := domain.ListRequest{MerchantID: m.ID}
	req.PageSize = 2
	page, err := f.svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "ORD-2025-003", page.Orders[0].OrderNumber)

	req.PageToken = page.NextPageToken
	page, err = f.svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, "ORD-2025-001", page.Orders[0].OrderNumber)
}
