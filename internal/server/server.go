package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/merceton/merceton/internal/audit/domain"
	"github.com/merceton/merceton/internal/authorization"
	billingdomain "github.com/merceton/merceton/internal/billing/domain"
	billingprofiledomain "github.com/merceton/merceton/internal/billingprofile/domain"
	catalogdomain "github.com/merceton/merceton/internal/catalog/domain"
	"github.com/merceton/merceton/internal/config"
	invoicedomain "github.com/merceton/merceton/internal/invoice/domain"
	ledgerdomain "github.com/merceton/merceton/internal/ledger/domain"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	"github.com/merceton/merceton/internal/observability"
	obslogger "github.com/merceton/merceton/internal/observability/logger"
	obsmetrics "github.com/merceton/merceton/internal/observability/metrics"
	obstracing "github.com/merceton/merceton/internal/observability/tracing"
	orderdomain "github.com/merceton/merceton/internal/order/domain"
	pricingdomain "github.com/merceton/merceton/internal/pricing/domain"
	supportdomain "github.com/merceton/merceton/internal/support/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(obsmetrics.GinMiddleware(httpMetrics))
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", obsmetrics.PrometheusHandler())

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	log         *zap.Logger
	authzSvc    authorization.Service
	auditSvc    auditdomain.Service
	merchantSvc merchantdomain.Service
	catalogSvc  catalogdomain.Service
	feeResolver pricingdomain.Resolver
	pricingSvc  pricingdomain.AdminService
	orderSvc    orderdomain.Service
	ledgerSvc   ledgerdomain.Service
	invoiceSvc  invoicedomain.Service
	billingSvc  billingdomain.Service
	profileSvc  billingprofiledomain.Service
	supportSvc  supportdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Log         *zap.Logger
	AuthzSvc    authorization.Service
	AuditSvc    auditdomain.Service
	MerchantSvc merchantdomain.Service
	CatalogSvc  catalogdomain.Service
	FeeResolver pricingdomain.Resolver
	PricingSvc  pricingdomain.AdminService
	OrderSvc    orderdomain.Service
	LedgerSvc   ledgerdomain.Service
	InvoiceSvc  invoicedomain.Service
	BillingSvc  billingdomain.Service
	ProfileSvc  billingprofiledomain.Service
	SupportSvc  supportdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		log:         p.Log.Named("http.server"),
		authzSvc:    p.AuthzSvc,
		auditSvc:    p.AuditSvc,
		merchantSvc: p.MerchantSvc,
		catalogSvc:  p.CatalogSvc,
		feeResolver: p.FeeResolver,
		pricingSvc:  p.PricingSvc,
		orderSvc:    p.OrderSvc,
		ledgerSvc:   p.LedgerSvc,
		invoiceSvc:  p.InvoiceSvc,
		billingSvc:  p.BillingSvc,
		profileSvc:  p.ProfileSvc,
		supportSvc:  p.SupportSvc,
	}
	svc.registerPublicRoutes()
	svc.registerMerchantRoutes()
	svc.registerAdminRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	api := s.engine.Group("/api")

	api.GET("/stores/:slug/products", s.ListStoreProducts)
	api.POST("/orders", s.CreateOrder)
}

func (s *Server) registerMerchantRoutes() {
	api := s.engine.Group("/api", s.MerchantRequired())

	// -------- Orders --------
	api.GET("/orders", s.ListOrders)
	api.GET("/orders/:id", s.GetOrder)
	api.POST("/orders/:id/stage", s.UpdateOrderStage)
	api.GET("/orders/:id/invoice", s.GetOrderInvoice)
	api.POST("/orders/:id/invoice", s.IssueOrderInvoice)

	// -------- Catalog --------
	api.GET("/products", s.ListProducts)
	api.POST("/products", s.CreateProduct)
	api.POST("/products/:id/active", s.SetProductActive)

	// -------- Merchant profile --------
	api.GET("/merchants/:id/fee-config", s.GetEffectiveFees)
	api.GET("/onboarding", s.GetOnboarding)
	api.PUT("/onboarding", s.UpsertOnboarding)
	api.PUT("/bank-account", s.UpdateBankAccount)
	api.GET("/ledger/balance", s.GetLedgerBalance)

	// -------- Billing --------
	api.GET("/billing/statement.csv", s.MerchantStatementCSV)
	api.GET("/billing/invoice.pdf", s.MerchantInvoicePDF)
	api.GET("/billing/summary", s.MerchantStatementSummary)

	// -------- Support --------
	api.GET("/support/tickets", s.ListMerchantTickets)
	api.POST("/support/tickets", s.OpenTicket)
	api.GET("/support/tickets/:id", s.GetMerchantTicket)
	api.POST("/support/tickets/:id/replies", s.ReplyAsMerchant)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.AdminRequired())

	view := func(object string) gin.HandlerFunc { return s.authorizeAdmin(object, authorization.ActionView) }
	manage := func(object string) gin.HandlerFunc { return s.authorizeAdmin(object, authorization.ActionManage) }

	// -------- Merchants --------
	admin.GET("/merchants/:id", view(authorization.ObjectMerchant), s.AdminGetMerchant)
	admin.POST("/merchants/:id/status", manage(authorization.ObjectMerchant), s.AdminSetMerchantStatus)
	admin.POST("/merchants/:id/bank-account/verify", manage(authorization.ObjectMerchant), s.AdminVerifyBankAccount)

	// -------- Pricing --------
	admin.GET("/pricing/packages", view(authorization.ObjectPricingPackage), s.AdminListPackages)
	admin.POST("/pricing/packages", manage(authorization.ObjectPricingPackage), s.AdminCreatePackage)
	admin.POST("/pricing/packages/:id/publish", manage(authorization.ObjectPricingPackage), s.AdminPublishPackage)
	admin.POST("/pricing/packages/:id/archive", manage(authorization.ObjectPricingPackage), s.AdminArchivePackage)
	admin.GET("/merchants/:id/fee-config", view(authorization.ObjectMerchantFeeConfig), s.AdminGetFeeConfig)
	admin.POST("/merchants/:id/fee-config/package", manage(authorization.ObjectMerchantFeeConfig), s.AdminAssignPackage)
	admin.POST("/merchants/:id/fee-config/overrides", manage(authorization.ObjectMerchantFeeConfig), s.AdminSetOverrides)
	admin.POST("/merchants/:id/fee-config/overrides/clear", manage(authorization.ObjectMerchantFeeConfig), s.AdminClearOverrides)
	admin.GET("/merchants/:id/fee-preview", view(authorization.ObjectMerchantFeeConfig), s.AdminPreviewFee)

	// -------- Catalog & orders --------
	admin.POST("/products/:id/stock", manage(authorization.ObjectProduct), s.AdminAdjustStock)
	admin.GET("/orders/:id", view(authorization.ObjectOrder), s.AdminGetOrder)
	admin.GET("/orders/:id/ledger", view(authorization.ObjectOrder), s.AdminOrderLedger)

	// -------- Ledger --------
	admin.GET("/merchants/:id/balance", view(authorization.ObjectPayout), s.AdminMerchantBalance)
	admin.POST("/merchants/:id/payouts", manage(authorization.ObjectPayout), s.AdminRecordPayout)

	// -------- Invoices --------
	admin.POST("/order-invoices/:id/cancel", manage(authorization.ObjectOrderInvoice), s.AdminCancelOrderInvoice)
	admin.GET("/platform-invoices", view(authorization.ObjectPlatformInvoice), s.AdminListPlatformInvoices)
	admin.POST("/platform-invoices", manage(authorization.ObjectPlatformInvoice), s.AdminGeneratePlatformInvoice)
	admin.GET("/platform-invoices/:id", view(authorization.ObjectPlatformInvoice), s.AdminGetPlatformInvoice)
	admin.POST("/platform-invoices/:id/cancel", manage(authorization.ObjectPlatformInvoice), s.AdminCancelPlatformInvoice)
	admin.POST("/platform-invoices/:id/mark-paid", manage(authorization.ObjectPlatformInvoice), s.AdminMarkPlatformInvoicePaid)
	admin.GET("/billing-profiles/:id", view(authorization.ObjectBillingProfile), s.AdminGetBillingProfile)
	admin.POST("/billing-profiles/:id/series", manage(authorization.ObjectBillingProfile), s.AdminUpdateSeries)

	// -------- Billing statements --------
	admin.GET("/billing/statement.csv", view(authorization.ObjectBillingStatement), s.AdminStatementCSV)
	admin.GET("/billing/invoice.pdf", view(authorization.ObjectBillingStatement), s.AdminInvoicePDF)
	admin.GET("/billing/summary", view(authorization.ObjectBillingStatement), s.AdminStatementSummary)

	// -------- Support --------
	admin.GET("/support/tickets", view(authorization.ObjectSupportTicket), s.AdminListTickets)
	admin.GET("/support/tickets/:id", view(authorization.ObjectSupportTicket), s.AdminGetTicket)
	admin.POST("/support/tickets/:id/replies", manage(authorization.ObjectSupportTicket), s.ReplyAsAdmin)
	admin.POST("/support/tickets/:id/close", manage(authorization.ObjectSupportTicket), s.AdminCloseTicket)
	admin.POST("/support/tickets/:id/reopen", manage(authorization.ObjectSupportTicket), s.AdminReopenTicket)

	// -------- Audit --------
	admin.GET("/audit-logs", view(authorization.ObjectAuditLog), s.ListAuditLogs)
}
