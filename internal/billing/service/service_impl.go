package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/merceton/merceton/internal/billing/domain"
	"github.com/merceton/merceton/internal/billing/pdf"
	"github.com/merceton/merceton/internal/clock"
	"github.com/merceton/merceton/internal/config"
	invoicedomain "github.com/merceton/merceton/internal/invoice/domain"
	"github.com/merceton/merceton/internal/invoice/gst"
	ledgerdomain "github.com/merceton/merceton/internal/ledger/domain"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	orderdomain "github.com/merceton/merceton/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Settings     *config.BillingSettingsHolder
	LedgerSvc    ledgerdomain.Service
	OrderRepo    orderdomain.Repository
	MerchantRepo merchantdomain.Repository
	InvoiceRepo  invoicedomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	settings     *config.BillingSettingsHolder
	ledgerSvc    ledgerdomain.Service
	orderRepo    orderdomain.Repository
	merchantRepo merchantdomain.Repository
	invoiceRepo  invoicedomain.Repository
}

func NewService(p Params) billingdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("billing.service"),
		clock:        p.Clock,
		settings:     p.Settings,
		ledgerSvc:    p.LedgerSvc,
		orderRepo:    p.OrderRepo,
		merchantRepo: p.MerchantRepo,
		invoiceRepo:  p.InvoiceRepo,
	}
}

func (s *Service) Statement(ctx context.Context, req billingdomain.StatementRequest) (*billingdomain.Statement, error) {
	if req.From.IsZero() || req.To.IsZero() || req.From.After(req.To) {
		return nil, billingdomain.ErrInvalidRange
	}
	if req.MerchantID != nil {
		if _, err := s.loadMerchant(ctx, *req.MerchantID); err != nil {
			return nil, err
		}
	}

	rows, err := s.rows(ctx, req)
	if err != nil {
		return nil, err
	}

	stmt := &billingdomain.Statement{
		MerchantID: req.MerchantID,
		From:       req.From,
		To:         req.To,
		Rows:       rows,
	}
	for _, row := range rows {
		stmt.Summary.Add(row)
	}
	return stmt, nil
}

func (s *Service) InvoicePDF(ctx context.Context, req billingdomain.StatementRequest) ([]byte, error) {
	if req.MerchantID == nil || *req.MerchantID == 0 {
		return nil, billingdomain.ErrMerchantRequired
	}
	stmt, err := s.Statement(ctx, req)
	if err != nil {
		return nil, err
	}
	merchant, err := s.loadMerchant(ctx, *req.MerchantID)
	if err != nil {
		return nil, err
	}
	onboarding, err := s.merchantRepo.FindOnboarding(ctx, s.db, merchant.ID)
	if err != nil {
		return nil, err
	}

	seller := pdf.Party{Name: merchant.Name}
	if onboarding != nil {
		seller = pdf.Party{
			Name:      onboarding.LegalName,
			GSTIN:     onboarding.GSTIN,
			StateCode: onboarding.StateCode,
			Address:   onboarding.Address,
		}
	}
	settings := s.settings.Get()

	data := pdf.InvoiceData{
		Title:     "Tax Invoice",
		Reference: fmt.Sprintf("%s (%s)", merchant.Name, merchant.StoreSlug),
		Period:    fmt.Sprintf("%s to %s", req.From.UTC().Format("2006-01-02"), req.To.UTC().Format("2006-01-02")),
		IssueDate: s.clock.Now().UTC().Format("2006-01-02"),
		Currency:  settings.DefaultCurrency,
		Seller:    seller,
		Platform: pdf.Party{
			Name:      settings.LegalName,
			GSTIN:     settings.GSTIN,
			StateCode: settings.StateCode,
			Address:   settings.Address,
		},
		Footer: settings.InvoiceFooter,
	}

	var totals gst.Breakdown
	for _, row := range stmt.Rows {
		if row.Cancelled() {
			data.Cancelled = true
		}
		status := ""
		if row.Cancelled() {
			status = billingdomain.StatusCancelled
		}
		data.Lines = append(data.Lines, pdf.InvoiceLine{
			OrderNumber: row.OrderNumber,
			Date:        row.Date.UTC().Format("2006-01-02"),
			Customer:    row.CustomerName,
			Taxable:     billingdomain.Rupees(row.TaxablePaise),
			GST:         billingdomain.Rupees(row.GSTPaise()),
			Total:       billingdomain.Rupees(row.TotalPaise),
			Status:      status,
		})
		if row.Status == billingdomain.StatusCancelled {
			continue
		}
		totals = totals.Add(gst.Breakdown{
			Taxable: row.TaxablePaise,
			CGST:    row.CGSTPaise,
			SGST:    row.SGSTPaise,
			IGST:    row.IGSTPaise,
			Total:   row.TotalPaise,
		})
	}
	data.Taxable = billingdomain.Rupees(totals.Taxable)
	data.CGST = billingdomain.Rupees(totals.CGST)
	data.SGST = billingdomain.Rupees(totals.SGST)
	data.IGST = billingdomain.Rupees(totals.IGST)
	data.Total = billingdomain.Rupees(totals.Total)

	out, err := pdf.RenderInvoice(data)
	if err != nil {
		s.log.Error("render invoice pdf", zap.String("merchant_id", merchant.ID.String()), zap.Error(err))
		return nil, billingdomain.ErrRenderFailed.WithCause(err)
	}
	return out, nil
}

func (s *Service) loadMerchant(ctx context.Context, id snowflake.ID) (*merchantdomain.Merchant, error) {
	merchant, err := s.merchantRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, billingdomain.ErrMerchantNotFound
	}
	return merchant, nil
}

// rows builds one statement row per order whose gross entry falls in the
// range. Cancelled orders stay in the statement with status CANCELLED.
func (s *Service) rows(ctx context.Context, req billingdomain.StatementRequest) ([]billingdomain.StatementRow, error) {
	gross, err := s.ledgerSvc.ListByRange(ctx, s.db, ledgerdomain.ListFilter{
		MerchantID: req.MerchantID,
		Types:      []ledgerdomain.EntryType{ledgerdomain.EntryGrossOrderValue},
		From:       req.From,
		To:         req.To,
	})
	if err != nil {
		return nil, err
	}

	var orderIDs []snowflake.ID
	seen := make(map[snowflake.ID]bool)
	for _, entry := range gross {
		if entry.OrderID == nil || seen[*entry.OrderID] {
			continue
		}
		seen[*entry.OrderID] = true
		orderIDs = append(orderIDs, *entry.OrderID)
	}
	if len(orderIDs) == 0 {
		return nil, nil
	}

	orders, err := s.orderRepo.FindByIDs(ctx, s.db, orderIDs)
	if err != nil {
		return nil, err
	}
	items, err := s.orderRepo.ItemsByOrderIDs(ctx, s.db, orderIDs)
	if err != nil {
		return nil, err
	}
	itemsByOrder := make(map[snowflake.ID][]orderdomain.OrderItem)
	for _, item := range items {
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}

	fees, err := s.ledgerSvc.ListByRange(ctx, s.db, ledgerdomain.ListFilter{
		OrderIDs: orderIDs,
		Types:    []ledgerdomain.EntryType{ledgerdomain.EntryPlatformFee},
	})
	if err != nil {
		return nil, err
	}
	feeByOrder := make(map[snowflake.ID]int64)
	for _, entry := range fees {
		if entry.OrderID != nil {
			feeByOrder[*entry.OrderID] += -entry.Amount
		}
	}

	invoices, err := s.invoiceRepo.ListOrderInvoicesByOrders(ctx, s.db, orderIDs)
	if err != nil {
		return nil, err
	}
	invoiceByOrder := make(map[snowflake.ID]invoicedomain.OrderInvoice, len(invoices))
	for _, inv := range invoices {
		invoiceByOrder[inv.OrderID] = inv
	}

	sellerStates := make(map[snowflake.ID]string)
	rows := make([]billingdomain.StatementRow, 0, len(orders))
	for _, o := range orders {
		sellerState, ok := sellerStates[o.MerchantID]
		if !ok {
			onboarding, err := s.merchantRepo.FindOnboarding(ctx, s.db, o.MerchantID)
			if err != nil {
				return nil, err
			}
			if onboarding != nil {
				sellerState = onboarding.StateCode
			}
			sellerStates[o.MerchantID] = sellerState
		}

		row := billingdomain.StatementRow{
			OrderID:          o.ID,
			MerchantID:       o.MerchantID,
			OrderNumber:      o.OrderNumber,
			Date:             o.CreatedAt,
			CustomerName:     o.CustomerName,
			PlatformFeePaise: feeByOrder[o.ID],
			Status:           string(o.Stage),
		}

		tax := orderTax(o, itemsByOrder[o.ID], sellerState)
		row.TaxablePaise = tax.Taxable
		row.CGSTPaise = tax.CGST
		row.SGSTPaise = tax.SGST
		row.IGSTPaise = tax.IGST
		row.TotalPaise = tax.Total

		if inv, ok := invoiceByOrder[o.ID]; ok {
			row.InvoiceNumber = inv.InvoiceNumber
			row.InvoiceCancelled = inv.Status == invoicedomain.OrderInvoiceCancelled
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].OrderNumber < rows[j].OrderNumber
	})
	return rows, nil
}

// orderTax splits each line at its own rate. Orders without items are
// treated as untaxed.
func orderTax(o orderdomain.Order, items []orderdomain.OrderItem, sellerState string) gst.Breakdown {
	if len(items) == 0 {
		return gst.Breakdown{Taxable: o.GrossAmount, Total: o.GrossAmount}
	}
	var total gst.Breakdown
	for _, item := range items {
		total = total.Add(gst.Split(item.LineTotalPaise, item.GSTRateBps, sellerState, o.ShippingStateCode, true))
	}
	return total
}
