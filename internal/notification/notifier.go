// Package notification sends merchant and operations emails. Delivery is
// best effort: failures are logged and never reach the caller.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/merceton/merceton/internal/billing/domain"
	"github.com/merceton/merceton/internal/config"
	merchantdomain "github.com/merceton/merceton/internal/merchant/domain"
	"github.com/merceton/merceton/internal/notification/email"
	orderdomain "github.com/merceton/merceton/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sendTimeout = 15 * time.Second

type Params struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
	Email  email.Provider
}

type Notifier struct {
	log     *zap.Logger
	email   email.Provider
	baseURL string
	opsTo   string

	// dispatch runs a delivery; asynchronous outside tests.
	dispatch func(func())
}

func NewNotifier(p Params) *Notifier {
	return &Notifier{
		log:      p.Log.Named("notification"),
		email:    p.Email,
		baseURL:  p.Config.AppBaseURL,
		opsTo:    p.Config.Email.OpsAlertEmail,
		dispatch: func(fn func()) { go fn() },
	}
}

func (n *Notifier) OrderCreated(ctx context.Context, merchant *merchantdomain.Merchant, order *orderdomain.Order) {
	if merchant == nil || order == nil || merchant.Email == "" {
		return
	}
	body, err := email.Render("order_created", map[string]any{
		"MerchantName":  merchant.Name,
		"OrderNumber":   order.OrderNumber,
		"CustomerName":  order.CustomerName,
		"PaymentMethod": order.PaymentMethod,
		"Gross":         billingdomain.Rupees(order.GrossAmount),
		"Fee":           billingdomain.Rupees(order.PlatformFee),
		"Net":           billingdomain.Rupees(order.NetPayable),
		"OrderURL":      fmt.Sprintf("%s/dashboard/orders/%s", n.baseURL, order.ID),
	})
	if err != nil {
		n.log.Error("render order email", zap.Error(err))
		return
	}
	n.deliver(ctx, "order_created", email.Message{
		To:       []string{merchant.Email},
		Subject:  fmt.Sprintf("New order %s", order.OrderNumber),
		HTMLBody: body,
	})
}

func (n *Notifier) InvoiceGenerationFailed(ctx context.Context, merchantID snowflake.ID, periodStart, periodEnd time.Time, cause error) {
	if n.opsTo == "" {
		return
	}
	errText := ""
	if cause != nil {
		errText = cause.Error()
	}
	body, err := email.Render("invoice_generation_failed", map[string]any{
		"MerchantID":  merchantID.String(),
		"PeriodStart": periodStart.UTC().Format("2006-01-02"),
		"PeriodEnd":   periodEnd.UTC().Format("2006-01-02"),
		"Error":       errText,
	})
	if err != nil {
		n.log.Error("render ops alert", zap.Error(err))
		return
	}
	n.deliver(ctx, "invoice_generation_failed", email.Message{
		To:       []string{n.opsTo},
		Subject:  fmt.Sprintf("Weekly invoice failed for merchant %s", merchantID),
		HTMLBody: body,
	})
}

func (n *Notifier) deliver(ctx context.Context, kind string, msg email.Message) {
	ctx = context.WithoutCancel(ctx)
	n.dispatch(func() {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		if err := n.email.Send(sendCtx, msg); err != nil {
			n.log.Warn("email delivery failed",
				zap.String("kind", kind),
				zap.Strings("to", msg.To),
				zap.Error(err),
			)
		}
	})
}
