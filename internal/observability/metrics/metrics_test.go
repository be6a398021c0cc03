package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsTenantLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("merchant_id", "123"),
		attribute.String("order_id", "456"),
		attribute.String("entry_type", "PLATFORM_FEE"),
		attribute.String("payment_method", "COD"),
	)
	keys := []attribute.Key{}
	for _, a := range attrs {
		keys = append(keys, a.Key)
	}
	assert.ElementsMatch(t, []attribute.Key{"entry_type", "payment_method"}, keys)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordOrderCreated(ctx, "COD", 100)
		m.RecordLedgerEntries(ctx, "GROSS_ORDER_VALUE", 1)
		m.RecordAuditLog(ctx, "merchant.disable")
	})
}

func TestNoopMetricsRecord(t *testing.T) {
	m := NewNoop()
	assert.NotNil(t, m)
	assert.NotPanics(t, func() {
		m.RecordInvoiceNumber(context.Background(), "platform")
		m.RecordPlatformInvoice(context.Background(), "ISSUED")
	})
}
