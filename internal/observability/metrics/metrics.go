package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the commerce instruments recorded by domain services.
type Metrics struct {
	ordersCreated    metric.Int64Counter
	orderFailures    metric.Int64Counter
	ledgerEntries    metric.Int64Counter
	invoiceNumbers   metric.Int64Counter
	platformInvoices metric.Int64Counter
	auditLogs        metric.Int64Counter
	grossPaise       metric.Int64Counter
}

// NewProvider registers an OTLP meter provider, or a noop one when disabled.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "merceton"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
	}{
		{&m.ordersCreated, "merceton_orders_created_total"},
		{&m.orderFailures, "merceton_order_failures_total"},
		{&m.ledgerEntries, "merceton_ledger_entries_total"},
		{&m.invoiceNumbers, "merceton_invoice_numbers_allocated_total"},
		{&m.platformInvoices, "merceton_platform_invoices_total"},
		{&m.auditLogs, "merceton_audit_logs_total"},
		{&m.grossPaise, "merceton_order_gross_paise_total"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}
	return m, nil
}

// NewNoop returns instruments bound to a noop provider, for tests and tools.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, paymentMethod string, grossPaise int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("payment_method", paymentMethod))...)
	m.ordersCreated.Add(ctx, 1, attrs)
	m.grossPaise.Add(ctx, grossPaise, attrs)
}

func (m *Metrics) RecordOrderFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.orderFailures.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("reason", reason))...))
}

func (m *Metrics) RecordLedgerEntries(ctx context.Context, entryType string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ledgerEntries.Add(ctx, int64(count), metric.WithAttributes(FilterAttributes(attribute.String("entry_type", entryType))...))
}

func (m *Metrics) RecordInvoiceNumber(ctx context.Context, profileKind string) {
	if m == nil {
		return
	}
	m.invoiceNumbers.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("profile_kind", profileKind))...))
}

func (m *Metrics) RecordPlatformInvoice(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.platformInvoices.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("status", status))...))
}

func (m *Metrics) RecordAuditLog(ctx context.Context, actionType string) {
	if m == nil {
		return
	}
	m.auditLogs.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("action_type", actionType))...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Merchant and order ids never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":       {},
	"status_code":    {},
	"payment_method": {},
	"entry_type":     {},
	"profile_kind":   {},
	"action_type":    {},
	"status":         {},
	"reason":         {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
