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

// Metrics holds the OTLP-exported domain counters.
type Metrics struct {
	casesCreated     metric.Int64Counter
	creditMutations  metric.Int64Counter
	paymentEvents    metric.Int64Counter
	letterDrafts     metric.Int64Counter
	lettersSent      metric.Int64Counter
	letterOpens      metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
	approvalDecision metric.Int64Counter
}

// NewProvider registers a global meter provider. Disabled config yields a noop provider.
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

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	if log != nil {
		log.Info("metrics exporter started",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

// New creates the domain instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "redress"
	}
	meter := provider.Meter(name)

	var (
		m   Metrics
		err error
	)
	counters := []struct {
		target *metric.Int64Counter
		name   string
	}{
		{&m.casesCreated, "redress_cases_created_total"},
		{&m.creditMutations, "redress_credit_mutations_total"},
		{&m.paymentEvents, "redress_payment_events_total"},
		{&m.letterDrafts, "redress_letter_drafts_total"},
		{&m.lettersSent, "redress_letters_sent_total"},
		{&m.letterOpens, "redress_letter_opens_total"},
		{&m.rateLimitDenied, "redress_rate_limit_denied_total"},
		{&m.approvalDecision, "redress_approval_decisions_total"},
	}
	for _, c := range counters {
		*c.target, err = meter.Int64Counter(c.name)
		if err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func (m *Metrics) RecordCaseCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.casesCreated.Add(ctx, 1)
}

// RecordCreditMutation counts ledger rows by kind (purchase, usage, refund, admin_adjustment).
func (m *Metrics) RecordCreditMutation(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.creditMutations.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
	)...))
}

func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
}

// RecordLetterDraft counts drafts by the drafter that produced them.
func (m *Metrics) RecordLetterDraft(ctx context.Context, drafter string) {
	if m == nil {
		return
	}
	m.letterDrafts.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("drafter", strings.TrimSpace(drafter)),
	)...))
}

func (m *Metrics) RecordLetterSent(ctx context.Context, letterType string) {
	if m == nil {
		return
	}
	m.lettersSent.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("letter_type", strings.TrimSpace(letterType)),
	)...))
}

func (m *Metrics) RecordLetterOpen(ctx context.Context) {
	if m == nil {
		return
	}
	m.letterOpens.Add(ctx, 1)
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)...))
}

func (m *Metrics) RecordApprovalDecision(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.approvalDecision.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("status", strings.TrimSpace(status)),
	)...))
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

// Account and case identifiers are deliberately absent: they are unbounded.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":        {},
	"provider":    {},
	"outcome":     {},
	"drafter":     {},
	"letter_type": {},
	"endpoint":    {},
	"reason":      {},
	"status":      {},
	"status_code": {},
	"source":      {},
}

// FilterAttributes drops labels outside the low-cardinality allowlist.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
