package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsUnboundedLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("account_id", "123"),
		attribute.String("case_id", "456"),
		attribute.String("kind", "usage"),
		attribute.String("provider", "stripe"),
	)
	require.Len(t, attrs, 2)
	require.Equal(t, attribute.Key("kind"), attrs[0].Key)
	require.Equal(t, attribute.Key("provider"), attrs[1].Key)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	require.NotPanics(t, func() {
		m.RecordCaseCreated(ctx)
		m.RecordCreditMutation(ctx, "usage")
		m.RecordLetterOpen(ctx)
		m.RecordRateLimitDenied(ctx, "cases.create", "limited")
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	require.NotPanics(t, func() {
		m.RecordLetterDraft(context.Background(), "template")
	})
}
