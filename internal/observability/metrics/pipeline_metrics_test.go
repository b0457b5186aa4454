package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type reasonErr string

func (e reasonErr) Error() string        { return string(e) }
func (e reasonErr) MetricReason() string { return string(e) }

func TestClassifyReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), ReasonDeadlineExceeded},
		{"reasoner", fmt.Errorf("wrap: %w", reasonErr("rate_limited")), "rate_limited"},
		{"lock_timeout", &pgconn.PgError{Code: "55P03"}, ReasonDBLockTimeout},
		{"unique_pg", &pgconn.PgError{Code: "23505"}, ReasonUniqueViolation},
		{"unique_gorm", gorm.ErrDuplicatedKey, ReasonUniqueViolation},
		{"unknown", errors.New("boom"), ReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ClassifyReason(tc.err))
		})
	}
}

func TestPipelineMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newPipelineMetrics(registry, Config{ServiceName: "redress", Environment: "test"})

	m.RecordSource("company", SourceOutcomeOK)
	m.RecordSource("company", SourceOutcomeOK)
	m.RecordStageError(StageResearch, context.DeadlineExceeded)
	m.RecordTransition("draft", "analyzing")
	m.ObserveStage(StageResearch, 2*time.Second)

	require.Equal(t, float64(2), testutil.ToFloat64(m.sourceOutcomes.WithLabelValues("company", SourceOutcomeOK)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.stageErrors.WithLabelValues(StageResearch, ReasonDeadlineExceeded)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.transitions.WithLabelValues("draft", "analyzing")))
}

func TestNilPipelineMetricsAreSafe(t *testing.T) {
	var m *PipelineMetrics
	require.NotPanics(t, func() {
		m.RecordSource("legal", SourceOutcomeFailed)
		m.RecordStageError(StageDrafting, errors.New("x"))
		m.ObserveStage(StageDrafting, time.Second)
	})
}
