package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	StageResearch = "research"
	StageDrafting = "drafting"
	StageDispatch = "dispatch"
)

const (
	ReasonDeadlineExceeded = "deadline_exceeded"
	ReasonDBLockTimeout    = "db_lock_timeout"
	ReasonUniqueViolation  = "unique_violation"
	ReasonUnknown          = "unknown"
)

const (
	SourceOutcomeOK      = "ok"
	SourceOutcomeFailed  = "failed"
	SourceOutcomeTimeout = "timeout"
)

// Reasoner lets domain errors name their own metric reason.
type Reasoner interface {
	MetricReason() string
}

// PipelineMetrics tracks case pipeline health on the Prometheus registry.
type PipelineMetrics struct {
	stageDuration  *prometheus.HistogramVec
	stageErrors    *prometheus.CounterVec
	sourceOutcomes *prometheus.CounterVec
	transitions    *prometheus.CounterVec
}

func NewPipelineMetrics(cfg Config) *PipelineMetrics {
	return newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	labels := constLabels(cfg)
	m := &PipelineMetrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "redress_pipeline_stage_duration_seconds",
			Help:        "Pipeline stage latency.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			ConstLabels: labels,
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "redress_pipeline_stage_errors_total",
			Help:        "Pipeline stage failures by low-cardinality reason.",
			ConstLabels: labels,
		}, []string{"stage", "reason"}),
		sourceOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "redress_research_source_outcomes_total",
			Help:        "Research source completions by outcome.",
			ConstLabels: labels,
		}, []string{"source", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "redress_case_transitions_total",
			Help:        "Case state transitions.",
			ConstLabels: labels,
		}, []string{"from", "to"}),
	}
	registerer.MustRegister(m.stageDuration, m.stageErrors, m.sourceOutcomes, m.transitions)
	return m
}

func (m *PipelineMetrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) RecordStageError(stage string, err error) {
	if m == nil || err == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage, ClassifyReason(err)).Inc()
}

func (m *PipelineMetrics) RecordSource(source, outcome string) {
	if m == nil {
		return
	}
	m.sourceOutcomes.WithLabelValues(source, outcome).Inc()
}

func (m *PipelineMetrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ClassifyReason maps an error to a bounded reason label.
func ClassifyReason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonDeadlineExceeded
	}
	var reasoner Reasoner
	if errors.As(err, &reasoner) {
		if reason := reasoner.MetricReason(); reason != "" {
			return reason
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ReasonUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return ReasonDBLockTimeout
		case "23505":
			return ReasonUniqueViolation
		}
	}
	return ReasonUnknown
}
