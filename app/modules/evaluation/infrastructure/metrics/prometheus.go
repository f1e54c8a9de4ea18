package evaluationmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	evaluationtypes "github.com/inf-monkeys/arena/app/modules/evaluation/domain/types"
)

// PrometheusMetrics implements EvaluationMetrics on a prometheus registry.
type PrometheusMetrics struct {
	operationAttempts *prometheus.CounterVec
	operationSuccess  *prometheus.CounterVec
	operationFailures *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	dbQueryDuration   prometheus.Histogram
	battlesResolved   *prometheus.CounterVec
	battlesFailed     prometheus.Counter
	conflictRetries   *prometheus.CounterVec
	judgeVerdicts     *prometheus.CounterVec
	judgeErrors       *prometheus.CounterVec
}

var _ EvaluationMetrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the evaluation collectors on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		operationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_operation_attempts_total",
			Help: "Number of evaluation service operations started.",
		}, []string{"operation"}),
		operationSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_operation_success_total",
			Help: "Number of evaluation service operations that succeeded.",
		}, []string{"operation"}),
		operationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_operation_failures_total",
			Help: "Number of evaluation service operations that failed.",
		}, []string{"operation"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evaluation_operation_duration_seconds",
			Help:    "Duration of evaluation service operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		dbQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evaluation_db_query_duration_seconds",
			Help:    "Duration of evaluation repository queries.",
			Buckets: prometheus.DefBuckets,
		}),
		battlesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_battles_resolved_total",
			Help: "Number of battles resolved, by result.",
		}, []string{"result"}),
		battlesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evaluation_battles_failed_total",
			Help: "Number of battles reported as failed.",
		}),
		conflictRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_conflict_retries_total",
			Help: "Number of retries caused by row-contention conflicts.",
		}, []string{"operation"}),
		judgeVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_judge_verdicts_total",
			Help: "Number of judge verdicts, by model and result.",
		}, []string{"model", "result"}),
		judgeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_judge_errors_total",
			Help: "Number of judge invocations that errored.",
		}, []string{"model"}),
	}
	reg.MustRegister(
		m.operationAttempts,
		m.operationSuccess,
		m.operationFailures,
		m.operationDuration,
		m.dbQueryDuration,
		m.battlesResolved,
		m.battlesFailed,
		m.conflictRetries,
		m.judgeVerdicts,
		m.judgeErrors,
	)
	return m
}

func (m *PrometheusMetrics) RecordOperationAttempt(_ context.Context, operation string, _ evaluationtypes.ModuleID) {
	m.operationAttempts.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(_ context.Context, operation string, _ evaluationtypes.ModuleID) {
	m.operationSuccess.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(_ context.Context, operation string, _ evaluationtypes.ModuleID) {
	m.operationFailures.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(_ context.Context, operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordDBQueryDuration(_ context.Context, duration time.Duration) {
	m.dbQueryDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordBattleResolved(_ context.Context, result evaluationtypes.BattleResult) {
	m.battlesResolved.WithLabelValues(string(result)).Inc()
}

func (m *PrometheusMetrics) RecordBattleFailed(_ context.Context) {
	m.battlesFailed.Inc()
}

func (m *PrometheusMetrics) RecordConflictRetry(_ context.Context, operation string) {
	m.conflictRetries.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) RecordJudgeVerdict(_ context.Context, model string, result evaluationtypes.BattleResult) {
	m.judgeVerdicts.WithLabelValues(model, string(result)).Inc()
}

func (m *PrometheusMetrics) RecordJudgeError(_ context.Context, model string) {
	m.judgeErrors.WithLabelValues(model).Inc()
}
