package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Turn metrics
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowpilot_turns_total",
			Help: "Total number of flow turns by outcome",
		},
		[]string{"outcome"},
	)

	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowpilot_turn_duration_seconds",
			Help:    "Flow turn duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// Node metrics
	nodeExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowpilot_node_executions_total",
			Help: "Total number of node executions by node type and result",
		},
		[]string{"node_type", "result"},
	)

	nodeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowpilot_node_failures_total",
			Help: "Total number of node executions that failed on configuration or panic",
		},
		[]string{"node_type"},
	)

	// Tool metrics
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowpilot_tool_calls_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "status"},
	)

	toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowpilot_tool_call_duration_seconds",
			Help:    "Tool invocation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// Session metrics
	waitingSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowpilot_sessions_waiting_for_input",
			Help: "Number of sessions waiting for user input",
		},
	)

	initOnce sync.Once
)

// InitMetrics registra las métricas en el registry por defecto
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			turnsTotal,
			turnDuration,
			nodeExecutionsTotal,
			nodeFailuresTotal,
			toolCallsTotal,
			toolCallDuration,
			waitingSessions,
		)
	})
}

// Handler returns an HTTP handler for Prometheus metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn records a completed turn
func RecordTurn(outcome string, duration time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordNodeExecution records one node step
func RecordNodeExecution(nodeType, result string) {
	nodeExecutionsTotal.WithLabelValues(nodeType, result).Inc()
}

// RecordNodeFailure records a node that failed on config or panic
func RecordNodeFailure(nodeType string) {
	nodeFailuresTotal.WithLabelValues(nodeType).Inc()
}

// RecordToolCall records tool call metrics
func RecordToolCall(tool, status string, duration time.Duration) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// SetWaitingSessions sets the waiting sessions gauge
func SetWaitingSessions(count int) {
	waitingSessions.Set(float64(count))
}
