package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates scheduler observability counters. Pass nil wherever a
// *Metrics is accepted to disable collection.
type Metrics struct {
	turns        *prometheus.CounterVec
	modelCalls   prometheus.Counter
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	compressions prometheus.Counter
	tokens       *prometheus.CounterVec
}

// NewMetrics builds and registers the metric set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drover",
			Name:      "turns_total",
			Help:      "Completed turns by terminal outcome.",
		}, []string{"outcome"}),
		modelCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drover",
			Name:      "model_calls_total",
			Help:      "Model stream invocations, including continuations.",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drover",
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool name and terminal status.",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drover",
			Name:      "tool_duration_seconds",
			Help:      "Wall time of tool executions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"tool"}),
		compressions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drover",
			Name:      "history_compressions_total",
			Help:      "History compressions performed.",
		}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drover",
			Name:      "tokens_total",
			Help:      "Tokens reported by the backend, by direction.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.turns, m.modelCalls, m.toolCalls, m.toolDuration, m.compressions, m.tokens)
	return m
}

// ObserveTurn records a completed turn.
func (m *Metrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// ObserveModelCall records one stream invocation.
func (m *Metrics) ObserveModelCall() {
	if m == nil {
		return
	}
	m.modelCalls.Inc()
}

// ObserveToolCall records a tool call reaching a terminal state.
func (m *Metrics) ObserveToolCall(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	if d > 0 {
		m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
	}
}

// ObserveCompression records one history compression.
func (m *Metrics) ObserveCompression() {
	if m == nil {
		return
	}
	m.compressions.Inc()
}

// ObserveUsage records token usage from a model call.
func (m *Metrics) ObserveUsage(promptTokens, candidateTokens int) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues("prompt").Add(float64(promptTokens))
	m.tokens.WithLabelValues("candidates").Add(float64(candidateTokens))
}
