package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for the in-call orchestration path.
type CallMetrics struct {
	toolCallsTotal    *prometheus.CounterVec
	toolLatency       *prometheus.HistogramVec
	breakerOpensTotal *prometheus.CounterVec
	terminationsTotal *prometheus.CounterVec
	phaseChangesTotal *prometheus.CounterVec
	sessionCostUSD    *prometheus.HistogramVec
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcore",
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Total tool invocations by provider and outcome",
		}, []string{"tool", "provider", "status"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callcore",
			Subsystem: "tools",
			Name:      "call_latency_seconds",
			Help:      "Latency of tool invocations, retries included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool", "provider"}),
		breakerOpensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcore",
			Subsystem: "breaker",
			Name:      "opens_total",
			Help:      "Circuit breaker open transitions per provider",
		}, []string{"provider"}),
		terminationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcore",
			Subsystem: "session",
			Name:      "terminations_total",
			Help:      "Session terminations by reason",
		}, []string{"reason"}),
		phaseChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callcore",
			Subsystem: "session",
			Name:      "phase_changes_total",
			Help:      "Conversation phase transitions",
		}, []string{"from", "to"}),
		sessionCostUSD: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callcore",
			Subsystem: "session",
			Name:      "cost_usd",
			Help:      "Final session cost in USD",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"tier"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.toolCallsTotal,
		m.toolLatency,
		m.breakerOpensTotal,
		m.terminationsTotal,
		m.phaseChangesTotal,
		m.sessionCostUSD,
	)
	return m
}

func (m *CallMetrics) ObserveToolCall(tool, provider, status string, seconds float64) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(tool, provider, status).Inc()
	m.toolLatency.WithLabelValues(tool, provider).Observe(seconds)
}

func (m *CallMetrics) ObserveBreakerOpen(provider string) {
	if m == nil {
		return
	}
	m.breakerOpensTotal.WithLabelValues(provider).Inc()
}

func (m *CallMetrics) ObserveTermination(reason string) {
	if m == nil {
		return
	}
	m.terminationsTotal.WithLabelValues(reason).Inc()
}

func (m *CallMetrics) ObservePhaseChange(from, to string) {
	if m == nil {
		return
	}
	m.phaseChangesTotal.WithLabelValues(from, to).Inc()
}

func (m *CallMetrics) ObserveSessionCost(tier string, usd float64) {
	if m == nil {
		return
	}
	m.sessionCostUSD.WithLabelValues(tier).Observe(usd)
}
