package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of counters/gauges required by spec §4.10 ("Counters/
// gauges must be exportable in a stable scrape format"). Named and shaped
// after the teacher's pkg/metrics query surface, moved to the write side: the
// teacher queried Prometheus back out for a UI; this core only needs to
// export, so there is no query API here (see DESIGN.md).
type Metrics struct {
	SpanDuration *prometheus.HistogramVec
	ActiveSpans  *prometheus.GaugeVec
	SpanErrors   *prometheus.CounterVec

	TokensTotal     *prometheus.CounterVec
	UsageFraction   *prometheus.GaugeVec
	HandoffsTotal   *prometheus.CounterVec
	ReviewIterations *prometheus.HistogramVec
	DeployAttempts  *prometheus.CounterVec
	CircuitState    *prometheus.GaugeVec
}

// NewMetrics constructs and registers every orchestrator metric on reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across parallel test binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SpanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "orchestrator_span_duration_seconds",
			Help: "Duration of telemetry spans by name.",
		}, []string{"span"}),
		ActiveSpans: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orchestrator_active_spans",
			Help: "Number of currently open spans by name.",
		}, []string{"span"}),
		SpanErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_span_errors_total",
			Help: "Spans that ended with an attached error, by name.",
		}, []string{"span"}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_agent_tokens_total",
			Help: "Cumulative input/output tokens recorded per agent role.",
		}, []string{"role", "type"}),
		UsageFraction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orchestrator_agent_usage_fraction",
			Help: "Latest context-window usage fraction per agent role.",
		}, []string{"role"}),
		HandoffsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_handoffs_total",
			Help: "Handoffs initiated, by role and trigger reason.",
		}, []string{"role", "reason"}),
		ReviewIterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orchestrator_review_iterations",
			Help:    "Quality-loop iterations consumed per workflow.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}, []string{"workflow_type"}),
		DeployAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_deploy_attempts_total",
			Help: "Deployment attempts by outcome.",
		}, []string{"outcome"}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orchestrator_circuit_state",
			Help: "Circuit breaker state per service (0=closed,1=half_open,2=open).",
		}, []string{"service"}),
	}

	for _, c := range []prometheus.Collector{
		m.SpanDuration, m.ActiveSpans, m.SpanErrors,
		m.TokensTotal, m.UsageFraction, m.HandoffsTotal,
		m.ReviewIterations, m.DeployAttempts, m.CircuitState,
	} {
		reg.MustRegister(c)
	}
	return m
}
