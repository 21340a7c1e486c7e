package metrics

import "github.com/prometheus/client_golang/prometheus"

// TriageMetrics exposes counters/histograms for the triage pipeline.
type TriageMetrics struct {
	requestsTotal    *prometheus.CounterVec
	stageTotal       *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	sideEffectsTotal *prometheus.CounterVec
	aiCostTotal      *prometheus.CounterVec
	responseLatency  *prometheus.HistogramVec
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "afiyalink",
			Subsystem: "triage",
			Name:      "requests_total",
			Help:      "Total triage requests by outcome intent and risk level",
		}, []string{"intent", "risk_level"}),
		stageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "afiyalink",
			Subsystem: "triage",
			Name:      "ladder_stage_total",
			Help:      "Response ladder stage attempts by outcome",
		}, []string{"stage", "outcome"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "afiyalink",
			Subsystem: "triage",
			Name:      "safety_rejections_total",
			Help:      "Generated responses withheld by output validation or prompt guard",
		}, []string{"reason"}),
		sideEffectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "afiyalink",
			Subsystem: "triage",
			Name:      "side_effects_total",
			Help:      "Translation, interaction log and alert calls by status",
		}, []string{"kind", "status"}),
		aiCostTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "afiyalink",
			Subsystem: "triage",
			Name:      "ai_cost_dollars_total",
			Help:      "Estimated AI spend committed per backend",
		}, []string{"model"}),
		responseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "afiyalink",
			Subsystem: "triage",
			Name:      "response_latency_seconds",
			Help:      "End-to-end triage latency by path",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 8, 15, 30},
		}, []string{"path"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.stageTotal, m.rejectionsTotal, m.sideEffectsTotal, m.aiCostTotal, m.responseLatency)
	return m
}

func (m *TriageMetrics) ObserveRequest(intent, riskLevel string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(intent, riskLevel).Inc()
}

func (m *TriageMetrics) ObserveStage(stage string, ok bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if ok {
		outcome = "hit"
	}
	m.stageTotal.WithLabelValues(stage, outcome).Inc()
}

func (m *TriageMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveSideEffect counts a translation, log or alert call.
func (m *TriageMetrics) ObserveSideEffect(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.sideEffectsTotal.WithLabelValues(kind, status).Inc()
}

func (m *TriageMetrics) ObserveAICost(model string, dollars float64) {
	if m == nil || dollars <= 0 {
		return
	}
	m.aiCostTotal.WithLabelValues(model).Add(dollars)
}

func (m *TriageMetrics) ObserveLatency(path string, seconds float64) {
	if m == nil {
		return
	}
	m.responseLatency.WithLabelValues(path).Observe(seconds)
}
