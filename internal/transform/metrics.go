package transform

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts transform run outcomes and tool activity.
type Metrics struct {
	RunsStarted   *prometheus.CounterVec
	RunsCompleted *prometheus.CounterVec
	RunsFailed    *prometheus.CounterVec
	ToolCalls     *prometheus.CounterVec
	Validations   *prometheus.CounterVec
}

// NewMetrics creates and registers run metrics. A nil registerer leaves
// the metrics unregistered, which tests use to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphloom_transform_runs_started_total",
			Help: "Transform runs started, by mode.",
		}, []string{"mode"}),
		RunsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphloom_transform_runs_completed_total",
			Help: "Transform runs completed successfully, by mode.",
		}, []string{"mode"}),
		RunsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphloom_transform_runs_failed_total",
			Help: "Transform runs failed, by failure class.",
		}, []string{"class"}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphloom_transform_tool_calls_total",
			Help: "Tool calls issued by the agent, by tool name.",
		}, []string{"tool"}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graphloom_transform_validations_total",
			Help: "Artifact validations, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.RunsStarted, m.RunsCompleted, m.RunsFailed, m.ToolCalls, m.Validations)
	}
	return m
}
