package event

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink exports TokenUsageUpdated and ToolExecutionCompleted events as
// Prometheus metrics. It is additive to the three sinks spec.md names
// (NullSink, TerminalSink, InteractiveSink) and never substitutes for them —
// it carries no display/overwrite behavior of its own.
type MetricsSink struct {
	tokensTotal   *prometheus.CounterVec
	toolCompleted *prometheus.CounterVec
}

// NewMetricsSink creates a MetricsSink and registers its collectors with reg.
// Pass prometheus.NewRegistry() (or DefaultRegisterer) for reg.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	s := &MetricsSink{
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coro_code",
			Name:      "token_usage_total",
			Help:      "Cumulative LLM token usage observed by the scheduler.",
		}, []string{"kind"}),
		toolCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coro_code",
			Name:      "tool_executions_total",
			Help:      "Tool executions by name and outcome.",
		}, []string{"tool", "outcome"}),
	}
	reg.MustRegister(s.tokensTotal, s.toolCompleted)
	return s
}

func (MetricsSink) SupportsOverwrite() bool { return false }

func (s *MetricsSink) Emit(e Event) {
	switch e.Kind {
	case KindTokenUsageUpdated:
		s.tokensTotal.WithLabelValues("input").Add(float64(e.Usage.InputTokens))
		s.tokensTotal.WithLabelValues("output").Add(float64(e.Usage.OutputTokens))
	case KindToolExecutionCompleted:
		outcome := "success"
		if e.Tool.Status == ToolError {
			outcome = "error"
		}
		s.toolCompleted.WithLabelValues(e.Tool.ToolName, outcome).Inc()
	}
}
