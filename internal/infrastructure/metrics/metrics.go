// Package metrics exposes Prometheus collectors fed from the event bus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/models"
)

// Collector holds the engine-level Prometheus metrics.
type Collector struct {
	executionsStarted   prometheus.Counter
	executionsCompleted prometheus.Counter
	executionsFailed    prometheus.Counter
	executionsPaused    prometheus.Counter
	nodeDuration        *prometheus.HistogramVec
	aiTokens            prometheus.Counter
}

// NewCollector builds and registers the collectors on the registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		executionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxion_executions_started_total",
			Help: "Number of workflow executions started.",
		}),
		executionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxion_executions_completed_total",
			Help: "Number of workflow executions completed successfully.",
		}),
		executionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxion_executions_failed_total",
			Help: "Number of workflow executions that failed.",
		}),
		executionsPaused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxion_executions_paused_total",
			Help: "Number of times executions paused.",
		}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fluxion_node_duration_milliseconds",
			Help:    "Node handler duration in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"outcome"}),
		aiTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxion_ai_tokens_used_total",
			Help: "AI tokens consumed across providers.",
		}),
	}

	reg.MustRegister(
		c.executionsStarted,
		c.executionsCompleted,
		c.executionsFailed,
		c.executionsPaused,
		c.nodeDuration,
		c.aiTokens,
	)
	return c
}

// Observe subscribes the collector to the lifecycle events.
func (c *Collector) Observe(bus *events.Bus) {
	bus.Subscribe(models.EventNodeStart, func(_ string, payload map[string]interface{}) {
		// The first node of an execution marks its start; counting starts
		// here keeps the collector independent of the trigger layer.
		if kind, _ := payload["kind"].(string); kind == string(models.NodeKindTrigger) {
			c.executionsStarted.Inc()
		}
	})

	bus.Subscribe(models.EventNodeComplete, func(_ string, payload map[string]interface{}) {
		outcome, _ := payload["outcome"].(string)
		if ms, ok := payload["durationMs"].(int64); ok {
			c.nodeDuration.WithLabelValues(outcome).Observe(float64(ms))
		}
	})

	bus.Subscribe(models.EventExecutionComplete, func(string, map[string]interface{}) {
		c.executionsCompleted.Inc()
	})
	bus.Subscribe(models.EventExecutionFailed, func(string, map[string]interface{}) {
		c.executionsFailed.Inc()
	})
	bus.Subscribe(models.EventExecutionPaused, func(string, map[string]interface{}) {
		c.executionsPaused.Inc()
	})

	bus.Subscribe(models.EventAIResponse, func(_ string, payload map[string]interface{}) {
		switch tokens := payload["tokensUsed"].(type) {
		case int:
			c.aiTokens.Add(float64(tokens))
		case int64:
			c.aiTokens.Add(float64(tokens))
		case float64:
			c.aiTokens.Add(tokens)
		}
	})
}
