package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// InstancesTotal counts live instances by lifecycle state.
	InstancesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ago_instances_total",
			Help: "Total number of instances by lifecycle state",
		},
		[]string{"state"},
	)

	// QueueDepthTotal is the sum of pending messages across every
	// instance's inbound queue.
	QueueDepthTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ago_queue_depth_total",
			Help: "Sum of pending messages across all instance inbound queues",
		},
	)

	// MessagesDeliveredTotal and MessagesDeadLetteredTotal mirror the
	// router's own cumulative per-instance counters (Gauge, not Counter,
	// since Collector sets them to a snapshot sum rather than
	// incrementing them itself).
	MessagesDeliveredTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ago_messages_delivered_total",
			Help: "Total number of inter-agent messages successfully delivered",
		},
	)

	MessagesDeadLetteredTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ago_messages_dead_lettered_total",
			Help: "Total number of inter-agent messages that exhausted delivery retries",
		},
	)

	// ControlRequestsTotal counts control-socket requests by op and
	// outcome status ("ok"/"error").
	ControlRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ago_control_requests_total",
			Help: "Total number of control-socket requests by operation and status",
		},
		[]string{"op", "status"},
	)

	ControlRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ago_control_request_duration_seconds",
			Help:    "Control-socket request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// HealthCheckDuration times one instance health-check cycle.
	HealthCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ago_health_check_duration_seconds",
			Help:    "Time taken for one instance health-check cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	HealthCheckCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ago_health_check_cycles_total",
			Help: "Total number of instance health-check cycles completed",
		},
	)

	InstancesCrashedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ago_instances_crashed_total",
			Help: "Total number of instances reaped after a failed health check",
		},
	)

	// TurnDuration times one agent reasoning turn (prepare through
	// emitting turn-complete or turn-truncated).
	TurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ago_turn_duration_seconds",
			Help:    "Time taken for one agent reasoning turn",
			Buckets: prometheus.DefBuckets,
		},
	)

	TurnsTruncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ago_turns_truncated_total",
			Help: "Total number of turns that hit the per-turn iteration cap",
		},
	)

	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ago_tool_invocations_total",
			Help: "Total number of tool invocations by tool name and status",
		},
		[]string{"tool", "status"},
	)

	// ReconciliationDuration and ReconciliationCyclesTotal track
	// pkg/reconciler's periodic registry-mirror sweep.
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ago_reconciliation_duration_seconds",
			Help:    "Time taken for one registry reconciliation sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ago_reconciliation_cycles_total",
			Help: "Total number of registry reconciliation sweeps completed",
		},
	)
)

func init() {
	prometheus.MustRegister(
		InstancesTotal,
		QueueDepthTotal,
		MessagesDeliveredTotal,
		MessagesDeadLetteredTotal,
		ControlRequestsTotal,
		ControlRequestDuration,
		HealthCheckDuration,
		HealthCheckCyclesTotal,
		InstancesCrashedTotal,
		TurnDuration,
		TurnsTruncatedTotal,
		ToolInvocationsTotal,
		ReconciliationDuration,
		ReconciliationCyclesTotal,
	)
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
