package metrics

import (
	"time"

	"github.com/corvid-labs/ago/pkg/types"
)

// InstanceLister reports the daemon's live instance set. Satisfied by
// *pkg/process.Manager.
type InstanceLister interface {
	ListInstances() []types.Instance
}

// QueueLister reports per-instance queue depth and delivery counters.
// Satisfied by *pkg/router.Router.
type QueueLister interface {
	Queues() []types.QueueStats
}

// Collector periodically samples daemon-wide state into the Prometheus
// gauges declared in metrics.go. It is an in-process-only collector: no
// component registers an HTTP /metrics handler (SPEC_FULL.md names no
// metrics HTTP surface), so Collector exists purely to keep the gauges
// fresh for any embedder that wants to scrape client_golang's default
// registry directly.
type Collector struct {
	instances InstanceLister
	queues    QueueLister
	stopCh    chan struct{}
}

// NewCollector creates a metrics collector over the given instance and
// queue sources.
func NewCollector(instances InstanceLister, queues QueueLister) *Collector {
	return &Collector{
		instances: instances,
		queues:    queues,
		stopCh:    make(chan struct{}),
	}
}

// Start begins collecting on a 15s ticker, collecting once immediately.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectInstanceMetrics()
	c.collectQueueMetrics()
}

func (c *Collector) collectInstanceMetrics() {
	instances := c.instances.ListInstances()

	counts := make(map[types.InstanceState]int)
	for _, inst := range instances {
		counts[inst.State]++
	}
	for _, state := range []types.InstanceState{
		types.InstanceStarting, types.InstanceReady, types.InstanceStopping,
		types.InstanceStopped, types.InstanceCrashed,
	} {
		InstancesTotal.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}

func (c *Collector) collectQueueMetrics() {
	stats := c.queues.Queues()

	var depth int
	var delivered, deadLettered uint64
	for _, s := range stats {
		depth += s.Depth
		delivered += s.Delivered
		deadLettered += s.DeadLettered
	}
	QueueDepthTotal.Set(float64(depth))
	MessagesDeliveredTotal.Set(float64(delivered))
	MessagesDeadLetteredTotal.Set(float64(deadLettered))
}
