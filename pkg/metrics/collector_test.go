package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/ago/pkg/types"
)

func testGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

type fakeInstances []types.Instance

func (f fakeInstances) ListInstances() []types.Instance { return f }

type fakeQueues []types.QueueStats

func (f fakeQueues) Queues() []types.QueueStats { return f }

func TestCollectorSamplesInstanceAndQueueState(t *testing.T) {
	instances := fakeInstances{
		{ID: "researcher-aaaaaaaa", State: types.InstanceReady},
		{ID: "helper-bbbbbbbb", State: types.InstanceCrashed},
	}
	queues := fakeQueues{
		{InstanceID: "researcher-aaaaaaaa", Depth: 3, Delivered: 10, DeadLettered: 1},
		{InstanceID: "helper-bbbbbbbb", Depth: 0, Delivered: 5, DeadLettered: 0},
	}

	c := NewCollector(instances, queues)
	c.collect()

	require.Equal(t, float64(1), testGaugeValue(t, InstancesTotal.WithLabelValues(string(types.InstanceReady))))
	require.Equal(t, float64(1), testGaugeValue(t, InstancesTotal.WithLabelValues(string(types.InstanceCrashed))))
	assert.Equal(t, float64(3), testGaugeValue(t, QueueDepthTotal))
	assert.Equal(t, float64(15), testGaugeValue(t, MessagesDeliveredTotal))
	assert.Equal(t, float64(1), testGaugeValue(t, MessagesDeadLetteredTotal))
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(fakeInstances{}, fakeQueues{})
	c.Start()
	time.Sleep(10 * time.Millisecond)
	c.Stop()
}
