package telemetry

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kernsim/internal/klog"
	"kernsim/internal/sched"
)

func newMetrics() *Metrics {
	return New(klog.New(128, io.Discard).Logger("telemetry"))
}

func TestMetrics_ObserverCountsOutcomes(t *testing.T) {
	m := newMetrics()
	task := sched.NewTask(1, sched.PriorityNormal, nil)

	m.TaskStarted(task)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksRunning))

	m.TaskFinished(task, sched.OutcomeCompleted, 3*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.tasksRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksCompleted))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.tasksFailed))

	m.TaskStarted(task)
	m.TaskFinished(task, sched.OutcomeFailed, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksFailed))
}

func TestMetrics_SampleReadsSource(t *testing.T) {
	m := newMetrics()
	m.SetSource(func() Snapshot {
		return Snapshot{
			QueueDepths: [sched.NumBands]int{1, 2, 3, 4},
			SlabLive:    10,
			SlabPages:   2,
			RingDepth:   7,
			RingDropped: 5,
			LogEvicted:  9,
		}
	})
	m.sample()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queueDepth.WithLabelValues("1")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.slabLive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.slabPages))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ringDepth))
}

func TestMetrics_FuncCountersFollowSource(t *testing.T) {
	m := newMetrics()
	m.SetSource(func() Snapshot {
		return Snapshot{RingDropped: 42, LogEvicted: 13}
	})

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, fam := range families {
		if len(fam.GetMetric()) == 1 && fam.GetMetric()[0].GetCounter() != nil {
			got[fam.GetName()] = fam.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 42.0, got["kernsim_ring_dropped_total"])
	assert.Equal(t, 13.0, got["kernsim_log_evicted_total"])
}

func TestMetrics_NilSourceIsZero(t *testing.T) {
	m := newMetrics()
	m.sample()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ringDepth))
}

func TestMetrics_SamplerStopsOnShutdown(t *testing.T) {
	m := newMetrics()
	calls := make(chan struct{}, 16)
	m.SetSource(func() Snapshot {
		select {
		case calls <- struct{}{}:
		default:
		}
		return Snapshot{}
	})
	m.StartSampler(time.Millisecond)

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("sampler never ticked")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
}

func TestMetrics_ShutdownWithoutSampler(t *testing.T) {
	m := newMetrics()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, m.Shutdown(ctx))
}
