package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"kernsim/internal/klog"
	"kernsim/internal/sched"
)

// Snapshot is the kernel state the sampler publishes as gauges. The source
// closure is installed by the kernel once every subsystem exists.
type Snapshot struct {
	QueueDepths [sched.NumBands]int
	SlabLive    int
	SlabPages   int
	RingDepth   int
	RingDropped uint64
	LogEvicted  uint64
}

// Metrics owns the registry and every instrument.
type Metrics struct {
	log *klog.Logger
	reg *prometheus.Registry

	tasksCompleted prometheus.Counter
	tasksFailed    prometheus.Counter
	tasksRunning   prometheus.Gauge
	taskDuration   prometheus.Histogram

	queueDepth *prometheus.GaugeVec
	slabLive   prometheus.Gauge
	slabPages  prometheus.Gauge
	ringDepth  prometheus.Gauge
	hostCPU    prometheus.Gauge
	hostMem    prometheus.Gauge

	mu     sync.Mutex
	source func() Snapshot

	stop     chan struct{}
	done     chan struct{}
	sampling bool
	srv      *http.Server
}

// New builds the registry and registers every instrument. The logger may be
// nil.
func New(log *klog.Logger) *Metrics {
	m := &Metrics{
		log: log,
		reg: prometheus.NewRegistry(),
		tasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernsim_tasks_completed_total",
			Help: "Tasks that finished with a COMPLETED outcome.",
		}),
		tasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kernsim_tasks_failed_total",
			Help: "Tasks that finished with a FAILED outcome.",
		}),
		tasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kernsim_tasks_running",
			Help: "Tasks currently executing on a worker.",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kernsim_task_duration_seconds",
			Help:    "Wall time of task work execution.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 10, 8),
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kernsim_queue_depth",
			Help: "Tasks queued per scheduler band.",
		}, []string{"band"}),
		slabLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kernsim_slab_live_objects",
			Help: "Live slab allocations.",
		}),
		slabPages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kernsim_slab_resident_pages",
			Help: "Slab pages resident.",
		}),
		ringDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kernsim_ring_depth",
			Help: "Packets queued in the receive ring.",
		}),
		hostCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kernsim_host_cpu_percent",
			Help: "Host CPU utilization percent.",
		}),
		hostMem: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kernsim_host_mem_used_bytes",
			Help: "Host memory in use.",
		}),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	m.reg.MustRegister(
		m.tasksCompleted, m.tasksFailed, m.tasksRunning, m.taskDuration,
		m.queueDepth, m.slabLive, m.slabPages, m.ringDepth,
		m.hostCPU, m.hostMem,
	)
	m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "kernsim_ring_dropped_total",
		Help: "Frames dropped by the full receive ring.",
	}, func() float64 { return float64(m.snapshot().RingDropped) }))
	m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "kernsim_log_evicted_total",
		Help: "Log entries evicted from the kernel log buffer.",
	}, func() float64 { return float64(m.snapshot().LogEvicted) }))
	return m
}

// Registry exposes the private registry, mainly for tests and the listener.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// SetSource installs the kernel snapshot closure. Until it is called, the
// sampled gauges stay at zero.
func (m *Metrics) SetSource(fn func() Snapshot) {
	m.mu.Lock()
	m.source = fn
	m.mu.Unlock()
}

func (m *Metrics) snapshot() Snapshot {
	m.mu.Lock()
	fn := m.source
	m.mu.Unlock()
	if fn == nil {
		return Snapshot{}
	}
	return fn()
}

// TaskStarted implements sched.Observer.
func (m *Metrics) TaskStarted(*sched.TaskContext) {
	m.tasksRunning.Inc()
}

// TaskFinished implements sched.Observer.
func (m *Metrics) TaskFinished(_ *sched.TaskContext, oc sched.Outcome, d time.Duration) {
	m.tasksRunning.Dec()
	if oc == sched.OutcomeFailed {
		m.tasksFailed.Inc()
	} else {
		m.tasksCompleted.Inc()
	}
	m.taskDuration.Observe(d.Seconds())
}

// StartSampler launches the periodic host/kernel sampler. It runs until
// Shutdown.
func (m *Metrics) StartSampler(interval time.Duration) {
	m.sampling = true
	go func() {
		defer close(m.done)
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-tick.C:
				m.sample()
			}
		}
	}()
}

func (m *Metrics) sample() {
	snap := m.snapshot()
	for b := 0; b < sched.NumBands; b++ {
		m.queueDepth.WithLabelValues(strconv.Itoa(b)).Set(float64(snap.QueueDepths[b]))
	}
	m.slabLive.Set(float64(snap.SlabLive))
	m.slabPages.Set(float64(snap.SlabPages))
	m.ringDepth.Set(float64(snap.RingDepth))

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.hostCPU.Set(pct[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.hostMem.Set(float64(vm.Used))
	}
}

// Serve starts a promhttp listener on addr. Listener failures are logged,
// not fatal.
func (m *Metrics) Serve(addr string) {
	m.srv = &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}),
	}
	go func() {
		if m.log != nil {
			m.log.Infof("metrics listener on %s", addr)
		}
		if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if m.log != nil {
				m.log.Errorf("metrics listener: %v", err)
			}
		}
	}()
}

// Shutdown stops the sampler and the listener, waiting for the sampler
// goroutine to exit.
func (m *Metrics) Shutdown(ctx context.Context) error {
	close(m.stop)
	if m.sampling {
		select {
		case <-m.done:
		case <-ctx.Done():
			return fmt.Errorf("telemetry shutdown: %w", ctx.Err())
		}
	}
	if m.srv != nil {
		if err := m.srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("metrics listener shutdown: %w", err)
		}
	}
	return nil
}
