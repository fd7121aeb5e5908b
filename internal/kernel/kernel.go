package kernel

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"kernsim/internal/config"
	"kernsim/internal/klog"
	"kernsim/internal/mem"
	"kernsim/internal/netif"
	"kernsim/internal/sched"
	"kernsim/internal/telemetry"
	"kernsim/internal/vfs"
)

const motd = "kernsim: user-space kernel simulator\n"

// Kernel owns every subsystem for one booted instance.
type Kernel struct {
	cfg      config.Config
	bootID   uuid.UUID
	bootTime time.Time

	logBuf  *klog.Buffer
	log     *klog.Logger
	metrics *telemetry.Metrics
	slab    *mem.Slab
	fs      *vfs.FS
	ring    *netif.Ring
	graph   *sched.Graph
	sched   *sched.Scheduler
	engine  *sched.Engine

	mu      sync.Mutex
	nextID  sched.TaskID
	scratch map[sched.TaskID]mem.Handle
}

// Boot constructs and starts a kernel. Console output (the mirrored half of
// the log buffer) goes to console.
func Boot(cfg config.Config, console io.Writer) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	k := &Kernel{
		cfg:      cfg,
		bootID:   uuid.New(),
		bootTime: time.Now(),
		scratch:  make(map[sched.TaskID]mem.Handle),
	}
	k.logBuf = klog.New(cfg.LogCapacity, console)
	k.log = k.logBuf.Logger("kernel")
	k.log.Infof("boot id %s", k.bootID)

	k.metrics = telemetry.New(k.logBuf.Logger("telemetry"))
	k.slab = mem.NewSlab(cfg.SlabObjectSize, cfg.SlabBlockSize)
	k.fs = vfs.New(k.logBuf.Logger("vfs"))
	if err := k.mountBase(); err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	k.ring = netif.NewRing(cfg.RingCapacity, k.logBuf.Logger("netif"))

	k.graph = sched.NewGraph()
	k.sched = sched.NewScheduler()
	k.engine = sched.NewEngine(k.graph, k.sched, cfg.Workers, multiObserver{
		k.metrics,
		scratchReclaimer{k},
		failureLogger{k.logBuf.Logger("exec")},
	})

	k.metrics.SetSource(k.telemetrySnapshot)
	k.metrics.StartSampler(cfg.SampleInterval.Std())
	if cfg.MetricsAddr != "" {
		k.metrics.Serve(cfg.MetricsAddr)
	}

	k.log.Infof("online: %d workers, ring %d, log %d", cfg.Workers, cfg.RingCapacity, cfg.LogCapacity)
	return k, nil
}

// mountBase creates the standard boot tree.
func (k *Kernel) mountBase() error {
	for _, dir := range []string{"/sys", "/proc", "/dev", "/etc"} {
		if err := k.fs.Mkdir(dir); err != nil {
			return err
		}
	}
	return k.fs.CreateFile("/etc/motd", []byte(motd))
}

// Submit registers a task, wires its dependencies, allocates its slab
// scratch buffer, and queues it when nothing blocks it.
func (k *Kernel) Submit(p sched.Priority, work sched.Work, deps ...sched.TaskID) (sched.TaskID, error) {
	k.mu.Lock()
	k.nextID++
	id := k.nextID
	k.mu.Unlock()

	for _, d := range deps {
		if k.graph.Get(d) == nil {
			return 0, fmt.Errorf("submit: dependency %d: %w", d, sched.ErrUnknownTask)
		}
	}

	// Scratch must exist before the task can reach a worker: a dependency-
	// free task may start the instant it is queued.
	h := k.slab.Alloc()
	k.mu.Lock()
	k.scratch[id] = h
	k.mu.Unlock()

	t := sched.NewTask(id, p, work)
	if err := k.graph.Add(t); err != nil {
		k.reclaimScratch(id)
		return 0, fmt.Errorf("submit: %w", err)
	}
	for _, d := range deps {
		if err := k.graph.AddDependency(id, d); err != nil {
			k.reclaimScratch(id)
			return 0, fmt.Errorf("submit task %d: %w", id, err)
		}
	}

	ready, err := k.graph.MarkReadyIfUnblocked(id)
	if err != nil {
		return 0, fmt.Errorf("submit task %d: %w", id, err)
	}
	if ready {
		k.sched.Submit(t)
	}
	k.log.Debugf("task %d submitted (%s, %d deps)", id, p, len(deps))
	return id, nil
}

// Scratch returns the task's slab buffer. It is valid until the task
// finishes.
func (k *Kernel) Scratch(id sched.TaskID) ([]byte, bool) {
	k.mu.Lock()
	h, ok := k.scratch[id]
	k.mu.Unlock()
	if !ok {
		return nil, false
	}
	return k.slab.Bytes(h), true
}

func (k *Kernel) reclaimScratch(id sched.TaskID) {
	k.mu.Lock()
	h, ok := k.scratch[id]
	if ok {
		delete(k.scratch, id)
	}
	k.mu.Unlock()
	if ok {
		k.slab.Free(h)
	}
}

func (k *Kernel) telemetrySnapshot() telemetry.Snapshot {
	slab := k.slab.Stats()
	ring := k.ring.Counters()
	return telemetry.Snapshot{
		QueueDepths: k.sched.BandLens(),
		SlabLive:    slab.Live,
		SlabPages:   slab.ResidentPages,
		RingDepth:   ring.Depth,
		RingDropped: ring.Dropped,
		LogEvicted:  k.logBuf.Evicted(),
	}
}

// Drain blocks until every submitted task has reached a terminal state.
func (k *Kernel) Drain(ctx context.Context) error {
	return k.engine.Drain(ctx)
}

// Shutdown stops the engine, then telemetry, and logs the final task
// counters. It does not flush or release the log buffer.
func (k *Kernel) Shutdown(ctx context.Context) error {
	k.log.Infof("shutdown requested")
	k.engine.Shutdown()
	if err := k.metrics.Shutdown(ctx); err != nil {
		return err
	}
	stats := k.engine.Stats()
	k.log.Infof("halted: %d completed, %d failed, %d still queued",
		stats.Completed, stats.Failed, stats.Queued)
	return nil
}

// Panic logs a critical entry, dumps the log buffer to the console path,
// and aborts.
func (k *Kernel) Panic(w io.Writer, format string, args ...any) {
	k.log.Critf(format, args...)
	_ = k.logBuf.Dump(w)
	panic(fmt.Sprintf("kernel panic: "+format, args...))
}

// BootID returns the instance identity assigned at boot.
func (k *Kernel) BootID() uuid.UUID { return k.bootID }

// Uptime returns the time since boot.
func (k *Kernel) Uptime() time.Duration { return time.Since(k.bootTime) }

// Log returns the kernel log buffer.
func (k *Kernel) Log() *klog.Buffer { return k.logBuf }

// VFS returns the file tree.
func (k *Kernel) VFS() *vfs.FS { return k.fs }

// Net returns the receive ring.
func (k *Kernel) Net() *netif.Ring { return k.ring }

// Tasks returns a snapshot of every known task.
func (k *Kernel) Tasks() []sched.TaskInfo { return k.graph.Snapshot() }

// SlabStats returns the allocator counters.
func (k *Kernel) SlabStats() mem.SlabStats { return k.slab.Stats() }

// EngineStats returns the execution counters.
func (k *Kernel) EngineStats() sched.EngineStats { return k.engine.Stats() }

// multiObserver fans engine events out to each member.
type multiObserver []sched.Observer

func (m multiObserver) TaskStarted(t *sched.TaskContext) {
	for _, o := range m {
		o.TaskStarted(t)
	}
}

func (m multiObserver) TaskFinished(t *sched.TaskContext, oc sched.Outcome, d time.Duration) {
	for _, o := range m {
		o.TaskFinished(t, oc, d)
	}
}

// failureLogger records terminal failures in the kernel log. Failed tasks
// are never retried.
type failureLogger struct{ log *klog.Logger }

func (failureLogger) TaskStarted(*sched.TaskContext) {}

func (l failureLogger) TaskFinished(t *sched.TaskContext, oc sched.Outcome, d time.Duration) {
	if oc == sched.OutcomeFailed {
		l.log.Errorf("task %d failed after %s", t.ID, d)
	}
}

// scratchReclaimer frees a task's slab buffer the moment it finishes.
type scratchReclaimer struct{ k *Kernel }

func (scratchReclaimer) TaskStarted(*sched.TaskContext) {}

func (r scratchReclaimer) TaskFinished(t *sched.TaskContext, _ sched.Outcome, _ time.Duration) {
	r.k.reclaimScratch(t.ID)
}
