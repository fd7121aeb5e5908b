package cli

import (
	"context"
	"fmt"

	"kernsim/internal/kernel"
	"kernsim/internal/mem"
	"kernsim/internal/sched"
)

const (
	demoComputeTasks = 100
	demoPacketBurst  = 3000
)

// RunDemo submits the boot workload: a batch of HIGH compute tasks, one
// NORMAL task that writes a report into the file tree, and one REALTIME
// task that slams the receive ring hard enough to force drops.
func RunDemo(ctx context.Context, k *kernel.Kernel) error {
	log := k.Log().Logger("demo")
	log.Infof("demo workload: %d compute tasks, packet burst of %d", demoComputeTasks, demoPacketBurst)

	computeIDs := make([]sched.TaskID, 0, demoComputeTasks)
	for i := 0; i < demoComputeTasks; i++ {
		seed := uint64(i + 1)
		id, err := k.Submit(sched.PriorityHigh, func() error {
			acc := seed
			for n := 0; n < 10000; n++ {
				acc = acc*6364136223846793005 + 1442695040888963407
			}
			if acc == 0 {
				return fmt.Errorf("degenerate checksum for seed %d", seed)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("demo compute %d: %w", i, err)
		}
		computeIDs = append(computeIDs, id)
	}

	// The report waits for the whole compute batch.
	if _, err := k.Submit(sched.PriorityNormal, func() error {
		stats := k.EngineStats()
		body := fmt.Sprintf("compute batch done: started=%d completed=%d failed=%d\n",
			stats.Started, stats.Completed, stats.Failed)
		return k.VFS().CreateFile("/proc/demo", []byte(body))
	}, computeIDs...); err != nil {
		return fmt.Errorf("demo report: %w", err)
	}

	if _, err := k.Submit(sched.PriorityRealtime, func() error {
		// Frame payloads live only for the duration of the burst, so they
		// come out of an arena instead of the garbage collector.
		arena := mem.NewArena(mem.DefaultRegionSize)
		defer arena.Reset()
		for i := 0; i < demoPacketBurst; i++ {
			payload := arena.Alloc(32)
			copy(payload, fmt.Sprintf("burst frame %05d", i))
			k.Net().Receive(0x0a000001, 0x0a0000fe, uint16(30000+i%1000), 7, payload)
			if i%1024 == 1023 {
				arena.Reset()
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("demo burst: %w", err)
	}

	if err := k.Drain(ctx); err != nil {
		return fmt.Errorf("demo drain: %w", err)
	}
	rs := k.Net().Counters()
	es := k.EngineStats()
	log.Infof("demo done: tasks completed=%d failed=%d, ring accepted=%d dropped=%d",
		es.Completed, es.Failed, rs.Accepted, rs.Dropped)
	return nil
}
