package metrics

import (
	"context"
	"runtime"
	"time"
)

// RunSystemCollector samples runtime stats into the system gauges every
// refresh interval until ctx is done. It returns immediately when metrics
// are disabled.
func RunSystemCollector(ctx context.Context) {
	globalManager.runSystemCollector(ctx)
}

func (m *Manager) runSystemCollector(ctx context.Context) {
	if !m.enabled {
		return
	}
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	var lastNumGC uint32
	for {
		lastNumGC = m.sampleSystem(lastNumGC)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sampleSystem updates the system gauges and returns the GC cycle count seen.
func (m *Manager) sampleSystem(lastNumGC uint32) uint32 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.systemMemoryUsage.Set(float64(ms.Alloc))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))

	if ms.NumGC > lastNumGC {
		cycles := ms.NumGC - lastNumGC
		if cycles > uint32(len(ms.PauseNs)) {
			cycles = uint32(len(ms.PauseNs))
		}
		var total uint64
		for i := uint32(0); i < cycles; i++ {
			total += ms.PauseNs[(ms.NumGC-1-i)%uint32(len(ms.PauseNs))]
		}
		m.systemGCPauseTime.Observe(float64(total) / float64(cycles) / float64(time.Millisecond))
	}
	return ms.NumGC
}
