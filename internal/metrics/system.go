package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// SampleInterval is how often RunSampler refreshes the process gauges.
const SampleInterval = 10 * time.Second

// RunSampler periodically samples host-wide CPU usage, the process's Go
// heap allocation, and its goroutine count into m's gauges until ctx is
// done.
func RunSampler(ctx context.Context, m *Metrics) {
	ticker := time.NewTicker(SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample(m)
		}
	}
}

func sample(m *Metrics) {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m.SetCPUUsagePercent(percents[0])
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.SetMemoryUsageBytes(mem.HeapAlloc)

	m.SetGoroutinesCount(runtime.NumGoroutine())
}
