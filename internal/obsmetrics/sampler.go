package obsmetrics

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceSampler periodically samples the current process's CPU and
// memory usage and publishes them as gauges, grounded on the teacher's
// collectMetrics/monitorMemory loops in ws/server.go.
type ResourceSampler struct {
	interval time.Duration
	logger   zerolog.Logger
	proc     *process.Process
}

// NewResourceSampler builds a sampler for the current process.
func NewResourceSampler(interval time.Duration, logger zerolog.Logger) (*ResourceSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ResourceSampler{interval: interval, logger: logger, proc: proc}, nil
}

// Run samples until ctx is cancelled. Intended to run in its own
// goroutine alongside the acceptor and job pool.
func (r *ResourceSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sample()
		}
	}
}

func (r *ResourceSampler) sample() {
	cpuPct, err := r.proc.CPUPercent()
	if err == nil {
		ResourceCPUPercent.Set(cpuPct)
	}

	memInfo, err := r.proc.MemoryInfo()
	if err == nil && memInfo != nil {
		ResourceMemoryMB.Set(float64(memInfo.RSS) / (1024 * 1024))
	}

	r.logger.Debug().
		Float64("cpu_percent", cpuPct).
		Msg("sampled process resources")
}
