package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// resourceSample is one host/process resource reading.
type resourceSample struct {
	CPUPercent  float64
	MemUsed     uint64
	MemTotal    uint64
	LoadAvg1    float64
	WorkerCPU   map[int32]float64
}

// runResourceMonitor periodically samples host CPU/memory/load and, for
// every pid in liveWorkerPIDs, that worker subprocess's own CPU percent,
// handing each sample to report. It runs until ctx is cancelled.
func runResourceMonitor(ctx context.Context, interval time.Duration, liveWorkerPIDs func() map[string]int32, report func(resourceSample)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report(sampleResources(liveWorkerPIDs()))
		}
	}
}

func sampleResources(pids map[string]int32) resourceSample {
	sample := resourceSample{WorkerCPU: make(map[int32]float64, len(pids))}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		sample.CPUPercent = pct[0]
	}
	if memInfo, err := mem.VirtualMemory(); err == nil && memInfo != nil {
		sample.MemUsed = memInfo.Used
		sample.MemTotal = memInfo.Total
	}
	if loadAvg, err := load.Avg(); err == nil && loadAvg != nil {
		sample.LoadAvg1 = loadAvg.Load1
	}

	for sourceID, pid := range pids {
		proc, err := process.NewProcess(pid)
		if err != nil {
			continue
		}
		pct, err := proc.CPUPercent()
		if err != nil {
			slog.Warn("failed to sample worker subprocess CPU", "source_id", sourceID, "pid", pid, "error", err)
			continue
		}
		sample.WorkerCPU[pid] = pct
	}

	return sample
}
