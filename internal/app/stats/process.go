/*
Package stats collects the numbers shown by the admin reporting endpoints.

This file defines ProcessSampler, which reads the server's own resource usage through
gopsutil.
*/
package stats

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats describes the running server process.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
}

// ProcessSampler samples the current process.
type ProcessSampler struct {
	proc *process.Process
}

// NewProcessSampler attaches to the current process.
func NewProcessSampler() (*ProcessSampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to attach to own process: %w", err)
	}
	return &ProcessSampler{proc: p}, nil
}

// Sample reads memory, CPU and thread figures. CPU is the average since process start.
func (s *ProcessSampler) Sample(ctx context.Context) (ProcessStats, error) {
	stats := ProcessStats{
		PID:        s.proc.Pid,
		Goroutines: runtime.NumGoroutine(),
	}

	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to read memory info: %w", err)
	}
	stats.RSSBytes = mem.RSS

	cpu, err := s.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	stats.CPUPercent = cpu

	threads, err := s.proc.NumThreadsWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to read thread count: %w", err)
	}
	stats.Threads = threads

	return stats, nil
}
