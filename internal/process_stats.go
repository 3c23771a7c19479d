package internal

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is the resource usage of the ingest process.
type ProcessStats struct {
	PID           int32   `json:"pid"`
	CPUPercent    float64 `json:"cpuPercent"`
	RSSBytes      uint64  `json:"rssBytes"`
	MemoryPercent float32 `json:"memoryPercent"`
}

// ProcessSampler samples one process. CPU usage is averaged since the sampler was created.
type ProcessSampler struct {
	proc *process.Process
}

func NewProcessSampler(pid int32) (*ProcessSampler, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("find process %d: %w", pid, err)
	}
	return &ProcessSampler{proc: p}, nil
}

// Stats is a StatsProvider for the process section of /status.
func (p *ProcessSampler) Stats(ctx context.Context) (any, error) {
	memInfo, err := p.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process memory: %w", err)
	}
	cpu, err := p.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process cpu usage: %w", err)
	}
	ram, err := p.proc.MemoryPercentWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process ram usage: %w", err)
	}
	return ProcessStats{
		PID:           p.proc.Pid,
		CPUPercent:    cpu,
		RSSBytes:      memInfo.RSS,
		MemoryPercent: ram,
	}, nil
}
