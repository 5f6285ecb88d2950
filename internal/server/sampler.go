package server

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"

	"topchat/pkg/protocol"
)

// DatetimeLayout is the snapshot header timestamp: abbreviated weekday,
// space-padded day, abbreviated month, clock time.
const DatetimeLayout = "Mon _2 Jan 15:04:05"

// Sample is one host reading, the metric half of a snapshot.
type Sample struct {
	Hostname string
	Datetime string
	CPU      []protocol.CoreLoad
	Mem      protocol.MemData
}

// Source produces host samples. The generator depends on this interface so
// tests can feed deterministic readings.
type Source interface {
	Sample() (Sample, error)
}

// HostSampler reads the local machine through gopsutil. Per-core CPU
// percentages are computed against the previous call, so the first sample
// after startup legitimately reports zeros.
type HostSampler struct{}

// NewHostSampler primes the CPU counters so the second and later samples
// carry real utilization deltas.
func NewHostSampler() *HostSampler {
	_, _ = cpu.Percent(0, true)
	return &HostSampler{}
}

func (h *HostSampler) Sample() (Sample, error) {
	percents, err := cpu.Percent(0, true)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read cpu utilization: %w", err)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return Sample{}, fmt.Errorf("failed to read memory: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	cores := make([]protocol.CoreLoad, len(percents))
	for i, pct := range percents {
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		cores[i] = protocol.CoreLoad{Core: i, Percent: pct}
	}

	return Sample{
		Hostname: hostname,
		Datetime: time.Now().Format(DatetimeLayout),
		CPU:      cores,
		Mem:      protocol.MemData{Total: vm.Total, Used: vm.Used},
	}, nil
}
