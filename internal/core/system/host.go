package system

import (
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/framegate/framegate/internal/core/observability/log"
)

var _ Sampler = (*HostSampler)(nil)

// HostSampler reads CPU and memory utilization through gopsutil. GPU is
// delegated to an optional inner sampler (NVML when present, Noop otherwise).
type HostSampler struct {
	gpu Sampler
	lg  log.Log
}

func NewHostSampler(gpu Sampler, lg log.Log) *HostSampler {
	if gpu == nil {
		gpu = Noop{}
	}
	return &HostSampler{gpu: gpu, lg: lg}
}

func (s *HostSampler) CPUPercent() float64 {
	// Zero interval compares against the previous call instead of blocking.
	percents, err := cpu.Percent(0, false)
	if err != nil {
		if s.lg != nil {
			s.lg.Debug("cpu sample failed", log.Error(err))
		}
		return 0.0
	}
	if len(percents) == 0 {
		if s.lg != nil {
			s.lg.Debug("cpu sample returned no data")
		}
		return 0.0
	}
	return percents[0]
}

func (s *HostSampler) MemoryPercent() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		if s.lg != nil {
			s.lg.Debug("memory sample failed", log.Error(err))
		}
		return 0.0
	}
	return vm.UsedPercent
}

func (s *HostSampler) GPUPercent() float64 {
	return s.gpu.GPUPercent()
}
