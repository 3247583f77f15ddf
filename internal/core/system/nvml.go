package system

import (
	"errors"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/framegate/framegate/internal/core/observability/log"
)

var ErrNoGPU = errors.New("no NVML-capable device available")

var _ Sampler = (*NVMLSampler)(nil)

// NVMLSampler reads GPU utilization for device 0 through NVML. Construction
// fails on hosts without the NVIDIA driver; callers fall back to Noop.
type NVMLSampler struct {
	device nvml.Device
	lg     log.Log

	closeOnce sync.Once
}

func NewNVMLSampler(lg log.Log) (*NVMLSampler, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, ErrNoGPU
	}
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS || count == 0 {
		_ = nvml.Shutdown()
		return nil, ErrNoGPU
	}
	device, ret := nvml.DeviceGetHandleByIndex(0)
	if ret != nvml.SUCCESS {
		_ = nvml.Shutdown()
		return nil, ErrNoGPU
	}
	return &NVMLSampler{device: device, lg: lg}, nil
}

func (s *NVMLSampler) CPUPercent() float64    { return 0.0 }
func (s *NVMLSampler) MemoryPercent() float64 { return 0.0 }

func (s *NVMLSampler) GPUPercent() float64 {
	util, ret := s.device.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		if s.lg != nil {
			s.lg.Debug("gpu sample failed", log.String("nvml_status", nvml.ErrorString(ret)))
		}
		return 0.0
	}
	return float64(util.Gpu)
}

// Close releases the NVML handle. Safe to call more than once.
func (s *NVMLSampler) Close() {
	s.closeOnce.Do(func() {
		_ = nvml.Shutdown()
	})
}
