// Package system provides the resource-sampling capability consumed by the
// performance monitor. Sampling is best-effort: every failure degrades to a
// zero reading so monitoring never stops because telemetry did.
package system

// Sampler reports instantaneous host utilization percentages in [0,100].
// Implementations must be safe for concurrent use.
type Sampler interface {
	CPUPercent() float64
	MemoryPercent() float64
	GPUPercent() float64
}

// Noop is the zero-value capability selected when no sampler is available.
type Noop struct{}

func (Noop) CPUPercent() float64    { return 0.0 }
func (Noop) MemoryPercent() float64 { return 0.0 }
func (Noop) GPUPercent() float64    { return 0.0 }
