package monitor

import "time"

// Metrics is one timestamped sample of system and throughput state. CPU,
// memory and GPU come from the resource sampler on the monitor's own timer;
// FPS, processing time and drop rate are event-driven pushes from the frame
// path and carry the most recent pushed value at tick time.
type Metrics struct {
	CPUUsage       float64       `json:"cpu_usage"`
	MemoryUsage    float64       `json:"memory_usage"`
	GPUUsage       float64       `json:"gpu_usage"`
	ProcessingTime time.Duration `json:"processing_time"`
	FPS            float64       `json:"fps"`
	FrameDropRate  float64       `json:"frame_drop_rate"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Severity grades an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a one-shot notification that a monitored metric crossed a
// configured threshold. Immutable after creation. Repeated breaches across
// ticks produce repeated alerts; severity may be escalating and consumers
// deduplicate if they need to.
type Alert struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Severity        Severity  `json:"severity"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
	MetricValue     float64   `json:"value"`
	Threshold       float64   `json:"threshold"`
	Recommendations []string  `json:"recommendations"`
}

// AlertCallback receives alerts synchronously on the monitor tick. A
// panicking or slow callback is the registrant's problem; the monitor
// isolates panics and keeps going.
type AlertCallback func(Alert)

// Tier holds ascending breach levels for one metric. Zero disables a level.
type Tier struct {
	Info     float64 `yaml:"info" json:"info"`
	Warning  float64 `yaml:"warning" json:"warning"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// Thresholds is the per-metric three-tier table. CPU, memory, GPU, drop rate
// and processing time alert when the value rises above a tier; FPS alerts
// when it falls below.
type Thresholds struct {
	CPU              Tier `yaml:"cpu" json:"cpu"`
	Memory           Tier `yaml:"memory" json:"memory"`
	GPU              Tier `yaml:"gpu" json:"gpu"`
	FrameDropRate    Tier `yaml:"frame_drop_rate" json:"frame_drop_rate"`
	ProcessingTimeMS Tier `yaml:"processing_time_ms" json:"processing_time_ms"`
	// FPSFloor tiers are lower bounds: Info is the mildest shortfall,
	// Critical the deepest.
	FPSFloor Tier `yaml:"fps_floor" json:"fps_floor"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CPU:              Tier{Info: 70, Warning: 85, Critical: 95},
		Memory:           Tier{Info: 70, Warning: 85, Critical: 95},
		GPU:              Tier{Info: 80, Warning: 90, Critical: 98},
		FrameDropRate:    Tier{Info: 0.10, Warning: 0.25, Critical: 0.50},
		ProcessingTimeMS: Tier{Info: 100, Warning: 250, Critical: 500},
		FPSFloor:         Tier{Info: 20, Warning: 15, Critical: 8},
	}
}

// Config tunes the monitor.
type Config struct {
	MonitoringInterval time.Duration `yaml:"monitoring_interval" json:"monitoring_interval"`
	HistorySize        int           `yaml:"history_size" json:"history_size"`
	AlertHistorySize   int           `yaml:"alert_history_size" json:"alert_history_size"`
	FPSSampleSize      int           `yaml:"fps_sample_size" json:"fps_sample_size"`
	TargetFPS          float64       `yaml:"target_fps" json:"target_fps"`
	Thresholds         Thresholds    `yaml:"thresholds" json:"thresholds"`
}

func DefaultConfig() Config {
	return Config{
		MonitoringInterval: time.Second,
		HistorySize:        300,
		AlertHistorySize:   100,
		FPSSampleSize:      60,
		TargetFPS:          25,
		Thresholds:         DefaultThresholds(),
	}
}
