package strategy

import "time"

// SkipStrategy is the tunable knob set governing how aggressively frames are
// skipped. Owned and mutated only by the Manager; everyone else receives
// copies.
type SkipStrategy struct {
	BaseSkipRate          int           `json:"base_skip_rate" yaml:"base_skip_rate"`
	MotionThreshold       float64       `json:"motion_threshold" yaml:"motion_threshold"`
	ComplexityThreshold   float64       `json:"complexity_threshold" yaml:"complexity_threshold"`
	MaxSkipFrames         int           `json:"max_skip_frames" yaml:"max_skip_frames"`
	MinProcessingInterval time.Duration `json:"min_processing_interval" yaml:"min_processing_interval"`
	Mode                  string        `json:"processing_mode" yaml:"processing_mode"`
}

// PerformanceLevel is a coarse classification of recent throughput relative
// to the target rate.
type PerformanceLevel uint8

const (
	LevelPoor PerformanceLevel = iota
	LevelFair
	LevelGood
	LevelExcellent
)

func (l PerformanceLevel) String() string {
	switch l {
	case LevelExcellent:
		return "excellent"
	case LevelGood:
		return "good"
	case LevelFair:
		return "fair"
	case LevelPoor:
		return "poor"
	default:
		return "unknown"
	}
}

// FPS-ratio bands separating the performance levels.
const (
	excellentRatio = 0.8
	goodRatio      = 0.6
	fairRatio      = 0.4
)

// Adjustment records one strategy recomputation for the bounded history log.
type Adjustment struct {
	Old       SkipStrategy     `json:"old"`
	New       SkipStrategy     `json:"new"`
	Level     PerformanceLevel `json:"performance_level"`
	Reason    string           `json:"reason"`
	Timestamp time.Time        `json:"timestamp"`
}
