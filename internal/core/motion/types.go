package motion

import "time"

// Metrics is the per-frame motion measurement produced by the Analyzer.
// A zero-valued Metrics means "insufficient history" (first frame, size
// mismatch), not "no motion"; callers treat it as low-confidence.
type Metrics struct {
	FrameDiff     float64   `json:"frame_diff"`     // mean absolute luminance delta, [0,1]
	FlowMagnitude float64   `json:"flow_magnitude"` // mean block displacement, pixels, >= 0
	Density       float64   `json:"density"`        // fraction of changed pixels, [0,1]
	Complexity    float64   `json:"complexity"`     // gradient energy, >= 0
	Timestamp     time.Time `json:"timestamp"`
}

// CombinedScore folds frame delta and texture into the single score the
// scene classifier thresholds against.
func (m Metrics) CombinedScore() float64 {
	return (m.FrameDiff + m.Complexity) / 2
}

// SceneType is a coarse classification of how much is happening in the
// recent frames. Ordering is by urgency: a higher value never demands less
// processing than a lower one.
type SceneType uint8

const (
	SceneStatic SceneType = iota
	SceneLowMotion
	SceneHighMotion
	SceneCritical
)

func (s SceneType) String() string {
	switch s {
	case SceneStatic:
		return "static"
	case SceneLowMotion:
		return "low_motion"
	case SceneHighMotion:
		return "high_motion"
	case SceneCritical:
		return "critical"
	default:
		return "unknown"
	}
}
