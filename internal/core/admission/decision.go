package admission

// Decision is the per-frame admission verdict. Produced fresh for every
// frame and never mutated afterwards.
type Decision struct {
	ShouldProcess bool    `json:"should_process"`
	SkipFrames    int     `json:"skip_frames"`
	Mode          string  `json:"processing_mode"`
	Confidence    float64 `json:"confidence"`
	// Reason embeds the numeric scores that drove the verdict so operators
	// can reconstruct a decision from logs alone.
	Reason string `json:"reason"`
}

// Processing modes reported in Decision.Mode.
const (
	ModeForced           = "forced"
	ModeIntervalLimit    = "interval_limit"
	ModeSkipCountdown    = "skip_countdown"
	ModeScheduledRefresh = "scheduled_refresh"
	ModeStaticSkip       = "static_skip"
	ModeLowMotionSkip    = "low_motion_skip"
	ModeHighMotion       = "high_motion"
	ModeCritical         = "critical"
)
