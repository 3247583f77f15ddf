package motion

// Classifier maps Metrics to a SceneType by thresholding the combined
// frame-diff/complexity score against three ascending bands.
type Classifier struct {
	cfg ClassifierConfig
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify selects the scene tier. Monotone in the combined score: a larger
// score never yields a lower-urgency tier.
func (c *Classifier) Classify(m Metrics) SceneType {
	return c.classify(m, c.cfg.StaticThreshold, c.cfg.LowMotionThreshold, 0)
}

// ClassifyAdaptive classifies with bands derived from the active skip
// strategy: motionThreshold replaces the static band and the low-motion
// band scales by the configured band ratio. A positive complexityThreshold
// promotes a visually busy scene one tier (never into critical) so textured
// scenes are re-observed sooner. Non-positive overrides fall back to the
// configured bands.
func (c *Classifier) ClassifyAdaptive(m Metrics, motionThreshold, complexityThreshold float64) SceneType {
	static := c.cfg.StaticThreshold
	low := c.cfg.LowMotionThreshold
	if motionThreshold > 0 {
		static = motionThreshold
		low = motionThreshold * (c.cfg.LowMotionThreshold / c.cfg.StaticThreshold)
		// Keep the bands ordered whatever the strategy feeds in.
		if low > c.cfg.HighMotionThreshold {
			low = c.cfg.HighMotionThreshold
		}
		if static > low {
			static = low
		}
	}
	return c.classify(m, static, low, complexityThreshold)
}

func (c *Classifier) classify(m Metrics, static, low, complexityThreshold float64) SceneType {
	score := m.CombinedScore()
	var scene SceneType
	switch {
	case score < static:
		scene = SceneStatic
	case score < low:
		scene = SceneLowMotion
	case score < c.cfg.HighMotionThreshold:
		scene = SceneHighMotion
	default:
		scene = SceneCritical
	}
	if complexityThreshold > 0 && m.Complexity >= complexityThreshold && scene < SceneHighMotion {
		scene++
	}
	return scene
}
