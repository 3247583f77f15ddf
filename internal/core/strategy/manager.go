package strategy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/framegate/framegate/internal/core/motion"
	"github.com/framegate/framegate/internal/core/observability/log"
	"github.com/framegate/framegate/pkg/sequence"
)

var ErrStrategyOutOfBounds = errors.New("skip strategy field outside configured limits")

// Limits are the documented clamp bounds for every tunable strategy field.
// The Manager never emits a strategy outside these ranges, whatever the
// input extremity.
type Limits struct {
	MinSkipRate     int           `yaml:"min_skip_rate" json:"min_skip_rate"`
	MaxSkipRate     int           `yaml:"max_skip_rate" json:"max_skip_rate"`
	MinMotionThresh float64       `yaml:"min_motion_threshold" json:"min_motion_threshold"`
	MaxMotionThresh float64       `yaml:"max_motion_threshold" json:"max_motion_threshold"`
	MinComplexity   float64       `yaml:"min_complexity_threshold" json:"min_complexity_threshold"`
	MaxComplexity   float64       `yaml:"max_complexity_threshold" json:"max_complexity_threshold"`
	MinMaxSkip      int           `yaml:"min_max_skip_frames" json:"min_max_skip_frames"`
	MaxMaxSkip      int           `yaml:"max_max_skip_frames" json:"max_max_skip_frames"`
	MinInterval     time.Duration `yaml:"min_interval" json:"min_interval"`
	MaxInterval     time.Duration `yaml:"max_interval" json:"max_interval"`
}

func DefaultLimits() Limits {
	return Limits{
		MinSkipRate:     1,
		MaxSkipRate:     10,
		MinMotionThresh: 0.01,
		MaxMotionThresh: 0.50,
		MinComplexity:   0.05,
		MaxComplexity:   0.90,
		MinMaxSkip:      5,
		MaxMaxSkip:      30,
		MinInterval:     20 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// DefaultStrategy is the starting point before any feedback arrives.
func DefaultStrategy() SkipStrategy {
	return SkipStrategy{
		BaseSkipRate:          3,
		MotionThreshold:       0.05,
		ComplexityThreshold:   0.30,
		MaxSkipFrames:         15,
		MinProcessingInterval: 100 * time.Millisecond,
		Mode:                  "balanced",
	}
}

// Config bundles the manager inputs.
type Config struct {
	Initial     SkipStrategy `yaml:"initial" json:"initial"`
	Limits      Limits       `yaml:"limits" json:"limits"`
	HistorySize int          `yaml:"history_size" json:"history_size"`
	// MinSamples is how many FPS samples EvaluatePerformanceLevel needs
	// before it trusts the ratio; below that it reports LevelGood.
	MinSamples int `yaml:"min_samples" json:"min_samples"`
}

func DefaultConfig() Config {
	return Config{
		Initial:     DefaultStrategy(),
		Limits:      DefaultLimits(),
		HistorySize: 64,
		MinSamples:  5,
	}
}

// Manager is the slow control loop. It classifies recent throughput and
// re-derives the skip strategy from performance and scene feedback, clamping
// every field to Limits.
type Manager struct {
	mu      sync.RWMutex
	current SkipStrategy
	limits  Limits
	history *sequence.Ring[Adjustment]

	minSamples int
	lg         log.Log
}

func NewManager(cfg Config, lg log.Log) (*Manager, error) {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 64
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 5
	}
	m := &Manager{
		limits:     cfg.Limits,
		history:    sequence.NewRing[Adjustment](cfg.HistorySize),
		minSamples: cfg.MinSamples,
		lg:         lg,
	}
	if err := m.validate(cfg.Initial); err != nil {
		return nil, err
	}
	m.current = cfg.Initial
	return m, nil
}

// Current returns a copy of the active strategy.
func (m *Manager) Current() SkipStrategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetStrategy replaces the active strategy. Out-of-bounds fields are
// rejected and the previous valid strategy is retained.
func (m *Manager) SetStrategy(s SkipStrategy) error {
	if err := m.validate(s); err != nil {
		if m.lg != nil {
			m.lg.Warn("rejected strategy update", log.Error(err))
		}
		return err
	}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return nil
}

// EvaluatePerformanceLevel classifies throughput from recent FPS samples.
// Under MinSamples samples the signal is too thin and GOOD is assumed.
func (m *Manager) EvaluatePerformanceLevel(recentFPS []float64, targetFPS float64) PerformanceLevel {
	if len(recentFPS) < m.minSamples || targetFPS <= 0 {
		return LevelGood
	}
	var sum float64
	for _, v := range recentFPS {
		sum += v
	}
	ratio := sum / float64(len(recentFPS)) / targetFPS

	switch {
	case ratio >= excellentRatio:
		return LevelExcellent
	case ratio >= goodRatio:
		return LevelGood
	case ratio >= fairRatio:
		return LevelFair
	default:
		return LevelPoor
	}
}

// Adjust re-derives the strategy from the current one. Performance level
// drives the main nudge, scene type applies an independent secondary nudge,
// and every field is clamped before the result becomes current.
func (m *Manager) Adjust(level PerformanceLevel, scene motion.SceneType, motionIntensity float64) SkipStrategy {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.current
	next := old

	switch level {
	case LevelPoor:
		next.BaseSkipRate += 2
		next.MotionThreshold += 0.02
		next.ComplexityThreshold += 0.05
		next.MaxSkipFrames += 5
		next.MinProcessingInterval += 50 * time.Millisecond
		next.Mode = "survival"
	case LevelFair:
		next.BaseSkipRate++
		next.MotionThreshold += 0.01
		next.ComplexityThreshold += 0.02
		next.MaxSkipFrames += 2
		next.MinProcessingInterval += 20 * time.Millisecond
		next.Mode = "conservative"
	case LevelGood:
		next.Mode = "balanced"
	case LevelExcellent:
		next.BaseSkipRate--
		next.MotionThreshold -= 0.01
		next.ComplexityThreshold -= 0.02
		next.MaxSkipFrames -= 2
		next.MinProcessingInterval -= 20 * time.Millisecond
		next.Mode = "responsive"
	}

	switch scene {
	case motion.SceneStatic:
		next.BaseSkipRate++
		next.MaxSkipFrames += 2
	case motion.SceneCritical:
		next.BaseSkipRate--
		next.MinProcessingInterval -= 20 * time.Millisecond
	}

	next = m.clamp(next)
	m.current = next

	reason := fmt.Sprintf("level=%s scene=%s motion=%.3f", level, scene, motionIntensity)
	m.history.Push(Adjustment{
		Old:       old,
		New:       next,
		Level:     level,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	if m.lg != nil && next != old {
		m.lg.Debug("skip strategy adjusted",
			log.String("reason", reason),
			log.Int("base_skip_rate", next.BaseSkipRate),
			log.Duration("min_interval", next.MinProcessingInterval))
	}
	return next
}

// History returns the recorded adjustments, oldest first.
func (m *Manager) History() []Adjustment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Items()
}

// Reset restores the default strategy and clears the adjustment log.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.clamp(DefaultStrategy())
	m.history.Clear()
}

func (m *Manager) clamp(s SkipStrategy) SkipStrategy {
	l := m.limits
	s.BaseSkipRate = clampInt(s.BaseSkipRate, l.MinSkipRate, l.MaxSkipRate)
	s.MotionThreshold = clampFloat(s.MotionThreshold, l.MinMotionThresh, l.MaxMotionThresh)
	s.ComplexityThreshold = clampFloat(s.ComplexityThreshold, l.MinComplexity, l.MaxComplexity)
	s.MaxSkipFrames = clampInt(s.MaxSkipFrames, l.MinMaxSkip, l.MaxMaxSkip)
	s.MinProcessingInterval = clampDuration(s.MinProcessingInterval, l.MinInterval, l.MaxInterval)
	return s
}

func (m *Manager) validate(s SkipStrategy) error {
	if m.clamp(s) != s {
		return fmt.Errorf("%w: %+v", ErrStrategyOutOfBounds, s)
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
