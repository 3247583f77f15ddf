package admission

import (
	"fmt"
	"sync"
	"time"

	"github.com/framegate/framegate/internal/core/frame"
	"github.com/framegate/framegate/internal/core/motion"
	"github.com/framegate/framegate/internal/core/observability/log"
	"github.com/framegate/framegate/internal/core/strategy"
	"github.com/framegate/framegate/pkg/sequence"
)

// StrategyProvider hands the engine the currently active skip strategy.
// The strategy manager owns mutation; the engine only reads copies.
type StrategyProvider interface {
	Current() strategy.SkipStrategy
}

// Config tunes the engine's diagnostic buffers.
type Config struct {
	MotionHistorySize int `yaml:"motion_history_size" json:"motion_history_size"`
}

func DefaultConfig() Config {
	return Config{MotionHistorySize: 30}
}

// Stats is a snapshot of the engine's counters.
type Stats struct {
	FrameCount       uint64 `json:"frame_count"`
	ProcessedFrames  uint64 `json:"processed_frames"`
	SkippedFrames    uint64 `json:"skipped_frames"`
	ConsecutiveSkips uint64 `json:"consecutive_skips"`
}

// Engine gates frames into the expensive detection step. Every call is a
// fresh decision from the frame pair, the force flag and the active
// strategy; the only carried state is the last-admitted timestamp plus
// diagnostic counters.
type Engine struct {
	analyzer   *motion.Analyzer
	classifier *motion.Classifier
	strategies StrategyProvider
	now        func() time.Time
	lg         log.Log

	mu            sync.Mutex
	lastProcessed time.Time
	pendingSkips  int
	refreshDue    bool
	stats         Stats
	motionHistory *sequence.Ring[motion.Metrics]
}

func NewEngine(cfg Config, analyzer *motion.Analyzer, classifier *motion.Classifier, strategies StrategyProvider, lg log.Log) *Engine {
	return NewEngineWithClock(cfg, analyzer, classifier, strategies, lg, time.Now)
}

// NewEngineWithClock injects the clock so interval-ceiling behavior is
// testable without sleeping.
func NewEngineWithClock(cfg Config, analyzer *motion.Analyzer, classifier *motion.Classifier, strategies StrategyProvider, lg log.Log, now func() time.Time) *Engine {
	if cfg.MotionHistorySize <= 0 {
		cfg.MotionHistorySize = 30
	}
	return &Engine{
		analyzer:      analyzer,
		classifier:    classifier,
		strategies:    strategies,
		now:           now,
		lg:            lg,
		motionHistory: sequence.NewRing[motion.Metrics](cfg.MotionHistorySize),
	}
}

// Decide produces the admission verdict for current given previous. The
// measured metrics and scene are returned alongside so callers can feed the
// strategy loop without re-analyzing the frame.
func (e *Engine) Decide(current, previous *frame.Frame, force bool) (Decision, motion.Metrics, motion.SceneType) {
	strat := e.strategies.Current()
	metrics := e.analyzer.Analyze(current, previous)
	// The strategy's motion and complexity thresholds shape the bands, so
	// the control loop's nudges actually move admission behavior.
	scene := e.classifier.ClassifyAdaptive(metrics, strat.MotionThreshold, strat.ComplexityThreshold)

	if force {
		e.mu.Lock()
		// A fresh detection is about to run; the old skip schedule is stale.
		e.pendingSkips = 0
		e.refreshDue = false
		e.mu.Unlock()
		d := Decision{
			ShouldProcess: true,
			SkipFrames:    0,
			Mode:          ModeForced,
			Confidence:    1.0,
			Reason:        "forced admission requested by caller",
		}
		e.record(d, metrics)
		return d, metrics, scene
	}

	e.mu.Lock()
	sinceLast := e.now().Sub(e.lastProcessed)
	intervalLimited := !e.lastProcessed.IsZero() && sinceLast < strat.MinProcessingInterval

	// A critical scene breaks any running skip batch; everything else honors
	// the countdown issued by the previous deny.
	if scene == motion.SceneCritical {
		e.pendingSkips = 0
		e.refreshDue = false
	} else if e.pendingSkips > 0 {
		e.pendingSkips--
		remaining := e.pendingSkips
		e.mu.Unlock()
		d := Decision{
			ShouldProcess: false,
			SkipFrames:    remaining,
			Mode:          ModeSkipCountdown,
			Confidence:    0.85,
			Reason:        fmt.Sprintf("skip batch in progress: %d frames remaining, score=%.4f", remaining, metrics.CombinedScore()),
		}
		e.record(d, metrics)
		return d, metrics, scene
	}
	refresh := e.refreshDue
	e.mu.Unlock()

	if intervalLimited {
		d := Decision{
			ShouldProcess: false,
			SkipFrames:    1,
			Mode:          ModeIntervalLimit,
			Confidence:    1.0,
			Reason: fmt.Sprintf("interval ceiling: %.0fms since last admit < %.0fms minimum",
				float64(sinceLast.Milliseconds()), float64(strat.MinProcessingInterval.Milliseconds())),
		}
		e.record(d, metrics)
		return d, metrics, scene
	}

	// A completed skip batch earns one scheduled detection so a quiet scene
	// is still re-grounded periodically.
	if refresh && scene != motion.SceneCritical {
		e.mu.Lock()
		e.refreshDue = false
		e.mu.Unlock()
		d := Decision{
			ShouldProcess: true,
			SkipFrames:    0,
			Mode:          ModeScheduledRefresh,
			Confidence:    0.7,
			Reason:        fmt.Sprintf("post-batch refresh: scene=%s score=%.4f", scene, metrics.CombinedScore()),
		}
		e.record(d, metrics)
		return d, metrics, scene
	}

	d := e.sceneDecision(scene, metrics, strat)
	if !d.ShouldProcess && d.SkipFrames > 0 {
		e.mu.Lock()
		e.pendingSkips = d.SkipFrames
		e.refreshDue = true
		e.mu.Unlock()
	}
	e.record(d, metrics)
	return d, metrics, scene
}

func (e *Engine) sceneDecision(scene motion.SceneType, m motion.Metrics, strat strategy.SkipStrategy) Decision {
	score := m.CombinedScore()
	switch scene {
	case motion.SceneStatic:
		skip := strat.BaseSkipRate * 3
		if skip > strat.MaxSkipFrames {
			skip = strat.MaxSkipFrames
		}
		return Decision{
			ShouldProcess: false,
			SkipFrames:    skip,
			Mode:          ModeStaticSkip,
			Confidence:    0.9,
			Reason:        fmt.Sprintf("static scene: score=%.4f diff=%.4f flow=%.2f", score, m.FrameDiff, m.FlowMagnitude),
		}
	case motion.SceneLowMotion:
		skip := strat.BaseSkipRate * 2
		if skip > strat.MaxSkipFrames {
			skip = strat.MaxSkipFrames
		}
		return Decision{
			ShouldProcess: false,
			SkipFrames:    skip,
			Mode:          ModeLowMotionSkip,
			Confidence:    0.8,
			Reason:        fmt.Sprintf("low motion: score=%.4f density=%.4f", score, m.Density),
		}
	case motion.SceneHighMotion:
		return Decision{
			ShouldProcess: true,
			SkipFrames:    0,
			Mode:          ModeHighMotion,
			Confidence:    0.85,
			Reason:        fmt.Sprintf("high motion: score=%.4f flow=%.2f", score, m.FlowMagnitude),
		}
	default: // critical admits unconditionally, throttled only by the interval ceiling
		return Decision{
			ShouldProcess: true,
			SkipFrames:    0,
			Mode:          ModeCritical,
			Confidence:    0.95,
			Reason:        fmt.Sprintf("critical scene: score=%.4f density=%.4f", score, m.Density),
		}
	}
}

func (e *Engine) record(d Decision, m motion.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.FrameCount++
	if d.ShouldProcess {
		e.stats.ProcessedFrames++
		e.stats.ConsecutiveSkips = 0
		e.lastProcessed = e.now()
	} else {
		e.stats.SkippedFrames++
		e.stats.ConsecutiveSkips++
	}
	if !m.Timestamp.IsZero() {
		e.motionHistory.Push(m)
	}

	if e.lg != nil {
		e.lg.Debug("admission decision",
			log.Bool("admit", d.ShouldProcess),
			log.Int("skip_frames", d.SkipFrames),
			log.String("mode", d.Mode),
			log.String("reason", d.Reason))
	}
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// RecentMotion returns up to n recent motion measurements, oldest first.
// Diagnostic only; decisions never read this buffer.
func (e *Engine) RecentMotion(n int) []motion.Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.motionHistory.Last(n)
}

// Reset clears counters, the admit timestamp and the diagnostic buffer.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = Stats{}
	e.lastProcessed = time.Time{}
	e.pendingSkips = 0
	e.refreshDue = false
	e.motionHistory.Clear()
}
