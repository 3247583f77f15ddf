package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/framegate/framegate/internal/core/admission"
	"github.com/framegate/framegate/internal/core/frame"
	"github.com/framegate/framegate/internal/core/monitor"
	"github.com/framegate/framegate/internal/core/motion"
	"github.com/framegate/framegate/internal/core/observability/log"
	"github.com/framegate/framegate/internal/core/strategy"
	"github.com/framegate/framegate/internal/core/system"
)

// DetectFn is the external inference step, invoked only for admitted frames.
// Its result is opaque to the pipeline; its errors and panics are contained
// here and surfaced as per-frame failures.
type DetectFn func(ctx context.Context, f *frame.Frame) (any, error)

// Info explains a frame's outcome. Populated on every call so callers can
// see why a frame was or wasn't processed without further queries.
type Info struct {
	Decision     admission.Decision    `json:"decision"`
	Scene        string                `json:"scene"`
	Motion       motion.Metrics        `json:"motion"`
	Strategy     strategy.SkipStrategy `json:"strategy"`
	Level        string                `json:"performance_level"`
	Score        float64               `json:"performance_score"`
	DetectFailed bool                  `json:"detect_failed,omitempty"`
	DetectError  string                `json:"detect_error,omitempty"`
	ProcessTime  time.Duration         `json:"process_time,omitempty"`
}

// Counters are the orchestrator-owned aggregate frame counters. Reset only
// through ForceOptimization; never persisted outside the process.
type Counters struct {
	TotalFrames      uint64 `json:"total_frames"`
	ProcessedFrames  uint64 `json:"processed_frames"`
	SkippedFrames    uint64 `json:"skipped_frames"`
	DetectFailures   uint64 `json:"detect_failures"`
	ConsecutiveSkips uint64 `json:"consecutive_skips"`
}

// Stats is the comprehensive snapshot exposed to operators.
type Stats struct {
	SessionID       string                `json:"session_id"`
	Counters        Counters              `json:"counters"`
	AdmissionRate   float64               `json:"admission_rate"`
	AvgProcessMS    float64               `json:"avg_process_ms"`
	Strategy        strategy.SkipStrategy `json:"strategy"`
	Score           float64               `json:"performance_score"`
	TargetFPS       float64               `json:"target_fps"`
	Recommendations []string              `json:"recommendations"`
}

// Pipeline wires motion analysis, admission, the strategy control loop and
// the performance monitor into the single per-frame entry point.
type Pipeline struct {
	cfg      Config
	engine   *admission.Engine
	strategy *strategy.Manager
	monitor  *monitor.Monitor
	lg       log.Log
	session  string

	mu          sync.Mutex
	prev        *frame.Frame
	counters    Counters
	procTimeSum time.Duration
}

// New assembles a pipeline. A nil sampler downgrades resource telemetry to
// zero readings; monitoring continues regardless.
func New(cfg Config, sampler system.Sampler, lg log.Log) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lg == nil {
		lg = log.NewNop()
	}

	mgr, err := strategy.NewManager(cfg.Strategy, lg.With(log.String("component", "strategy")))
	if err != nil {
		return nil, err
	}
	analyzer := motion.NewAnalyzer(cfg.Analyzer, lg.With(log.String("component", "motion")))
	classifier := motion.NewClassifier(cfg.Classifier)
	engine := admission.NewEngine(cfg.Admission, analyzer, classifier, mgr,
		lg.With(log.String("component", "admission")))
	mon := monitor.New(cfg.Monitor, sampler, lg.With(log.String("component", "monitor")))

	return &Pipeline{
		cfg:      cfg,
		engine:   engine,
		strategy: mgr,
		monitor:  mon,
		lg:       lg,
		session:  uuid.NewString(),
	}, nil
}

// Start launches the background performance monitor.
func (p *Pipeline) Start(ctx context.Context) {
	p.monitor.Start(ctx)
	p.lg.Info("pipeline started", log.String("session", p.session))
}

// Stop tears down the background monitor with a bounded wait.
func (p *Pipeline) Stop() error {
	err := p.monitor.Stop()
	p.lg.Info("pipeline stopped", log.String("session", p.session))
	return err
}

// ProcessFrame is the per-frame entry point. It decides admission, re-tunes
// the skip strategy, runs detection for admitted frames and feeds timing
// back into the monitor. The result is nil when the frame is skipped or
// detection fails; Info always explains the outcome.
func (p *Pipeline) ProcessFrame(ctx context.Context, f *frame.Frame, force bool, detect DetectFn) (any, Info) {
	p.mu.Lock()
	previous := p.prev
	p.prev = f
	p.mu.Unlock()

	decision, metrics, scene := p.engine.Decide(f, previous, force)

	// The control loop re-tunes continuously, not only on admitted frames:
	// a long run of skips is itself a signal.
	level := p.strategy.EvaluatePerformanceLevel(
		p.monitor.RecentFPS(p.cfg.Strategy.MinSamples*4), p.monitor.TargetFPS())
	strat := p.strategy.Adjust(level, scene, metrics.FrameDiff)

	info := Info{
		Decision: decision,
		Scene:    scene.String(),
		Motion:   metrics,
		Strategy: strat,
		Level:    level.String(),
		Score:    p.monitor.Score(),
	}

	if !decision.ShouldProcess {
		p.mu.Lock()
		p.counters.TotalFrames++
		p.counters.SkippedFrames++
		p.counters.ConsecutiveSkips++
		p.mu.Unlock()
		return nil, info
	}

	start := time.Now()
	result, err := p.runDetect(ctx, f, detect)
	elapsed := time.Since(start)
	info.ProcessTime = elapsed

	p.mu.Lock()
	p.counters.TotalFrames++
	p.counters.ProcessedFrames++
	p.counters.ConsecutiveSkips = 0
	if err != nil {
		p.counters.DetectFailures++
	}
	p.procTimeSum += elapsed
	total := p.counters.TotalFrames
	skipped := p.counters.SkippedFrames
	p.mu.Unlock()

	if err != nil {
		info.DetectFailed = true
		info.DetectError = err.Error()
		p.lg.Warn("detection failed",
			log.Uint64("frame", f.Seq),
			log.Error(err))
		result = nil
	}

	fps := 0.0
	if elapsed > 0 {
		fps = float64(time.Second) / float64(elapsed)
	}
	dropRate := 0.0
	if total > 0 {
		dropRate = float64(skipped) / float64(total)
	}
	p.monitor.UpdateFrameMetrics(fps, elapsed, dropRate)

	return result, info
}

// runDetect contains detector panics as ordinary per-frame errors.
func (p *Pipeline) runDetect(ctx context.Context, f *frame.Frame, detect DetectFn) (result any, err error) {
	if detect == nil {
		return nil, fmt.Errorf("no detect function supplied")
	}
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("detector panicked: %v", r)
		}
	}()
	return detect(ctx, f)
}

// Stats assembles the comprehensive operator snapshot.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	counters := p.counters
	procSum := p.procTimeSum
	p.mu.Unlock()

	report := p.monitor.GetReport(0)

	s := Stats{
		SessionID:       p.session,
		Counters:        counters,
		Strategy:        p.strategy.Current(),
		Score:           p.monitor.Score(),
		TargetFPS:       p.monitor.TargetFPS(),
		Recommendations: report.Recommendations,
	}
	if counters.TotalFrames > 0 {
		s.AdmissionRate = float64(counters.ProcessedFrames) / float64(counters.TotalFrames)
	}
	if counters.ProcessedFrames > 0 {
		s.AvgProcessMS = float64(procSum.Milliseconds()) / float64(counters.ProcessedFrames)
	}
	return s
}

// GetReport aggregates monitor history over the trailing window.
func (p *Pipeline) GetReport(window time.Duration) monitor.Report {
	return p.monitor.GetReport(window)
}

// Monitor exposes the performance monitor for alert sink registration.
func (p *Pipeline) Monitor() *monitor.Monitor {
	return p.monitor
}

// StrategyHistory returns the recorded strategy adjustments, oldest first.
func (p *Pipeline) StrategyHistory() []strategy.Adjustment {
	return p.strategy.History()
}

// AdjustTargetFPS rebases the throughput target for scoring and the
// performance-level bands.
func (p *Pipeline) AdjustTargetFPS(target float64) error {
	if err := p.monitor.SetTargetFPS(target); err != nil {
		return err
	}
	p.lg.Info("target fps adjusted", log.Float64("target", target))
	return nil
}

// ForceOptimization resets every counter, history buffer and the strategy
// to its defaults.
func (p *Pipeline) ForceOptimization() {
	p.mu.Lock()
	p.counters = Counters{}
	p.procTimeSum = 0
	p.prev = nil
	p.mu.Unlock()

	p.engine.Reset()
	p.strategy.Reset()
	p.monitor.Reset()
	p.lg.Info("pipeline state reset", log.String("session", p.session))
}
