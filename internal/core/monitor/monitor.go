package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/framegate/framegate/internal/core/observability/log"
	"github.com/framegate/framegate/internal/core/system"
	"github.com/framegate/framegate/pkg/sequence"
)

var ErrStopTimeout = errors.New("monitor did not stop within the shutdown wait")

// Monitor samples host resources on its own timer, accepts event-driven
// throughput pushes from the frame path, evaluates the alert threshold
// table after every tick and keeps bounded history for reporting.
type Monitor struct {
	cfg     Config
	sampler system.Sampler
	lg      log.Log

	mu         sync.RWMutex
	history    *sequence.Ring[Metrics]
	alerts     *sequence.Ring[Alert]
	fpsSamples *sequence.Ring[float64]
	callbacks  []AlertCallback

	// last pushed event-driven values
	lastFPS        float64
	lastProcTime   time.Duration
	lastDropRate   float64
	fpsSeen        bool
	score          float64
	ticks          uint64
	alertsEmitted  uint64

	cancel context.CancelFunc
	group  *errgroup.Group
}

func New(cfg Config, sampler system.Sampler, lg log.Log) *Monitor {
	if cfg.MonitoringInterval <= 0 {
		cfg.MonitoringInterval = time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 300
	}
	if cfg.AlertHistorySize <= 0 {
		cfg.AlertHistorySize = 100
	}
	if cfg.FPSSampleSize <= 0 {
		cfg.FPSSampleSize = 60
	}
	if sampler == nil {
		sampler = system.Noop{}
	}
	return &Monitor{
		cfg:        cfg,
		sampler:    sampler,
		lg:         lg,
		history:    sequence.NewRing[Metrics](cfg.HistorySize),
		alerts:     sequence.NewRing[Alert](cfg.AlertHistorySize),
		fpsSamples: sequence.NewRing[float64](cfg.FPSSampleSize),
		score:      100,
	}
}

// Start launches the background sampling loop. The loop observes ctx
// cancellation or Stop within one tick interval.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	m.mu.Lock()
	m.cancel = cancel
	m.group = g
	m.mu.Unlock()

	g.Go(func() error {
		ticker := time.NewTicker(m.cfg.MonitoringInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				m.Tick()
			}
		}
	})
	if m.lg != nil {
		m.lg.Info("performance monitor started",
			log.Duration("interval", m.cfg.MonitoringInterval))
	}
}

// Stop signals the loop and waits up to two tick intervals for it to exit.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	cancel, g := m.cancel, m.group
	m.cancel, m.group = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * m.cfg.MonitoringInterval):
		return ErrStopTimeout
	}
}

// Tick takes one sample, records it, evaluates thresholds and recomputes the
// performance score. Exported so tests and callers without a background loop
// can drive the monitor manually.
func (m *Monitor) Tick() {
	sample := Metrics{
		CPUUsage:    m.sampler.CPUPercent(),
		MemoryUsage: m.sampler.MemoryPercent(),
		GPUUsage:    m.sampler.GPUPercent(),
		Timestamp:   time.Now(),
	}

	m.mu.Lock()
	sample.FPS = m.lastFPS
	sample.ProcessingTime = m.lastProcTime
	sample.FrameDropRate = m.lastDropRate
	m.history.Push(sample)
	m.ticks++
	alerts := evaluateThresholds(sample, m.cfg.Thresholds)
	for _, a := range alerts {
		m.alerts.Push(a)
		m.alertsEmitted++
	}
	callbacks := make([]AlertCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.score = m.computeScoreLocked()
	m.mu.Unlock()

	for _, a := range alerts {
		m.logAlert(a)
		for _, cb := range callbacks {
			m.deliver(cb, a)
		}
	}
}

func (m *Monitor) deliver(cb AlertCallback, a Alert) {
	defer func() {
		if r := recover(); r != nil && m.lg != nil {
			m.lg.Error("alert callback panicked", log.Any("panic", r), log.String("alert", a.Type))
		}
	}()
	cb(a)
}

func (m *Monitor) logAlert(a Alert) {
	if m.lg == nil {
		return
	}
	fields := []log.Field{
		log.String("type", a.Type),
		log.Float64("value", a.MetricValue),
		log.Float64("threshold", a.Threshold),
	}
	switch a.Severity {
	case SeverityCritical:
		m.lg.Error(a.Message, fields...)
	case SeverityWarning:
		m.lg.Warn(a.Message, fields...)
	default:
		m.lg.Info(a.Message, fields...)
	}
}

// RegisterAlertCallback adds a synchronous alert consumer.
func (m *Monitor) RegisterAlertCallback(cb AlertCallback) {
	if cb == nil {
		return
	}
	m.mu.Lock()
	m.callbacks = append(m.callbacks, cb)
	m.mu.Unlock()
}

// UpdateFrameMetrics pushes event-driven throughput values from the frame
// path. Not sampled on the timer: the next tick snapshots whatever was
// pushed last.
func (m *Monitor) UpdateFrameMetrics(fps float64, processingTime time.Duration, dropRate float64) {
	m.mu.Lock()
	m.lastFPS = fps
	m.lastProcTime = processingTime
	m.lastDropRate = dropRate
	m.fpsSeen = true
	m.fpsSamples.Push(fps)
	m.mu.Unlock()
}

// RecentFPS returns up to n recent FPS pushes, oldest first.
func (m *Monitor) RecentFPS(n int) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fpsSamples.Last(n)
}

// Score is the current 0-100 performance score.
func (m *Monitor) Score() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.score
}

// Latest returns the most recent metrics sample, if any tick has run.
func (m *Monitor) Latest() (Metrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Latest()
}

// History returns all retained samples, oldest first.
func (m *Monitor) History() []Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Items()
}

// Alerts returns the retained alert history, oldest first.
func (m *Monitor) Alerts() []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alerts.Items()
}

// Reset drops history, alerts, pushed values and the score.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Clear()
	m.alerts.Clear()
	m.fpsSamples.Clear()
	m.lastFPS = 0
	m.lastProcTime = 0
	m.lastDropRate = 0
	m.fpsSeen = false
	m.score = 100
	m.ticks = 0
	m.alertsEmitted = 0
}

// SetTargetFPS rebases the score computation on a new throughput target.
func (m *Monitor) SetTargetFPS(target float64) error {
	if target <= 0 {
		return fmt.Errorf("target fps must be positive, got %.2f", target)
	}
	m.mu.Lock()
	m.cfg.TargetFPS = target
	m.mu.Unlock()
	return nil
}

// TargetFPS returns the current throughput target.
func (m *Monitor) TargetFPS() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.TargetFPS
}

// computeScoreLocked derives the 0-100 score from recent average CPU,
// memory and FPS with fixed penalty weights. Deterministic in the history
// contents; recomputed after every tick.
func (m *Monitor) computeScoreLocked() float64 {
	recent := m.history.Last(10)
	if len(recent) == 0 {
		return 100
	}
	var cpuSum, memSum, fpsSum float64
	for _, s := range recent {
		cpuSum += s.CPUUsage
		memSum += s.MemoryUsage
		fpsSum += s.FPS
	}
	n := float64(len(recent))
	avgCPU := cpuSum / n
	avgMem := memSum / n
	avgFPS := fpsSum / n

	score := 100.0
	// CPU and memory penalize only above a comfortable floor.
	score -= 0.5 * math.Max(0, avgCPU-60)
	score -= 0.3 * math.Max(0, avgMem-60)
	// The FPS penalty only applies once the frame path has reported
	// throughput at least once; an idle pipeline is not a slow one.
	if m.cfg.TargetFPS > 0 && m.fpsSeen {
		deficit := 1 - avgFPS/m.cfg.TargetFPS
		if deficit > 0 {
			score -= 40 * math.Min(1, deficit)
		}
	}
	return math.Max(0, math.Min(100, score))
}
