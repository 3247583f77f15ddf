package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framegate/framegate/internal/core/observability/log"
)

// scriptedSampler replays a fixed CPU sequence; memory and GPU stay calm.
type scriptedSampler struct {
	mu  sync.Mutex
	cpu []float64
	idx int
}

func (s *scriptedSampler) CPUPercent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.cpu) {
		return 10
	}
	v := s.cpu[s.idx]
	s.idx++
	return v
}

func (s *scriptedSampler) MemoryPercent() float64 { return 30 }
func (s *scriptedSampler) GPUPercent() float64    { return 0 }

func newTestMonitor(cpu []float64) *Monitor {
	cfg := DefaultConfig()
	cfg.MonitoringInterval = 10 * time.Millisecond
	return New(cfg, &scriptedSampler{cpu: cpu}, log.NewNop())
}

func TestMonitor_Alerts(t *testing.T) {
	t.Run("Single Warning Crossing Emits One Warning", func(t *testing.T) {
		m := newTestMonitor([]float64{40, 90, 40})

		m.Tick()
		m.Tick()
		m.Tick()

		var warnings []Alert
		for _, a := range m.Alerts() {
			if a.Type == "cpu_usage" && a.Severity == SeverityWarning {
				warnings = append(warnings, a)
			}
		}
		require.Len(t, warnings, 1)
		require.Equal(t, 90.0, warnings[0].MetricValue)
		require.Equal(t, 85.0, warnings[0].Threshold)
		require.NotEmpty(t, warnings[0].Recommendations)
		require.NotEmpty(t, warnings[0].ID)
	})

	t.Run("Quiet Sequence Emits Nothing", func(t *testing.T) {
		m := newTestMonitor([]float64{10, 20, 30, 40})
		for i := 0; i < 4; i++ {
			m.Tick()
		}
		require.Empty(t, m.Alerts())
	})

	t.Run("Sustained Breach Repeats Alerts", func(t *testing.T) {
		// No cross-tick dedup: repeated breaches keep alerting because
		// severity may be escalating.
		m := newTestMonitor([]float64{90, 90, 96})
		for i := 0; i < 3; i++ {
			m.Tick()
		}

		alerts := m.Alerts()
		require.Len(t, alerts, 3)
		require.Equal(t, SeverityWarning, alerts[0].Severity)
		require.Equal(t, SeverityWarning, alerts[1].Severity)
		require.Equal(t, SeverityCritical, alerts[2].Severity)
	})

	t.Run("Highest Breached Tier Only", func(t *testing.T) {
		m := newTestMonitor([]float64{96})
		m.Tick()

		alerts := m.Alerts()
		require.Len(t, alerts, 1)
		require.Equal(t, SeverityCritical, alerts[0].Severity)
	})

	t.Run("Callbacks Receive Alerts And Panics Are Isolated", func(t *testing.T) {
		m := newTestMonitor([]float64{90})
		var received []Alert
		m.RegisterAlertCallback(func(Alert) { panic("sink exploded") })
		m.RegisterAlertCallback(func(a Alert) { received = append(received, a) })

		m.Tick()

		require.Len(t, received, 1)
		require.Equal(t, "cpu_usage", received[0].Type)
	})

	t.Run("Alert History Is Bounded", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AlertHistorySize = 3
		cpu := make([]float64, 10)
		for i := range cpu {
			cpu[i] = 90
		}
		m := New(cfg, &scriptedSampler{cpu: cpu}, log.NewNop())
		for i := 0; i < 10; i++ {
			m.Tick()
		}
		require.Len(t, m.Alerts(), 3)
	})
}

func TestMonitor_FrameMetrics(t *testing.T) {
	m := newTestMonitor(nil)

	m.UpdateFrameMetrics(24.5, 40*time.Millisecond, 0.05)
	m.Tick()

	latest, ok := m.Latest()
	require.True(t, ok)
	require.Equal(t, 24.5, latest.FPS)
	require.Equal(t, 40*time.Millisecond, latest.ProcessingTime)
	require.Equal(t, 0.05, latest.FrameDropRate)

	t.Run("Recent FPS Preserves Push Order", func(t *testing.T) {
		m.UpdateFrameMetrics(25, 0, 0)
		m.UpdateFrameMetrics(26, 0, 0)
		require.Equal(t, []float64{24.5, 25, 26}, m.RecentFPS(3))
	})
}

func TestMonitor_Score(t *testing.T) {
	t.Run("Idle Host Scores High", func(t *testing.T) {
		m := newTestMonitor([]float64{10, 10, 10})
		for i := 0; i < 3; i++ {
			m.Tick()
		}
		require.GreaterOrEqual(t, m.Score(), 95.0)
	})

	t.Run("FPS Deficit Lowers Score", func(t *testing.T) {
		m := newTestMonitor([]float64{10, 10, 10, 10, 10, 10})
		m.Tick()
		healthy := m.Score()

		m.UpdateFrameMetrics(5, 0, 0) // target is 25
		for i := 0; i < 5; i++ {
			m.Tick()
		}
		require.Less(t, m.Score(), healthy)
	})

	t.Run("Target Change Is Validated", func(t *testing.T) {
		m := newTestMonitor(nil)
		require.Error(t, m.SetTargetFPS(-1))
		require.Equal(t, DefaultConfig().TargetFPS, m.TargetFPS())
		require.NoError(t, m.SetTargetFPS(15))
		require.Equal(t, 15.0, m.TargetFPS())
	})
}

func TestMonitor_Lifecycle(t *testing.T) {
	m := newTestMonitor(nil)
	m.Start(context.Background())

	require.Eventually(t, func() bool {
		return len(m.History()) > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Stop())

	t.Run("Stop Twice Is Harmless", func(t *testing.T) {
		require.NoError(t, m.Stop())
	})
}

func TestMonitor_GetReport(t *testing.T) {
	m := newTestMonitor([]float64{50, 60, 70})
	m.UpdateFrameMetrics(20, 30*time.Millisecond, 0.1)
	for i := 0; i < 3; i++ {
		m.Tick()
	}

	r := m.GetReport(0)

	require.Equal(t, 3, r.Samples)
	require.InDelta(t, 60.0, r.CPU.Avg, 1e-9)
	require.Equal(t, 50.0, r.CPU.Min)
	require.Equal(t, 70.0, r.CPU.Max)
	require.Greater(t, r.CPU.StdDev, 0.0)
	require.NotEmpty(t, r.Recommendations)
	require.False(t, r.GeneratedAt.IsZero())

	t.Run("Window Filters Old Samples", func(t *testing.T) {
		r := m.GetReport(time.Nanosecond)
		require.Zero(t, r.Samples)
	})

	t.Run("Reset Clears History", func(t *testing.T) {
		m.Reset()
		require.Empty(t, m.History())
		require.Empty(t, m.Alerts())
		require.Equal(t, 100.0, m.Score())
	})
}
