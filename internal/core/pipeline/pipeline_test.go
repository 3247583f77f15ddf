package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framegate/framegate/internal/core/admission"
	"github.com/framegate/framegate/internal/core/frame"
	"github.com/framegate/framegate/internal/core/observability/log"
)

// testConfig removes the interval ceiling so frame loops in tests are not
// throttled by wall-clock spacing.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Strategy.Limits.MinInterval = 0
	cfg.Strategy.Initial.MinProcessingInterval = 0
	return cfg
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(testConfig(), nil, log.NewNop())
	require.NoError(t, err)
	return p
}

func okDetect(ctx context.Context, f *frame.Frame) (any, error) {
	return map[string]uint64{"frame": f.Seq}, nil
}

func TestPipeline_ProcessFrame(t *testing.T) {
	t.Run("Force Processes And Returns Result", func(t *testing.T) {
		p := newTestPipeline(t)
		f := frame.Uniform(1, 64, 64, 128)

		result, info := p.ProcessFrame(context.Background(), f, true, okDetect)

		require.NotNil(t, result)
		require.True(t, info.Decision.ShouldProcess)
		require.Equal(t, admission.ModeForced, info.Decision.Mode)
		require.Greater(t, info.ProcessTime, time.Duration(0))
	})

	t.Run("Forced Frames Do Not Relax Throttling", func(t *testing.T) {
		p := newTestPipeline(t)
		initial := p.strategy.Current().BaseSkipRate

		// Forced admissions over a static feed must tune the strategy from
		// the observed scene, not from the forced admission itself.
		for i := 0; i < 10; i++ {
			f := frame.Uniform(uint64(i+1), 64, 64, 128)
			_, info := p.ProcessFrame(context.Background(), f, true, okDetect)
			require.Equal(t, "static", info.Scene)
		}

		require.GreaterOrEqual(t, p.strategy.Current().BaseSkipRate, initial)
	})

	t.Run("Skipped Frame Returns Nil With Populated Info", func(t *testing.T) {
		p := newTestPipeline(t)
		f1 := frame.Uniform(1, 64, 64, 128)
		f2 := frame.Uniform(2, 64, 64, 128)

		p.ProcessFrame(context.Background(), f1, true, okDetect)
		result, info := p.ProcessFrame(context.Background(), f2, false, okDetect)

		require.Nil(t, result)
		require.False(t, info.Decision.ShouldProcess)
		require.Equal(t, "static", info.Scene)
		require.NotEmpty(t, info.Decision.Reason)
		require.NotEmpty(t, info.Strategy.Mode)
		require.NotEmpty(t, info.Level)
	})

	t.Run("Detection Error Is Contained And Counted", func(t *testing.T) {
		p := newTestPipeline(t)
		f := frame.Uniform(1, 64, 64, 128)
		failing := func(context.Context, *frame.Frame) (any, error) {
			return nil, errors.New("model unavailable")
		}

		result, info := p.ProcessFrame(context.Background(), f, true, failing)

		require.Nil(t, result)
		require.True(t, info.DetectFailed)
		require.Contains(t, info.DetectError, "model unavailable")
		require.Equal(t, uint64(1), p.Stats().Counters.DetectFailures)
		require.Equal(t, uint64(1), p.Stats().Counters.ProcessedFrames)
	})

	t.Run("Detection Panic Is Contained", func(t *testing.T) {
		p := newTestPipeline(t)
		f := frame.Uniform(1, 64, 64, 128)
		exploding := func(context.Context, *frame.Frame) (any, error) {
			panic("segfault in native inference")
		}

		result, info := p.ProcessFrame(context.Background(), f, true, exploding)

		require.Nil(t, result)
		require.True(t, info.DetectFailed)
		require.Contains(t, info.DetectError, "panicked")
	})

	t.Run("Nil Detector Is A Per-Frame Failure", func(t *testing.T) {
		p := newTestPipeline(t)
		f := frame.Uniform(1, 64, 64, 128)

		result, info := p.ProcessFrame(context.Background(), f, true, nil)
		require.Nil(t, result)
		require.True(t, info.DetectFailed)
	})
}

func TestPipeline_Counters(t *testing.T) {
	p := newTestPipeline(t)
	prevAdmitted := uint64(0)

	for i := 0; i < 20; i++ {
		f := frame.Uniform(uint64(i), 64, 64, 128)
		p.ProcessFrame(context.Background(), f, false, okDetect)
	}

	stats := p.Stats()
	require.Equal(t, uint64(20), stats.Counters.TotalFrames)
	require.Equal(t, stats.Counters.TotalFrames,
		stats.Counters.ProcessedFrames+stats.Counters.SkippedFrames)
	require.Greater(t, stats.Counters.ProcessedFrames, prevAdmitted)
	require.NotEmpty(t, stats.SessionID)

	t.Run("ForceOptimization Resets Everything", func(t *testing.T) {
		p.ForceOptimization()
		stats := p.Stats()
		require.Zero(t, stats.Counters.TotalFrames)
		require.Empty(t, p.StrategyHistory())
		require.Equal(t, 100.0, stats.Score)
	})
}

func TestPipeline_ExportRoundTrip(t *testing.T) {
	p := newTestPipeline(t)

	for i := 0; i < 10; i++ {
		f := frame.Uniform(uint64(i), 64, 64, 128)
		p.ProcessFrame(context.Background(), f, i%3 == 0, okDetect)
	}
	// Drive a few monitor ticks so snapshots exist.
	for i := 0; i < 5; i++ {
		p.Monitor().Tick()
	}

	wantSnapshots := len(p.Monitor().History())
	wantAlerts := len(p.Monitor().Alerts())

	var buf bytes.Buffer
	require.NoError(t, p.Export(&buf))

	var parsed ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))

	require.Len(t, parsed.Snapshots, wantSnapshots)
	require.Len(t, parsed.Alerts, wantAlerts)
	require.Equal(t, p.Stats().Counters.TotalFrames, parsed.Stats.Counters.TotalFrames)
}

func TestPipeline_AdjustTargetFPS(t *testing.T) {
	p := newTestPipeline(t)

	require.NoError(t, p.AdjustTargetFPS(15))
	require.Equal(t, 15.0, p.Stats().TargetFPS)
	require.Error(t, p.AdjustTargetFPS(0))
	require.Equal(t, 15.0, p.Stats().TargetFPS)
}

func TestPipeline_StaticThenMotionScenario(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	var firstHalfAdmitted, secondHalfAdmitted int

	// Frames 1-50: near-identical static scene.
	for i := 0; i < 50; i++ {
		f := frame.Uniform(uint64(i), 96, 96, 64)
		_, info := p.ProcessFrame(ctx, f, false, okDetect)
		if info.Decision.ShouldProcess {
			firstHalfAdmitted++
		}
	}

	// Frames 51-100: strong synthetic motion.
	for i := 50; i < 100; i++ {
		var f *frame.Frame
		if i%2 == 0 {
			f = frame.Uniform(uint64(i), 96, 96, 16)
		} else {
			f = frame.Uniform(uint64(i), 96, 96, 240)
		}
		_, info := p.ProcessFrame(ctx, f, false, okDetect)
		if info.Decision.ShouldProcess {
			secondHalfAdmitted++
		}
	}

	// Static half: skip batches dominate, only periodic refreshes run.
	require.Greater(t, firstHalfAdmitted, 0)
	require.LessOrEqual(t, firstHalfAdmitted, 10)
	// Motion half: critical scenes approach full admission.
	require.GreaterOrEqual(t, secondHalfAdmitted, 45)

	stats := p.Stats()
	require.Equal(t, uint64(100), stats.Counters.TotalFrames)
	require.Greater(t, stats.AdmissionRate, 0.4)
}
