package monitor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// evaluateThresholds checks one sample against the three-tier table and
// returns at most one alert per metric, at the highest breached tier.
// There is intentionally no cross-tick deduplication: a metric that stays
// over threshold keeps alerting because its severity may be escalating.
func evaluateThresholds(sample Metrics, t Thresholds) []Alert {
	var out []Alert

	if a, ok := upperBreach("cpu_usage", sample.CPUUsage, t.CPU, sample.Timestamp, cpuRecommendations); ok {
		out = append(out, a)
	}
	if a, ok := upperBreach("memory_usage", sample.MemoryUsage, t.Memory, sample.Timestamp, memoryRecommendations); ok {
		out = append(out, a)
	}
	if a, ok := upperBreach("gpu_usage", sample.GPUUsage, t.GPU, sample.Timestamp, gpuRecommendations); ok {
		out = append(out, a)
	}
	if a, ok := upperBreach("frame_drop_rate", sample.FrameDropRate, t.FrameDropRate, sample.Timestamp, dropRecommendations); ok {
		out = append(out, a)
	}
	procMS := float64(sample.ProcessingTime.Milliseconds())
	if a, ok := upperBreach("processing_time", procMS, t.ProcessingTimeMS, sample.Timestamp, latencyRecommendations); ok {
		out = append(out, a)
	}
	if a, ok := lowerBreach("fps", sample.FPS, t.FPSFloor, sample.Timestamp, fpsRecommendations); ok {
		out = append(out, a)
	}
	return out
}

func upperBreach(metric string, value float64, tier Tier, ts time.Time, rec func(Severity) []string) (Alert, bool) {
	var severity Severity
	var threshold float64
	switch {
	case tier.Critical > 0 && value >= tier.Critical:
		severity, threshold = SeverityCritical, tier.Critical
	case tier.Warning > 0 && value >= tier.Warning:
		severity, threshold = SeverityWarning, tier.Warning
	case tier.Info > 0 && value >= tier.Info:
		severity, threshold = SeverityInfo, tier.Info
	default:
		return Alert{}, false
	}
	return newAlert(metric, severity, value, threshold,
		fmt.Sprintf("%s at %.1f exceeded %s threshold %.1f", metric, value, severity, threshold),
		ts, rec(severity)), true
}

// lowerBreach handles floor metrics: zero samples are treated as "no signal
// yet", not a breach.
func lowerBreach(metric string, value float64, tier Tier, ts time.Time, rec func(Severity) []string) (Alert, bool) {
	if value <= 0 {
		return Alert{}, false
	}
	var severity Severity
	var threshold float64
	switch {
	case tier.Critical > 0 && value <= tier.Critical:
		severity, threshold = SeverityCritical, tier.Critical
	case tier.Warning > 0 && value <= tier.Warning:
		severity, threshold = SeverityWarning, tier.Warning
	case tier.Info > 0 && value <= tier.Info:
		severity, threshold = SeverityInfo, tier.Info
	default:
		return Alert{}, false
	}
	return newAlert(metric, severity, value, threshold,
		fmt.Sprintf("%s at %.1f fell below %s floor %.1f", metric, value, severity, threshold),
		ts, rec(severity)), true
}

func newAlert(metric string, severity Severity, value, threshold float64, msg string, ts time.Time, recs []string) Alert {
	return Alert{
		ID:              uuid.NewString(),
		Type:            metric,
		Severity:        severity,
		Message:         msg,
		Timestamp:       ts,
		MetricValue:     value,
		Threshold:       threshold,
		Recommendations: recs,
	}
}

func cpuRecommendations(s Severity) []string {
	recs := []string{"raise the base skip rate or lower the target FPS"}
	if s == SeverityCritical {
		recs = append(recs, "shed non-critical streams until CPU recovers")
	}
	return recs
}

func memoryRecommendations(s Severity) []string {
	recs := []string{"shrink history buffers or reduce retained frame copies"}
	if s == SeverityCritical {
		recs = append(recs, "restart the worker before the OOM killer does")
	}
	return recs
}

func gpuRecommendations(Severity) []string {
	return []string{"batch inference calls or move a stream to another device"}
}

func dropRecommendations(Severity) []string {
	return []string{"increase max skip frames so admission sheds load earlier"}
}

func latencyRecommendations(Severity) []string {
	return []string{"profile the detection step; consider a smaller model"}
}

func fpsRecommendations(s Severity) []string {
	recs := []string{"relax the minimum processing interval"}
	if s == SeverityCritical {
		recs = append(recs, "verify the detector is not blocked on I/O")
	}
	return recs
}
