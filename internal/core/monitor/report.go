package monitor

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// MetricSummary aggregates one metric over a report window.
type MetricSummary struct {
	Avg    float64 `json:"avg"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// Report is an on-demand aggregate over a trailing window.
type Report struct {
	Window          time.Duration        `json:"window"`
	Samples         int                  `json:"samples"`
	CPU             MetricSummary        `json:"cpu"`
	Memory          MetricSummary        `json:"memory"`
	GPU             MetricSummary        `json:"gpu"`
	FPS             MetricSummary        `json:"fps"`
	ProcessingMS    MetricSummary        `json:"processing_ms"`
	DropRate        MetricSummary        `json:"drop_rate"`
	Score           float64              `json:"score"`
	AlertCounts     map[Severity]int     `json:"alert_counts"`
	Recommendations []string             `json:"recommendations"`
	GeneratedAt     time.Time            `json:"generated_at"`
}

// GetReport aggregates the trailing window. A non-positive duration means
// the whole retained history.
func (m *Monitor) GetReport(window time.Duration) Report {
	m.mu.RLock()
	samples := m.history.Items()
	alerts := m.alerts.Items()
	score := m.score
	m.mu.RUnlock()

	now := time.Now()
	if window > 0 {
		cutoff := now.Add(-window)
		filtered := samples[:0:0]
		for _, s := range samples {
			if s.Timestamp.After(cutoff) {
				filtered = append(filtered, s)
			}
		}
		samples = filtered
		windowAlerts := alerts[:0:0]
		for _, a := range alerts {
			if a.Timestamp.After(cutoff) {
				windowAlerts = append(windowAlerts, a)
			}
		}
		alerts = windowAlerts
	}

	r := Report{
		Window:      window,
		Samples:     len(samples),
		Score:       score,
		AlertCounts: map[Severity]int{},
		GeneratedAt: now,
	}
	for _, a := range alerts {
		r.AlertCounts[a.Severity]++
	}

	if len(samples) > 0 {
		cpu := make([]float64, len(samples))
		mem := make([]float64, len(samples))
		gpu := make([]float64, len(samples))
		fps := make([]float64, len(samples))
		proc := make([]float64, len(samples))
		drop := make([]float64, len(samples))
		for i, s := range samples {
			cpu[i] = s.CPUUsage
			mem[i] = s.MemoryUsage
			gpu[i] = s.GPUUsage
			fps[i] = s.FPS
			proc[i] = float64(s.ProcessingTime.Milliseconds())
			drop[i] = s.FrameDropRate
		}
		r.CPU = summarize(cpu)
		r.Memory = summarize(mem)
		r.GPU = summarize(gpu)
		r.FPS = summarize(fps)
		r.ProcessingMS = summarize(proc)
		r.DropRate = summarize(drop)
	}

	r.Recommendations = reportRecommendations(r, len(samples))
	return r
}

func summarize(values []float64) MetricSummary {
	if len(values) == 0 {
		return MetricSummary{}
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	s := MetricSummary{
		Avg: stat.Mean(values, nil),
		Min: min,
		Max: max,
	}
	if len(values) > 1 {
		s.StdDev = stat.StdDev(values, nil)
	}
	return s
}

// reportRecommendations derives textual guidance from breach frequency in
// the window. Frequency heuristics, nothing fancier.
func reportRecommendations(r Report, samples int) []string {
	var recs []string
	if samples == 0 {
		return recs
	}
	critical := r.AlertCounts[SeverityCritical]
	warning := r.AlertCounts[SeverityWarning]

	if critical > 0 {
		recs = append(recs, "critical thresholds breached in window; throttle admission before quality tuning")
	}
	if float64(warning)/float64(samples) > 0.5 {
		recs = append(recs, "warnings on most ticks; current target FPS looks unsustainable on this host")
	}
	if r.CPU.Avg > 80 {
		recs = append(recs, "sustained high CPU; raise base skip rate")
	}
	if r.DropRate.Avg > 0.2 {
		recs = append(recs, "elevated frame drops; raise max skip frames so the engine sheds earlier")
	}
	if len(recs) == 0 {
		recs = append(recs, "system operating within configured thresholds")
	}
	return recs
}
