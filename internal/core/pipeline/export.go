package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/framegate/framegate/internal/core/monitor"
)

// ExportSnapshot pairs one metrics sample with the alerts raised on its tick.
type ExportSnapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Metrics   monitor.Metrics `json:"metrics"`
	Alerts    []monitor.Alert `json:"alerts,omitempty"`
}

// ExportData is the durable serialization of the pipeline's in-memory state.
type ExportData struct {
	Stats     Stats            `json:"stats"`
	Snapshots []ExportSnapshot `json:"snapshots"`
	Alerts    []monitor.Alert  `json:"alerts"`
}

// Export serializes stats, metric snapshots and the alert history as JSON to
// the destination. Alerts carry their tick's sample timestamp, which is how
// they are matched back to snapshots.
func (p *Pipeline) Export(w io.Writer) error {
	history := p.monitor.History()
	alerts := p.monitor.Alerts()

	byTick := make(map[time.Time][]monitor.Alert, len(alerts))
	for _, a := range alerts {
		byTick[a.Timestamp] = append(byTick[a.Timestamp], a)
	}

	data := ExportData{
		Stats:     p.Stats(),
		Snapshots: make([]ExportSnapshot, 0, len(history)),
		Alerts:    alerts,
	}
	for _, m := range history {
		data.Snapshots = append(data.Snapshots, ExportSnapshot{
			Timestamp: m.Timestamp,
			Metrics:   m,
			Alerts:    byTick[m.Timestamp],
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("export performance data: %w", err)
	}
	return nil
}
