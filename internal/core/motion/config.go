package motion

import "errors"

var (
	ErrInvalidTileSize   = errors.New("tile size must be at least 4 pixels")
	ErrInvalidThresholds = errors.New("scene thresholds must be ascending and positive")
)

// AnalyzerConfig tunes the per-frame measurement pass.
type AnalyzerConfig struct {
	// TileSize is the edge length of the hash/flow tiles.
	TileSize int `yaml:"tile_size" json:"tile_size"`
	// PixelDeltaThreshold is the minimum per-pixel luminance delta counted
	// as changed when computing density.
	PixelDeltaThreshold uint8 `yaml:"pixel_delta_threshold" json:"pixel_delta_threshold"`
	// FlowSearchRadius bounds the block-matching search window, in pixels.
	FlowSearchRadius int `yaml:"flow_search_radius" json:"flow_search_radius"`
	// FlowMaxPoints caps how many high-activity tiles are tracked per frame.
	FlowMaxPoints int `yaml:"flow_max_points" json:"flow_max_points"`
	// FlowMinPoints is the minimum number of candidate tiles required before
	// flow estimation is attempted at all.
	FlowMinPoints int `yaml:"flow_min_points" json:"flow_min_points"`
}

func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		TileSize:            16,
		PixelDeltaThreshold: 15,
		FlowSearchRadius:    4,
		FlowMaxPoints:       16,
		FlowMinPoints:       3,
	}
}

func (c AnalyzerConfig) Validate() error {
	if c.TileSize < 4 {
		return ErrInvalidTileSize
	}
	return nil
}

// ClassifierConfig holds the ascending scene thresholds. Configuration, not
// constants: deployments tune these per camera without code changes.
type ClassifierConfig struct {
	StaticThreshold     float64 `yaml:"static_threshold" json:"static_threshold"`
	LowMotionThreshold  float64 `yaml:"low_motion_threshold" json:"low_motion_threshold"`
	HighMotionThreshold float64 `yaml:"high_motion_threshold" json:"high_motion_threshold"`
}

func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		StaticThreshold:     0.05,
		LowMotionThreshold:  0.15,
		HighMotionThreshold: 0.40,
	}
}

func (c ClassifierConfig) Validate() error {
	if c.StaticThreshold <= 0 ||
		c.StaticThreshold >= c.LowMotionThreshold ||
		c.LowMotionThreshold >= c.HighMotionThreshold {
		return ErrInvalidThresholds
	}
	return nil
}
