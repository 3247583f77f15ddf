package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/framegate/framegate/internal/core/admission"
	"github.com/framegate/framegate/internal/core/monitor"
	"github.com/framegate/framegate/internal/core/motion"
	"github.com/framegate/framegate/internal/core/observability/log"
	"github.com/framegate/framegate/internal/core/strategy"
)

// Config aggregates every subsystem's configuration. Constructed explicitly
// and injected; there is no process-wide configuration singleton.
type Config struct {
	Analyzer   motion.AnalyzerConfig   `yaml:"analyzer" json:"analyzer"`
	Classifier motion.ClassifierConfig `yaml:"classifier" json:"classifier"`
	Admission  admission.Config        `yaml:"admission" json:"admission"`
	Strategy   strategy.Config         `yaml:"strategy" json:"strategy"`
	Monitor    monitor.Config          `yaml:"monitor" json:"monitor"`
	Logging    log.Config              `yaml:"logging" json:"logging"`
}

func DefaultConfig() Config {
	return Config{
		Analyzer:   motion.DefaultAnalyzerConfig(),
		Classifier: motion.DefaultClassifierConfig(),
		Admission:  admission.DefaultConfig(),
		Strategy:   strategy.DefaultConfig(),
		Monitor:    monitor.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if err := c.Analyzer.Validate(); err != nil {
		return fmt.Errorf("analyzer: %w", err)
	}
	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML config file over the defaults. Missing keys keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
