package assay

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds engine tuning: per-stage timeouts, retry budgets per error
// classification, and checkpoint retention.
type Config struct {
	StageTimeouts map[Stage]time.Duration
	RetryBudgets  map[string]int
	RetryBaseWait time.Duration
	CheckpointTTL time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		StageTimeouts: map[Stage]time.Duration{
			StageScreening:  2 * time.Minute,
			StageDimensions: 5 * time.Minute,
			StageVerdict:    2 * time.Minute,
			StageSecondary:  5 * time.Minute,
			StageSynthesis:  3 * time.Minute,
		},
		RetryBudgets: map[string]int{
			ErrorTypeTransient: 3,
			ErrorTypeAI:        2,
			ErrorTypeTimeout:   1,
		},
		RetryBaseWait: time.Second,
		CheckpointTTL: 24 * time.Hour,
	}
}

// StageTimeout returns the configured timeout for a stage, or zero if none.
func (c *Config) StageTimeout(stage Stage) time.Duration {
	return c.StageTimeouts[stage]
}

// RetryBudget returns the number of retries allowed for an error type.
func (c *Config) RetryBudget(errorType string) int {
	return c.RetryBudgets[errorType]
}

// configFile is the YAML form of Config. Durations are strings in Go
// duration syntax ("90s", "5m").
type configFile struct {
	StageTimeouts map[string]string `yaml:"stage_timeouts,omitempty"`
	RetryBudgets  map[string]int    `yaml:"retry_budgets,omitempty"`
	RetryBaseWait string            `yaml:"retry_base_wait,omitempty"`
	CheckpointTTL string            `yaml:"checkpoint_ttl,omitempty"`
}

// LoadConfig reads a YAML config file, applying defaults for anything unset.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config := DefaultConfig()
	for name, value := range file.StageTimeouts {
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout for stage %q: %w", name, err)
		}
		config.StageTimeouts[Stage(name)] = d
	}
	for errorType, budget := range file.RetryBudgets {
		config.RetryBudgets[errorType] = budget
	}
	if file.RetryBaseWait != "" {
		d, err := time.ParseDuration(file.RetryBaseWait)
		if err != nil {
			return nil, fmt.Errorf("invalid retry_base_wait: %w", err)
		}
		config.RetryBaseWait = d
	}
	if file.CheckpointTTL != "" {
		d, err := time.ParseDuration(file.CheckpointTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid checkpoint_ttl: %w", err)
		}
		config.CheckpointTTL = d
	}
	return config, nil
}
