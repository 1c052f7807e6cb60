// Package config holds the simulation's validated configuration value
// records. Validation runs once at construction, never at run-time.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ConfigurationError reports an invalid constructor parameter (spec §7
// kind 1): out-of-range, NaN, a nil collection, min >= max, or a
// non-positive interval where one is required. It always fails fast.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// SimulationConfig governs the engine's step loop and stability
// detection (spec §4.1/§4.2).
type SimulationConfig struct {
	MaxSteps                     int  `yaml:"max_steps"`
	CheckStability               bool `yaml:"check_stability"`
	StabilityThreshold           int  `yaml:"stability_threshold"`
	StabilityCheckInterval       int  `yaml:"stability_check_interval"`
	MinStepsBeforeStabilityCheck int  `yaml:"min_steps_before_stability_check"`
}

// DefaultSimulationConfig returns the spec's documented defaults.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		MaxSteps:                     1000,
		CheckStability:               true,
		StabilityThreshold:           10,
		StabilityCheckInterval:       1,
		MinStepsBeforeStabilityCheck: 0,
	}
}

// Validate checks SimulationConfig's constraints, returning a
// ConfigurationError describing the first violation found.
func (c SimulationConfig) Validate() error {
	if c.MaxSteps < 1 {
		return invalid("MaxSteps", "must be >= 1, got %d", c.MaxSteps)
	}
	if c.StabilityThreshold < 0 {
		return invalid("StabilityThreshold", "must be >= 0, got %d", c.StabilityThreshold)
	}
	if c.StabilityCheckInterval < 1 {
		return invalid("StabilityCheckInterval", "must be >= 1, got %d", c.StabilityCheckInterval)
	}
	if c.MinStepsBeforeStabilityCheck < 0 {
		return invalid("MinStepsBeforeStabilityCheck", "must be >= 0, got %d", c.MinStepsBeforeStabilityCheck)
	}
	if c.MinStepsBeforeStabilityCheck >= c.MaxSteps {
		return invalid("MinStepsBeforeStabilityCheck", "must be < MaxSteps (%d), got %d", c.MaxSteps, c.MinStepsBeforeStabilityCheck)
	}
	return nil
}

// StandardModelConfig governs the StandardAttractionCalculator and
// StandardMigrationCalculator (spec §4.3/§4.4/§6).
type StandardModelConfig struct {
	CapacitySteepness             float64 `yaml:"capacity_steepness"`
	DistanceDecayLambda           float64 `yaml:"distance_decay_lambda"`
	MigrationProbabilitySteepness float64 `yaml:"migration_probability_steepness"`
	MigrationProbabilityThreshold float64 `yaml:"migration_probability_threshold"`
	FactorSmoothingAlpha          float64 `yaml:"factor_smoothing_alpha"`
	ParallelEvents                bool    `yaml:"parallel_events"`
	MaxParallelism                int     `yaml:"max_parallelism"`
}

// DefaultStandardModelConfig returns the spec's documented defaults.
func DefaultStandardModelConfig() StandardModelConfig {
	return StandardModelConfig{
		CapacitySteepness:             5.0,
		DistanceDecayLambda:           0.001,
		MigrationProbabilitySteepness: 10.0,
		MigrationProbabilityThreshold: 0.0,
		FactorSmoothingAlpha:          0.2,
		ParallelEvents:                true,
		MaxParallelism:                0,
	}
}

// Validate checks StandardModelConfig's constraints.
func (c StandardModelConfig) Validate() error {
	if c.CapacitySteepness < 0 {
		return invalid("CapacitySteepness", "must be >= 0, got %v", c.CapacitySteepness)
	}
	if c.DistanceDecayLambda < 0 {
		return invalid("DistanceDecayLambda", "must be >= 0, got %v", c.DistanceDecayLambda)
	}
	if c.MigrationProbabilitySteepness < 0 {
		return invalid("MigrationProbabilitySteepness", "must be >= 0, got %v", c.MigrationProbabilitySteepness)
	}
	if c.FactorSmoothingAlpha < 0 || c.FactorSmoothingAlpha > 1 {
		return invalid("FactorSmoothingAlpha", "must be in [0,1], got %v", c.FactorSmoothingAlpha)
	}
	if c.MaxParallelism < 0 {
		return invalid("MaxParallelism", "must be >= 0, got %d", c.MaxParallelism)
	}
	return nil
}

// LoadSimulationConfig parses and validates a SimulationConfig from YAML,
// starting from the documented defaults so partially specified documents
// still produce a valid configuration.
func LoadSimulationConfig(data []byte) (SimulationConfig, error) {
	cfg := DefaultSimulationConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SimulationConfig{}, invalid("SimulationConfig", "invalid yaml: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return SimulationConfig{}, err
	}
	return cfg, nil
}

// LoadStandardModelConfig parses and validates a StandardModelConfig
// from YAML, starting from the documented defaults.
func LoadStandardModelConfig(data []byte) (StandardModelConfig, error) {
	cfg := DefaultStandardModelConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return StandardModelConfig{}, invalid("StandardModelConfig", "invalid yaml: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return StandardModelConfig{}, err
	}
	return cfg, nil
}
