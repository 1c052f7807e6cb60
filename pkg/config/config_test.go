package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSimulationConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultSimulationConfig().Validate())
}

func TestSimulationConfig_RejectsInvalidFields(t *testing.T) {
	cfg := DefaultSimulationConfig()
	cfg.MaxSteps = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultSimulationConfig()
	cfg.StabilityCheckInterval = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultSimulationConfig()
	cfg.MinStepsBeforeStabilityCheck = cfg.MaxSteps
	require.Error(t, cfg.Validate())
}

func TestDefaultStandardModelConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultStandardModelConfig().Validate())
}

func TestStandardModelConfig_RejectsOutOfRangeAlpha(t *testing.T) {
	cfg := DefaultStandardModelConfig()
	cfg.FactorSmoothingAlpha = 1.5
	require.Error(t, cfg.Validate())
}

func TestLoadSimulationConfig_PartialYamlFillsDefaults(t *testing.T) {
	cfg, err := LoadSimulationConfig([]byte("max_steps: 500\n"))
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxSteps)
	assert.True(t, cfg.CheckStability)
}

func TestLoadSimulationConfig_RejectsInvalidYaml(t *testing.T) {
	_, err := LoadSimulationConfig([]byte("max_steps: \"not-a-number\"\n"))
	require.Error(t, err)
}

func TestLoadStandardModelConfig_PartialYamlFillsDefaults(t *testing.T) {
	cfg, err := LoadStandardModelConfig([]byte("capacity_steepness: 8.0\n"))
	require.NoError(t, err)
	assert.InDelta(t, 8.0, cfg.CapacitySteepness, 1e-9)
	assert.InDelta(t, 0.001, cfg.DistanceDecayLambda, 1e-9)
}
