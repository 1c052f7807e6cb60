package engine

import "github.com/mimir-aip/popsim/pkg/config"

// StabilityDetector implements the stability criterion of spec §4.2:
// starting at step >= MinStepsBeforeStabilityCheck, on every step that is
// a multiple of StabilityCheckInterval, the run is considered stabilized
// if TotalPopulationChange <= StabilityThreshold.
type StabilityDetector struct {
	Config config.SimulationConfig
}

// IsStable evaluates the criterion for the given step and aggregate.
func (d *StabilityDetector) IsStable(step, totalPopulationChange int) bool {
	if !d.Config.CheckStability {
		return false
	}
	if step < d.Config.MinStepsBeforeStabilityCheck {
		return false
	}
	if d.Config.StabilityCheckInterval <= 0 || step%d.Config.StabilityCheckInterval != 0 {
		return false
	}
	return totalPopulationChange <= d.Config.StabilityThreshold
}
