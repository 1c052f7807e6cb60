package engine

// StabilityReport summarizes a finished Run for callers that want a
// one-line post-run readout without inspecting Result themselves.
type StabilityReport struct {
	Reason               StopReason
	FinalStep            int
	FinalPopulation      int
	LastPopulationChange int
}

// Summarize builds a StabilityReport from a Run's Result.
func Summarize(result Result) StabilityReport {
	return StabilityReport{
		Reason:               result.StoppedReason,
		FinalStep:            result.FinalStep,
		FinalPopulation:      result.World.Population(),
		LastPopulationChange: result.LastPopulationChange,
	}
}
