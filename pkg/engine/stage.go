package engine

import "context"

// Stage is one unit of per-step work in the pipeline.
type Stage interface {
	Name() string
	// ShouldExecute lets a stage opt out of a step entirely (e.g. an
	// event stage holding no events at all).
	ShouldExecute(ctx *SimulationContext) bool
	// Execute runs the stage's work for the current step.
	Execute(ctx context.Context, simCtx *SimulationContext) error
}

// Pipeline is an ordered, fixed list of stages run once per step.
type Pipeline struct {
	Stages []Stage
}

// NewPipeline constructs a Pipeline over the given stages, in order.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{Stages: stages}
}
