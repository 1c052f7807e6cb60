// Package engine drives a World through an ordered pipeline of stages,
// one integer step at a time, until a stopping condition is reached
// (spec §4.1).
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/mimir-aip/popsim/pkg/config"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
)

// Result is the outcome of a completed or terminated Run.
type Result struct {
	World                *worldmodel.World
	FinalStep            int
	StoppedReason        StopReason
	LastPopulationChange int
}

// Engine owns a fixed Pipeline and configuration and runs it against a
// World.
type Engine struct {
	Pipeline *Pipeline
	Config   config.SimulationConfig

	stability *StabilityDetector
	observers observerSet
}

// NewEngine validates cfg and constructs an Engine over pipeline.
func NewEngine(pipeline *Pipeline, cfg config.SimulationConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		Pipeline:  pipeline,
		Config:    cfg,
		stability: &StabilityDetector{Config: cfg},
	}, nil
}

// AddObserver registers o to receive future notifications.
func (e *Engine) AddObserver(o Observer) { e.observers.Add(o) }

// RemoveObserver deregisters o.
func (e *Engine) RemoveObserver(o Observer) { e.observers.Remove(o) }

// Run drives world through steps until MaxSteps, stabilization,
// cancellation, or an unrecovered stage failure (spec §4.1 per-step
// protocol). Cancellation is checked between stages and between steps;
// no partial step is committed once cancellation is observed between
// stages, since DecisionStage output simply becomes unused context state
// if ExecutionStage never runs.
func (e *Engine) Run(ctx context.Context, world *worldmodel.World) (Result, error) {
	simCtx := NewSimulationContext(world)
	simCtx.reportError = func(err error) {
		e.observers.notify(simCtx, func(o Observer) { o.OnError(simCtx, err) })
	}
	e.observers.notify(simCtx, func(o Observer) { o.OnSimulationStart(simCtx) })

	for {
		if ctx.Err() != nil {
			return e.stop(simCtx, Cancelled, nil)
		}

		simCtx.resetForStep()
		simCtx.CurrentStep++
		e.observers.notify(simCtx, func(o Observer) { o.OnStepStart(simCtx) })

		for _, stage := range e.Pipeline.Stages {
			if ctx.Err() != nil {
				return e.stop(simCtx, Cancelled, nil)
			}
			if !stage.ShouldExecute(simCtx) {
				continue
			}
			if err := e.runStage(ctx, stage, simCtx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return e.stop(simCtx, Cancelled, nil)
				}
				stageErr := &StageFailedError{Stage: stage.Name(), Cause: err}
				e.observers.notify(simCtx, func(o Observer) { o.OnError(simCtx, stageErr) })
				return e.stop(simCtx, StageFailed, stageErr)
			}
			e.observers.notify(simCtx, func(o Observer) { o.OnStageComplete(simCtx, stage.Name()) })
		}

		e.observers.notify(simCtx, func(o Observer) { o.OnStepComplete(simCtx) })

		if e.stability.IsStable(simCtx.CurrentStep, simCtx.TotalPopulationChange) {
			return e.stop(simCtx, Stabilized, nil)
		}
		if simCtx.CurrentStep >= e.Config.MaxSteps {
			return e.stop(simCtx, MaxStepsReached, nil)
		}
	}
}

func (e *Engine) stop(simCtx *SimulationContext, reason StopReason, err error) (Result, error) {
	e.observers.notify(simCtx, func(o Observer) { o.OnSimulationEnd(simCtx, reason) })
	return Result{
		World:                simCtx.World,
		FinalStep:            simCtx.CurrentStep,
		StoppedReason:        reason,
		LastPopulationChange: simCtx.TotalPopulationChange,
	}, err
}

// runStage executes stage, converting any panic into an error so a
// single misbehaving stage implementation cannot crash the whole run
// outside the StageFailed contract.
func (e *Engine) runStage(ctx context.Context, stage Stage, simCtx *SimulationContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in stage %q: %v", stage.Name(), r)
		}
	}()
	return stage.Execute(ctx, simCtx)
}
