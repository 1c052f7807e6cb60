package telemetry

import "github.com/mimir-aip/popsim/pkg/engine"

// LoggingObserver logs each simulation lifecycle notification through a
// Logger, generalizing the teacher's run-level EventLogEntry/EventsLog
// bookkeeping into the spec's observer surface.
type LoggingObserver struct {
	Log *Logger
}

var _ engine.Observer = (*LoggingObserver)(nil)

func (o *LoggingObserver) OnSimulationStart(ctx *engine.SimulationContext) {
	o.Log.Info("simulation started", Fields{"population": ctx.World.Population()})
}

func (o *LoggingObserver) OnStepStart(ctx *engine.SimulationContext) {
	o.Log.Debug("step started", Fields{"step": ctx.CurrentStep})
}

func (o *LoggingObserver) OnStageComplete(ctx *engine.SimulationContext, stageName string) {
	o.Log.Debug("stage complete", Fields{"step": ctx.CurrentStep, "stage": stageName})
}

func (o *LoggingObserver) OnStepComplete(ctx *engine.SimulationContext) {
	o.Log.Info("step complete", Fields{
		"step":                    ctx.CurrentStep,
		"totalPopulationChange":   ctx.TotalPopulationChange,
		"maxCityPopulationChange": ctx.MaxCityPopulationChange,
	})
}

func (o *LoggingObserver) OnSimulationEnd(ctx *engine.SimulationContext, reason engine.StopReason) {
	o.Log.Info("simulation ended", Fields{"step": ctx.CurrentStep, "reason": reason.String()})
}

func (o *LoggingObserver) OnError(ctx *engine.SimulationContext, err error) {
	o.Log.Error("run error", Fields{"step": ctx.CurrentStep, "error": err.Error()})
}
