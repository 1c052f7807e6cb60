package engine

import (
	"context"
	"testing"

	"github.com/mimir-aip/popsim/pkg/attraction"
	"github.com/mimir-aip/popsim/pkg/config"
	"github.com/mimir-aip/popsim/pkg/migration"
	"github.com/mimir-aip/popsim/pkg/unitvalue"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTwoCityWorld(t *testing.T, withPersons int) (*worldmodel.World, *worldmodel.FactorDefinition, *worldmodel.City, *worldmodel.City) {
	t.Helper()
	jobs := worldmodel.NewFactorDefinition("jobs", worldmodel.Positive)

	coordA, err := worldmodel.NewCoordinate(0, 0)
	require.NoError(t, err)
	coordB, err := worldmodel.NewCoordinate(0, 1)
	require.NoError(t, err)

	poor := worldmodel.NewCity("Poor", coordA, nil)
	rich := worldmodel.NewCity("Rich", coordB, nil)
	poor.SetFactorIntensity(jobs, unitvalue.Value(0.1))
	rich.SetFactorIntensity(jobs, unitvalue.Value(0.95))

	w, err := worldmodel.NewWorld([]*worldmodel.City{poor, rich}, []*worldmodel.FactorDefinition{jobs})
	require.NoError(t, err)

	for i := 0; i < withPersons; i++ {
		p := worldmodel.NewBasePerson(map[*worldmodel.FactorDefinition]unitvalue.Value{jobs: unitvalue.One}, unitvalue.Value(0.95), unitvalue.Zero)
		require.NoError(t, w.Admit(p, poor))
	}

	return w, jobs, poor, rich
}

func newMigrationPipeline(jobs *worldmodel.FactorDefinition, seed uint64) *Pipeline {
	calc := attraction.NewStandardAttractionCalculator([]*worldmodel.FactorDefinition{jobs})
	migCalc := migration.NewStandardMigrationCalculator(calc, seed)
	return NewPipeline(
		&DecisionStage{Migration: migCalc, MaxParallelism: 4},
		&ExecutionStage{},
	)
}

func TestEngine_EmptyWorldStabilizesInOneStep(t *testing.T) {
	w, jobs, _, _ := newTwoCityWorld(t, 0)
	pipeline := newMigrationPipeline(jobs, 1)

	eng, err := NewEngine(pipeline, config.DefaultSimulationConfig())
	require.NoError(t, err)

	result, err := eng.Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, Stabilized, result.StoppedReason)
	assert.Equal(t, 1, result.FinalStep)
}

func TestEngine_MaxStepsReachedWhenNeverStable(t *testing.T) {
	w, jobs, _, _ := newTwoCityWorld(t, 5)
	pipeline := newMigrationPipeline(jobs, 7)

	cfg := config.DefaultSimulationConfig()
	cfg.MaxSteps = 3
	cfg.CheckStability = false

	eng, err := NewEngine(pipeline, cfg)
	require.NoError(t, err)

	result, err := eng.Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, MaxStepsReached, result.StoppedReason)
	assert.Equal(t, 3, result.FinalStep)
}

func TestEngine_ConservesPopulation(t *testing.T) {
	w, jobs, _, _ := newTwoCityWorld(t, 20)
	pipeline := newMigrationPipeline(jobs, 3)

	cfg := config.DefaultSimulationConfig()
	cfg.MaxSteps = 10
	cfg.CheckStability = false

	eng, err := NewEngine(pipeline, cfg)
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, 20, w.Population())
}

func TestEngine_CancellationStopsRun(t *testing.T) {
	w, jobs, _, _ := newTwoCityWorld(t, 5)
	pipeline := newMigrationPipeline(jobs, 11)

	cfg := config.DefaultSimulationConfig()
	cfg.CheckStability = false
	cfg.MaxSteps = 1000

	eng, err := NewEngine(pipeline, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := eng.Run(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, result.StoppedReason)
}

type recordingObserver struct {
	NoopObserver
	starts, stepCompletes, ends int
	lastReason                 StopReason
}

func (r *recordingObserver) OnSimulationStart(*SimulationContext) { r.starts++ }
func (r *recordingObserver) OnStepComplete(*SimulationContext)    { r.stepCompletes++ }
func (r *recordingObserver) OnSimulationEnd(_ *SimulationContext, reason StopReason) {
	r.ends++
	r.lastReason = reason
}

func TestEngine_ObserversNotifiedOfStartAndEnd(t *testing.T) {
	w, jobs, _, _ := newTwoCityWorld(t, 0)
	pipeline := newMigrationPipeline(jobs, 1)

	eng, err := NewEngine(pipeline, config.DefaultSimulationConfig())
	require.NoError(t, err)

	obs := &recordingObserver{}
	eng.AddObserver(obs)

	result, err := eng.Run(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.starts)
	assert.Equal(t, 1, obs.ends)
	assert.Equal(t, result.StoppedReason, obs.lastReason)
}

type panickyStage struct{}

func (panickyStage) Name() string                        { return "Panicky" }
func (panickyStage) ShouldExecute(*SimulationContext) bool { return true }
func (panickyStage) Execute(context.Context, *SimulationContext) error {
	panic("boom")
}

func TestEngine_StagePanicBecomesStageFailed(t *testing.T) {
	w, _, _, _ := newTwoCityWorld(t, 0)
	pipeline := NewPipeline(panickyStage{})

	eng, err := NewEngine(pipeline, config.DefaultSimulationConfig())
	require.NoError(t, err)

	result, err := eng.Run(context.Background(), w)
	require.Error(t, err)
	assert.Equal(t, StageFailed, result.StoppedReason)

	var stageErr *StageFailedError
	assert.ErrorAs(t, err, &stageErr)
}

type panickyObserver struct{ NoopObserver }

func (panickyObserver) OnStepComplete(*SimulationContext) { panic("observer boom") }

func TestEngine_ObserverPanicIsReportedToOtherObservers(t *testing.T) {
	w, jobs, _, _ := newTwoCityWorld(t, 0)
	pipeline := newMigrationPipeline(jobs, 1)

	cfg := config.DefaultSimulationConfig()
	cfg.MaxSteps = 1
	cfg.CheckStability = false

	eng, err := NewEngine(pipeline, cfg)
	require.NoError(t, err)

	eng.AddObserver(panickyObserver{})
	reported := &errorCollectingObserver{collect: &[]error{}}
	eng.AddObserver(reported)

	result, err := eng.Run(context.Background(), w)
	require.NoError(t, err, "an observer panic must not abort the run")
	assert.Equal(t, MaxStepsReached, result.StoppedReason)

	require.Len(t, *reported.collect, 1)
	assert.Contains(t, (*reported.collect)[0].Error(), "observer boom")
}
