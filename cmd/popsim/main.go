// Command popsim loads a scenario, runs the migration simulation to
// completion, and prints a per-step summary. It exists only to exercise
// the pkg/* libraries from the command line; pipeline orchestration,
// scheduling, and serving live entirely in the library packages.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mimir-aip/popsim/pkg/attraction"
	"github.com/mimir-aip/popsim/pkg/config"
	"github.com/mimir-aip/popsim/pkg/engine"
	"github.com/mimir-aip/popsim/pkg/events"
	"github.com/mimir-aip/popsim/pkg/migration"
	"github.com/mimir-aip/popsim/pkg/snapshot"
	"github.com/mimir-aip/popsim/pkg/telemetry"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a scenario snapshot (JSON)")
	simConfigPath := flag.String("sim-config", "", "path to a simulation config (YAML); built-in defaults if omitted")
	modelConfigPath := flag.String("model-config", "", "path to a standard-model config (YAML); built-in defaults if omitted")
	logFormat := flag.String("log-format", "text", "log output format: text or json")
	logLevel := flag.String("log-level", "info", "minimum log level: debug, info, warn, error")
	maxParallelism := flag.Int("max-parallelism", 0, "max goroutines per decision/event batch (0 = unbounded)")
	flag.Parse()

	if *scenarioPath == "" {
		log.Fatal("popsim: -scenario is required")
	}

	simCfg, err := loadSimulationConfig(*simConfigPath)
	if err != nil {
		log.Fatalf("popsim: %v", err)
	}
	modelCfg, err := loadStandardModelConfig(*modelConfigPath)
	if err != nil {
		log.Fatalf("popsim: %v", err)
	}

	snap, err := loadScenario(*scenarioPath)
	if err != nil {
		log.Fatalf("popsim: %v", err)
	}

	world, err := snapshot.ToWorld(snap)
	if err != nil {
		log.Fatalf("popsim: building world from scenario: %v", err)
	}

	evts, err := buildEvents(snap, world, modelCfg.FactorSmoothingAlpha)
	if err != nil {
		log.Fatalf("popsim: building events from scenario: %v", err)
	}

	logFmt := telemetry.FormatText
	if *logFormat == "json" {
		logFmt = telemetry.FormatJSON
	}
	logger := telemetry.New(os.Stdout, parseLevel(*logLevel), logFmt)

	attractionCalc := attraction.NewStandardAttractionCalculator(world.Factors())
	attractionCalc.CapacitySteepness = modelCfg.CapacitySteepness
	attractionCalc.DistanceDecayLambda = modelCfg.DistanceDecayLambda

	migrationCalc := migration.NewStandardMigrationCalculator(attractionCalc, snap.Seed)
	migrationCalc.Steepness = modelCfg.MigrationProbabilitySteepness
	migrationCalc.Threshold = modelCfg.MigrationProbabilityThreshold

	pipeline := engine.NewPipeline(
		&engine.DecisionStage{Migration: migrationCalc, MaxParallelism: *maxParallelism},
		&engine.ExecutionStage{HardCapacityEnforcement: true},
		&engine.EventStage{Processor: events.NewProcessor(evts...), Parallel: modelCfg.ParallelEvents, MaxParallelism: *maxParallelism},
	)

	eng, err := engine.NewEngine(pipeline, simCfg)
	if err != nil {
		log.Fatalf("popsim: %v", err)
	}
	eng.AddObserver(&telemetry.LoggingObserver{Log: logger})

	result, err := eng.Run(context.Background(), world)
	if err != nil {
		log.Fatalf("popsim: run failed: %v", err)
	}

	report := engine.Summarize(result)
	fmt.Printf("finished at step %d, reason=%s, final population=%d, last population change=%d\n",
		report.FinalStep, report.Reason.String(), report.FinalPopulation, report.LastPopulationChange)
}

func loadScenario(path string) (snapshot.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("reading scenario %q: %w", path, err)
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("parsing scenario %q: %w", path, err)
	}
	return snap, nil
}

func loadSimulationConfig(path string) (config.SimulationConfig, error) {
	if path == "" {
		return config.DefaultSimulationConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config.SimulationConfig{}, fmt.Errorf("reading sim config %q: %w", path, err)
	}
	return config.LoadSimulationConfig(data)
}

func loadStandardModelConfig(path string) (config.StandardModelConfig, error) {
	if path == "" {
		return config.DefaultStandardModelConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config.StandardModelConfig{}, fmt.Errorf("reading model config %q: %w", path, err)
	}
	return config.LoadStandardModelConfig(data)
}

func parseLevel(s string) telemetry.Level {
	switch s {
	case "debug":
		return telemetry.LevelDebug
	case "warn":
		return telemetry.LevelWarn
	case "error":
		return telemetry.LevelError
	default:
		return telemetry.LevelInfo
	}
}

// buildEvents expands the scenario's event specs into live events,
// resolving factor references against the world actually built, and
// applies the model's configured factor-smoothing alpha to every
// Absolute/Delta FactorChangeEffect so per-step factor swings are damped
// the way StandardModelConfig.FactorSmoothingAlpha intends.
func buildEvents(snap snapshot.Snapshot, world *worldmodel.World, smoothingAlpha float64) ([]*events.Event, error) {
	defs := make(map[string]*worldmodel.FactorDefinition, len(world.Factors()))
	for _, def := range world.Factors() {
		defs[def.Name] = def
	}
	evs, err := snapshot.ToEvents(snap.Events, defs)
	if err != nil {
		return nil, err
	}
	for _, ev := range evs {
		applySmoothingAlpha(ev.Effect, smoothingAlpha)
	}
	return evs, nil
}

// applySmoothingAlpha sets alpha on every FactorChangeEffect reachable from
// effect, including through nested CompositeEffect children.
func applySmoothingAlpha(effect events.Effect, alpha float64) {
	switch e := effect.(type) {
	case *events.FactorChangeEffect:
		e.SmoothingAlpha = alpha
	case *events.CompositeEffect:
		for _, child := range e.Children {
			applySmoothingAlpha(child, alpha)
		}
	}
}
