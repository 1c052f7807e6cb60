package engine

import (
	"sync"

	"github.com/mimir-aip/popsim/pkg/migration"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
)

// SimulationContext is the mutable per-step carrier passed to every stage
// (spec §4.2): the world, the current step, the pending migration
// decisions, the step's computed aggregates, and a generic key/value bag
// for inter-stage data such as attraction matrices.
type SimulationContext struct {
	World       *worldmodel.World
	CurrentStep int

	Pending []migration.Flow

	TotalPopulationChange   int
	MaxCityPopulationChange int

	mu  sync.RWMutex
	bag map[string]any

	reportError func(error)
}

// NewSimulationContext constructs a context for world, starting at step 0.
func NewSimulationContext(world *worldmodel.World) *SimulationContext {
	return &SimulationContext{World: world, bag: make(map[string]any)}
}

// ReportError surfaces a locally-recovered error (DecisionError,
// ExecutionError, EventError) through the owning Engine's observers
// without aborting the stage. Stages call this instead of returning the
// error from Execute.
func (c *SimulationContext) ReportError(err error) {
	if c.reportError != nil {
		c.reportError(err)
	}
}

// Step implements events.StepContext, so event triggers can be evaluated
// directly against a SimulationContext.
func (c *SimulationContext) Step() int { return c.CurrentStep }

// Set stores a value in the inter-stage bag under key.
func (c *SimulationContext) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bag[key] = value
}

// Get retrieves a value previously stored with Set.
func (c *SimulationContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.bag[key]
	return v, ok
}

// resetForStep clears per-step transient fields ahead of a new step.
func (c *SimulationContext) resetForStep() {
	c.mu.Lock()
	c.bag = make(map[string]any)
	c.mu.Unlock()
	c.Pending = nil
	c.TotalPopulationChange = 0
	c.MaxCityPopulationChange = 0
}
