package worldmodel

import (
	"sync"

	"github.com/mimir-aip/popsim/pkg/unitvalue"
)

// City is a node in the world with a position, optional capacity, a
// per-factor intensity profile, and a resident set of persons. All
// resident-set and intensity mutations are guarded by an internal
// RWMutex so concurrent DecisionStage readers never observe a torn
// state while a later ExecutionStage writer moves persons in or out
// (spec §5 per-city reader/writer discipline).
type City struct {
	Name     string
	Coord    Coordinate
	Capacity *int // nil means unbounded

	mu       sync.RWMutex
	factors  map[*FactorDefinition]*FactorIntensity
	resident map[*Person]struct{}
	order    []*Person // insertion order, for stable enumeration (spec §5 determinism)
}

// NewCity constructs a City with no factor intensities or residents set.
// Callers (ordinarily World construction) must populate an intensity for
// every FactorDefinition in the world before the city is usable.
func NewCity(name string, coord Coordinate, capacity *int) *City {
	return &City{
		Name:     name,
		Coord:    coord,
		Capacity: capacity,
		factors:  make(map[*FactorDefinition]*FactorIntensity),
		resident: make(map[*Person]struct{}),
	}
}

// SetFactorIntensity sets the city's intensity for def.
func (c *City) SetFactorIntensity(def *FactorDefinition, intensity unitvalue.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factors[def] = &FactorIntensity{Definition: def, Intensity: intensity}
}

// FactorIntensity returns the city's intensity for def and whether it was
// present.
func (c *City) FactorIntensity(def *FactorDefinition) (FactorIntensity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fi, ok := c.factors[def]
	if !ok {
		return FactorIntensity{}, false
	}
	return *fi, true
}

// HasFactor reports whether the city holds an intensity for def.
func (c *City) HasFactor(def *FactorDefinition) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.factors[def]
	return ok
}

// Population returns the current resident count.
func (c *City) Population() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.resident)
}

// Contains reports whether p is currently resident in c.
func (c *City) Contains(p *Person) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.resident[p]
	return ok
}

// Persons returns a snapshot slice of current residents in stable
// insertion order, safe to range over without holding the city lock.
func (c *City) Persons() []*Person {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Person, len(c.order))
	copy(out, c.order)
	return out
}

// Add inserts p into the resident set and points p's CurrentCity at c. It
// fails if p is already resident somewhere (spec §3 invariant: a person's
// CurrentCity is nil or exactly one world city, consistent with residency).
func (c *City) Add(p *Person) error {
	if existing := p.CurrentCity(); existing != nil {
		return newInvariantError("City.Add", "person already resident in city %q", existing.Name)
	}
	c.mu.Lock()
	c.resident[p] = struct{}{}
	c.order = append(c.order, p)
	c.mu.Unlock()
	p.setCurrentCity(c)
	return nil
}

// Remove deletes p from the resident set and clears p's CurrentCity. It
// fails if p is not currently resident in c.
func (c *City) Remove(p *Person) error {
	c.mu.Lock()
	if _, ok := c.resident[p]; !ok {
		c.mu.Unlock()
		return newInvariantError("City.Remove", "person not resident in city %q", c.Name)
	}
	delete(c.resident, p)
	for i, other := range c.order {
		if other == p {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	p.setCurrentCity(nil)
	return nil
}
