// Package migration implements the per-person migration decision kernel:
// candidate selection, softmax destination choice, and a sigmoid-shaped
// emission probability, drawn from deterministic per-person RNG
// sub-streams (spec §4.4).
package migration

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/mimir-aip/popsim/pkg/attraction"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
)

// Flow is a single proposed migration, origin to destination, for one
// person, carrying the emission probability that produced it.
type Flow struct {
	Origin      *worldmodel.City
	Destination *worldmodel.City
	Person      *worldmodel.Person
	Probability float64
}

// Calculator decides, for a single person, whether and where to migrate.
type Calculator interface {
	DecideForPerson(world *worldmodel.World, person *worldmodel.Person) (*Flow, error)
}

// StandardMigrationCalculator is the default Calculator.
type StandardMigrationCalculator struct {
	Attraction  attraction.Calculator
	MasterSeed  uint64
	Steepness   float64 // MigrationProbabilitySteepness, default 10.0
	Threshold   float64 // MigrationProbabilityThreshold, default 0.0
}

// NewStandardMigrationCalculator constructs a calculator with the
// defaults from spec §4.4.
func NewStandardMigrationCalculator(calc attraction.Calculator, masterSeed uint64) *StandardMigrationCalculator {
	return &StandardMigrationCalculator{
		Attraction: calc,
		MasterSeed: masterSeed,
		Steepness:  10.0,
		Threshold:  0.0,
	}
}

// candidate pairs a city with its computed migration delta.
type candidate struct {
	city  *worldmodel.City
	delta float64
}

// DecideForPerson runs the full per-person decision protocol (spec §4.4
// steps 1-10). It returns (nil, nil) when the person has no origin or
// stays; a person's RNG sub-stream is keyed by its stable world index
// (worldmodel.Person.Index), so results are reproducible given a fixed
// seed and a fixed world admission order regardless of execution order.
func (m *StandardMigrationCalculator) DecideForPerson(world *worldmodel.World, person *worldmodel.Person) (*Flow, error) {
	origin := person.CurrentCity()
	if origin == nil {
		return nil, nil
	}

	results := m.Attraction.CalculateForAllCities(world.Cities(), person, origin)
	originResult := results[origin]

	retentionFactor := 1 - (1-person.MovingWillingness.Float64())*person.RetentionRate.Float64()
	originAdjusted := originResult.AdjustedAttraction.Float64() * retentionFactor

	minAcceptable, attractionThreshold := personThresholds(person)

	var candidates []candidate
	for _, city := range world.Cities() {
		if city == origin {
			continue
		}
		res := results[city]
		adjusted := res.AdjustedAttraction.Float64()
		delta := adjusted - originAdjusted
		if adjusted < math.Max(minAcceptable, 0) {
			continue
		}
		if delta < attractionThreshold {
			continue
		}
		candidates = append(candidates, candidate{city: city, delta: delta})
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	// Stable ordering over candidate cities (by name) so softmax weight
	// assignment, and therefore the RNG draw that consumes it, is
	// independent of map/slice iteration order.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].city.Name < candidates[j].city.Name })

	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		w := math.Exp(m.Steepness * (c.delta - m.Threshold))
		weights[i] = w
		total += w
	}

	rng := m.rngFor(person)

	destIdx := weightedChoice(rng, weights, total)
	chosen := candidates[destIdx]

	probability := sigmoid(m.Steepness*(chosen.delta-m.Threshold)) * person.MovingWillingness.Float64()

	u := rng.Float64()
	if u >= probability {
		return nil, nil
	}

	return &Flow{
		Origin:      origin,
		Destination: chosen.city,
		Person:      person,
		Probability: probability,
	}, nil
}

func (m *StandardMigrationCalculator) rngFor(person *worldmodel.Person) *rand.Rand {
	a, b := subStreamSeed(m.MasterSeed, person.Index())
	return rand.New(rand.NewPCG(a, b))
}

func personThresholds(p *worldmodel.Person) (minAcceptable, attractionThreshold float64) {
	if p.Variant == worldmodel.VariantStandard && p.Standard != nil {
		return p.Standard.MinAcceptableAttraction.Float64(), p.Standard.AttractionThreshold.Float64()
	}
	return 0, 0
}

func weightedChoice(rng *rand.Rand, weights []float64, total float64) int {
	if total <= 0 {
		return 0
	}
	target := rng.Float64() * total
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if target < cumulative {
			return i
		}
	}
	return len(weights) - 1
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
