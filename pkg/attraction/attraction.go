// Package attraction computes how appealing a city is to a person, after
// capacity and distance resistance, for a given step's world state.
package attraction

import (
	"math"

	"github.com/mimir-aip/popsim/pkg/unitvalue"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
)

// Result is the breakdown of a single city/person attraction computation,
// each component in [0,1].
type Result struct {
	BaseAttraction     unitvalue.Value
	AdjustedAttraction unitvalue.Value
	CapacityResistance unitvalue.Value
	DistanceResistance unitvalue.Value
}

// Calculator computes attraction of a destination city to a person,
// optionally relative to an origin city (nil when the person has none).
type Calculator interface {
	Calculate(city *worldmodel.City, person *worldmodel.Person, origin *worldmodel.City) Result
	CalculateForAllCities(cities []*worldmodel.City, person *worldmodel.Person, origin *worldmodel.City) map[*worldmodel.City]Result
}

// StandardAttractionCalculator is the default Calculator.
type StandardAttractionCalculator struct {
	Factors             []*worldmodel.FactorDefinition
	DistanceCalculator  worldmodel.DistanceCalculator
	CapacitySteepness   float64 // default 5.0
	DistanceDecayLambda float64 // default 0.001 per km
}

// NewStandardAttractionCalculator constructs a calculator with the
// defaults from the spec's §4.3 algorithm.
func NewStandardAttractionCalculator(factors []*worldmodel.FactorDefinition) *StandardAttractionCalculator {
	return &StandardAttractionCalculator{
		Factors:             factors,
		DistanceCalculator:  worldmodel.HaversineCalculator{},
		CapacitySteepness:   5.0,
		DistanceDecayLambda: 0.001,
	}
}

// Calculate implements Calculator.
func (c *StandardAttractionCalculator) Calculate(city *worldmodel.City, person *worldmodel.Person, origin *worldmodel.City) Result {
	base := c.baseAttraction(city, person)
	capRes := c.capacityResistance(city)
	distRes := c.distanceResistance(origin, city)

	adjusted := base.Float64() * (1 - capRes.Float64()) * (1 - distRes.Float64())

	return Result{
		BaseAttraction:     base,
		AdjustedAttraction: unitvalue.Clamp(adjusted),
		CapacityResistance: capRes,
		DistanceResistance: distRes,
	}
}

// CalculateForAllCities implements Calculator. It holds no internal
// mutable state, so it is safe to call concurrently on the same
// calculator instance provided the world is not mutated during the call.
func (c *StandardAttractionCalculator) CalculateForAllCities(cities []*worldmodel.City, person *worldmodel.Person, origin *worldmodel.City) map[*worldmodel.City]Result {
	out := make(map[*worldmodel.City]Result, len(cities))
	for _, city := range cities {
		out[city] = c.Calculate(city, person, origin)
	}
	return out
}

func (c *StandardAttractionCalculator) baseAttraction(city *worldmodel.City, person *worldmodel.Person) unitvalue.Value {
	var sum, weight float64
	for _, f := range c.Factors {
		fi, ok := city.FactorIntensity(f)
		if !ok {
			continue
		}
		intensity := f.Transform.Apply(fi.Intensity)
		s := person.Sensitivity(f).Float64()

		var contribution float64
		if f.Polarity == worldmodel.Positive {
			contribution = intensity.Float64() * s
		} else {
			contribution = (1 - intensity.Float64()) * s
		}
		sum += contribution
		weight += s
	}

	var base float64
	if weight > 0 {
		base = sum / weight
	}
	if person.Variant == worldmodel.VariantStandard && person.Standard != nil {
		base *= person.Standard.SensitivityScaling
	}
	return unitvalue.Clamp(base)
}

func (c *StandardAttractionCalculator) capacityResistance(city *worldmodel.City) unitvalue.Value {
	if city.Capacity == nil || *city.Capacity <= 0 {
		return unitvalue.Zero
	}
	u := float64(city.Population()) / float64(*city.Capacity)
	return unitvalue.Clamp(sigmoid(c.CapacitySteepness * (u - 1)))
}

func (c *StandardAttractionCalculator) distanceResistance(origin, city *worldmodel.City) unitvalue.Value {
	if origin == nil || origin == city {
		return unitvalue.Zero
	}
	d := c.DistanceCalculator.Distance(origin.Coord, city.Coord)
	return unitvalue.Clamp(1 - math.Exp(-c.DistanceDecayLambda*d))
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
