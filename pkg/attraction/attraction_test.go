package attraction

import (
	"testing"

	"github.com/mimir-aip/popsim/pkg/unitvalue"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCity(t *testing.T, name string, lat, lon float64, capacity *int) *worldmodel.City {
	t.Helper()
	coord, err := worldmodel.NewCoordinate(lat, lon)
	require.NoError(t, err)
	return worldmodel.NewCity(name, coord, capacity)
}

func TestBaseAttraction_PositivePolarityScalesWithIntensityAndSensitivity(t *testing.T) {
	jobs := worldmodel.NewFactorDefinition("jobs", worldmodel.Positive)
	city := newCity(t, "A", 0, 0, nil)
	city.SetFactorIntensity(jobs, unitvalue.Value(0.8))

	p := worldmodel.NewBasePerson(map[*worldmodel.FactorDefinition]unitvalue.Value{jobs: unitvalue.Value(1.0)}, unitvalue.Value(0.5), unitvalue.Value(0.5))

	calc := NewStandardAttractionCalculator([]*worldmodel.FactorDefinition{jobs})
	result := calc.Calculate(city, p, nil)

	assert.InDelta(t, 0.8, result.BaseAttraction.Float64(), 1e-9)
	assert.Equal(t, unitvalue.Zero, result.DistanceResistance)
	assert.Equal(t, unitvalue.Zero, result.CapacityResistance)
	assert.InDelta(t, 0.8, result.AdjustedAttraction.Float64(), 1e-9)
}

func TestBaseAttraction_NegativePolarityInvertsIntensity(t *testing.T) {
	crime := worldmodel.NewFactorDefinition("crime", worldmodel.Negative)
	city := newCity(t, "A", 0, 0, nil)
	city.SetFactorIntensity(crime, unitvalue.Value(0.9))

	p := worldmodel.NewBasePerson(map[*worldmodel.FactorDefinition]unitvalue.Value{crime: unitvalue.Value(1.0)}, unitvalue.Value(0.5), unitvalue.Value(0.5))

	calc := NewStandardAttractionCalculator([]*worldmodel.FactorDefinition{crime})
	result := calc.Calculate(city, p, nil)

	assert.InDelta(t, 0.1, result.BaseAttraction.Float64(), 1e-9)
}

func TestBaseAttraction_ZeroWeightFallsBackToZero(t *testing.T) {
	jobs := worldmodel.NewFactorDefinition("jobs", worldmodel.Positive)
	city := newCity(t, "A", 0, 0, nil)
	city.SetFactorIntensity(jobs, unitvalue.Value(0.8))

	p := worldmodel.NewBasePerson(map[*worldmodel.FactorDefinition]unitvalue.Value{jobs: unitvalue.Value(0.0)}, unitvalue.Value(0.5), unitvalue.Value(0.5))

	calc := NewStandardAttractionCalculator([]*worldmodel.FactorDefinition{jobs})
	result := calc.Calculate(city, p, nil)

	assert.Equal(t, unitvalue.Zero, result.BaseAttraction)
}

func TestCapacityResistance_ZeroWhenUnbounded(t *testing.T) {
	city := newCity(t, "A", 0, 0, nil)
	calc := NewStandardAttractionCalculator(nil)
	assert.Equal(t, unitvalue.Zero, calc.capacityResistance(city))

	zero := 0
	cityZero := newCity(t, "B", 0, 0, &zero)
	assert.Equal(t, unitvalue.Zero, calc.capacityResistance(cityZero))
}

func TestCapacityResistance_GrowsPastCapacity(t *testing.T) {
	cap := 10
	city := newCity(t, "A", 0, 0, &cap)
	p := worldmodel.NewBasePerson(nil, unitvalue.Value(0.5), unitvalue.Value(0.5))
	for i := 0; i < 15; i++ {
		require.NoError(t, city.Add(worldmodel.NewBasePerson(nil, unitvalue.Value(0.5), unitvalue.Value(0.5))))
	}
	_ = p

	calc := NewStandardAttractionCalculator(nil)
	resistance := calc.capacityResistance(city)
	assert.Greater(t, resistance.Float64(), 0.5)
}

func TestDistanceResistance_ZeroForNilOrSameOrigin(t *testing.T) {
	city := newCity(t, "A", 0, 0, nil)
	calc := NewStandardAttractionCalculator(nil)
	assert.Equal(t, unitvalue.Zero, calc.distanceResistance(nil, city))
	assert.Equal(t, unitvalue.Zero, calc.distanceResistance(city, city))
}

func TestDistanceResistance_GrowsWithDistance(t *testing.T) {
	origin := newCity(t, "A", 0, 0, nil)
	near := newCity(t, "B", 0.01, 0, nil)
	far := newCity(t, "C", 40, 40, nil)

	calc := NewStandardAttractionCalculator(nil)
	nearRes := calc.distanceResistance(origin, near)
	farRes := calc.distanceResistance(origin, far)

	assert.Less(t, nearRes.Float64(), farRes.Float64())
}

func TestCalculateForAllCities_CoversEveryCity(t *testing.T) {
	jobs := worldmodel.NewFactorDefinition("jobs", worldmodel.Positive)
	a := newCity(t, "A", 0, 0, nil)
	b := newCity(t, "B", 1, 1, nil)
	a.SetFactorIntensity(jobs, unitvalue.Value(0.5))
	b.SetFactorIntensity(jobs, unitvalue.Value(0.9))

	p := worldmodel.NewBasePerson(map[*worldmodel.FactorDefinition]unitvalue.Value{jobs: unitvalue.Value(1)}, unitvalue.Value(0.5), unitvalue.Value(0.5))
	calc := NewStandardAttractionCalculator([]*worldmodel.FactorDefinition{jobs})

	results := calc.CalculateForAllCities([]*worldmodel.City{a, b}, p, nil)
	assert.Len(t, results, 2)
	assert.Less(t, results[a].BaseAttraction.Float64(), results[b].BaseAttraction.Float64())
}
