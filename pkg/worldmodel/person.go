package worldmodel

import (
	"sync/atomic"

	"github.com/mimir-aip/popsim/pkg/unitvalue"
)

// Variant distinguishes person kinds. popsim uses a tagged variant rather
// than open inheritance: every Person carries a Variant and, when
// VariantStandard, a non-nil Standard field.
type Variant int

const (
	VariantBase Variant = iota
	VariantStandard
)

// neutralSensitivity is substituted for any FactorDefinition missing from
// a person's sensitivity map (spec §3 invariant 2).
const neutralSensitivity = unitvalue.Value(0.5)

// StandardFields holds the extra attributes of a StandardPerson.
type StandardFields struct {
	SensitivityScaling      float64
	AttractionThreshold     unitvalue.Value
	MinAcceptableAttraction unitvalue.Value
}

// Person is a migratory agent. Its fields other than CurrentCity are
// immutable after construction; CurrentCity is mutated only by City.Add
// and City.Remove, acting as an atomic pair under the owning city's lock.
type Person struct {
	Variant           Variant
	Standard          *StandardFields
	Sensitivities     map[*FactorDefinition]unitvalue.Value
	MovingWillingness unitvalue.Value
	RetentionRate     unitvalue.Value
	Tags              []string

	currentCity atomic.Pointer[City]
	index       atomic.Int64 // -1 until assigned by World.Admit
}

// NewBasePerson constructs a VariantBase person.
func NewBasePerson(sensitivities map[*FactorDefinition]unitvalue.Value, movingWillingness, retentionRate unitvalue.Value, tags ...string) *Person {
	p := &Person{
		Variant:           VariantBase,
		Sensitivities:     sensitivities,
		MovingWillingness: movingWillingness,
		RetentionRate:     retentionRate,
		Tags:              tags,
	}
	p.index.Store(-1)
	return p
}

// NewStandardPerson constructs a VariantStandard person.
func NewStandardPerson(sensitivities map[*FactorDefinition]unitvalue.Value, movingWillingness, retentionRate unitvalue.Value, std StandardFields, tags ...string) *Person {
	p := &Person{
		Variant:           VariantStandard,
		Standard:          &std,
		Sensitivities:     sensitivities,
		MovingWillingness: movingWillingness,
		RetentionRate:     retentionRate,
		Tags:              tags,
	}
	p.index.Store(-1)
	return p
}

// Sensitivity returns p's sensitivity to def, defaulting to a neutral
// value when def is absent from the map.
func (p *Person) Sensitivity(def *FactorDefinition) unitvalue.Value {
	if v, ok := p.Sensitivities[def]; ok {
		return v
	}
	return neutralSensitivity
}

// CurrentCity returns the city p currently resides in, or nil if
// unassigned.
func (p *Person) CurrentCity() *City {
	return p.currentCity.Load()
}

func (p *Person) setCurrentCity(c *City) {
	p.currentCity.Store(c)
}

// Index returns the person's stable world-assigned index (insertion order
// across the world, assigned once on first World.Admit), or -1 if the
// person has never been admitted to a world. Used to key deterministic
// per-person RNG sub-streams (spec §5).
func (p *Person) Index() int64 {
	return p.index.Load()
}

// setIndexOnce assigns idx if the person has no index yet. Returns false
// if an index was already assigned.
func (p *Person) setIndexOnce(idx int64) bool {
	return p.index.CompareAndSwap(-1, idx)
}
