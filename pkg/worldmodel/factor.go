package worldmodel

import (
	"math"

	"github.com/mimir-aip/popsim/pkg/unitvalue"
)

// Polarity indicates whether rising intensity of a factor increases
// (Positive) or decreases (Negative) attraction toward a city.
type Polarity int

const (
	Positive Polarity = iota
	Negative
)

// TransformKind selects the shaping function applied to a factor's raw
// intensity before it enters the attraction calculation (spec §4.3 step 1).
type TransformKind int

const (
	TransformLinear TransformKind = iota
	TransformLogarithmic
	TransformSigmoid
	TransformExponential
	TransformSquareRoot
	TransformCustom
)

// Transform shapes a unit-interval intensity into another unit-interval
// value. The zero Transform is TransformLinear (identity), matching the
// "linear by default" rule.
type Transform struct {
	Kind   TransformKind
	Custom func(unitvalue.Value) unitvalue.Value
}

// Apply runs the transform. All built-in kinds map the endpoints 0 and 1
// to themselves and are monotonically increasing on [0,1].
func (t Transform) Apply(v unitvalue.Value) unitvalue.Value {
	x := v.Float64()
	switch t.Kind {
	case TransformLinear:
		return v
	case TransformLogarithmic:
		return unitvalue.Clamp(math.Log1p(9*x) / math.Log(10))
	case TransformSigmoid:
		const k = 10.0
		lo := logistic(-k * 0.5)
		hi := logistic(k * 0.5)
		return unitvalue.Clamp((logistic(k*(x-0.5)) - lo) / (hi - lo))
	case TransformExponential:
		return unitvalue.Clamp((math.Exp(x) - 1) / (math.E - 1))
	case TransformSquareRoot:
		return unitvalue.Clamp(math.Sqrt(x))
	case TransformCustom:
		if t.Custom == nil {
			return v
		}
		return t.Custom(v)
	default:
		return v
	}
}

func logistic(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// FactorDefinition names a dimension along which cities vary and persons
// hold sensitivities. FactorDefinitions are created at world construction
// and identified by pointer equality for the lifetime of the World.
type FactorDefinition struct {
	Name      string
	Polarity  Polarity
	Transform Transform
}

// NewFactorDefinition constructs a FactorDefinition with the linear
// transform unless overridden by setting the Transform field directly.
func NewFactorDefinition(name string, polarity Polarity) *FactorDefinition {
	return &FactorDefinition{Name: name, Polarity: polarity}
}

// FactorIntensity binds a FactorDefinition to a unit-interval intensity
// value, as held per-city.
type FactorIntensity struct {
	Definition *FactorDefinition
	Intensity  unitvalue.Value
}

// Signed returns the intensity adjusted for polarity: Negative-polarity
// factors are inverted (spec §4.3 step 1) so that higher Signed always
// means "more attractive, all else equal".
func (fi FactorIntensity) Signed() unitvalue.Value {
	if fi.Definition != nil && fi.Definition.Polarity == Negative {
		return fi.Intensity.OneMinus()
	}
	return fi.Intensity
}
