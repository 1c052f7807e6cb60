// Package snapshot provides the semantic value types for persisting and
// restoring a World (spec §6), plus a reference sqlite-backed Store.
package snapshot

import (
	"time"

	"github.com/mimir-aip/popsim/pkg/config"
)

// Status is a snapshot's lifecycle stage.
type Status string

const (
	StatusSeed       Status = "Seed"
	StatusActive     Status = "Active"
	StatusStabilized Status = "Stabilized"
	StatusCompleted  Status = "Completed"
)

// Checkpoint names a labeled point in a run's history.
type Checkpoint struct {
	StepLabel string    `json:"stepLabel"`
	Timestamp time.Time `json:"timestamp"`
}

// FactorDefSpec is a factor definition's snapshot representation.
type FactorDefSpec struct {
	Name      string `json:"name"`
	Polarity  string `json:"polarity"` // "Positive" | "Negative"
	Transform string `json:"transform,omitempty"`
}

// ValueSpec is a lazy per-field value specification: fixed, a uniform
// range, or a Gaussian ("approximately").
type ValueSpec struct {
	Kind   ValueSpecKind `json:"kind"`
	Fixed  float64       `json:"fixed,omitempty"`
	Min    float64       `json:"min,omitempty"`
	Max    float64       `json:"max,omitempty"`
	Mean   float64       `json:"mean,omitempty"`
	StdDev float64       `json:"stddev,omitempty"`
}

type ValueSpecKind string

const (
	ValueFixed       ValueSpecKind = "fixed"
	ValueInRange     ValueSpecKind = "in-range"
	ValueApproximate ValueSpecKind = "approximately"
)

func FixedValue(v float64) ValueSpec { return ValueSpec{Kind: ValueFixed, Fixed: v} }
func InRangeValue(min, max float64) ValueSpec {
	return ValueSpec{Kind: ValueInRange, Min: min, Max: max}
}
func ApproximatelyValue(mean, stddev float64) ValueSpec {
	return ValueSpec{Kind: ValueApproximate, Mean: mean, StdDev: stddev}
}

// PersonKind selects how a PersonSpec expands into concrete persons.
type PersonKind string

const (
	PersonIndividual  PersonKind = "individual"
	PersonWithCount   PersonKind = "individuals-with-count"
	PersonGenerator   PersonKind = "generator"
)

// PersonSpec is one entry of a person collection. Sensitivities maps
// factor name to a ValueSpec; MovingWillingness/RetentionRate are
// ValueSpecs too so generators can draw them from a distribution.
type PersonSpec struct {
	Kind              PersonKind           `json:"kind"`
	Count             int                  `json:"count,omitempty"` // WithCount, Generator
	Variant           string               `json:"variant"`         // "base" | "standard"
	Sensitivities     map[string]ValueSpec `json:"sensitivities"`
	MovingWillingness ValueSpec            `json:"movingWillingness"`
	RetentionRate     ValueSpec            `json:"retentionRate"`
	Standard          *StandardSpec        `json:"standard,omitempty"`
	Tags              []string             `json:"tags,omitempty"`
	Seed              uint64               `json:"seed,omitempty"` // Generator only
}

// StandardSpec carries the extra StandardPerson fields as value specs.
type StandardSpec struct {
	SensitivityScaling      ValueSpec `json:"sensitivityScaling"`
	AttractionThreshold     ValueSpec `json:"attractionThreshold"`
	MinAcceptableAttraction ValueSpec `json:"minAcceptableAttraction"`
}

// PersonCollection is a named list of person specifications.
type PersonCollection struct {
	Name  string       `json:"name"`
	Items []PersonSpec `json:"items"`
}

// CitySpec is a city's snapshot representation.
type CitySpec struct {
	Name                string             `json:"name"`
	Lat                 float64            `json:"lat"`
	Lon                 float64            `json:"lon"`
	Area                float64            `json:"area,omitempty"`
	Capacity            *int               `json:"capacity,omitempty"`
	Factors             map[string]float64 `json:"factors"`
	PersonCollectionRef []string           `json:"personCollectionRefs,omitempty"`
}

// EffectSpec is an effect's snapshot representation. Params is keyed
// loosely since effects are a closed but varied set of variants; a
// "factor-change" effect reads "factor" (name), "application",
// "value" (a plain number) and "duration". City filters are not read,
// so a restored effect applies to every city.
type EffectSpec struct {
	Kind      string                 `json:"kind"` // "factor-change" | "composite"
	Params    map[string]any         `json:"params,omitempty"`
	Children  []EffectSpec           `json:"children,omitempty"`
}

// EventSpec is an event's snapshot representation.
type EventSpec struct {
	Name         string         `json:"name"`
	TriggerKind  string         `json:"triggerKind"`
	TriggerParams map[string]any `json:"triggerParams,omitempty"`
	Effect       EffectSpec     `json:"effect"`
	Completed    bool           `json:"completed"`
}

// Snapshot is a pure value describing a world at a step (spec §6).
type Snapshot struct {
	Version    string       `json:"version"`
	Status     Status       `json:"status"`
	CreatedAt  time.Time    `json:"createdAt"`
	ModifiedAt time.Time    `json:"modifiedAt"`
	Step       int          `json:"step"`
	Seed       uint64       `json:"seed"`
	Checkpoints []Checkpoint `json:"checkpoints,omitempty"`

	Factors           []FactorDefSpec    `json:"factors"`
	PersonCollections []PersonCollection `json:"personCollections"`
	Cities            []CitySpec         `json:"cities"`
	Events            []EventSpec        `json:"events"`

	SimulationConfig *config.SimulationConfig   `json:"simulationConfig,omitempty"`
	ModelConfig      *config.StandardModelConfig `json:"modelConfig,omitempty"`
}
