package snapshot

import (
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mimir-aip/popsim/pkg/events"
	"github.com/mimir-aip/popsim/pkg/unitvalue"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
)

// splitmix64 is the same cheap mixing step pkg/migration uses for
// per-person RNG sub-streams, reimplemented here since a generator's
// draws must be independent of any other package's RNG consumption.
func splitmix64(state *uint64) uint64 {
	*state += 0x9E3779B97F4A7C15
	z := *state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// resolve draws a concrete float64 from a ValueSpec. rng may be nil:
// Fixed specs ignore it, while in-range and approximately specs fail
// without one.
func (v ValueSpec) resolve(rng *rand.Rand) (float64, error) {
	switch v.Kind {
	case ValueFixed, "":
		return v.Fixed, nil
	case ValueInRange:
		if rng == nil {
			return 0, fmt.Errorf("snapshot: in-range value requires a generator seed")
		}
		return v.Min + rng.Float64()*(v.Max-v.Min), nil
	case ValueApproximate:
		if rng == nil {
			return 0, fmt.Errorf("snapshot: approximately value requires a generator seed")
		}
		n := distuv.Normal{Mu: v.Mean, Sigma: v.StdDev, Src: rng}
		return n.Rand(), nil
	default:
		return 0, fmt.Errorf("snapshot: unknown value spec kind %q", v.Kind)
	}
}

func (v ValueSpec) resolveUnit(rng *rand.Rand) (unitvalue.Value, error) {
	f, err := v.resolve(rng)
	if err != nil {
		return 0, err
	}
	return unitvalue.New(f)
}

// polarityFromString and its inverse round-trip FactorDefinition.Polarity.
func polarityFromString(s string) worldmodel.Polarity {
	if s == "Negative" {
		return worldmodel.Negative
	}
	return worldmodel.Positive
}

func polarityToString(p worldmodel.Polarity) string {
	if p == worldmodel.Negative {
		return "Negative"
	}
	return "Positive"
}

// ToWorld expands a Snapshot into a live World. Factors are created in
// the order listed; person generators draw from a splitmix64 sub-stream
// seeded from (the generator's own Seed, or Snapshot.Seed when that is
// zero, the item's index within its collection, draw index) so the same
// snapshot always expands into the same population. The collection
// itself is not part of the seed: a collection referenced by several
// cities expands into identical draws for each of them.
func ToWorld(snap Snapshot) (*worldmodel.World, error) {
	defsByName := make(map[string]*worldmodel.FactorDefinition, len(snap.Factors))
	factors := make([]*worldmodel.FactorDefinition, 0, len(snap.Factors))
	for _, fs := range snap.Factors {
		def := worldmodel.NewFactorDefinition(fs.Name, polarityFromString(fs.Polarity))
		defsByName[fs.Name] = def
		factors = append(factors, def)
	}

	cities := make([]*worldmodel.City, 0, len(snap.Cities))
	citiesByName := make(map[string]*worldmodel.City, len(snap.Cities))
	for _, cs := range snap.Cities {
		coord, err := worldmodel.NewCoordinate(cs.Lat, cs.Lon)
		if err != nil {
			return nil, fmt.Errorf("snapshot: city %q: %w", cs.Name, err)
		}
		var capacity *int
		if cs.Capacity != nil {
			v := *cs.Capacity
			capacity = &v
		}
		city := worldmodel.NewCity(cs.Name, coord, capacity)
		for _, def := range factors {
			intensity, ok := cs.Factors[def.Name]
			if !ok {
				return nil, fmt.Errorf("snapshot: city %q missing intensity for factor %q", cs.Name, def.Name)
			}
			uv, err := unitvalue.New(intensity)
			if err != nil {
				return nil, fmt.Errorf("snapshot: city %q factor %q: %w", cs.Name, def.Name, err)
			}
			city.SetFactorIntensity(def, uv)
		}
		cities = append(cities, city)
		citiesByName[cs.Name] = city
	}

	world, err := worldmodel.NewWorld(cities, factors)
	if err != nil {
		return nil, err
	}

	collectionsByName := make(map[string]PersonCollection, len(snap.PersonCollections))
	for _, pc := range snap.PersonCollections {
		collectionsByName[pc.Name] = pc
	}

	for _, cs := range snap.Cities {
		city := citiesByName[cs.Name]
		for _, ref := range cs.PersonCollectionRef {
			pc, ok := collectionsByName[ref]
			if !ok {
				return nil, fmt.Errorf("snapshot: city %q references unknown person collection %q", cs.Name, ref)
			}
			persons, err := expandCollection(pc, snap.Seed, defsByName)
			if err != nil {
				return nil, fmt.Errorf("snapshot: collection %q: %w", ref, err)
			}
			for _, p := range persons {
				if err := world.Admit(p, city); err != nil {
					return nil, fmt.Errorf("snapshot: admitting person into %q: %w", cs.Name, err)
				}
			}
		}
	}

	return world, nil
}

// expandCollection materializes every PersonSpec in pc into concrete
// Persons, in declaration order.
func expandCollection(pc PersonCollection, masterSeed uint64, defs map[string]*worldmodel.FactorDefinition) ([]*worldmodel.Person, error) {
	var out []*worldmodel.Person
	for itemIdx, item := range pc.Items {
		switch item.Kind {
		case PersonIndividual:
			p, err := buildPerson(item, defs, nil)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		case PersonWithCount:
			for i := 0; i < item.Count; i++ {
				p, err := buildPerson(item, defs, nil)
				if err != nil {
					return nil, err
				}
				out = append(out, p)
			}
		case PersonGenerator:
			seed := item.Seed
			if seed == 0 {
				seed = masterSeed
			}
			state := seed + uint64(itemIdx)*0x2545F4914F6CDD1D
			for i := 0; i < item.Count; i++ {
				drawState := state + uint64(i)
				rngSeed := splitmix64(&drawState)
				rng := rand.New(rand.NewSource(rngSeed))
				p, err := buildPerson(item, defs, rng)
				if err != nil {
					return nil, err
				}
				out = append(out, p)
			}
		default:
			return nil, fmt.Errorf("unknown person spec kind %q", item.Kind)
		}
	}
	return out, nil
}

func buildPerson(item PersonSpec, defs map[string]*worldmodel.FactorDefinition, rng *rand.Rand) (*worldmodel.Person, error) {
	sens := make(map[*worldmodel.FactorDefinition]unitvalue.Value, len(item.Sensitivities))
	for name, vs := range item.Sensitivities {
		def, ok := defs[name]
		if !ok {
			return nil, fmt.Errorf("sensitivity references unknown factor %q", name)
		}
		uv, err := vs.resolveUnit(rng)
		if err != nil {
			return nil, err
		}
		sens[def] = uv
	}

	moving, err := item.MovingWillingness.resolveUnit(rng)
	if err != nil {
		return nil, fmt.Errorf("movingWillingness: %w", err)
	}
	retention, err := item.RetentionRate.resolveUnit(rng)
	if err != nil {
		return nil, fmt.Errorf("retentionRate: %w", err)
	}

	if item.Variant == "standard" {
		if item.Standard == nil {
			return nil, fmt.Errorf("variant standard requires a standard block")
		}
		scaling, err := item.Standard.SensitivityScaling.resolve(rng)
		if err != nil {
			return nil, fmt.Errorf("sensitivityScaling: %w", err)
		}
		threshold, err := item.Standard.AttractionThreshold.resolveUnit(rng)
		if err != nil {
			return nil, fmt.Errorf("attractionThreshold: %w", err)
		}
		minAccept, err := item.Standard.MinAcceptableAttraction.resolveUnit(rng)
		if err != nil {
			return nil, fmt.Errorf("minAcceptableAttraction: %w", err)
		}
		return worldmodel.NewStandardPerson(sens, moving, retention, worldmodel.StandardFields{
			SensitivityScaling:      scaling,
			AttractionThreshold:     threshold,
			MinAcceptableAttraction: minAccept,
		}, item.Tags...), nil
	}

	return worldmodel.NewBasePerson(sens, moving, retention, item.Tags...), nil
}

// FromWorld captures a World's current state as a Snapshot. Every
// resident person is emitted as its own Individual PersonSpec (no
// attempt is made to re-infer which persons came from a generator),
// grouped into one PersonCollection per city so ToWorld(FromWorld(w))
// reproduces identical residency (spec §6 invariant I5).
func FromWorld(world *worldmodel.World, step int, status Status) Snapshot {
	factorDefs := world.Factors()
	factors := make([]FactorDefSpec, 0, len(factorDefs))
	for _, def := range factorDefs {
		factors = append(factors, FactorDefSpec{Name: def.Name, Polarity: polarityToString(def.Polarity)})
	}

	var cities []CitySpec
	var collections []PersonCollection
	for _, city := range world.Cities() {
		cs := CitySpec{
			Name:    city.Name,
			Lat:     city.Coord.Lat,
			Lon:     city.Coord.Lon,
			Factors: make(map[string]float64, len(factorDefs)),
		}
		if city.Capacity != nil {
			v := *city.Capacity
			cs.Capacity = &v
		}
		for _, def := range factorDefs {
			if fi, ok := city.FactorIntensity(def); ok {
				cs.Factors[def.Name] = fi.Intensity.Float64()
			}
		}

		residents := city.Persons()
		if len(residents) > 0 {
			collName := city.Name + "-residents"
			items := make([]PersonSpec, 0, len(residents))
			for _, p := range residents {
				items = append(items, personToSpec(p, factorDefs))
			}
			collections = append(collections, PersonCollection{Name: collName, Items: items})
			cs.PersonCollectionRef = []string{collName}
		}
		cities = append(cities, cs)
	}

	sort.SliceStable(cities, func(i, j int) bool { return cities[i].Name < cities[j].Name })

	return Snapshot{
		Version:           "1",
		Status:            status,
		Step:              step,
		Factors:           factors,
		PersonCollections: collections,
		Cities:            cities,
	}
}

func personToSpec(p *worldmodel.Person, factorDefs []*worldmodel.FactorDefinition) PersonSpec {
	spec := PersonSpec{
		Kind:              PersonIndividual,
		Variant:           "base",
		Sensitivities:     make(map[string]ValueSpec, len(factorDefs)),
		MovingWillingness: FixedValue(p.MovingWillingness.Float64()),
		RetentionRate:     FixedValue(p.RetentionRate.Float64()),
		Tags:              p.Tags,
	}
	for _, def := range factorDefs {
		spec.Sensitivities[def.Name] = FixedValue(p.Sensitivity(def).Float64())
	}
	if p.Variant == worldmodel.VariantStandard && p.Standard != nil {
		spec.Variant = "standard"
		spec.Standard = &StandardSpec{
			SensitivityScaling:      FixedValue(p.Standard.SensitivityScaling),
			AttractionThreshold:     FixedValue(p.Standard.AttractionThreshold.Float64()),
			MinAcceptableAttraction: FixedValue(p.Standard.MinAcceptableAttraction.Float64()),
		}
	}
	return spec
}

// ToEvents expands an EventSpec list into live events.Event values.
// Only the declarative trigger kinds (step, periodic, continuous) are
// supported: ConditionalTrigger's predicate is a Go closure and has no
// portable snapshot representation.
func ToEvents(specs []EventSpec, defs map[string]*worldmodel.FactorDefinition) ([]*events.Event, error) {
	out := make([]*events.Event, 0, len(specs))
	for _, es := range specs {
		trigger, err := buildTrigger(es)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", es.Name, err)
		}
		effect, err := buildEffect(es.Effect, defs)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", es.Name, err)
		}
		out = append(out, &events.Event{Name: es.Name, Trigger: trigger, Effect: effect})
	}
	return out, nil
}

func buildTrigger(es EventSpec) (events.Trigger, error) {
	intParam := func(key string) (int, bool) {
		v, ok := es.TriggerParams[key]
		if !ok {
			return 0, false
		}
		f, ok := v.(float64)
		if !ok {
			return 0, false
		}
		return int(f), true
	}

	switch es.TriggerKind {
	case "step":
		step, _ := intParam("step")
		t := events.NewStepTrigger(step)
		if es.Completed {
			t.MarkCompleted()
		}
		return t, nil
	case "periodic":
		interval, _ := intParam("interval")
		t := &events.PeriodicTrigger{Interval: interval}
		if v, ok := intParam("startStep"); ok {
			t.StartStep = &v
		}
		if v, ok := intParam("endStep"); ok {
			t.EndStep = &v
		}
		return t, nil
	case "continuous":
		start, _ := intParam("startStep")
		t := &events.ContinuousTrigger{StartStep: start}
		if v, ok := intParam("endStep"); ok {
			t.EndStep = &v
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported trigger kind %q", es.TriggerKind)
	}
}

func buildEffect(es EffectSpec, defs map[string]*worldmodel.FactorDefinition) (events.Effect, error) {
	switch es.Kind {
	case "factor-change":
		name, _ := es.Params["factor"].(string)
		def, ok := defs[name]
		if !ok {
			return nil, fmt.Errorf("factor-change effect references unknown factor %q", name)
		}
		value, _ := es.Params["value"].(float64)
		appName, _ := es.Params["application"].(string)
		app, err := applicationFromString(appName)
		if err != nil {
			return nil, err
		}
		duration, _ := es.Params["duration"].(float64)
		return &events.FactorChangeEffect{
			Factor:      def,
			Value:       events.Fixed(value),
			Application: app,
			Duration:    int(duration),
		}, nil
	case "composite":
		children := make([]events.Effect, 0, len(es.Children))
		for _, c := range es.Children {
			child, err := buildEffect(c, defs)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return &events.CompositeEffect{Children: children}, nil
	default:
		return nil, fmt.Errorf("unsupported effect kind %q", es.Kind)
	}
}

func applicationFromString(s string) (events.ApplicationType, error) {
	switch s {
	case "absolute", "":
		return events.Absolute, nil
	case "delta":
		return events.Delta, nil
	case "multiply":
		return events.Multiply, nil
	case "linear-transition":
		return events.LinearTransition, nil
	case "logarithmic-transition":
		return events.LogarithmicTransition, nil
	default:
		return 0, fmt.Errorf("unknown application type %q", s)
	}
}
