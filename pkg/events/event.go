package events

import "github.com/mimir-aip/popsim/pkg/worldmodel"

// Event binds a Trigger to an Effect under a name used for diagnostics.
type Event struct {
	Name    string
	Trigger Trigger
	Effect  Effect
}

// affectedCities returns the set of cities in the world this event's
// effect applies to.
func (e *Event) affectedCities(cities []*worldmodel.City) map[*worldmodel.City]bool {
	out := make(map[*worldmodel.City]bool)
	for _, c := range cities {
		if e.Effect.AppliesTo(c) {
			out[c] = true
		}
	}
	return out
}
