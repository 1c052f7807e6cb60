package migration

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mimir-aip/popsim/pkg/worldmodel"
)

// allPersons returns every resident person in the world, in stable
// insertion order (cities in world order, then per-city insertion
// order), matching the ordering the spec requires for determinism.
func allPersons(world *worldmodel.World) []*worldmodel.Person {
	var out []*worldmodel.Person
	for _, c := range world.Cities() {
		out = append(out, c.Persons()...)
	}
	return out
}

// CalculateAllMigrationFlows runs DecideForPerson for every resident
// person, optionally in parallel, and returns the resulting flows sorted
// by the originating person's stable world index so the result is
// independent of goroutine completion order (spec §4.4 bulk API,
// determinism contract). A per-person DecideForPerson error is local
// recovery territory (spec §7 kind 3, DecisionError): it is reported via
// onError and that person is treated as staying, rather than aborting
// the run. Only ctx cancellation aborts the whole call.
func CalculateAllMigrationFlows(ctx context.Context, world *worldmodel.World, calc Calculator, maxParallelism int, onError func(*worldmodel.Person, error)) ([]Flow, error) {
	persons := allPersons(world)
	flows := make([]*Flow, len(persons))

	var errMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if maxParallelism > 0 {
		g.SetLimit(maxParallelism)
	}

	for i, person := range persons {
		i, person := i, person
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			flow, err := calc.DecideForPerson(world, person)
			if err != nil {
				if onError != nil {
					errMu.Lock()
					onError(person, err)
					errMu.Unlock()
				}
				return nil
			}
			flows[i] = flow
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Flow, 0, len(flows))
	for _, f := range flows {
		if f != nil {
			out = append(out, *f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Person.Index() < out[j].Person.Index()
	})
	return out, nil
}
