package events

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mimir-aip/popsim/pkg/worldmodel"
)

// Processor holds the scheduled events for a run and applies whichever
// ones fire on a given step (spec §4.5).
type Processor struct {
	Events []*Event
}

// NewProcessor constructs a Processor over the given events, in
// declaration order.
func NewProcessor(events ...*Event) *Processor {
	return &Processor{Events: events}
}

// RunStep evaluates every event's trigger against stepCtx and applies the
// effects of those that fire. When parallel is true, events whose
// affected city sets are pairwise disjoint are applied concurrently
// (bounded by maxParallelism, 0 meaning unbounded); all other events run
// sequentially in declaration order. onError is invoked, possibly from
// multiple goroutines, for every per-event effect failure; processing of
// other events continues regardless.
func (p *Processor) RunStep(ctx context.Context, stepCtx StepContext, world *worldmodel.World, parallel bool, maxParallelism int, onError func(error)) error {
	var firing []*Event
	for _, e := range p.Events {
		if e.Trigger.ShouldFire(stepCtx) {
			firing = append(firing, e)
			continue
		}
		// A one-shot trigger completing after its single fire must not
		// cut off a still-ticking transition effect it started; keep
		// applying until the effect itself reports it has nothing left
		// to do, independent of the trigger's own re-fire decision.
		if e.Trigger.Completed() && p.effectInProgress(e, world, stepCtx.Step()) {
			firing = append(firing, e)
		}
	}

	if !parallel {
		for _, e := range firing {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.fireOne(e, world, stepCtx, onError)
		}
		return nil
	}

	for _, group := range partitionDisjoint(firing, world.Cities()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(group) == 1 {
			p.fireOne(group[0], world, stepCtx, onError)
			continue
		}
		g, gctx := errgroup.WithContext(ctx)
		if maxParallelism > 0 {
			g.SetLimit(maxParallelism)
		}
		for _, e := range group {
			e := e
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				p.fireOne(e, world, stepCtx, onError)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// effectInProgress reports whether e's effect still has a mid-flight
// transition on any city it targets, for effects that opt into the
// optional InProgress contract (currently FactorChangeEffect and
// CompositeEffect). Effects that don't implement it are never considered
// in-progress, so nothing changes for non-transition application types.
func (p *Processor) effectInProgress(e *Event, world *worldmodel.World, step int) bool {
	ipe, ok := e.Effect.(transitioning)
	if !ok {
		return false
	}
	for _, city := range world.Cities() {
		if e.Effect.AppliesTo(city) && ipe.InProgress(city, step) {
			return true
		}
	}
	return false
}

// fireOne applies e's effect to every city it targets, in world order,
// then marks the trigger fired. The first per-city failure is reported
// through onError and the event is skipped for the remaining cities this
// step.
func (p *Processor) fireOne(e *Event, world *worldmodel.World, stepCtx StepContext, onError func(error)) {
	for _, city := range world.Cities() {
		if !e.Effect.AppliesTo(city) {
			continue
		}
		if err := e.Effect.Apply(city, stepCtx.Step()); err != nil {
			if onError != nil {
				onError(&Error{EventName: e.Name, Cause: err})
			}
			break
		}
	}
	e.Trigger.OnFired(stepCtx)
}

// partitionDisjoint greedily groups events into batches whose affected
// city sets are pairwise disjoint within a batch, preserving declaration
// order both within and across batches.
func partitionDisjoint(events []*Event, cities []*worldmodel.City) [][]*Event {
	var groups [][]*Event
	var groupSets []map[*worldmodel.City]bool

	for _, e := range events {
		affected := e.affectedCities(cities)
		placed := false
		for gi, gs := range groupSets {
			if disjointSets(gs, affected) {
				groups[gi] = append(groups[gi], e)
				for c := range affected {
					gs[c] = true
				}
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []*Event{e})
			groupSets = append(groupSets, affected)
		}
	}
	return groups
}

func disjointSets(a, b map[*worldmodel.City]bool) bool {
	for c := range b {
		if a[c] {
			return false
		}
	}
	return true
}
