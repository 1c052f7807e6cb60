package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mimir-aip/popsim/pkg/events"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() Snapshot {
	capacity := 500
	return Snapshot{
		Version: "1",
		Status:  StatusActive,
		Step:    3,
		Seed:    42,
		Factors: []FactorDefSpec{
			{Name: "jobs", Polarity: "Positive"},
			{Name: "crime", Polarity: "Negative"},
		},
		PersonCollections: []PersonCollection{
			{
				Name: "rich-people",
				Items: []PersonSpec{
					{
						Kind:              PersonWithCount,
						Count:             5,
						Variant:           "base",
						Sensitivities:     map[string]ValueSpec{"jobs": FixedValue(0.8), "crime": FixedValue(0.2)},
						MovingWillingness: FixedValue(0.5),
						RetentionRate:     FixedValue(0.3),
					},
					{
						Kind:              PersonGenerator,
						Count:             10,
						Variant:           "base",
						Seed:              99,
						Sensitivities:     map[string]ValueSpec{"jobs": ApproximatelyValue(0.6, 0.1), "crime": InRangeValue(0.1, 0.4)},
						MovingWillingness: ApproximatelyValue(0.4, 0.05),
						RetentionRate:     FixedValue(0.5),
					},
				},
			},
		},
		Cities: []CitySpec{
			{
				Name:                "Rivertown",
				Lat:                 10,
				Lon:                 20,
				Capacity:            &capacity,
				Factors:             map[string]float64{"jobs": 0.7, "crime": 0.3},
				PersonCollectionRef: []string{"rich-people"},
			},
			{
				Name:    "Lakeview",
				Lat:     11,
				Lon:     21,
				Factors: map[string]float64{"jobs": 0.4, "crime": 0.6},
			},
		},
	}
}

func TestToWorld_BuildsExpectedPopulationAndFactors(t *testing.T) {
	w, err := ToWorld(testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, 15, w.Population()) // 5 fixed + 10 generated
	assert.Len(t, w.Cities(), 2)
	assert.Len(t, w.Factors(), 2)

	river := w.CityByName("Rivertown")
	require.NotNil(t, river)
	assert.Equal(t, 15, river.Population())

	lake := w.CityByName("Lakeview")
	require.NotNil(t, lake)
	assert.Equal(t, 0, lake.Population())
}

func TestToWorld_GeneratorIsDeterministicAcrossRuns(t *testing.T) {
	w1, err := ToWorld(testSnapshot())
	require.NoError(t, err)
	w2, err := ToWorld(testSnapshot())
	require.NoError(t, err)

	river1 := w1.CityByName("Rivertown").Persons()
	river2 := w2.CityByName("Rivertown").Persons()
	require.Len(t, river1, len(river2))

	jobsDef := w1.Factors()[0]
	jobsDef2 := w2.Factors()[0]
	for i := range river1 {
		assert.InDelta(t, river1[i].Sensitivity(jobsDef).Float64(), river2[i].Sensitivity(jobsDef2).Float64(), 1e-12)
		assert.InDelta(t, river1[i].MovingWillingness.Float64(), river2[i].MovingWillingness.Float64(), 1e-12)
	}
}

func TestFromWorldToWorld_RoundTripsPopulationAndFactors(t *testing.T) {
	w, err := ToWorld(testSnapshot())
	require.NoError(t, err)

	snap := FromWorld(w, 7, StatusActive)
	assert.Equal(t, 7, snap.Step)

	rebuilt, err := ToWorld(snap)
	require.NoError(t, err)

	assert.Equal(t, w.Population(), rebuilt.Population())
	assert.Len(t, rebuilt.Cities(), len(w.Cities()))

	for _, c := range w.Cities() {
		rc := rebuilt.CityByName(c.Name)
		require.NotNil(t, rc)
		assert.Equal(t, c.Population(), rc.Population())
	}
}

func TestToWorld_RejectsUnknownPersonCollectionReference(t *testing.T) {
	snap := testSnapshot()
	snap.Cities[0].PersonCollectionRef = []string{"does-not-exist"}
	_, err := ToWorld(snap)
	assert.Error(t, err)
}

func TestToEvents_RestoresCompletedStepTrigger(t *testing.T) {
	defs := map[string]*worldmodel.FactorDefinition{
		"jobs": worldmodel.NewFactorDefinition("jobs", worldmodel.Positive),
	}
	spec := EventSpec{
		Name:          "boost",
		TriggerKind:   "step",
		TriggerParams: map[string]any{"step": float64(10)},
		Effect: EffectSpec{
			Kind:   "factor-change",
			Params: map[string]any{"factor": "jobs", "value": 0.9, "application": "absolute"},
		},
		Completed: true,
	}

	evs, err := ToEvents([]EventSpec{spec}, defs)
	require.NoError(t, err)
	require.Len(t, evs, 1)

	assert.True(t, evs[0].Trigger.Completed(), "a restored event marked completed must not fire again")
	assert.False(t, evs[0].Trigger.ShouldFire(events.NewStepContext(10)))
}

func TestSQLiteStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSQLiteStore(filepath.Join(dir, "snapshots.db"))
	require.NoError(t, err)
	defer store.Close()

	snap := testSnapshot()
	snap.CreatedAt = time.Now().UTC()

	ctx := context.Background()
	id, err := store.Save(ctx, "run-1", snap)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	loaded, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, snap.Step, loaded.Step)
	assert.Equal(t, snap.Status, loaded.Status)
	assert.Len(t, loaded.Cities, len(snap.Cities))
}

func TestSQLiteStore_ListByRunOrdersByStep(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSQLiteStore(filepath.Join(dir, "snapshots.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for _, step := range []int{2, 0, 1} {
		snap := testSnapshot()
		snap.Step = step
		_, err := store.Save(ctx, "run-a", snap)
		require.NoError(t, err)
	}

	list, err := store.ListByRun(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{list[0].Step, list[1].Step, list[2].Step})
}

func TestSQLiteStore_DeleteRunRemovesSnapshots(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenSQLiteStore(filepath.Join(dir, "snapshots.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.Save(ctx, "run-b", testSnapshot())
	require.NoError(t, err)

	require.NoError(t, store.DeleteRun(ctx, "run-b"))

	list, err := store.ListByRun(ctx, "run-b")
	require.NoError(t, err)
	assert.Empty(t, list)
}
