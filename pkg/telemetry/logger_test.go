package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mimir-aip/popsim/pkg/config"
	"github.com/mimir-aip/popsim/pkg/engine"
	"github.com/mimir-aip/popsim/pkg/worldmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_RespectsMinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, FormatText)

	log.Info("should not appear", nil)
	log.Error("should appear", Fields{"k": "v"})

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestLogger_JSONFormatEncodesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, FormatJSON)
	log.Info("hello", Fields{"step": 3})

	out := buf.String()
	assert.Contains(t, out, `"message":"hello"`)
	assert.Contains(t, out, `"step":3`)
}

func TestLogger_WithMergesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, FormatJSON).With(Fields{"run": "abc"})
	log.Info("hello", Fields{"step": 1})

	out := buf.String()
	assert.Contains(t, out, `"run":"abc"`)
	assert.Contains(t, out, `"step":1`)
}

func TestLoggingObserver_ReportsSimulationLifecycle(t *testing.T) {
	var buf bytes.Buffer
	obs := &LoggingObserver{Log: New(&buf, LevelDebug, FormatText)}

	coord, err := worldmodel.NewCoordinate(0, 0)
	require.NoError(t, err)
	city := worldmodel.NewCity("Solo", coord, nil)
	w, err := worldmodel.NewWorld([]*worldmodel.City{city}, nil)
	require.NoError(t, err)

	eng, err := engine.NewEngine(engine.NewPipeline(), config.DefaultSimulationConfig())
	require.NoError(t, err)
	eng.AddObserver(obs)

	_, err = eng.Run(context.Background(), w)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.Contains(out, "simulation started"))
	assert.True(t, strings.Contains(out, "simulation ended"))
}
