package testbed

import (
	"testing"

	"github.com/spaghettifunk/multibatch/engine"
	"github.com/spaghettifunk/multibatch/engine/config"
	"github.com/spaghettifunk/multibatch/engine/core"
	"github.com/spaghettifunk/multibatch/engine/renderer/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestbedFillsEveryBatch(t *testing.T) {
	cfg, err := config.Load("config.toml")
	require.NoError(t, err)
	cfg.Backend = "memory"
	cfg.Frames = 10
	for i := range cfg.Shapes {
		cfg.Shapes[i].Capacity = 3
	}

	tb, err := NewTestGame(cfg, "", "assets")
	require.NoError(t, err)
	t.Cleanup(func() { core.EventUnregisterListener(tb) })

	e, err := engine.New(tb.Game)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	backend := e.Backend().(*memory.Backend)

	require.NoError(t, e.Run())

	submissions := backend.Submissions()
	require.Len(t, submissions, 10)
	assert.Equal(t, uint64(len(cfg.Shapes)), submissions[0].Instances())
	for _, cmd := range submissions[9].Commands {
		assert.Equal(t, uint32(3), cmd.InstanceCount)
	}

	state := tb.State.(*gameState)
	for name, s := range state.shapes {
		assert.True(t, s.full, name)
		assert.Equal(t, uint32(3), s.population, name)
	}
}

func TestTestbedRejectsForeignLayout(t *testing.T) {
	cfg := config.Default()
	cfg.Attributes = cfg.Attributes[:1]

	tb, err := NewTestGame(cfg, "", "")
	require.NoError(t, err)
	e, err := engine.New(tb.Game)
	require.NoError(t, err)
	t.Cleanup(func() { e.Shutdown() })
	assert.Error(t, e.Initialize())

	_, err = NewTestGame(nil, "", "")
	assert.Error(t, err)
}
