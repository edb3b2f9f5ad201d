package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cache-sim/cache-sim/sim"
)

func TestParseRunConfig_OverridesDefaults(t *testing.T) {
	// GIVEN a config that sets only some fields
	data := []byte(`
trace: requests.csv
mode: active
capacity: 8
slice:
  interval: 60
features: [lfu, ogd_opt]
swlfu_windows: [4, 16]
embedding:
  enabled: true
  learning_rate: 0.1
agent:
  name: random
test_games: 2
`)

	// WHEN it is parsed
	cfg, err := parseRunConfig(data)
	require.NoError(t, err)

	// THEN set fields override and the rest keep their defaults
	assert.Equal(t, "requests.csv", cfg.Trace)
	assert.Equal(t, "active", cfg.Mode)
	assert.Equal(t, 8, cfg.Capacity)
	assert.Equal(t, int32(60), cfg.Slice.Interval)
	assert.Equal(t, []string{"lfu", "ogd_opt"}, cfg.Features)
	assert.Equal(t, []int{4, 16}, cfg.SWLFUWindows)
	assert.True(t, cfg.Embedding.Enabled)
	assert.InDelta(t, 0.1, cfg.Embedding.LearningRate, 1e-6)
	assert.Equal(t, "random", cfg.Agent.Name)
	assert.Equal(t, 2, cfg.TestGames)
	assert.Equal(t, 1, cfg.Games)
	assert.Equal(t, 100, cfg.EpisodeInterval)
	assert.Equal(t, int64(42), cfg.Seed)
	require.NoError(t, cfg.Validate())

	f, err := cfg.StructuralFeatures()
	require.NoError(t, err)
	assert.Equal(t, sim.StructuralFeatures{LFU: true, OGDOpt: true, SWLFUWindows: []int{4, 16}}, f)
}

func TestParseRunConfig_RejectsUnknownFields(t *testing.T) {
	_, err := parseRunConfig([]byte("trace: a.csv\ncapacty: 4\n"))
	assert.Error(t, err)

	_, err = parseRunConfig([]byte("slice:\n  width: 4\n"))
	assert.Error(t, err)
}

func TestParseRunConfig_EmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := parseRunConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRunConfig(), cfg)
}

func TestLoadRunConfig_MissingFile(t *testing.T) {
	_, err := LoadRunConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRunConfig_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trace: x.csv\ncapacity: 3\n"), 0644))

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Capacity)
	assert.Equal(t, "x.csv", cfg.Trace)
}

func TestRunConfig_Validate(t *testing.T) {
	valid := func() RunConfig {
		cfg := DefaultRunConfig()
		cfg.Trace = "t.csv"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*RunConfig)
		want   error
	}{
		{"missing trace", func(c *RunConfig) { c.Trace = "" }, sim.ErrInvalidConfig},
		{"unknown mode", func(c *RunConfig) { c.Mode = "lazy" }, sim.ErrInvalidConfig},
		{"zero capacity", func(c *RunConfig) { c.Capacity = 0 }, sim.ErrInvalidConfig},
		{"negative interval", func(c *RunConfig) { c.Slice.Interval = -1 }, sim.ErrInvalidConfig},
		{"unknown feature", func(c *RunConfig) { c.Features = []string{"lfu", "arc"} }, sim.ErrUnknownFeature},
		{"zero window", func(c *RunConfig) { c.SWLFUWindows = []int{0} }, sim.ErrInvalidConfig},
		{"negative learning rate", func(c *RunConfig) {
			c.Embedding = EmbeddingConfig{Enabled: true, LearningRate: -1}
		}, sim.ErrInvalidConfig},
		{"unknown agent", func(c *RunConfig) { c.Agent.Name = "belady" }, sim.ErrInvalidConfig},
		{"negative column", func(c *RunConfig) { c.Agent.Column = -1 }, sim.ErrInvalidConfig},
		{"zero episode interval", func(c *RunConfig) { c.EpisodeInterval = 0 }, sim.ErrInvalidConfig},
		{"negative tick guard", func(c *RunConfig) { c.MaxTicksPerStep = -1 }, sim.ErrInvalidConfig},
		{"no games", func(c *RunConfig) { c.Games = 0 }, sim.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}
