package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cache-sim/cache-sim/sim"
	"github.com/cache-sim/cache-sim/sim/policy"
)

// SliceConfig sets how the trace is cut into ticks. Zero values fall back to
// the trace header, then to the trace's first timestamp, last timestamp + 1
// and an interval of 1. A zero field therefore cannot override a non-zero
// header value; edit the header or drop it to slice from timestamp 0.
type SliceConfig struct {
	Begin    int32 `yaml:"begin"`
	End      int32 `yaml:"end"`
	Interval int32 `yaml:"interval"`
}

// EmbeddingConfig enables the learned embedding blended into observations.
type EmbeddingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	LearningRate float32 `yaml:"learning_rate"`
	InitScale    float32 `yaml:"init_scale"`
}

// AgentConfig selects the baseline policy driving the run.
type AgentConfig struct {
	Name   string `yaml:"name"`
	Column int    `yaml:"column"` // top-k scoring feature column
}

// RunConfig is the full run configuration file.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type RunConfig struct {
	Trace       string `yaml:"trace"`
	TraceHeader string `yaml:"trace_header"`

	Mode     string      `yaml:"mode"`
	Capacity int         `yaml:"capacity"`
	Slice    SliceConfig `yaml:"slice"`

	Features     []string        `yaml:"features"`
	SWLFUWindows []int           `yaml:"swlfu_windows"`
	Embedding    EmbeddingConfig `yaml:"embedding"`

	Agent           AgentConfig `yaml:"agent"`
	EpisodeInterval int         `yaml:"episode_interval"`
	MaxTicksPerStep int         `yaml:"max_ticks_per_step"`
	Games           int         `yaml:"games"`      // training games
	TestGames       int         `yaml:"test_games"` // evaluation games played after training
	Seed            int64       `yaml:"seed"`
}

// DefaultRunConfig returns the configuration used when no file is given.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Mode:            "passive",
		Capacity:        100,
		Features:        []string{sim.FeatureLFU},
		Agent:           AgentConfig{Name: "top-k"},
		EpisodeInterval: 100,
		Games:           1,
		Seed:            42,
	}
}

// LoadRunConfig reads path over DefaultRunConfig with strict field checking.
func LoadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("reading run config: %w", err)
	}
	return parseRunConfig(data)
}

func parseRunConfig(data []byte) (RunConfig, error) {
	cfg := DefaultRunConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return RunConfig{}, fmt.Errorf("parsing run config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c RunConfig) Validate() error {
	if c.Trace == "" {
		return fmt.Errorf("%w: trace path is required", sim.ErrInvalidConfig)
	}
	if _, err := sim.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be > 0, got %d", sim.ErrInvalidConfig, c.Capacity)
	}
	if c.Slice.Interval < 0 {
		return fmt.Errorf("%w: slice interval must be >= 0, got %d", sim.ErrInvalidConfig, c.Slice.Interval)
	}
	if _, err := c.StructuralFeatures(); err != nil {
		return err
	}
	if c.Embedding.Enabled && c.Embedding.LearningRate < 0 {
		return fmt.Errorf("%w: embedding learning rate must be >= 0", sim.ErrInvalidConfig)
	}
	if !policy.IsValidAgent(c.Agent.Name) {
		return fmt.Errorf("%w: unknown agent %q; valid agents: %v", sim.ErrInvalidConfig, c.Agent.Name, policy.ValidAgentNames())
	}
	if c.Agent.Column < 0 {
		return fmt.Errorf("%w: agent column must be >= 0, got %d", sim.ErrInvalidConfig, c.Agent.Column)
	}
	if c.EpisodeInterval <= 0 {
		return fmt.Errorf("%w: episode interval must be > 0, got %d", sim.ErrInvalidConfig, c.EpisodeInterval)
	}
	if c.MaxTicksPerStep < 0 {
		return fmt.Errorf("%w: max ticks per step must be >= 0, got %d", sim.ErrInvalidConfig, c.MaxTicksPerStep)
	}
	if c.Games < 0 || c.TestGames < 0 || c.Games+c.TestGames == 0 {
		return fmt.Errorf("%w: need at least one game, got %d train and %d test", sim.ErrInvalidConfig, c.Games, c.TestGames)
	}
	return nil
}

// StructuralFeatures converts the feature names and windows.
func (c RunConfig) StructuralFeatures() (sim.StructuralFeatures, error) {
	f, err := sim.ParseFeatureNames(c.Features)
	if err != nil {
		return sim.StructuralFeatures{}, err
	}
	f.SWLFUWindows = c.SWLFUWindows
	if err := f.Validate(); err != nil {
		return sim.StructuralFeatures{}, err
	}
	return f, nil
}
