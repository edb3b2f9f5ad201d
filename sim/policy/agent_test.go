package policy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cache-sim/cache-sim/sim"
)

func observation(ids []sim.ContentID, dims int, features ...float32) *sim.Observation {
	return &sim.Observation{Candidates: ids, Features: features, Dims: dims}
}

func countTrue(m []bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

func TestTopK_KeepsHighestScores(t *testing.T) {
	// GIVEN four candidates scored on column 1
	obs := observation([]sim.ContentID{10, 11, 12, 13}, 2,
		9, 0.1,
		0, 0.7,
		0, 0.4,
		0, 0.9,
	)
	agent := &TopK{K: 2, Column: 1}

	// WHEN the agent acts
	got := agent.Act(obs)

	// THEN rows 1 and 3 are kept regardless of column 0
	assert.Equal(t, []bool{false, true, false, true}, got)
}

func TestTopK_TiesKeepEarlierRows(t *testing.T) {
	obs := observation([]sim.ContentID{1, 2, 3}, 1, 0.5, 0.5, 0.5)
	got := (&TopK{K: 2}).Act(obs)
	assert.Equal(t, []bool{true, true, false}, got)
}

func TestTopK_SkipsNoContentRows(t *testing.T) {
	// GIVEN a passive candidate set with an empty admission slot
	obs := observation([]sim.ContentID{4, sim.NoContent, 5}, 1, 0.1, 0, 0.2)

	got := (&TopK{K: 3}).Act(obs)

	assert.Equal(t, []bool{true, false, true}, got)
}

func TestTopK_ColumnOutOfRangeKeepsFirstRows(t *testing.T) {
	obs := observation([]sim.ContentID{1, 2, 3}, 0)
	got := (&TopK{K: 2, Column: 4}).Act(obs)
	assert.Equal(t, []bool{true, true, false}, got)
}

func TestRandom_DeterministicPerSeed(t *testing.T) {
	obs := observation([]sim.ContentID{1, 2, 3, 4, 5, sim.NoContent}, 0)

	a := NewRandom(3, rand.New(rand.NewSource(7))).Act(obs)
	b := NewRandom(3, rand.New(rand.NewSource(7))).Act(obs)

	assert.Equal(t, a, b)
	assert.Equal(t, 3, countTrue(a))
	assert.False(t, a[5], "NoContent is never kept")
}

func TestRandom_KeepsAllWhenFewerRows(t *testing.T) {
	obs := observation([]sim.ContentID{1, 2}, 0)
	got := NewRandom(5, rand.New(rand.NewSource(1))).Act(obs)
	assert.Equal(t, []bool{true, true}, got)
}

func TestNewAgent(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.IsType(t, &TopK{}, NewAgent("top-k", 2, 0, rng))
	assert.IsType(t, &Random{}, NewAgent("random", 2, 0, rng))
	assert.Panics(t, func() { NewAgent("lru", 2, 0, rng) })

	assert.True(t, IsValidAgent("random"))
	assert.False(t, IsValidAgent("lru"))
	assert.Equal(t, []string{"random", "top-k"}, ValidAgentNames())
}
