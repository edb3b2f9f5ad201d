package policy

import (
	"cmp"
	"fmt"
	"math/rand"
	"slices"

	"github.com/cache-sim/cache-sim/sim"
)

// Agent maps an observation to a keep/admit mask over its candidate rows.
type Agent interface {
	Act(obs *sim.Observation) []bool
}

// validAgentNames maps agent names to validity.
var validAgentNames = map[string]bool{
	"top-k":  true,
	"random": true,
}

// IsValidAgent returns true if name is a recognized agent.
func IsValidAgent(name string) bool { return validAgentNames[name] }

// ValidAgentNames returns sorted valid agent names.
func ValidAgentNames() []string {
	names := make([]string, 0, len(validAgentNames))
	for name := range validAgentNames {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// TopK keeps the K candidates with the highest value in feature column Column.
// NoContent rows are never selected. Ties keep the earlier row.
type TopK struct {
	K      int
	Column int
}

func (a *TopK) Act(obs *sim.Observation) []bool {
	rows := contentRows(obs)
	score := func(i int) float32 {
		if a.Column >= obs.Dims {
			return 0
		}
		return obs.Row(i)[a.Column]
	}
	slices.SortStableFunc(rows, func(x, y int) int {
		return cmp.Compare(score(y), score(x))
	})
	return mask(obs.Rows(), rows[:min(a.K, len(rows))])
}

// Random keeps K candidates chosen uniformly at random.
// NoContent rows are never selected.
type Random struct {
	K   int
	rng *rand.Rand
}

// NewRandom returns a Random agent drawing from rng.
func NewRandom(k int, rng *rand.Rand) *Random {
	return &Random{K: k, rng: rng}
}

func (a *Random) Act(obs *sim.Observation) []bool {
	rows := contentRows(obs)
	a.rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	return mask(obs.Rows(), rows[:min(a.K, len(rows))])
}

// NewAgent creates an agent by name.
// Valid names: "top-k", "random".
// k is the number of rows to keep; column selects the top-k scoring feature.
func NewAgent(name string, k, column int, rng *rand.Rand) Agent {
	switch name {
	case "top-k":
		return &TopK{K: k, Column: column}
	case "random":
		return NewRandom(k, rng)
	default:
		panic(fmt.Sprintf("unknown agent %q; valid agents: %v", name, ValidAgentNames()))
	}
}

// contentRows returns the indices of rows holding a real content.
func contentRows(obs *sim.Observation) []int {
	rows := make([]int, 0, obs.Rows())
	for i, id := range obs.Candidates {
		if id != sim.NoContent {
			rows = append(rows, i)
		}
	}
	return rows
}

func mask(n int, keep []int) []bool {
	m := make([]bool, n)
	for _, i := range keep {
		m[i] = true
	}
	return m
}
