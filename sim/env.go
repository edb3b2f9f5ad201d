package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultMaxTicksPerStep bounds the ticks a single Step may run before the
// engine is considered stalled.
const DefaultMaxTicksPerStep = 1 << 24

// EnvConfig configures an ActiveEnv or PassiveEnv.
type EnvConfig struct {
	Capacity        int           // cache slots (must be > 0)
	Features        FeatureConfig // structural families and optional augmentation
	MaxTicksPerStep int           // tick guard per Step (0 = DefaultMaxTicksPerStep)
}

// Transition is what Step hands back to the policy.
type Transition struct {
	Observation *Observation
	Reward      []float32 // one value per observation row
	Done        bool
	Info        Info
}

// Env is the decision-process surface shared by both operating modes.
type Env interface {
	Reset() (*Observation, error)
	Step(action []bool) (Transition, error)
	Close() (Info, error)

	// ActionSize is the nominal candidate count for the mode.
	ActionSize() int
	// FeatureDims is the observation column count.
	FeatureDims() int

	Done() bool
	Session() *Session
	Registry() *Registry
	Release() error
}

// loopRule parameterizes the shared tick loop for one operating mode.
type loopRule struct {
	// accumulate sums candidate frequencies over all ticks of a Step instead of
	// keeping only the last tick's.
	accumulate bool
	// observeEachTick refreshes candidates and observation after every tick
	// instead of once after the loop.
	observeEachTick bool
	// notify decides whether a tick fires OnStepEnd.
	notify func(res StepResult) bool
	// stop decides whether a tick is a decision point.
	stop func(res StepResult, finished bool) bool
}

// controlLoop holds the state both environments share: the session, the
// feature fuser, the registry, and the current candidate set.
type controlLoop struct {
	session  *Session
	fuser    *FeatureFuser
	registry *Registry
	maxTicks int
	rule     loopRule

	// candidateSet fetches the candidate set after a tick.
	candidateSet func() []ContentID

	candidates []ContentID
	obs        *Observation
	pending    Info // game-begin report, delivered with the first Step
	started    bool
	done       bool
}

func newControlLoop(backend Backend, cfg EnvConfig, mode Mode, registry *Registry) (*controlLoop, error) {
	if cfg.MaxTicksPerStep < 0 {
		return nil, fmt.Errorf("%w: max ticks per step must be >= 0, got %d", ErrInvalidConfig, cfg.MaxTicksPerStep)
	}
	session, err := NewSession(backend, cfg.Capacity, mode)
	if err != nil {
		return nil, err
	}
	fuser, err := NewFeatureFuser(session, cfg.Features)
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	if registry == nil {
		registry = NewRegistry()
	}
	maxTicks := cfg.MaxTicksPerStep
	if maxTicks == 0 {
		maxTicks = DefaultMaxTicksPerStep
	}
	return &controlLoop{
		session:  session,
		fuser:    fuser,
		registry: registry,
		maxTicks: maxTicks,
	}, nil
}

// Session returns the underlying session.
func (c *controlLoop) Session() *Session { return c.session }

// Registry returns the callback registry.
func (c *controlLoop) Registry() *Registry { return c.registry }

// FeatureDims returns the observation column count.
func (c *controlLoop) FeatureDims() int { return c.fuser.Dims() }

// Done reports whether the current game has finished.
func (c *controlLoop) Done() bool { return c.done }

// beginGame rewinds the session and fires game-begin.
func (c *controlLoop) beginGame() error {
	if err := c.session.Reset(); err != nil {
		return err
	}
	c.registry.Reset()
	c.pending = c.registry.OnGameBegin()
	c.started = true
	c.done = false
	return nil
}

// finishReset computes the initial observation once candidates are known.
func (c *controlLoop) finishReset() (*Observation, error) {
	obs, err := c.fuser.Observe(c.candidates)
	if err != nil {
		return nil, err
	}
	c.obs = obs
	c.done = c.session.Finished()
	return obs, nil
}

// Close fires game-end and returns the merged report.
func (c *controlLoop) Close() (Info, error) {
	if !c.started {
		return nil, ErrNotReset
	}
	c.started = false
	return c.registry.OnGameEnd(), nil
}

// Release tears down the session and its engine.
func (c *controlLoop) Release() error {
	return c.session.Close()
}

// refresh pulls the post-tick candidate set and recomputes the observation.
func (c *controlLoop) refresh() error {
	c.candidates = c.candidateSet()
	obs, err := c.fuser.Observe(c.candidates)
	if err != nil {
		return err
	}
	c.obs = obs
	return nil
}

// step applies action and runs ticks until the rule reports a decision point.
func (c *controlLoop) step(action []bool) (Transition, error) {
	if !c.started {
		return Transition{}, ErrNotReset
	}
	if c.done {
		return Transition{}, ErrGameOver
	}
	if len(action) != len(c.candidates) {
		return Transition{}, fmt.Errorf("%w: got %d, want %d", ErrActionSize, len(action), len(c.candidates))
	}

	selected := make([]ContentID, 0, len(action))
	for i, keep := range action {
		if keep {
			selected = append(selected, c.candidates[i])
		}
	}
	if err := c.session.UpdateCache(selected); err != nil {
		return Transition{}, err
	}

	info := Info{}
	info.merge(c.pending)
	c.pending = nil

	var reward []float32
	ticks := 0
	for {
		if ticks == c.maxTicks {
			return Transition{}, fmt.Errorf("%w: no decision point after %d ticks", ErrStalledSimulation, ticks)
		}
		res, err := c.session.Tick()
		if err != nil {
			return Transition{}, err
		}
		ticks++
		logrus.Tracef("tick %d: %+v", ticks, res)

		freqs := c.session.CandidateFrequencies()
		if c.rule.observeEachTick {
			if err := c.refresh(); err != nil {
				return Transition{}, err
			}
		}
		if c.rule.accumulate {
			if reward == nil {
				reward = make([]float32, len(freqs))
			}
			if len(freqs) != len(reward) {
				return Transition{}, fmt.Errorf("%w: %d candidate frequencies, accumulator has %d",
					ErrShapeMismatch, len(freqs), len(reward))
			}
			for i, f := range freqs {
				reward[i] += f
			}
		} else {
			reward = freqs
		}

		finished := c.session.Finished()
		c.done = finished
		if c.rule.notify(res) {
			info.merge(c.registry.OnStepEnd())
		}
		if c.rule.stop(res, finished) {
			break
		}
	}

	if !c.rule.observeEachTick {
		if err := c.refresh(); err != nil {
			return Transition{}, err
		}
	}
	if len(reward) != c.obs.Rows() {
		return Transition{}, fmt.Errorf("%w: reward has %d entries, observation has %d rows",
			ErrShapeMismatch, len(reward), c.obs.Rows())
	}
	c.done = c.session.Finished()
	logrus.Debugf("step finished after %d ticks, done=%v", ticks, c.done)

	return Transition{Observation: c.obs, Reward: reward, Done: c.done, Info: info}, nil
}
