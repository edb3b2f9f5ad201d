package sim

// ActiveEnv exposes an active cache: every tick that processes at least one
// request is a decision point, and the reward is that tick's candidate access
// counts.
type ActiveEnv struct {
	*controlLoop
}

// NewActiveEnv opens an active session on backend. A nil registry gets an
// empty one.
func NewActiveEnv(backend Backend, cfg EnvConfig, registry *Registry) (*ActiveEnv, error) {
	c, err := newControlLoop(backend, cfg, Active, registry)
	if err != nil {
		return nil, err
	}
	c.rule = loopRule{
		accumulate:      false,
		observeEachTick: true,
		// empty ticks are still reported to observers
		notify: func(StepResult) bool { return true },
		stop: func(res StepResult, finished bool) bool {
			// a finished trace also ends the step, even on an empty final tick
			return res.Processed != 0 || finished
		},
	}
	c.candidateSet = c.session.Candidates
	return &ActiveEnv{controlLoop: c}, nil
}

// ActionSize returns the cache capacity.
func (e *ActiveEnv) ActionSize() int { return e.session.Capacity() }

// Reset starts a new game and returns the observation of the engine's initial candidates.
func (e *ActiveEnv) Reset() (*Observation, error) {
	if err := e.beginGame(); err != nil {
		return nil, err
	}
	e.candidates = e.session.Candidates()
	return e.finishReset()
}

// Step retains the candidates selected by action and runs until a tick
// processes requests.
func (e *ActiveEnv) Step(action []bool) (Transition, error) {
	return e.step(action)
}

var _ Env = (*ActiveEnv)(nil)
