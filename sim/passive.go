package sim

// PassiveEnv exposes a passive cache: contents persist until a miss forces an
// admission decision. Candidates always number capacity+1; the slot after the
// cached contents holds the missed content, or NoContent when there is nothing
// to admit.
type PassiveEnv struct {
	*controlLoop
}

// NewPassiveEnv opens a passive session on backend. A nil registry gets an
// empty one.
func NewPassiveEnv(backend Backend, cfg EnvConfig, registry *Registry) (*PassiveEnv, error) {
	c, err := newControlLoop(backend, cfg, Passive, registry)
	if err != nil {
		return nil, err
	}
	e := &PassiveEnv{controlLoop: c}
	c.rule = loopRule{
		accumulate:      true,
		observeEachTick: false,
		// episodes align to time-slice boundaries
		notify: func(res StepResult) bool { return res.Drained() },
		stop: func(res StepResult, finished bool) bool {
			return res.Missed > 0 || finished
		},
	}
	c.candidateSet = e.paddedCandidates
	return e, nil
}

// ActionSize returns capacity+1.
func (e *PassiveEnv) ActionSize() int { return e.session.Capacity() + 1 }

// Reset starts a new game with candidates 0..capacity, admitting the first capacity of them.
func (e *PassiveEnv) Reset() (*Observation, error) {
	if err := e.beginGame(); err != nil {
		return nil, err
	}
	capacity := e.session.Capacity()
	seed := make([]ContentID, capacity+1)
	for i := range seed {
		seed[i] = ContentID(i)
	}
	e.session.SeedCandidates(seed)
	if err := e.session.UpdateCache(seed[:capacity]); err != nil {
		return nil, err
	}
	e.candidates = seed
	return e.finishReset()
}

// Step applies the admission mask and runs until a miss or the end of the trace.
func (e *PassiveEnv) Step(action []bool) (Transition, error) {
	return e.step(action)
}

// paddedCandidates fills the engine's candidates up to capacity+1 with NoContent.
func (e *PassiveEnv) paddedCandidates() []ContentID {
	ids := e.session.Candidates()
	for len(ids) < e.ActionSize() {
		ids = append(ids, NoContent)
	}
	e.session.SeedCandidates(ids)
	return ids
}

var _ Env = (*PassiveEnv)(nil)
