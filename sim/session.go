package sim

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// Session binds one capacity and mode to one engine handle. The handle is owned
// exclusively by the Session and released exactly once by Close.
//
// Every slice handed out by a Session is a private copy.
type Session struct {
	capacity   int
	mode       Mode
	engine     Engine
	candidates []ContentID // last candidate set returned to or seeded by the caller
	closed     bool
}

// NewSession opens an engine on backend and wraps it.
func NewSession(backend Backend, capacity int, mode Mode) (*Session, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be > 0, got %d", ErrInvalidConfig, capacity)
	}
	engine, err := backend.OpenSession(capacity, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s session: %w", mode, err)
	}
	logrus.Debugf("opened %s session with capacity %d", mode, capacity)
	return &Session{capacity: capacity, mode: mode, engine: engine}, nil
}

// Capacity returns the number of cache slots.
func (s *Session) Capacity() int { return s.capacity }

// Mode returns the operating mode.
func (s *Session) Mode() Mode { return s.mode }

// Reset rewinds the engine to the start of the trace.
func (s *Session) Reset() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.candidates = nil
	if err := s.engine.Reset(); err != nil {
		return fmt.Errorf("resetting engine: %w", err)
	}
	return nil
}

// Tick advances the engine by one discrete step.
func (s *Session) Tick() (StepResult, error) {
	if s.closed {
		return StepResult{}, ErrSessionClosed
	}
	res, err := s.engine.Tick()
	if err != nil {
		return StepResult{}, fmt.Errorf("engine tick: %w", err)
	}
	if res.Processed < 0 || res.Missed < 0 || res.Remained < 0 {
		return StepResult{}, fmt.Errorf("%w: negative step counts %+v", ErrShapeMismatch, res)
	}
	return res, nil
}

// Candidates returns the contents eligible for the current decision and
// remembers them for the UpdateCache sub-sequence check.
func (s *Session) Candidates() []ContentID {
	s.candidates = slices.Clone(s.engine.Candidates())
	return slices.Clone(s.candidates)
}

// SeedCandidates replaces the remembered candidate set with ids chosen by the caller.
func (s *Session) SeedCandidates(ids []ContentID) {
	s.candidates = slices.Clone(ids)
}

// CacheContents returns the contents currently occupying cache slots.
func (s *Session) CacheContents() []ContentID {
	return slices.Clone(s.engine.CacheContents())
}

// UpdateCache installs selected as the retained/admitted contents. selected
// must be an ordered sub-sequence of the last candidate set.
func (s *Session) UpdateCache(selected []ContentID) error {
	if s.closed {
		return ErrSessionClosed
	}
	if !isSubsequence(selected, s.candidates) {
		return fmt.Errorf("%w: %v not within %v", ErrNotSubsequence, selected, s.candidates)
	}
	if err := s.engine.UpdateCache(slices.Clone(selected)); err != nil {
		return fmt.Errorf("updating cache: %w", err)
	}
	return nil
}

// ConfigureFeatures enables structural feature families on the engine.
func (s *Session) ConfigureFeatures(cfg StructuralFeatures) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.engine.ConfigureFeatures(cfg); err != nil {
		return fmt.Errorf("configuring features: %w", err)
	}
	return nil
}

// FeatureDims returns the structural feature column count.
func (s *Session) FeatureDims() int {
	return s.engine.FeatureDims()
}

// StructuralFeatures returns the row-major feature matrix for ids.
func (s *Session) StructuralFeatures(ids []ContentID) ([]float32, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	f, err := s.engine.Features(ids)
	if err != nil {
		return nil, fmt.Errorf("computing features: %w", err)
	}
	if want := len(ids) * s.engine.FeatureDims(); len(f) != want {
		return nil, fmt.Errorf("%w: features have %d values, want %d", ErrShapeMismatch, len(f), want)
	}
	return slices.Clone(f), nil
}

// CandidateFrequencies returns the access count of each candidate during the last tick.
func (s *Session) CandidateFrequencies() []float32 {
	return slices.Clone(s.engine.CandidateFrequencies())
}

// Finished reports whether the whole trace has been replayed.
func (s *Session) Finished() bool {
	return s.engine.Finished()
}

// MeanHitRate returns hits over requests since the last Reset.
func (s *Session) MeanHitRate() float32 {
	return s.engine.MeanHitRate()
}

// EpisodeEnd closes the engine's current episode when the engine tracks
// episodes; ok is false otherwise.
func (s *Session) EpisodeEnd() (rate float32, ok bool) {
	r, ok := s.engine.(EpisodeReporter)
	if !ok {
		return 0, false
	}
	return r.EpisodeEnd(), true
}

// Close releases the engine. Only the first call reaches the engine.
// Calls returning an error fail with ErrSessionClosed afterwards; the results
// of Candidates, CacheContents, CandidateFrequencies, Finished and
// MeanHitRate are undefined after Close.
func (s *Session) Close() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	if err := s.engine.Close(); err != nil {
		return fmt.Errorf("closing engine: %w", err)
	}
	return nil
}

// isSubsequence reports whether sub appears in seq in order, not necessarily contiguously.
func isSubsequence(sub, seq []ContentID) bool {
	j := 0
	for _, id := range sub {
		for j < len(seq) && seq[j] != id {
			j++
		}
		if j == len(seq) {
			return false
		}
		j++
	}
	return true
}
