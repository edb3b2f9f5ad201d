package emu

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/cache-sim/cache-sim/sim"
)

// Emulator replays a Trace against one fixed-capacity cache.
//
// In active mode each tick processes a whole slice and offers the cached
// contents followed by every distinct content missed in that slice, in
// ascending order. In passive mode each tick processes the current slice only
// up to and including its first miss; the candidate set is the cached contents
// followed by the missed content, if any.
type Emulator struct {
	trace    *Trace
	mode     sim.Mode
	cache    *cache
	features *featureSet

	next    int       // next slice to load
	pending []Request // passive: unprocessed rest of the current slice

	requests, hits               int
	episodeRequests, episodeHits int
	episodeHitRates              []float32

	candidates []sim.ContentID
	freqs      []float32
}

// NewEmulator returns an emulator over trace. The trace must already be sliced.
func NewEmulator(trace *Trace, capacity int, mode sim.Mode) (*Emulator, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be > 0, got %d", sim.ErrInvalidConfig, capacity)
	}
	if mode != sim.Active && mode != sim.Passive {
		return nil, fmt.Errorf("%w: unknown mode %v", sim.ErrInvalidConfig, mode)
	}
	e := &Emulator{
		trace: trace,
		mode:  mode,
		cache: newCache(capacity),
	}
	if err := e.Reset(); err != nil {
		return nil, err
	}
	return e, nil
}

var (
	_ sim.Engine          = (*Emulator)(nil)
	_ sim.EpisodeReporter = (*Emulator)(nil)
)

// Reset empties the cache and rewinds to the first slice.
func (e *Emulator) Reset() error {
	e.next = 0
	e.pending = nil
	e.requests, e.hits = 0, 0
	e.episodeRequests, e.episodeHits = 0, 0
	e.episodeHitRates = nil

	e.cache.reset()
	e.features.reset()

	e.candidates = append(e.candidates[:0], e.cache.slots...)
	e.freqs = append(e.freqs[:0], e.cache.frequencies(e.candidates)...)
	e.cache.clearFrequencies()
	logrus.Debugf("emulator reset: %s, capacity %d, %d slices", e.mode, e.cache.capacity(), e.trace.NumSlices())
	return nil
}

// Tick advances the simulation by one decision-free step.
func (e *Emulator) Tick() (sim.StepResult, error) {
	if e.mode == sim.Passive {
		return e.passiveTick()
	}
	return e.activeTick()
}

func (e *Emulator) activeTick() (sim.StepResult, error) {
	if e.next >= e.trace.NumSlices() {
		return sim.StepResult{}, ErrExhausted
	}
	k := e.next
	reqs := e.trace.Slice(k)
	e.next++

	missed := make(map[sim.ContentID]struct{})
	for _, r := range reqs {
		if !e.access(r.ID) {
			missed[r.ID] = struct{}{}
		}
	}
	e.features.update(reqs, k)

	e.candidates = append(e.candidates[:0], e.cache.slots...)
	missedIDs := make([]sim.ContentID, 0, len(missed))
	for id := range missed {
		missedIDs = append(missedIDs, id)
	}
	slices.Sort(missedIDs)
	e.candidates = append(e.candidates, missedIDs...)
	e.freqs = append(e.freqs[:0], e.cache.frequencies(e.candidates)...)
	e.cache.clearFrequencies()

	logrus.Tracef("slice %d: %d requests, %d missed", k, len(reqs), len(missed))
	return sim.StepResult{Processed: len(reqs), Missed: len(missed)}, nil
}

func (e *Emulator) passiveTick() (sim.StepResult, error) {
	if len(e.pending) == 0 {
		if e.next >= e.trace.NumSlices() {
			return sim.StepResult{}, ErrExhausted
		}
		e.pending = e.trace.Slice(e.next)
		e.next++
	}
	k := e.next - 1

	missed := sim.NoContent
	n := 0
	for n < len(e.pending) {
		id := e.pending[n].ID
		n++
		if !e.access(id) {
			missed = id
			break
		}
	}
	processed := e.pending[:n]
	e.pending = e.pending[n:]
	e.features.update(processed, k)

	e.candidates = append(e.candidates[:0], e.cache.slots...)
	if missed != sim.NoContent {
		e.candidates = append(e.candidates, missed)
	}
	e.freqs = append(e.freqs[:0], e.cache.frequencies(e.candidates)...)
	e.cache.clearFrequencies()
	for len(e.freqs) < e.cache.capacity()+1 {
		e.freqs = append(e.freqs, 0)
	}

	res := sim.StepResult{Processed: n, Remained: len(e.pending)}
	if missed != sim.NoContent {
		res.Missed = 1
	}
	return res, nil
}

// access records one request and reports whether it hit.
func (e *Emulator) access(id sim.ContentID) bool {
	hit := e.cache.hitTest(id)
	e.requests++
	e.episodeRequests++
	if hit {
		e.hits++
		e.episodeHits++
	}
	return hit
}

// Candidates returns the candidate set built by the last tick.
func (e *Emulator) Candidates() []sim.ContentID { return e.candidates }

// CacheContents returns the cache slots; empty slots hold NoContent.
func (e *Emulator) CacheContents() []sim.ContentID { return e.cache.slots }

// UpdateCache makes every content in ids resident. Uncached ids replace cached
// contents absent from ids, pairing both sides in ascending order; the rest
// take empty slots. Cached contents that are neither in ids nor displaced stay.
// NoContent entries are ignored.
func (e *Emulator) UpdateCache(ids []sim.ContentID) error {
	keep := make(map[sim.ContentID]struct{}, len(ids))
	var incoming []sim.ContentID
	for _, id := range ids {
		if id == sim.NoContent {
			continue
		}
		if _, dup := keep[id]; dup {
			continue
		}
		keep[id] = struct{}{}
		if !e.cache.contains(id) {
			incoming = append(incoming, id)
		}
	}
	var outgoing []sim.ContentID
	for _, id := range e.cache.slots {
		if id == sim.NoContent {
			continue
		}
		if _, ok := keep[id]; !ok {
			outgoing = append(outgoing, id)
		}
	}
	free := e.cache.capacity() - e.cache.size()
	if len(incoming) > len(outgoing)+free {
		return fmt.Errorf("%w: %d new contents, %d replaceable, %d free", ErrOverCapacity, len(incoming), len(outgoing), free)
	}
	slices.Sort(incoming)
	slices.Sort(outgoing)

	for i, id := range incoming {
		old := sim.NoContent
		if i < len(outgoing) {
			old = outgoing[i]
		}
		e.cache.replace(id, old)
	}
	return nil
}

// FeatureDims returns the number of configured feature columns.
func (e *Emulator) FeatureDims() int { return e.features.dims() }

// ConfigureFeatures enables the structural extractors. It may be called once.
func (e *Emulator) ConfigureFeatures(cfg sim.StructuralFeatures) error {
	if e.features != nil {
		return sim.ErrFeaturesConfigured
	}
	fs, err := newFeatureSet(cfg, e.cache.capacity(), e.trace)
	if err != nil {
		return err
	}
	e.features = fs
	return nil
}

// Features returns the row-major feature matrix for ids.
func (e *Emulator) Features(ids []sim.ContentID) ([]float32, error) {
	return e.features.rows(ids), nil
}

// CandidateFrequencies returns the per-candidate request counts of the last tick.
// In passive mode the result is zero-padded to capacity+1.
func (e *Emulator) CandidateFrequencies() []float32 { return e.freqs }

// Finished reports whether every slice has been loaded and processed.
func (e *Emulator) Finished() bool {
	return e.next >= e.trace.NumSlices() && len(e.pending) == 0
}

// MeanHitRate returns the hit rate over all requests since Reset.
func (e *Emulator) MeanHitRate() float32 {
	return float32(float64(e.hits) / (float64(e.requests) + eps))
}

// EpisodeEnd closes the current episode and returns its hit rate.
func (e *Emulator) EpisodeEnd() float32 {
	rate := float32(float64(e.episodeHits) / (float64(e.episodeRequests) + eps))
	e.episodeHitRates = append(e.episodeHitRates, rate)
	e.episodeRequests, e.episodeHits = 0, 0
	logrus.Debugf("episode %d: hit rate %.4f, mean %.4f", len(e.episodeHitRates), rate, e.MeanHitRate())
	return rate
}

// EpisodeHitRates returns the hit rate of every episode closed since Reset.
func (e *Emulator) EpisodeHitRates() []float32 {
	return slices.Clone(e.episodeHitRates)
}

// Close drops the emulator's buffers.
func (e *Emulator) Close() error {
	e.pending = nil
	e.candidates = nil
	e.freqs = nil
	return nil
}
