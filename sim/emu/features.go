package emu

import (
	"cmp"
	"math"
	"slices"

	"github.com/cache-sim/cache-sim/sim"
)

// eps keeps ratios finite on empty denominators.
const eps = 1e-6

// ogdPruneFactor bounds each OGD weight table to ogdPruneFactor*capacity contents.
const ogdPruneFactor = 100

// extractor produces one feature column from the requests processed so far.
type extractor interface {
	reset()
	// update consumes the requests processed by one tick, all from slice k.
	update(reqs []Request, k int)
	value(id sim.ContentID) float32
}

// ogdExtractor keeps normalized per-content weights updated by online gradient
// descent. Each update adds eta(n) to the weight of every requested content,
// where n counts previous updates, then drops the lightest contents beyond
// maxLen and renormalizes the weights to sum to 1.
type ogdExtractor struct {
	eta     func(n int) float32
	maxLen  int
	weights map[sim.ContentID]float32
	n       int
}

func newOGDExtractor(capacity int, eta func(n int) float32) *ogdExtractor {
	return &ogdExtractor{
		eta:     eta,
		maxLen:  ogdPruneFactor * capacity,
		weights: make(map[sim.ContentID]float32),
	}
}

// lfuEta decays as 1/(n+1), so the weights track request frequency.
func lfuEta(n int) float32 { return 1 / float32(n+1) }

// lruEta is constant, so normalization discounts older requests geometrically.
func lruEta(int) float32 { return 1 }

// ogdOptEta is the 1/sqrt(n+1) step of regret-optimal OGD.
func ogdOptEta(n int) float32 { return float32(1 / math.Sqrt(float64(n+1))) }

func (e *ogdExtractor) reset() {
	clear(e.weights)
	e.n = 0
}

func (e *ogdExtractor) update(reqs []Request, _ int) {
	eta := e.eta(e.n)
	for _, r := range reqs {
		e.weights[r.ID] += eta
	}
	e.prune()
	e.normalize()
	e.n++
}

// prune drops the lightest contents until at most maxLen remain. Among equal
// weights the larger id goes first.
func (e *ogdExtractor) prune() {
	excess := len(e.weights) - e.maxLen
	if excess <= 0 {
		return
	}
	ids := make([]sim.ContentID, 0, len(e.weights))
	for id := range e.weights {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b sim.ContentID) int {
		if c := cmp.Compare(e.weights[a], e.weights[b]); c != 0 {
			return c
		}
		return cmp.Compare(b, a)
	})
	for _, id := range ids[:excess] {
		delete(e.weights, id)
	}
}

func (e *ogdExtractor) normalize() {
	var sum float32
	for _, w := range e.weights {
		sum += w
	}
	if sum <= 0 {
		return
	}
	for id, w := range e.weights {
		e.weights[id] = w / sum
	}
}

func (e *ogdExtractor) value(id sim.ContentID) float32 { return e.weights[id] }

// swlfuExtractor is LFU over a sliding window: the share of requests for a
// content among all requests in the current slice and the window slices before it.
type swlfuExtractor struct {
	window int
	trace  *Trace

	counts  map[sim.ContentID]int
	total   int
	expired int // slices [0, expired) have left the window
}

func newSWLFUExtractor(window int, trace *Trace) *swlfuExtractor {
	return &swlfuExtractor{
		window: window,
		trace:  trace,
		counts: make(map[sim.ContentID]int),
	}
}

func (e *swlfuExtractor) reset() {
	clear(e.counts)
	e.total = 0
	e.expired = 0
}

func (e *swlfuExtractor) update(reqs []Request, k int) {
	for _, r := range reqs {
		e.counts[r.ID]++
	}
	e.total += len(reqs)
	if len(reqs) == 0 {
		return
	}
	for ; e.expired < k-e.window; e.expired++ {
		for _, r := range e.trace.Slice(e.expired) {
			e.counts[r.ID]--
			if e.counts[r.ID] == 0 {
				delete(e.counts, r.ID)
			}
		}
		e.total -= len(e.trace.Slice(e.expired))
	}
}

func (e *swlfuExtractor) value(id sim.ContentID) float32 {
	return float32(float64(e.counts[id]) / (float64(e.total) + eps))
}

// featureSet evaluates its extractors column by column.
type featureSet struct {
	extractors []extractor
	buf        []float32
}

// newFeatureSet builds one column per enabled family, in the order LFU, LRU,
// OGD-optimal, then one sliding-window LFU column per window.
func newFeatureSet(cfg sim.StructuralFeatures, capacity int, trace *Trace) (*featureSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fs := &featureSet{}
	if cfg.LFU {
		fs.extractors = append(fs.extractors, newOGDExtractor(capacity, lfuEta))
	}
	if cfg.LRU {
		fs.extractors = append(fs.extractors, newOGDExtractor(capacity, lruEta))
	}
	if cfg.OGDOpt {
		fs.extractors = append(fs.extractors, newOGDExtractor(capacity, ogdOptEta))
	}
	for _, w := range cfg.SWLFUWindows {
		fs.extractors = append(fs.extractors, newSWLFUExtractor(w, trace))
	}
	return fs, nil
}

func (fs *featureSet) dims() int {
	if fs == nil {
		return 0
	}
	return len(fs.extractors)
}

func (fs *featureSet) reset() {
	if fs == nil {
		return
	}
	for _, e := range fs.extractors {
		e.reset()
	}
}

func (fs *featureSet) update(reqs []Request, k int) {
	if fs == nil {
		return
	}
	for _, e := range fs.extractors {
		e.update(reqs, k)
	}
}

// rows returns the row-major feature matrix for ids. NoContent rows are zero.
// The result is reused by the next call.
func (fs *featureSet) rows(ids []sim.ContentID) []float32 {
	if fs == nil {
		return make([]float32, 0)
	}
	d := fs.dims()
	fs.buf = slices.Grow(fs.buf[:0], len(ids)*d)[:len(ids)*d]
	for i, id := range ids {
		for j, e := range fs.extractors {
			v := float32(0)
			if id != sim.NoContent {
				v = e.value(id)
			}
			fs.buf[i*d+j] = v
		}
	}
	return fs.buf
}
