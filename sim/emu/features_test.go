package emu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cache-sim/cache-sim/sim"
)

func reqs(ids ...sim.ContentID) []Request {
	out := make([]Request, len(ids))
	for i, id := range ids {
		out[i] = Request{ID: id}
	}
	return out
}

func TestOGDExtractor_LFUWeightsNormalize(t *testing.T) {
	// GIVEN an LFU-schedule extractor
	e := newOGDExtractor(2, lfuEta)

	// WHEN two updates arrive with step sizes 1 and 1/2
	e.update(reqs(1, 2, 1), 0)
	assert.InDelta(t, 2.0/3, e.value(1), 1e-6)
	assert.InDelta(t, 1.0/3, e.value(2), 1e-6)

	e.update(reqs(3, 3), 1)

	// THEN the weights are renormalized to sum to 1
	assert.InDelta(t, 1.0/3, e.value(1), 1e-6)
	assert.InDelta(t, 1.0/6, e.value(2), 1e-6)
	assert.InDelta(t, 1.0/2, e.value(3), 1e-6)
	assert.Zero(t, e.value(9))
}

func TestOGDExtractor_StepSchedules(t *testing.T) {
	assert.InDelta(t, 1.0/3, lfuEta(2), 1e-6)
	assert.InDelta(t, 1.0, lruEta(2), 1e-6)
	assert.InDelta(t, 0.5, ogdOptEta(3), 1e-6)
}

func TestOGDExtractor_LRUFavorsRecent(t *testing.T) {
	e := newOGDExtractor(2, lruEta)
	e.update(reqs(1), 0)
	e.update(reqs(2), 1)
	e.update(reqs(3), 2)

	assert.InDelta(t, 0.5, e.value(3), 1e-6)
	assert.Greater(t, e.value(3), e.value(2))
	assert.Greater(t, e.value(3), e.value(1))
}

func TestOGDExtractor_PrunesLightest(t *testing.T) {
	// GIVEN a table bounded to two contents
	e := newOGDExtractor(1, lruEta)
	e.maxLen = 2

	// WHEN three contents are seen, two of them once
	e.update(reqs(1, 2, 2, 3), 0)

	// THEN the larger of the two lightest is dropped
	assert.Len(t, e.weights, 2)
	assert.Zero(t, e.value(3))
	assert.InDelta(t, 1.0/3, e.value(1), 1e-6)
	assert.InDelta(t, 2.0/3, e.value(2), 1e-6)
}

func TestOGDExtractor_EmptyUpdateKeepsWeights(t *testing.T) {
	e := newOGDExtractor(2, ogdOptEta)
	e.update(reqs(1, 2), 0)
	e.update(nil, 1)
	assert.InDelta(t, 0.5, e.value(1), 1e-6)
	assert.Equal(t, 2, e.n)
}

func TestSWLFUExtractor_WindowExpires(t *testing.T) {
	// GIVEN the test trace in slices (1 2 1) (3 3) (3 4) and a one-slice window
	tr := newTestTrace(t)
	_, err := tr.SliceByTime(0, 6, 2)
	require.NoError(t, err)
	e := newSWLFUExtractor(1, tr)

	e.update(tr.Slice(0), 0)
	assert.InDelta(t, 2.0/3, e.value(1), 1e-5)

	// WHEN slice 1 arrives the window still covers slice 0
	e.update(tr.Slice(1), 1)
	assert.InDelta(t, 0.4, e.value(3), 1e-5)
	assert.InDelta(t, 0.4, e.value(1), 1e-5)

	// WHEN slice 2 arrives slice 0 leaves the window
	e.update(tr.Slice(2), 2)
	assert.InDelta(t, 0.75, e.value(3), 1e-5)
	assert.Zero(t, e.value(1))
	assert.Equal(t, 4, e.total)
}

func TestFeatureSet_ColumnOrderAndZeroRows(t *testing.T) {
	tr := newTestTrace(t)
	_, err := tr.SliceByTime(0, 6, 2)
	require.NoError(t, err)
	fs, err := newFeatureSet(sim.StructuralFeatures{LFU: true, SWLFUWindows: []int{1}}, 2, tr)
	require.NoError(t, err)
	require.Equal(t, 2, fs.dims())

	fs.update(tr.Slice(0), 0)
	rows := fs.rows([]sim.ContentID{1, 2, sim.NoContent, 9})

	want := []float32{2.0 / 3, 2.0 / 3, 1.0 / 3, 1.0 / 3, 0, 0, 0, 0}
	require.Len(t, rows, len(want))
	for i := range want {
		assert.InDelta(t, want[i], rows[i], 1e-5, "index %d", i)
	}
}

func TestFeatureSet_RejectsBadWindow(t *testing.T) {
	_, err := newFeatureSet(sim.StructuralFeatures{SWLFUWindows: []int{0}}, 2, NewTrace())
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}

func TestFeatureSet_NilIsEmpty(t *testing.T) {
	var fs *featureSet
	assert.Equal(t, 0, fs.dims())
	assert.Empty(t, fs.rows([]sim.ContentID{1, 2}))
}
