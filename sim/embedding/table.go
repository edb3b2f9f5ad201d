// Package embedding provides an online per-content embedding table usable as
// a sim.EmbeddingSource.
package embedding

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/cache-sim/cache-sim/sim"
)

// DefaultLearningRate is the SGD step used when Config.LearningRate is zero.
const DefaultLearningRate = 0.05

// DefaultInitScale bounds the uniform initialization of new rows.
const DefaultInitScale = 0.1

// Config controls table construction.
type Config struct {
	LearningRate float32 // SGD step (0 = DefaultLearningRate)
	InitScale    float32 // rows start uniform in [-InitScale, InitScale) (0 = DefaultInitScale)
}

// Table maps each content to a learned row of fixed width. Rows are created
// on first use. NoContent always maps to a zero row and is never trained.
//
// Not safe for concurrent use.
type Table struct {
	dims  int
	lr    float32
	scale float32
	rng   *rand.Rand
	rows  map[sim.ContentID][]float32
}

var _ sim.EmbeddingSource = (*Table)(nil)

// NewTable returns an empty table of the given width drawing initial values from rng.
func NewTable(dims int, cfg Config, rng *rand.Rand) (*Table, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: embedding dims must be > 0, got %d", sim.ErrInvalidConfig, dims)
	}
	if cfg.LearningRate < 0 || cfg.InitScale < 0 {
		return nil, fmt.Errorf("%w: learning rate and init scale must be >= 0", sim.ErrInvalidConfig)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: embedding table needs an rng", sim.ErrInvalidConfig)
	}
	t := &Table{
		dims:  dims,
		lr:    cfg.LearningRate,
		scale: cfg.InitScale,
		rng:   rng,
		rows:  make(map[sim.ContentID][]float32),
	}
	if t.lr == 0 {
		t.lr = DefaultLearningRate
	}
	if t.scale == 0 {
		t.scale = DefaultInitScale
	}
	logrus.Debugf("embedding table: dims=%d lr=%g", dims, t.lr)
	return t, nil
}

// Factory adapts NewTable to sim.FeatureConfig.NewEmbedding. Tables draw from
// the embedding subsystem of rng.
func Factory(cfg Config, rng *sim.PartitionedRNG) func(dims int) (sim.EmbeddingSource, error) {
	return func(dims int) (sim.EmbeddingSource, error) {
		return NewTable(dims, cfg, rng.ForSubsystem(sim.SubsystemEmbedding))
	}
}

// Dims returns the row width.
func (t *Table) Dims() int { return t.dims }

// Len returns the number of contents with a row.
func (t *Table) Len() int { return len(t.rows) }

// Forward returns the rows for ids, creating missing ones.
func (t *Table) Forward(ids []sim.ContentID) ([]float32, error) {
	out := make([]float32, len(ids)*t.dims)
	for i, id := range ids {
		if id == sim.NoContent {
			continue
		}
		copy(out[i*t.dims:], t.row(id))
	}
	return out, nil
}

// Train takes one SGD step per row on the squared error 0.5*|row - target|^2.
func (t *Table) Train(ids []sim.ContentID, target []float32) error {
	if len(target) != len(ids)*t.dims {
		return fmt.Errorf("%w: %d target values for %d ids of width %d",
			sim.ErrShapeMismatch, len(target), len(ids), t.dims)
	}
	for i, id := range ids {
		if id == sim.NoContent {
			continue
		}
		row := t.row(id)
		want := target[i*t.dims : (i+1)*t.dims]
		for j := range row {
			row[j] += t.lr * (want[j] - row[j])
		}
	}
	return nil
}

func (t *Table) row(id sim.ContentID) []float32 {
	if r, ok := t.rows[id]; ok {
		return r
	}
	r := make([]float32, t.dims)
	for j := range r {
		r[j] = (2*t.rng.Float32() - 1) * t.scale
	}
	t.rows[id] = r
	return r
}
