package sim

import (
	"fmt"
	"slices"
)

// FusionAlpha weights structural features against embedding features.
const FusionAlpha float32 = 0.5

// Structural feature family names accepted by ParseFeatureNames.
const (
	FeatureLFU    = "lfu"
	FeatureLRU    = "lru"
	FeatureOGDOpt = "ogd_opt"
)

// StructuralFeatures enumerates the engine-side feature families. Each enabled
// family contributes one column per candidate, in the order LFU, LRU, OGDOpt,
// then one column per sliding window.
type StructuralFeatures struct {
	LFU          bool
	LRU          bool
	OGDOpt       bool
	SWLFUWindows []int // sliding-window LFU lengths in ticks
}

// Validate rejects non-positive window lengths.
func (f StructuralFeatures) Validate() error {
	for _, w := range f.SWLFUWindows {
		if w <= 0 {
			return fmt.Errorf("%w: sliding window length must be > 0, got %d", ErrInvalidConfig, w)
		}
	}
	return nil
}

// ParseFeatureNames turns family names into StructuralFeatures.
func ParseFeatureNames(names []string) (StructuralFeatures, error) {
	var f StructuralFeatures
	for _, name := range names {
		switch name {
		case FeatureLFU:
			f.LFU = true
		case FeatureLRU:
			f.LRU = true
		case FeatureOGDOpt:
			f.OGDOpt = true
		default:
			return StructuralFeatures{}, fmt.Errorf("%w %q", ErrUnknownFeature, name)
		}
	}
	return f, nil
}

// EmbeddingSource provides learned per-content features and accepts an online
// training signal for the same contents.
type EmbeddingSource interface {
	// Dims returns the width of one embedding row.
	Dims() int

	// Forward returns a row-major len(ids) x Dims() matrix.
	Forward(ids []ContentID) ([]float32, error)

	// Train moves the rows for ids toward target (row-major, same shape as Forward).
	Train(ids []ContentID, target []float32) error
}

// FeatureConfig selects structural families and optional embedding augmentation.
type FeatureConfig struct {
	Structural StructuralFeatures

	// Augment blends learned embeddings into the structural features.
	Augment bool

	// NewEmbedding builds the embedding source once the structural width is
	// known. Required when Augment is set.
	NewEmbedding func(dims int) (EmbeddingSource, error)
}

// FeatureFuser computes observation rows for a candidate set.
type FeatureFuser struct {
	session   *Session
	embedding EmbeddingSource // nil when augmentation is disabled
	dims      int
}

// NewFeatureFuser configures the session's structural features and, when
// requested, builds and validates the embedding source.
func NewFeatureFuser(session *Session, cfg FeatureConfig) (*FeatureFuser, error) {
	if cfg.Augment && cfg.NewEmbedding == nil {
		return nil, ErrNoEmbeddingSource
	}
	if err := session.ConfigureFeatures(cfg.Structural); err != nil {
		return nil, err
	}
	ff := &FeatureFuser{session: session, dims: session.FeatureDims()}
	if !cfg.Augment {
		return ff, nil
	}
	src, err := cfg.NewEmbedding(ff.dims)
	if err != nil {
		return nil, fmt.Errorf("building embedding source: %w", err)
	}
	if src == nil {
		return nil, ErrNoEmbeddingSource
	}
	if src.Dims() != ff.dims {
		return nil, fmt.Errorf("%w: embedding has %d dims, structural features have %d",
			ErrDimensionMismatch, src.Dims(), ff.dims)
	}
	ff.embedding = src
	return ff, nil
}

// Dims returns the observation column count.
func (ff *FeatureFuser) Dims() int { return ff.dims }

// Augmented reports whether embedding fusion is active.
func (ff *FeatureFuser) Augmented() bool { return ff.embedding != nil }

// Observe returns the observation for ids.
func (ff *FeatureFuser) Observe(ids []ContentID) (*Observation, error) {
	s, err := ff.session.StructuralFeatures(ids)
	if err != nil {
		return nil, err
	}
	if ff.embedding == nil {
		return &Observation{Candidates: slices.Clone(ids), Features: s, Dims: ff.dims}, nil
	}

	e, err := ff.embedding.Forward(ids)
	if err != nil {
		return nil, fmt.Errorf("embedding forward: %w", err)
	}
	if len(e) != len(s) {
		return nil, fmt.Errorf("%w: embedding returned %d values, want %d", ErrShapeMismatch, len(e), len(s))
	}
	// hand-crafted features supervise the embedding for the same contents
	if err := ff.embedding.Train(ids, s); err != nil {
		return nil, fmt.Errorf("embedding train: %w", err)
	}

	fused := make([]float32, len(s))
	for i := range s {
		fused[i] = FusionAlpha*s[i] + (1-FusionAlpha)*e[i]
	}
	return &Observation{Candidates: slices.Clone(ids), Features: fused, Dims: ff.dims}, nil
}

// Observation is the per-candidate feature matrix returned to the policy.
type Observation struct {
	Candidates []ContentID
	Features   []float32 // row-major, len(Candidates) x Dims
	Dims       int
}

// Rows returns the number of candidate rows.
func (o *Observation) Rows() int { return len(o.Candidates) }

// Row returns the feature row of candidate i. The slice aliases Features.
func (o *Observation) Row(i int) []float32 {
	return o.Features[i*o.Dims : (i+1)*o.Dims]
}
