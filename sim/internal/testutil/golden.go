// Package testutil provides shared test infrastructure for the cache simulator.
// It holds the golden replay dataset and assertion helpers used across
// sim/ test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Golden keep strategies.
const (
	// KeepCached retains the first capacity candidate rows, i.e. the cache
	// never changes in passive mode.
	KeepCached = "keep-cached"
	// KeepNewest retains the last capacity candidate rows.
	KeepNewest = "keep-newest"
)

// GoldenDataset represents the structure of testdata/golden_hitrates.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one trace replayed with a fixed keep strategy.
type GoldenTestCase struct {
	Name          string        `json:"name"`
	Mode          string        `json:"mode"`
	Capacity      int           `json:"capacity"`
	ContentIDs    []int32       `json:"content_ids"`
	Timestamps    []int32       `json:"timestamps"`
	SliceBegin    int32         `json:"slice_begin"`
	SliceEnd      int32         `json:"slice_end"`
	SliceInterval int32         `json:"slice_interval"`
	Strategy      string        `json:"strategy"`
	Metrics       GoldenMetrics `json:"metrics"`
}

// GoldenMetrics represents the expected outcome of a golden test case.
type GoldenMetrics struct {
	// Exact match
	Slices int `json:"slices"`
	Steps  int `json:"steps"`

	MeanHitRate float64 `json:"mean_hit_rate"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "golden_hitrates.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// KeepMask builds the action mask of strategy over n candidate rows.
func KeepMask(t *testing.T, strategy string, n, capacity int) []bool {
	t.Helper()
	m := make([]bool, n)
	k := min(capacity, n)
	switch strategy {
	case KeepCached:
		for i := 0; i < k; i++ {
			m[i] = true
		}
	case KeepNewest:
		for i := n - k; i < n; i++ {
			m[i] = true
		}
	default:
		t.Fatalf("unknown golden strategy %q", strategy)
	}
	return m
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
