package sim

import "fmt"

// ContentID identifies one cacheable content. Ids cross the engine boundary as
// fixed-width 32-bit integers.
type ContentID = int32

// NoContent marks an empty cache slot or the "admit nothing" candidate.
const NoContent ContentID = -1

// Mode selects how the simulated cache reacts to requests.
type Mode int

const (
	// Active caches may reconfigure their full contents at every decision point.
	Active Mode = iota
	// Passive caches only change on admission decisions forced by a miss.
	Passive
)

func (m Mode) String() string {
	switch m {
	case Active:
		return "active"
	case Passive:
		return "passive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps "active" or "passive" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "active":
		return Active, nil
	case "passive":
		return Passive, nil
	default:
		return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
	}
}

// StepResult is the outcome of one engine tick.
type StepResult struct {
	Processed int // requests processed during the tick
	Missed    int // contents missed during the tick
	Remained  int // requests still pending in the current time slice
}

// Drained reports whether the current time slice has no pending requests.
func (r StepResult) Drained() bool {
	return r.Remained == 0
}

// Backend owns a loaded, time-sliced trace and opens engine sessions over it.
type Backend interface {
	// Load appends requests and returns the total number of requests loaded.
	Load(ids []ContentID, timestamps []int32) (int, error)

	// SliceByTime partitions [begin, end) into interval-wide ticks and returns the tick count.
	SliceByTime(begin, end, interval int32) (int, error)

	// OpenSession binds a fresh engine to capacity and mode.
	OpenSession(capacity int, mode Mode) (Engine, error)
}

// Engine is one opaque simulated cache. Implementations need not be safe for
// concurrent use; a Session serializes all calls.
//
// Slices returned by an Engine may alias engine-owned buffers that are reused by
// the next call. Callers must copy before the next call.
type Engine interface {
	Reset() error
	Tick() (StepResult, error)

	Candidates() []ContentID
	CacheContents() []ContentID
	UpdateCache(ids []ContentID) error

	FeatureDims() int
	ConfigureFeatures(cfg StructuralFeatures) error
	Features(ids []ContentID) ([]float32, error)

	CandidateFrequencies() []float32
	Finished() bool
	MeanHitRate() float32

	// Close releases the engine. It is called exactly once by the owning Session.
	Close() error
}

// EpisodeReporter is implemented by engines that keep per-episode hit statistics.
type EpisodeReporter interface {
	// EpisodeEnd closes the current episode and returns its hit rate.
	EpisodeEnd() float32
}
