package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Info is the key/value side channel returned with every transition.
type Info map[string]any

// merge copies src into i. Keys already in i are overwritten.
func (i Info) merge(src Info) {
	for k, v := range src {
		i[k] = v
	}
}

// Observer receives game lifecycle events. Any method may return a nil Info.
//
// Tick and episode counting is done by the Registry on the observer's behalf;
// OnEpisodeEnd receives the 1-based episode number that just ended.
type Observer interface {
	OnGameBegin() Info
	OnEpisodeEnd(episode int) Info
	OnGameEnd() Info
	SwitchMode(test bool)
}

// Resetter is implemented by observers that keep their own per-game state.
type Resetter interface {
	Reset()
}

// NopObserver implements Observer with no-ops. Embed it to override only the
// events of interest.
type NopObserver struct{}

func (NopObserver) OnGameBegin() Info     { return nil }
func (NopObserver) OnEpisodeEnd(int) Info { return nil }
func (NopObserver) OnGameEnd() Info       { return nil }
func (NopObserver) SwitchMode(bool)       {}

type observerEntry struct {
	obs      Observer
	interval int
	ticks    int
	episodes int
}

// Registry fans lifecycle events out to observers in registration order and
// merges their reports. A later observer wins on key collisions, so observers
// that must all be preserved need disjoint key namespaces.
//
// Registry is not safe for concurrent use; it is driven by the environment's
// control loop only.
type Registry struct {
	entries []*observerEntry
	test    bool
}

// NewRegistry creates an empty Registry in train mode.
func NewRegistry() *Registry {
	return &Registry{entries: make([]*observerEntry, 0)}
}

// Register appends obs with an episode boundary every interval ticks.
// Observers must be registered before the game they should see begins.
func (r *Registry) Register(obs Observer, interval int) error {
	if obs == nil {
		return fmt.Errorf("%w: nil observer", ErrInvalidConfig)
	}
	if interval <= 0 {
		return fmt.Errorf("%w: observer interval must be > 0, got %d", ErrInvalidConfig, interval)
	}
	for _, e := range r.entries {
		if e.obs == obs {
			return fmt.Errorf("%w: observer %T registered twice", ErrInvalidConfig, obs)
		}
	}
	obs.SwitchMode(r.test)
	r.entries = append(r.entries, &observerEntry{obs: obs, interval: interval})
	return nil
}

// Len returns the number of registered observers.
func (r *Registry) Len() int { return len(r.entries) }

// Counters returns the tick and episode counters kept for obs.
func (r *Registry) Counters(obs Observer) (ticks, episodes int, ok bool) {
	for _, e := range r.entries {
		if e.obs == obs {
			return e.ticks, e.episodes, true
		}
	}
	return 0, 0, false
}

// TestMode reports the last mode broadcast by SwitchMode.
func (r *Registry) TestMode() bool { return r.test }

// OnGameBegin notifies all observers that a game started.
func (r *Registry) OnGameBegin() Info {
	info := Info{}
	for _, e := range r.entries {
		info.merge(e.obs.OnGameBegin())
	}
	return info
}

// OnStepEnd counts one tick for every observer and fires episode ends where
// an observer's interval divides its tick count.
func (r *Registry) OnStepEnd() Info {
	info := Info{}
	for _, e := range r.entries {
		e.ticks++
		if e.ticks%e.interval != 0 {
			continue
		}
		e.episodes++
		info.merge(e.obs.OnEpisodeEnd(e.episodes))
	}
	return info
}

// OnGameEnd notifies all observers that the game ended.
func (r *Registry) OnGameEnd() Info {
	info := Info{}
	for _, e := range r.entries {
		info.merge(e.obs.OnGameEnd())
	}
	return info
}

// SwitchMode flips every observer between train and test.
func (r *Registry) SwitchMode(test bool) {
	r.test = test
	for _, e := range r.entries {
		e.obs.SwitchMode(test)
	}
	logrus.Infof("Switch to %s mode.", modeName(test))
}

// Reset zeroes every observer's tick and episode counters.
func (r *Registry) Reset() {
	for _, e := range r.entries {
		e.ticks = 0
		e.episodes = 0
		if rs, ok := e.obs.(Resetter); ok {
			rs.Reset()
		}
	}
}

func modeName(test bool) string {
	if test {
		return "test"
	}
	return "train"
}
