// Package emu is an in-process reference implementation of the sim.Backend and
// sim.Engine contracts. A Trace holds the loaded requests and their time
// slices; each session opened on it is an Emulator with its own cache, hit
// counters and feature extractors.
package emu

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/cache-sim/cache-sim/sim"
)

var (
	// ErrNotSliced is returned when a session is opened before SliceByTime.
	ErrNotSliced = errors.New("emu: trace has not been sliced")

	// ErrExhausted is returned by Tick once every slice has been processed.
	ErrExhausted = errors.New("emu: trace exhausted")

	// ErrOverCapacity is returned by UpdateCache when the new contents do not fit.
	ErrOverCapacity = errors.New("emu: selected contents exceed cache capacity")
)

// Request is one timestamped content request.
type Request struct {
	ID        sim.ContentID
	Timestamp int32
}

// sliceRange is a half-open index range into Trace.requests.
type sliceRange struct {
	begin, end int
}

// Trace is the loaded request sequence partitioned into fixed-width time slices.
type Trace struct {
	requests []Request
	slices   []sliceRange

	begin, end, interval int32
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

var _ sim.Backend = (*Trace)(nil)

// Load appends requests and returns the total number loaded so far.
// Timestamps are expected in non-decreasing order.
func (t *Trace) Load(ids []sim.ContentID, timestamps []int32) (int, error) {
	if len(ids) != len(timestamps) {
		return len(t.requests), fmt.Errorf("%w: %d ids, %d timestamps", sim.ErrShapeMismatch, len(ids), len(timestamps))
	}
	for i, id := range ids {
		if id < 0 {
			return len(t.requests), fmt.Errorf("%w: negative content id %d at row %d", sim.ErrInvalidConfig, id, i)
		}
		t.requests = append(t.requests, Request{ID: id, Timestamp: timestamps[i]})
	}
	return len(t.requests), nil
}

// SliceByTime partitions [begin, end) into ceil((end-begin)/interval) slices.
// Slice k holds the requests not yet assigned whose timestamp is below
// begin + (k+1)*interval, so requests earlier than begin land in slice 0.
// Calling it again replaces the previous partition.
func (t *Trace) SliceByTime(begin, end, interval int32) (int, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("%w: slice interval must be > 0, got %d", sim.ErrInvalidConfig, interval)
	}
	if end < begin {
		return 0, fmt.Errorf("%w: slice end %d before begin %d", sim.ErrInvalidConfig, end, begin)
	}
	n := int(math.Ceil(float64(int64(end)-int64(begin)) / float64(interval)))

	t.begin, t.end, t.interval = begin, end, interval
	t.slices = make([]sliceRange, 0, n)
	ptr := 0
	next := int64(begin)
	for k := 0; k < n; k++ {
		next += int64(interval)
		start := ptr
		for ptr < len(t.requests) && int64(t.requests[ptr].Timestamp) < next {
			ptr++
		}
		t.slices = append(t.slices, sliceRange{begin: start, end: ptr})
	}
	if ptr < len(t.requests) {
		logrus.Warnf("%d requests at or after timestamp %d are outside the sliced range", len(t.requests)-ptr, end)
	}
	logrus.Debugf("sliced %d requests into %d slices of width %d", ptr, n, interval)
	return n, nil
}

// OpenSession returns a new Emulator over the sliced trace.
func (t *Trace) OpenSession(capacity int, mode sim.Mode) (sim.Engine, error) {
	if t.slices == nil {
		return nil, ErrNotSliced
	}
	return NewEmulator(t, capacity, mode)
}

// NumRequests returns the number of loaded requests.
func (t *Trace) NumRequests() int { return len(t.requests) }

// NumSlices returns the number of slices produced by the last SliceByTime.
func (t *Trace) NumSlices() int { return len(t.slices) }

// Slice returns the requests of slice k. The result aliases the trace.
func (t *Trace) Slice(k int) []Request {
	r := t.slices[k]
	return t.requests[r.begin:r.end]
}
