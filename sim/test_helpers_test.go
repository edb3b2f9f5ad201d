package sim

import (
	"errors"

	"github.com/stretchr/testify/mock"
)

// tick scripts one engine tick: the step counts it reports and the candidate
// state the engine exposes afterwards.
type tick struct {
	res   StepResult
	cands []ContentID
	freqs []float32
}

// scriptedEngine replays a fixed list of ticks. It reports finished once every
// scripted tick has run, unless stall is set, in which case it keeps returning
// empty ticks forever.
type scriptedEngine struct {
	initial []ContentID
	script  []tick
	stall   bool
	dims    int

	pos        int
	configured bool
	cands      []ContentID
	freqs      []float32
	updates    [][]ContentID
	resets     int
	closes     int
	hitRate    float32
}

var _ Engine = (*scriptedEngine)(nil)

func (e *scriptedEngine) Reset() error {
	e.resets++
	e.pos = 0
	e.cands = e.initial
	e.freqs = make([]float32, len(e.initial))
	e.updates = nil
	return nil
}

func (e *scriptedEngine) Tick() (StepResult, error) {
	if e.pos >= len(e.script) {
		if e.stall {
			return StepResult{}, nil
		}
		return StepResult{}, errors.New("script exhausted")
	}
	t := e.script[e.pos]
	e.pos++
	if t.cands != nil {
		e.cands = t.cands
	}
	e.freqs = t.freqs
	return t.res, nil
}

func (e *scriptedEngine) Candidates() []ContentID    { return e.cands }
func (e *scriptedEngine) CacheContents() []ContentID { return e.initial }

func (e *scriptedEngine) UpdateCache(ids []ContentID) error {
	e.updates = append(e.updates, ids)
	return nil
}

func (e *scriptedEngine) FeatureDims() int { return e.dims }

func (e *scriptedEngine) ConfigureFeatures(cfg StructuralFeatures) error {
	if e.configured {
		return ErrFeaturesConfigured
	}
	e.configured = true
	return nil
}

// Features fills row i column j with id*10 + j.
func (e *scriptedEngine) Features(ids []ContentID) ([]float32, error) {
	out := make([]float32, 0, len(ids)*e.dims)
	for _, id := range ids {
		for j := 0; j < e.dims; j++ {
			out = append(out, float32(id)*10+float32(j))
		}
	}
	return out, nil
}

func (e *scriptedEngine) CandidateFrequencies() []float32 { return e.freqs }
func (e *scriptedEngine) Finished() bool                  { return !e.stall && e.pos >= len(e.script) }
func (e *scriptedEngine) MeanHitRate() float32            { return e.hitRate }

func (e *scriptedEngine) Close() error {
	e.closes++
	return nil
}

// fakeBackend hands out one prepared engine.
type fakeBackend struct {
	engine   Engine
	capacity int
	mode     Mode
}

func (b *fakeBackend) Load(ids []ContentID, _ []int32) (int, error) { return len(ids), nil }
func (b *fakeBackend) SliceByTime(begin, end, interval int32) (int, error) {
	return int((end - begin) / interval), nil
}

func (b *fakeBackend) OpenSession(capacity int, mode Mode) (Engine, error) {
	b.capacity = capacity
	b.mode = mode
	return b.engine, nil
}

// mockEngine is a testify mock of Engine for interaction-level session tests.
type mockEngine struct {
	mock.Mock
}

var _ Engine = (*mockEngine)(nil)

func (m *mockEngine) Reset() error { return m.Called().Error(0) }

func (m *mockEngine) Tick() (StepResult, error) {
	args := m.Called()
	return args.Get(0).(StepResult), args.Error(1)
}

func (m *mockEngine) Candidates() []ContentID {
	return m.Called().Get(0).([]ContentID)
}

func (m *mockEngine) CacheContents() []ContentID {
	return m.Called().Get(0).([]ContentID)
}

func (m *mockEngine) UpdateCache(ids []ContentID) error { return m.Called(ids).Error(0) }
func (m *mockEngine) FeatureDims() int                  { return m.Called().Int(0) }

func (m *mockEngine) ConfigureFeatures(cfg StructuralFeatures) error {
	return m.Called(cfg).Error(0)
}

func (m *mockEngine) Features(ids []ContentID) ([]float32, error) {
	args := m.Called(ids)
	return args.Get(0).([]float32), args.Error(1)
}

func (m *mockEngine) CandidateFrequencies() []float32 {
	return m.Called().Get(0).([]float32)
}

func (m *mockEngine) Finished() bool { return m.Called().Bool(0) }

func (m *mockEngine) MeanHitRate() float32 {
	return m.Called().Get(0).(float32)
}

func (m *mockEngine) Close() error { return m.Called().Error(0) }

// countingObserver counts lifecycle events and returns scripted reports.
type countingObserver struct {
	begins, ends, episodes, resets int
	test                           bool
	lastEpisode                    int

	beginInfo   Info
	episodeInfo func(episode int) Info
	endInfo     Info
}

func (o *countingObserver) OnGameBegin() Info {
	o.begins++
	return o.beginInfo
}

func (o *countingObserver) OnEpisodeEnd(episode int) Info {
	o.episodes++
	o.lastEpisode = episode
	if o.episodeInfo == nil {
		return nil
	}
	return o.episodeInfo(episode)
}

func (o *countingObserver) OnGameEnd() Info {
	o.ends++
	return o.endInfo
}

func (o *countingObserver) SwitchMode(test bool) { o.test = test }
func (o *countingObserver) Reset()               { o.resets++ }

// stubEmbedding returns constant rows and records training calls.
type stubEmbedding struct {
	dims     int
	value    float32
	trainIDs [][]ContentID
	targets  [][]float32
}

func (s *stubEmbedding) Dims() int { return s.dims }

func (s *stubEmbedding) Forward(ids []ContentID) ([]float32, error) {
	out := make([]float32, len(ids)*s.dims)
	for i := range out {
		out[i] = s.value
	}
	return out, nil
}

func (s *stubEmbedding) Train(ids []ContentID, target []float32) error {
	s.trainIDs = append(s.trainIDs, ids)
	s.targets = append(s.targets, target)
	return nil
}

func ids(v ...ContentID) []ContentID { return v }

func freqs(v ...float32) []float32 { return v }
