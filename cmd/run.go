package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/cache-sim/cache-sim/sim"
	"github.com/cache-sim/cache-sim/sim/embedding"
	"github.com/cache-sim/cache-sim/sim/emu"
	"github.com/cache-sim/cache-sim/sim/observer"
	"github.com/cache-sim/cache-sim/sim/policy"
	"github.com/cache-sim/cache-sim/sim/trace"
)

// GameResult summarizes one played game.
type GameResult struct {
	RunID       string
	Phase       string
	Steps       int
	Episodes    int
	MeanHitRate float32
	WallTime    time.Duration
}

// RunReport is everything a run prints.
type RunReport struct {
	Trace    string
	Mode     sim.Mode
	Capacity int
	Requests int
	Slices   int
	Dims     int
	Games    []GameResult
}

// sliceBounds resolves the slicing range: config first, then the trace header,
// then the trace's own span.
func sliceBounds(cfg SliceConfig, t *trace.Trace) (begin, end, interval int32, err error) {
	if len(t.Records) == 0 {
		return 0, 0, 0, fmt.Errorf("%w: trace has no requests", sim.ErrInvalidConfig)
	}
	first := t.Records[0].Timestamp
	last := t.Records[len(t.Records)-1].Timestamp

	begin = firstNonZero(cfg.Begin, t.Header.Begin, first)
	end = firstNonZero(cfg.End, t.Header.End, last+1)
	interval = firstNonZero(cfg.Interval, t.Header.SliceInterval, 1)
	return begin, end, interval, nil
}

func firstNonZero(values ...int32) int32 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

// newEnv opens the environment for cfg over a sliced backend.
func newEnv(cfg RunConfig, backend sim.Backend, rng *sim.PartitionedRNG) (sim.Env, error) {
	mode, err := sim.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	structural, err := cfg.StructuralFeatures()
	if err != nil {
		return nil, err
	}
	envCfg := sim.EnvConfig{
		Capacity:        cfg.Capacity,
		Features:        sim.FeatureConfig{Structural: structural},
		MaxTicksPerStep: cfg.MaxTicksPerStep,
	}
	if cfg.Embedding.Enabled {
		envCfg.Features.Augment = true
		envCfg.Features.NewEmbedding = embedding.Factory(embedding.Config{
			LearningRate: cfg.Embedding.LearningRate,
			InitScale:    cfg.Embedding.InitScale,
		}, rng)
	}
	if mode == sim.Passive {
		return sim.NewPassiveEnv(backend, envCfg, nil)
	}
	return sim.NewActiveEnv(backend, envCfg, nil)
}

// runGames replays the configured trace with the configured agent. Metrics
// are registered on reg when it is non-nil.
func runGames(cfg RunConfig, reg prometheus.Registerer) (*RunReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t, err := trace.LoadTrace(cfg.TraceHeader, cfg.Trace)
	if err != nil {
		return nil, err
	}
	if err := t.CheckSorted(); err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Trace, err)
	}

	backend := emu.NewTrace()
	ids, timestamps := t.Columns()
	if _, err := backend.Load(ids, timestamps); err != nil {
		return nil, fmt.Errorf("loading trace: %w", err)
	}
	begin, end, interval, err := sliceBounds(cfg.Slice, t)
	if err != nil {
		return nil, err
	}
	slices, err := backend.SliceByTime(begin, end, interval)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Loaded %d requests from %s into %d slices [%d, %d) step %d",
		backend.NumRequests(), cfg.Trace, slices, begin, end, interval)

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	env, err := newEnv(cfg, backend, rng)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := env.Release(); err != nil {
			logrus.Warnf("releasing session: %v", err)
		}
	}()

	metrics := observer.NewMetrics(reg)
	hitRate := observer.NewHitRateObserver(env.Session(), "", metrics)
	game := observer.NewGameObserver(env.Session(), metrics)
	for _, obs := range []sim.Observer{hitRate, game} {
		if err := env.Registry().Register(obs, cfg.EpisodeInterval); err != nil {
			return nil, err
		}
	}

	agent := policy.NewAgent(cfg.Agent.Name, cfg.Capacity, cfg.Agent.Column, rng.ForSubsystem(sim.SubsystemPolicy))

	report := &RunReport{
		Trace:    cfg.Trace,
		Mode:     env.Session().Mode(),
		Capacity: cfg.Capacity,
		Requests: backend.NumRequests(),
		Slices:   slices,
		Dims:     env.FeatureDims(),
	}
	for g := 0; g < cfg.Games+cfg.TestGames; g++ {
		test := g >= cfg.Games
		if test != env.Registry().TestMode() {
			env.Registry().SwitchMode(test)
		}
		res, err := playGame(env, agent)
		if err != nil {
			return nil, fmt.Errorf("game %d: %w", g+1, err)
		}
		res.RunID = game.RunID()
		res.Phase = observer.PhaseTrain
		if test {
			res.Phase = observer.PhaseTest
		}
		_, res.Episodes, _ = env.Registry().Counters(hitRate)
		report.Games = append(report.Games, res)
	}
	return report, nil
}

// playGame runs one game from Reset to Close.
func playGame(env sim.Env, agent policy.Agent) (GameResult, error) {
	obs, err := env.Reset()
	if err != nil {
		return GameResult{}, err
	}
	var res GameResult
	for !env.Done() {
		tr, err := env.Step(agent.Act(obs))
		if err != nil {
			return GameResult{}, err
		}
		obs = tr.Observation
		res.Steps++
	}
	info, err := env.Close()
	if err != nil {
		return GameResult{}, err
	}
	res.MeanHitRate = env.Session().MeanHitRate()
	if s, ok := info[observer.KeyWallTimeS].(float64); ok {
		res.WallTime = time.Duration(s * float64(time.Second))
	}
	return res, nil
}

// Print writes the run report in human-readable form.
func (r *RunReport) Print(w io.Writer) {
	_, _ = fmt.Fprintln(w, "=== Cache Simulation ===")
	_, _ = fmt.Fprintf(w, "Trace                : %s\n", r.Trace)
	_, _ = fmt.Fprintf(w, "Mode                 : %s\n", r.Mode)
	_, _ = fmt.Fprintf(w, "Capacity             : %d\n", r.Capacity)
	_, _ = fmt.Fprintf(w, "Requests             : %d\n", r.Requests)
	_, _ = fmt.Fprintf(w, "Slices               : %d\n", r.Slices)
	_, _ = fmt.Fprintf(w, "Feature Dims         : %d\n", r.Dims)
	for i, g := range r.Games {
		_, _ = fmt.Fprintf(w, "\n=== Game %d (%s) ===\n", i+1, g.Phase)
		_, _ = fmt.Fprintf(w, "Run ID               : %s\n", g.RunID)
		_, _ = fmt.Fprintf(w, "Steps                : %d\n", g.Steps)
		_, _ = fmt.Fprintf(w, "Episodes             : %d\n", g.Episodes)
		_, _ = fmt.Fprintf(w, "Mean Hit Rate        : %.4f\n", g.MeanHitRate)
		_, _ = fmt.Fprintf(w, "Wall Time            : %s\n", g.WallTime.Round(time.Millisecond))
	}
}
