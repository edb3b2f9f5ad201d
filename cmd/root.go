package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cache-sim/cache-sim/sim/trace"
)

var (
	logLevel    string // Log verbosity level
	configPath  string // Run configuration file
	metricsAddr string // Prometheus listen address, empty disables the endpoint

	// CLI overrides for RunConfig fields
	tracePath       string   // Trace CSV
	traceHeader     string   // Trace YAML header
	mode            string   // active or passive
	capacity        int      // Cache slots
	sliceBegin      int32    // First slicing timestamp
	sliceEnd        int32    // Exclusive slicing end
	sliceInterval   int32    // Tick width in timestamp units
	features        []string // Structural feature families
	swlfuWindows    []int    // Sliding-window LFU lengths
	useEmbedding    bool     // Blend learned embeddings into observations
	learningRate    float32  // Embedding SGD step
	agentName       string   // Baseline policy
	agentColumn     int      // Feature column scored by top-k
	episodeInterval int      // Ticks per episode
	maxTicksPerStep int      // Stall guard
	games           int      // Training games
	testGames       int      // Evaluation games
	seed            int64    // Master seed

	// inspect flags
	topContents int // Most popular contents listed by inspect
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "cache-sim",
	Short: "Trace-driven cache simulator exposing admission and eviction as a decision process",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd replays a trace with a baseline agent
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a request trace through the cache with a baseline agent",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := DefaultRunConfig()
		if configPath != "" {
			var err error
			cfg, err = LoadRunConfig(configPath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		applyRunFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("%v", err)
		}

		var reg prometheus.Registerer
		if metricsAddr != "" {
			registry := prometheus.NewRegistry()
			reg = registry
			srv := serveMetrics(metricsAddr, registry)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()
		}

		startTime := time.Now()
		report, err := runGames(cfg, reg)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		report.Print(cmd.OutOrStdout())
		logrus.Infof("Simulation complete in %s.", time.Since(startTime).Round(time.Millisecond))
	},
}

// inspectCmd summarizes a trace without simulating
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize a request trace",
	Run: func(cmd *cobra.Command, args []string) {
		if tracePath == "" {
			logrus.Fatalf("Trace path not provided. Use --trace.")
		}
		t, err := trace.LoadTrace(traceHeader, tracePath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		printSummary(cmd, t.Header, trace.Summarize(t, topContents))
	},
}

// applyRunFlags copies explicitly set flags over cfg.
func applyRunFlags(cmd *cobra.Command, cfg *RunConfig) {
	flags := cmd.Flags()
	if flags.Changed("trace") {
		cfg.Trace = tracePath
	}
	if flags.Changed("trace-header") {
		cfg.TraceHeader = traceHeader
	}
	if flags.Changed("mode") {
		cfg.Mode = mode
	}
	if flags.Changed("capacity") {
		cfg.Capacity = capacity
	}
	if flags.Changed("slice-begin") {
		cfg.Slice.Begin = sliceBegin
	}
	if flags.Changed("slice-end") {
		cfg.Slice.End = sliceEnd
	}
	if flags.Changed("slice-interval") {
		cfg.Slice.Interval = sliceInterval
	}
	if flags.Changed("features") {
		cfg.Features = features
	}
	if flags.Changed("swlfu-windows") {
		cfg.SWLFUWindows = swlfuWindows
	}
	if flags.Changed("embedding") {
		cfg.Embedding.Enabled = useEmbedding
	}
	if flags.Changed("learning-rate") {
		cfg.Embedding.LearningRate = learningRate
	}
	if flags.Changed("agent") {
		cfg.Agent.Name = agentName
	}
	if flags.Changed("agent-column") {
		cfg.Agent.Column = agentColumn
	}
	if flags.Changed("episode-interval") {
		cfg.EpisodeInterval = episodeInterval
	}
	if flags.Changed("max-ticks-per-step") {
		cfg.MaxTicksPerStep = maxTicksPerStep
	}
	if flags.Changed("games") {
		cfg.Games = games
	}
	if flags.Changed("test-games") {
		cfg.TestGames = testGames
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
}

// serveMetrics exposes registry on addr/metrics until the returned server is shut down.
func serveMetrics(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server: %v", err)
		}
	}()
	logrus.Infof("Serving metrics on %s/metrics", addr)
	return srv
}

func printSummary(cmd *cobra.Command, h trace.Header, s *trace.TraceSummary) {
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(w, "=== Trace Summary ===")
	if h.Name != "" {
		_, _ = fmt.Fprintf(w, "Name                 : %s\n", h.Name)
	}
	_, _ = fmt.Fprintf(w, "Requests             : %d\n", s.Requests)
	_, _ = fmt.Fprintf(w, "Unique Contents      : %d\n", s.UniqueContents)
	_, _ = fmt.Fprintf(w, "Time Span            : [%d, %d]\n", s.FirstTimestamp, s.LastTimestamp)
	_, _ = fmt.Fprintf(w, "Sorted               : %v\n", s.Sorted)
	_, _ = fmt.Fprintf(w, "Top Content Share    : %.4f\n", s.MaxSingleContentShare)
	for i, c := range s.TopContents {
		_, _ = fmt.Fprintf(w, "  #%-3d content %-10d %d requests\n", i+1, c.ContentID, c.Requests)
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&tracePath, "trace", "", "Path to the content_id,timestamp CSV trace")
	rootCmd.PersistentFlags().StringVar(&traceHeader, "trace-header", "", "Path to the trace's YAML header")

	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML run configuration")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	runCmd.Flags().StringVar(&mode, "mode", "passive", "Operating mode (active, passive)")
	runCmd.Flags().IntVar(&capacity, "capacity", 100, "Number of cache slots")
	runCmd.Flags().Int32Var(&sliceBegin, "slice-begin", 0, "First timestamp of the slicing range (0 = header or first request)")
	runCmd.Flags().Int32Var(&sliceEnd, "slice-end", 0, "Exclusive end of the slicing range (0 = header or last request + 1)")
	runCmd.Flags().Int32Var(&sliceInterval, "slice-interval", 0, "Tick width in timestamp units (0 = header or 1)")
	runCmd.Flags().StringSliceVar(&features, "features", []string{"lfu"}, "Structural feature families (lfu, lru, ogd_opt)")
	runCmd.Flags().IntSliceVar(&swlfuWindows, "swlfu-windows", nil, "Sliding-window LFU lengths in ticks")
	runCmd.Flags().BoolVar(&useEmbedding, "embedding", false, "Blend a learned embedding into the observation")
	runCmd.Flags().Float32Var(&learningRate, "learning-rate", 0, "Embedding SGD step (0 = default)")
	runCmd.Flags().StringVar(&agentName, "agent", "top-k", "Baseline agent (top-k, random)")
	runCmd.Flags().IntVar(&agentColumn, "agent-column", 0, "Feature column scored by the top-k agent")
	runCmd.Flags().IntVar(&episodeInterval, "episode-interval", 100, "Ticks per episode")
	runCmd.Flags().IntVar(&maxTicksPerStep, "max-ticks-per-step", 0, "Ticks a step may run without a decision point (0 = unbounded default)")
	runCmd.Flags().IntVar(&games, "games", 1, "Number of training games")
	runCmd.Flags().IntVar(&testGames, "test-games", 0, "Number of evaluation games played after training")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for embedding initialization and the random agent")

	inspectCmd.Flags().IntVar(&topContents, "top", 10, "Number of most requested contents to list")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
}
