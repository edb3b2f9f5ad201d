package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Phase label values.
const (
	PhaseTrain = "train"
	PhaseTest  = "test"
)

// Metrics holds the Prometheus collectors fed by the observers.
type Metrics struct {
	episodes       *prometheus.CounterVec
	episodeHitRate *prometheus.GaugeVec
	meanHitRate    *prometheus.GaugeVec
	hitRateSpread  *prometheus.HistogramVec
	games          prometheus.Counter
	gameDuration   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		episodes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachesim_episodes_total",
				Help: "Total number of completed episodes",
			},
			[]string{"phase"},
		),

		episodeHitRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cachesim_episode_hit_rate",
				Help: "Hit rate of the most recent episode (0.0-1.0)",
			},
			[]string{"phase"},
		),

		meanHitRate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cachesim_mean_hit_rate",
				Help: "Hit rate over all requests of the current game (0.0-1.0)",
			},
			[]string{"phase"},
		),

		hitRateSpread: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cachesim_episode_hit_rate_distribution",
				Help:    "Distribution of per-episode hit rates",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"phase"},
		),

		games: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cachesim_games_total",
				Help: "Total number of finished games",
			},
		),

		gameDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cachesim_game_duration_seconds",
				Help:    "Wall-clock duration of a game in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~44min
			},
		),
	}
}

// RecordEpisode records one closed episode.
func (m *Metrics) RecordEpisode(phase string, hitRate, mean float32) {
	m.episodes.WithLabelValues(phase).Inc()
	m.episodeHitRate.WithLabelValues(phase).Set(float64(hitRate))
	m.hitRateSpread.WithLabelValues(phase).Observe(float64(hitRate))
	m.meanHitRate.WithLabelValues(phase).Set(float64(mean))
}

// RecordMeanHitRate updates the running hit rate without closing an episode.
func (m *Metrics) RecordMeanHitRate(phase string, mean float32) {
	m.meanHitRate.WithLabelValues(phase).Set(float64(mean))
}

// RecordGame records one finished game.
func (m *Metrics) RecordGame(d time.Duration) {
	m.games.Inc()
	m.gameDuration.Observe(d.Seconds())
}

func phase(test bool) string {
	if test {
		return PhaseTest
	}
	return PhaseTrain
}
