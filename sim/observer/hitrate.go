// Package observer provides lifecycle observers for sim.Registry: hit-rate
// reporting per episode, game identity and timing, and Prometheus export.
package observer

import (
	"github.com/sirupsen/logrus"

	"github.com/cache-sim/cache-sim/sim"
)

// Info keys reported by HitRateObserver, before the prefix is applied.
const (
	KeyEpisode        = "episode"
	KeyEpisodeHitRate = "episode_hit_rate"
	KeyMeanHitRate    = "mean_hit_rate"
)

// HitRateObserver closes the engine's episode at every episode boundary and
// reports the episode and running hit rates.
type HitRateObserver struct {
	session *sim.Session
	prefix  string
	metrics *Metrics // optional
	test    bool
}

var _ sim.Observer = (*HitRateObserver)(nil)

// NewHitRateObserver reports on session with every Info key prefixed by
// prefix. metrics may be nil.
func NewHitRateObserver(session *sim.Session, prefix string, metrics *Metrics) *HitRateObserver {
	return &HitRateObserver{session: session, prefix: prefix, metrics: metrics}
}

// OnGameBegin reports nothing.
func (o *HitRateObserver) OnGameBegin() sim.Info { return nil }

// OnEpisodeEnd reports the episode number, the episode hit rate when the
// engine keeps one, and the mean hit rate so far.
func (o *HitRateObserver) OnEpisodeEnd(episode int) sim.Info {
	mean := o.session.MeanHitRate()
	info := sim.Info{
		o.prefix + KeyEpisode:     episode,
		o.prefix + KeyMeanHitRate: mean,
	}
	rate, ok := o.session.EpisodeEnd()
	if !ok {
		logrus.Debugf("%sepisode %d: mean hit rate %.4f", o.prefix, episode, mean)
		if o.metrics != nil {
			o.metrics.RecordMeanHitRate(phase(o.test), mean)
		}
		return info
	}
	info[o.prefix+KeyEpisodeHitRate] = rate
	logrus.Infof("%sEpisode %d: hit rate %.4f, mean %.4f", o.prefix, episode, rate, mean)
	if o.metrics != nil {
		o.metrics.RecordEpisode(phase(o.test), rate, mean)
	}
	return info
}

// OnGameEnd reports the final mean hit rate.
func (o *HitRateObserver) OnGameEnd() sim.Info {
	mean := o.session.MeanHitRate()
	if o.metrics != nil {
		o.metrics.RecordMeanHitRate(phase(o.test), mean)
	}
	return sim.Info{o.prefix + KeyMeanHitRate: mean}
}

// SwitchMode selects the phase label used for metrics.
func (o *HitRateObserver) SwitchMode(test bool) { o.test = test }
