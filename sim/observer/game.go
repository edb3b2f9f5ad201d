package observer

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cache-sim/cache-sim/sim"
)

// Info keys reported by GameObserver.
const (
	KeyRunID     = "run_id"
	KeyWallTimeS = "wall_time_s"
)

// GameObserver tags every game with a fresh run id and reports its wall-clock
// duration and final hit rate.
type GameObserver struct {
	sim.NopObserver

	session *sim.Session
	metrics *Metrics // optional
	now     func() time.Time

	runID   string
	started time.Time
}

var _ sim.Observer = (*GameObserver)(nil)

// NewGameObserver reports on session. metrics may be nil.
func NewGameObserver(session *sim.Session, metrics *Metrics) *GameObserver {
	return &GameObserver{session: session, metrics: metrics, now: time.Now}
}

// RunID returns the id of the current or most recent game.
func (o *GameObserver) RunID() string { return o.runID }

// OnGameBegin assigns a new run id.
func (o *GameObserver) OnGameBegin() sim.Info {
	o.runID = uuid.NewString()
	o.started = o.now()
	logrus.Infof("game %s started", o.runID)
	return sim.Info{KeyRunID: o.runID}
}

// OnGameEnd reports the run id, elapsed seconds and mean hit rate.
func (o *GameObserver) OnGameEnd() sim.Info {
	elapsed := o.now().Sub(o.started)
	mean := o.session.MeanHitRate()
	logrus.Infof("game %s finished in %s, mean hit rate %.4f", o.runID, elapsed.Round(time.Millisecond), mean)
	if o.metrics != nil {
		o.metrics.RecordGame(elapsed)
	}
	return sim.Info{
		KeyRunID:       o.runID,
		KeyWallTimeS:   elapsed.Seconds(),
		KeyMeanHitRate: mean,
	}
}
