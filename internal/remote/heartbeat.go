package remote

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ossm-project/ossm-core/internal/logger"
)

// HeartbeatWatchdog periodically checks the age of the most recent remote
// heartbeat reported by its source function (cmd/ossm-core passes the
// binary-protocol pairing registry) and forces motion disabled once it goes
// stale. It runs on a
// github.com/robfig/cron/v3 schedule outside the hard-real-time tick.
type HeartbeatWatchdog struct {
	cron     *cron.Cron
	maxAge   time.Duration
	source   func() time.Time
	disable  func()
	lastTrip time.Time
}

// NewHeartbeatWatchdog constructs a watchdog that checks source() every
// second and calls disable() the first time it goes stale. source should
// return the most recent known heartbeat timestamp (e.g.
// PairingRegistry.NewestHeartbeat); disable should force
// motionstate.State.SetEnabled(false).
func NewHeartbeatWatchdog(maxAge time.Duration, source func() time.Time, disable func()) *HeartbeatWatchdog {
	return &HeartbeatWatchdog{
		cron:    cron.New(),
		maxAge:  maxAge,
		source:  source,
		disable: disable,
	}
}

// Start schedules the watchdog's periodic check and starts the cron
// scheduler.
func (w *HeartbeatWatchdog) Start() error {
	if _, err := w.cron.AddFunc("@every 1s", w.check); err != nil {
		return err
	}
	w.cron.Start()
	return nil
}

// Stop halts the scheduler.
func (w *HeartbeatWatchdog) Stop() {
	w.cron.Stop()
}

func (w *HeartbeatWatchdog) check() {
	last := w.source()
	if last.IsZero() {
		return
	}
	if time.Since(last) <= w.maxAge {
		return
	}
	if !w.lastTrip.IsZero() && w.lastTrip.Equal(last) {
		return
	}
	w.lastTrip = last
	logger.Get().Warn("remote heartbeat lost, forcing motion disabled",
		zap.Duration("max_age", w.maxAge), zap.Time("last_heartbeat", last))
	w.disable()
}
