package monitor

import (
	"context"
	"time"

	"upkeeper/internal/logger"
)

// Source is implemented by each supervisor. Due returns the entity ids whose
// check interval has elapsed; Check probes one entity and applies the
// supervisor's recovery policy. Check must honor ctx's deadline.
type Source interface {
	Due(now time.Time) []string
	Check(ctx context.Context, id string)
}

/**
 * Loop runs one supervisor's periodic health checking
 * @property {string} name - Loop name, used in logs
 * @property {duration} tick - Wakeup period
 * @property {duration} probeTimeout - Per-entity probe budget, strictly
 *           shorter than tick so one slow probe cannot starve the others
 * @description
 * - Started at supervisor construction, stopped explicitly at teardown
 * - Each tick asks the Source which entities are due and checks them one
 *   at a time with an individual timeout
 */
type Loop struct {
	name         string
	tick         time.Duration
	probeTimeout time.Duration
	source       Source
	stopCh       chan struct{}
	doneCh       chan struct{}
}

func NewLoop(name string, tick, probeTimeout time.Duration, source Source) *Loop {
	if probeTimeout >= tick {
		probeTimeout = tick / 2
	}
	return &Loop{
		name:         name,
		tick:         tick,
		probeTimeout: probeTimeout,
		source:       source,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start launches the background loop.
func (l *Loop) Start() {
	go l.run()
}

/**
 * Stop signals the loop and joins it with a bounded wait
 * @param {duration} timeout - Maximum time to wait for the loop to drain
 * @returns {bool} False if the loop did not exit within the timeout
 */
func (l *Loop) Stop(timeout time.Duration) bool {
	close(l.stopCh)
	select {
	case <-l.doneCh:
		return true
	case <-time.After(timeout):
		logger.Warnf("Monitor loop [%s] did not stop within %v", l.name, timeout)
		return false
	}
}

func (l *Loop) run() {
	defer close(l.doneCh)
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	logger.Infof("Monitor loop [%s] started (tick: %v, probe timeout: %v)", l.name, l.tick, l.probeTimeout)
	for {
		select {
		case <-l.stopCh:
			logger.Infof("Monitor loop [%s] stopped", l.name)
			return
		case now := <-ticker.C:
			l.runTick(now)
		}
	}
}

func (l *Loop) runTick(now time.Time) {
	for _, id := range l.source.Due(now) {
		select {
		case <-l.stopCh:
			return
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.probeTimeout)
		l.check(ctx, id)
		cancel()
	}
}

func (l *Loop) check(ctx context.Context, id string) {
	// A panicking probe must not take the whole loop down
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Monitor loop [%s] probe for %s panicked: %v", l.name, id, r)
		}
	}()
	l.source.Check(ctx, id)
}
