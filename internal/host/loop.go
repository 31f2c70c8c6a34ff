package host

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Ticker is the part of the orchestrator the loop drives.
type Ticker interface {
	Tick(ctx context.Context, tick int)
}

// Loop calls Tick on a fixed interval, standing in for a game server's main
// loop. Ticks run on the Run goroutine one after another; a slow tick delays
// the next one instead of overlapping it.
type Loop struct {
	ticker   Ticker
	host     *Host
	pending  func() int
	interval time.Duration
	logger   *logrus.Entry
}

// NewLoop creates a Loop ticking t every interval. pending, if non-nil,
// is sampled into the status store after every tick.
func NewLoop(t Ticker, h *Host, interval time.Duration, pending func() int, logger *logrus.Entry) *Loop {
	return &Loop{
		ticker:   t,
		host:     h,
		pending:  pending,
		interval: interval,
		logger:   logger,
	}
}

// Run ticks until ctx is canceled. The first tick, tick 0, runs immediately.
func (l *Loop) Run(ctx context.Context) {
	t := time.NewTicker(l.interval)
	defer t.Stop()

	l.logger.WithField("interval", l.interval).Info("Starting tick loop")
	for n := 0; ; n++ {
		if ctx.Err() != nil {
			l.logger.WithField("ticks", n).Info("Tick loop stopped")
			return
		}
		l.ticker.Tick(ctx, n)
		l.sample()

		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
}

func (l *Loop) sample() {
	pending := 0
	if l.pending != nil {
		pending = l.pending()
	}
	l.host.store.setRuntime(l.host.Packs(), l.host.hub.Len(), pending)
}
