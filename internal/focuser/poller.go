package focuser

import (
	"context"
	"time"

	"github.com/muurk/dreamfocus/internal/logging"
	"go.uber.org/zap"
)

// DefaultPollInterval matches the original driver's 500 ms status timer.
const DefaultPollInterval = 500 * time.Millisecond

// Poller drives the session's poll tick on a fixed interval. It owns no
// state of its own: each tick runs Session.PollOnce, which refreshes the
// device state and notifies observers with one snapshot.
type Poller struct {
	session  *Session
	interval time.Duration
}

// NewPoller creates a poller for the session. A non-positive interval
// selects DefaultPollInterval.
func NewPoller(session *Session, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{session: session, interval: interval}
}

// Interval returns the configured tick interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run polls until the context is cancelled. Ticks never overlap: each
// tick completes (or fails) before the next one is considered, and a
// failed tick surfaces as a degraded snapshot rather than an error;
// the next tick is the retry.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	logging.Debug("Poll loop started", zap.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			logging.Debug("Poll loop stopped")
			return
		case <-ticker.C:
			p.session.PollOnce()
		}
	}
}
