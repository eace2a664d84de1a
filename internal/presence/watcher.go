package presence

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"rollcall/internal/session"
)

// Watcher polls the published session slot on a fixed interval and invokes a
// callback whenever the slot changes. It stands in for the source system's
// timer-driven status refresh; staleness up to one interval is acceptable.
type Watcher struct {
	sessions *session.Manager
	interval time.Duration
	log      *logrus.Logger
}

// NewWatcher creates a watcher. Production callers poll every 3–5s; an
// unset interval defaults to 5s.
func NewWatcher(sessions *session.Manager, interval time.Duration, log *logrus.Logger) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{sessions: sessions, interval: interval, log: log}
}

// Run polls until ctx is cancelled, calling onChange with the latest session
// (ok=false when no session is published) whenever the observed state
// differs from the last poll. The first poll always reports.
func (w *Watcher) Run(ctx context.Context, onChange func(s session.Session, ok bool)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var last session.Session
	var lastOK, seeded bool
	poll := func() {
		s, ok, err := w.sessions.Current(ctx)
		if err != nil {
			if w.log != nil {
				w.log.WithError(err).Warn("session poll failed")
			}
			return
		}
		if seeded && ok == lastOK && s == last {
			return
		}
		seeded, last, lastOK = true, s, ok
		onChange(s, ok)
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}
