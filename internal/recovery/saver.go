package recovery

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bugbrief/internal/domain"
	"bugbrief/internal/ports"
)

// SessionSource yields the most recent committed session copy, or nil when
// no session is active.
type SessionSource func() *domain.Session

// Saver periodically snapshots the active session. Writes are best-effort
// and fire-and-forget: a failed write is logged, never escalated, and never
// blocks the state machine or the pipeline.
type Saver struct {
	store    ports.SnapshotStore
	source   SessionSource
	interval time.Duration
	now      func() time.Time
	log      *logrus.Logger
}

func NewSaver(store ports.SnapshotStore, source SessionSource, interval time.Duration, log *logrus.Logger) *Saver {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Saver{store: store, source: source, interval: interval, now: time.Now, log: log}
}

// Run blocks until the context is cancelled, saving on every tick where a
// session is active.
func (s *Saver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SaveOnce()
		}
	}
}

// SaveOnce writes one snapshot if a session is active.
func (s *Saver) SaveOnce() {
	session := s.source()
	if session == nil {
		return
	}

	snap := domain.Snapshot{Session: *session, LastSaveTime: s.now()}
	if err := s.store.Save(snap); err != nil {
		s.log.WithError(err).WithField("session", session.ID).Warn("snapshot write failed")
	}
}
