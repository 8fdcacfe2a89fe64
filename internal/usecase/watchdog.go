package usecase

import (
	"time"

	"bugbrief/internal/domain"
)

// Watchdogs are cancellable deferred callbacks keyed by state-entry epoch.
// Every legal transition bumps the epoch, so a timer that fires late finds
// its epoch stale and does nothing. One timer is armed per state entry.

// arm must be called with m.mu held. It returns the new epoch for async
// callbacks born in this state.
func (m *SessionMachine) arm(bound time.Duration, state domain.SessionState) uint64 {
	m.epoch++
	epoch := m.epoch
	if m.watchdog != nil {
		m.watchdog.Stop()
	}
	m.watchdog = time.AfterFunc(bound, func() {
		m.watchdogFired(epoch, state, bound)
	})
	return epoch
}

// disarm must be called with m.mu held.
func (m *SessionMachine) disarm() {
	m.epoch++
	if m.watchdog != nil {
		m.watchdog.Stop()
		m.watchdog = nil
	}
}

func (m *SessionMachine) watchdogFired(epoch uint64, state domain.SessionState, bound time.Duration) {
	m.mu.Lock()
	if epoch != m.epoch || m.session == nil || m.session.State != state {
		m.mu.Unlock()
		return
	}

	if state.Terminal() {
		// Terminal linger expired: the machine recovers to idle on its own.
		sessionID := m.session.ID
		m.session = nil
		m.disarm()
		m.mu.Unlock()

		m.discardSnapshot(sessionID)
		m.events.SessionStateChanged(domain.SessionStateIdle, domain.ReasonLingerExpired, nil)
		return
	}

	err := &domain.WatchdogTimeoutError{State: state, Limit: bound}
	m.toErrorLocked(err.Error(), domain.ReasonWatchdogExpired, domain.ErrorCodeWatchdog)
}
