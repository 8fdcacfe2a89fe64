package tiers

import (
	"context"
	"fmt"
	"sync"

	"bugbrief/internal/domain"
)

// StatusSource yields fresh tier availability.
type StatusSource interface {
	Statuses(ctx context.Context) []domain.TierStatus
}

// Manager applies user preference plus availability to pick one tier.
// Selection is total: the timer tier is the always-available floor, so the
// absence of transcription is a signaled outcome, never an error.
type Manager struct {
	statuses StatusSource
	order    []domain.Tier

	mu        sync.Mutex
	preferred domain.Tier
}

// NewManager builds a manager with the given fallback order among
// transcribing tiers. Unknown or non-transcribing entries are dropped; an
// empty order falls back to cloud, local, dictation.
func NewManager(statuses StatusSource, order []string) *Manager {
	parsed := make([]domain.Tier, 0, len(order))
	for _, name := range order {
		tier := domain.Tier(name)
		if tier.Transcribing() {
			parsed = append(parsed, tier)
		}
	}
	if len(parsed) == 0 {
		parsed = []domain.Tier{domain.TierCloud, domain.TierLocal, domain.TierDictation}
	}
	return &Manager{statuses: statuses, order: parsed}
}

// SetPreferred records the user's tier preference. The empty tier clears it.
// Preferring the timer tier is rejected: it structurally cannot produce
// transcription and may only be reached via automatic fallback.
func (m *Manager) SetPreferred(tier domain.Tier) error {
	if tier == "" {
		m.mu.Lock()
		m.preferred = ""
		m.mu.Unlock()
		return nil
	}
	if !tier.Transcribing() {
		return &domain.InvalidPreferenceError{Tier: tier}
	}
	if !knownTier(tier) {
		return fmt.Errorf("unknown tier %q", tier)
	}

	m.mu.Lock()
	m.preferred = tier
	m.mu.Unlock()
	return nil
}

// Preferred returns the current preference, empty meaning auto.
func (m *Manager) Preferred() domain.Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preferred
}

// SelectBest picks the tier for the next transcription run. A set-and-
// available preference wins; otherwise the fallback order decides; the timer
// tier is returned only when every transcribing tier is unavailable.
func (m *Manager) SelectBest(ctx context.Context) domain.Tier {
	available := make(map[domain.Tier]bool, len(domain.AllTiers))
	for _, status := range m.statuses.Statuses(ctx) {
		available[status.Tier] = status.Available
	}

	if preferred := m.Preferred(); preferred != "" && available[preferred] {
		return preferred
	}

	for _, tier := range m.order {
		if available[tier] {
			return tier
		}
	}
	return domain.TierTimer
}

func knownTier(tier domain.Tier) bool {
	for _, known := range domain.AllTiers {
		if tier == known {
			return true
		}
	}
	return false
}

// TimerTranscriber is the no-transcription tier: it produces an empty
// transcript so the pipeline proceeds on periodic screenshots alone.
type TimerTranscriber struct{}

func (TimerTranscriber) Transcribe(context.Context, string) (domain.Transcript, error) {
	return domain.Transcript{}, nil
}
