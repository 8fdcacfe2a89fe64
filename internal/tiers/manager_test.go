package tiers

import (
	"context"
	"errors"
	"testing"

	"bugbrief/internal/domain"
)

type fakeStatuses struct {
	available map[domain.Tier]bool
}

func (f *fakeStatuses) Statuses(context.Context) []domain.TierStatus {
	out := make([]domain.TierStatus, 0, len(domain.AllTiers))
	for _, tier := range domain.AllTiers {
		out = append(out, domain.TierStatus{Tier: tier, Available: f.available[tier]})
	}
	return out
}

func TestSelectBestPrefersAvailablePreference(t *testing.T) {
	t.Parallel()

	statuses := &fakeStatuses{available: map[domain.Tier]bool{
		domain.TierCloud:     true,
		domain.TierDictation: true,
		domain.TierTimer:     true,
	}}
	manager := NewManager(statuses, nil)

	if err := manager.SetPreferred(domain.TierDictation); err != nil {
		t.Fatalf("set preferred failed: %v", err)
	}
	if got := manager.SelectBest(context.Background()); got != domain.TierDictation {
		t.Fatalf("expected dictation, got %s", got)
	}
}

func TestSelectBestFallsThroughUnavailablePreference(t *testing.T) {
	t.Parallel()

	statuses := &fakeStatuses{available: map[domain.Tier]bool{
		domain.TierLocal: true,
		domain.TierTimer: true,
	}}
	manager := NewManager(statuses, nil)

	if err := manager.SetPreferred(domain.TierCloud); err != nil {
		t.Fatalf("set preferred failed: %v", err)
	}
	if got := manager.SelectBest(context.Background()); got != domain.TierLocal {
		t.Fatalf("expected local fallback, got %s", got)
	}
}

func TestSelectBestFollowsConfiguredOrder(t *testing.T) {
	t.Parallel()

	statuses := &fakeStatuses{available: map[domain.Tier]bool{
		domain.TierCloud:     true,
		domain.TierDictation: true,
		domain.TierTimer:     true,
	}}
	manager := NewManager(statuses, []string{"dictation", "cloud", "local"})

	if got := manager.SelectBest(context.Background()); got != domain.TierDictation {
		t.Fatalf("expected dictation first per order, got %s", got)
	}
}

func TestSelectBestNeverPreferenceUnsetCloudDownLocalUp(t *testing.T) {
	t.Parallel()

	statuses := &fakeStatuses{available: map[domain.Tier]bool{
		domain.TierLocal: true,
		domain.TierTimer: true,
	}}
	manager := NewManager(statuses, nil)

	if got := manager.SelectBest(context.Background()); got != domain.TierLocal {
		t.Fatalf("expected local, got %s", got)
	}
}

func TestSelectBestIsTotal(t *testing.T) {
	t.Parallel()

	transcribing := []domain.Tier{domain.TierCloud, domain.TierLocal, domain.TierDictation}

	// Every subset of available transcribing tiers must still yield a tier.
	for mask := 0; mask < 1<<len(transcribing); mask++ {
		available := map[domain.Tier]bool{domain.TierTimer: true}
		for bit, tier := range transcribing {
			if mask&(1<<bit) != 0 {
				available[tier] = true
			}
		}

		manager := NewManager(&fakeStatuses{available: available}, nil)
		got := manager.SelectBest(context.Background())
		if got == "" {
			t.Fatalf("mask %d: selection returned no tier", mask)
		}
		if mask == 0 && got != domain.TierTimer {
			t.Fatalf("expected timer floor when nothing transcribes, got %s", got)
		}
		if got != domain.TierTimer && !available[got] {
			t.Fatalf("mask %d: selected unavailable tier %s", mask, got)
		}
	}
}

func TestSetPreferredRejectsTimer(t *testing.T) {
	t.Parallel()

	manager := NewManager(&fakeStatuses{}, nil)
	if err := manager.SetPreferred(domain.TierLocal); err != nil {
		t.Fatalf("set preferred failed: %v", err)
	}

	err := manager.SetPreferred(domain.TierTimer)
	var invalid *domain.InvalidPreferenceError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidPreferenceError, got %v", err)
	}
	if manager.Preferred() != domain.TierLocal {
		t.Fatalf("rejected preference must not mutate state, got %s", manager.Preferred())
	}
}

func TestSetPreferredRejectsUnknownTier(t *testing.T) {
	t.Parallel()

	manager := NewManager(&fakeStatuses{}, nil)
	if err := manager.SetPreferred("satellite"); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
}

func TestSetPreferredEmptyClears(t *testing.T) {
	t.Parallel()

	manager := NewManager(&fakeStatuses{}, nil)
	if err := manager.SetPreferred(domain.TierCloud); err != nil {
		t.Fatalf("set preferred failed: %v", err)
	}
	if err := manager.SetPreferred(""); err != nil {
		t.Fatalf("clearing preference failed: %v", err)
	}
	if manager.Preferred() != "" {
		t.Fatalf("expected cleared preference, got %s", manager.Preferred())
	}
}

func TestNewManagerDropsNonTranscribingOrderEntries(t *testing.T) {
	t.Parallel()

	statuses := &fakeStatuses{available: map[domain.Tier]bool{
		domain.TierCloud: true,
		domain.TierTimer: true,
	}}
	manager := NewManager(statuses, []string{"timer", "bogus"})

	// Invalid order collapses to the default, so cloud still wins.
	if got := manager.SelectBest(context.Background()); got != domain.TierCloud {
		t.Fatalf("expected cloud via default order, got %s", got)
	}
}

func TestTimerTranscriberReturnsEmptyTranscript(t *testing.T) {
	t.Parallel()

	tr, err := TimerTranscriber{}.Transcribe(context.Background(), "/tmp/whatever.wav")
	if err != nil {
		t.Fatalf("timer transcriber failed: %v", err)
	}
	if !tr.Empty() {
		t.Fatalf("expected empty transcript, got %d words", len(tr.Words))
	}
}
