package tiers

import (
	"context"
	"testing"
	"time"

	"bugbrief/internal/domain"
)

func TestStatusesAlwaysReportAllTiers(t *testing.T) {
	t.Parallel()

	provider := NewStatusProviderWithProbes(map[domain.Tier]Probe{
		domain.TierCloud: func(context.Context) (bool, string) { return true, "" },
		domain.TierTimer: func(context.Context) (bool, string) { return true, "" },
	}, time.Second)

	statuses := provider.Statuses(context.Background())
	if len(statuses) != len(domain.AllTiers) {
		t.Fatalf("expected %d statuses, got %d", len(domain.AllTiers), len(statuses))
	}
	for i, status := range statuses {
		if status.Tier != domain.AllTiers[i] {
			t.Fatalf("status %d out of order: got %s want %s", i, status.Tier, domain.AllTiers[i])
		}
	}

	byTier := make(map[domain.Tier]domain.TierStatus)
	for _, status := range statuses {
		byTier[status.Tier] = status
	}
	if !byTier[domain.TierCloud].Available {
		t.Fatalf("expected cloud available")
	}
	if byTier[domain.TierLocal].Available || byTier[domain.TierLocal].Reason != "no probe registered" {
		t.Fatalf("expected unprobed local to be unavailable: %+v", byTier[domain.TierLocal])
	}
}

func TestSlowProbeTimesOut(t *testing.T) {
	t.Parallel()

	provider := NewStatusProviderWithProbes(map[domain.Tier]Probe{
		domain.TierCloud: func(ctx context.Context) (bool, string) {
			<-ctx.Done()
			return true, ""
		},
		domain.TierLocal:     func(context.Context) (bool, string) { return true, "" },
		domain.TierDictation: func(context.Context) (bool, string) { return false, "hear not found on PATH" },
		domain.TierTimer:     func(context.Context) (bool, string) { return true, "" },
	}, 20*time.Millisecond)

	statuses := provider.Statuses(context.Background())

	byTier := make(map[domain.Tier]domain.TierStatus)
	for _, status := range statuses {
		byTier[status.Tier] = status
	}
	if byTier[domain.TierCloud].Available {
		t.Fatalf("expected slow cloud probe to be unavailable")
	}
	if byTier[domain.TierCloud].Reason != "check timed out" {
		t.Fatalf("unexpected reason: %q", byTier[domain.TierCloud].Reason)
	}
	if !byTier[domain.TierLocal].Available {
		t.Fatalf("slow probe must not poison other tiers")
	}
	if byTier[domain.TierDictation].Reason != "hear not found on PATH" {
		t.Fatalf("unexpected dictation reason: %q", byTier[domain.TierDictation].Reason)
	}
}

func TestDefaultProbesWithoutCredentials(t *testing.T) {
	t.Parallel()

	provider := NewStatusProvider(ProviderConfig{
		WhisperCommand:   "definitely-not-a-real-binary",
		DictationCommand: "also-not-a-real-binary",
		ProbeTimeout:     time.Second,
	})

	statuses := provider.Statuses(context.Background())
	byTier := make(map[domain.Tier]domain.TierStatus)
	for _, status := range statuses {
		byTier[status.Tier] = status
	}

	if byTier[domain.TierCloud].Available {
		t.Fatalf("cloud must be unavailable without an API key")
	}
	if byTier[domain.TierCloud].Reason != "no API key configured" {
		t.Fatalf("unexpected cloud reason: %q", byTier[domain.TierCloud].Reason)
	}
	if byTier[domain.TierLocal].Available {
		t.Fatalf("local must be unavailable without the binary")
	}
	if byTier[domain.TierDictation].Available {
		t.Fatalf("dictation must be unavailable without the binary")
	}
	if !byTier[domain.TierTimer].Available {
		t.Fatalf("timer must always be available")
	}
}
