package tiers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"bugbrief/internal/domain"
)

// Probe checks one tier's availability. It returns available plus a short
// reason when unavailable. Probes must be cheap; slow ones are cut off by
// the provider's timeout.
type Probe func(ctx context.Context) (bool, string)

// StatusProvider reports availability for every known tier, probed fresh on
// each call. Credentials, models, and OS capabilities can change between
// sessions, so nothing is cached.
type StatusProvider struct {
	probes  map[domain.Tier]Probe
	timeout time.Duration
}

// ProviderConfig feeds the default probes.
type ProviderConfig struct {
	CloudAPIKey      string
	CloudBaseURL     string
	WhisperCommand   string
	WhisperModelPath string
	DictationCommand string
	ProbeTimeout     time.Duration
}

func NewStatusProvider(cfg ProviderConfig) *StatusProvider {
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &StatusProvider{
		timeout: timeout,
		probes: map[domain.Tier]Probe{
			domain.TierCloud:     cloudProbe(cfg.CloudAPIKey, cfg.CloudBaseURL),
			domain.TierLocal:     localProbe(cfg.WhisperCommand, cfg.WhisperModelPath),
			domain.TierDictation: dictationProbe(cfg.DictationCommand),
			domain.TierTimer:     func(context.Context) (bool, string) { return true, "" },
		},
	}
}

// NewStatusProviderWithProbes swaps in custom probes; missing tiers report
// unavailable.
func NewStatusProviderWithProbes(probes map[domain.Tier]Probe, timeout time.Duration) *StatusProvider {
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return &StatusProvider{probes: probes, timeout: timeout}
}

// Statuses returns one entry per known tier, always all four, in fixed order.
// It never fails: a broken probe degrades to an unavailable status.
func (p *StatusProvider) Statuses(ctx context.Context) []domain.TierStatus {
	out := make([]domain.TierStatus, 0, len(domain.AllTiers))
	for _, tier := range domain.AllTiers {
		out = append(out, p.status(ctx, tier))
	}
	return out
}

func (p *StatusProvider) status(ctx context.Context, tier domain.Tier) domain.TierStatus {
	probe, ok := p.probes[tier]
	if !ok {
		return domain.TierStatus{Tier: tier, Available: false, Reason: "no probe registered"}
	}

	type result struct {
		available bool
		reason    string
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		available, reason := probe(probeCtx)
		done <- result{available: available, reason: reason}
	}()

	select {
	case r := <-done:
		return domain.TierStatus{Tier: tier, Available: r.available, Reason: r.reason}
	case <-probeCtx.Done():
		return domain.TierStatus{Tier: tier, Available: false, Reason: "check timed out"}
	}
}

func cloudProbe(apiKey, baseURL string) Probe {
	return func(ctx context.Context) (bool, string) {
		if strings.TrimSpace(apiKey) == "" {
			return false, "no API key configured"
		}
		if strings.TrimSpace(baseURL) == "" {
			return true, ""
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
		if err != nil {
			return false, fmt.Sprintf("invalid endpoint: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return false, "check timed out"
			}
			return false, "cloud endpoint unreachable"
		}
		// Any HTTP answer means the endpoint is there; auth happens later.
		resp.Body.Close()
		return true, ""
	}
}

func localProbe(command, modelPath string) Probe {
	return func(context.Context) (bool, string) {
		if _, err := exec.LookPath(command); err != nil {
			return false, fmt.Sprintf("%s not found on PATH", command)
		}
		if strings.TrimSpace(modelPath) == "" {
			return false, "no model configured"
		}
		if _, err := os.Stat(modelPath); err != nil {
			return false, "model file is missing"
		}
		return true, ""
	}
}

func dictationProbe(command string) Probe {
	return func(context.Context) (bool, string) {
		if _, err := exec.LookPath(command); err != nil {
			return false, fmt.Sprintf("%s not found on PATH", command)
		}
		return true, ""
	}
}
