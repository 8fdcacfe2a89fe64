// Package dictation wraps the OS speech recognizer CLI as a transcription
// tier. The recognizer returns plain prose without timings, so word timings
// are synthesized by spreading the words evenly over the recording.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"bugbrief/internal/domain"
	"bugbrief/internal/ports"
)

type Config struct {
	Command string
}

type Transcriber struct {
	cfg    Config
	prober ports.MediaProber
}

func NewTranscriber(cfg Config, prober ports.MediaProber) *Transcriber {
	if cfg.Command == "" {
		cfg.Command = "hear"
	}
	return &Transcriber{cfg: cfg, prober: prober}
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (domain.Transcript, error) {
	cmd := exec.CommandContext(ctx, t.cfg.Command, "--input", audioPath)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return domain.Transcript{}, fmt.Errorf("dictation failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return domain.Transcript{}, fmt.Errorf("dictation failed: %w", err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return domain.Transcript{}, nil
	}

	duration, err := t.prober.Duration(ctx, audioPath)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("could not size dictation timings: %w", err)
	}

	return Spread(text, duration.Milliseconds()), nil
}

// Spread distributes the words of untimed prose evenly across totalMs.
func Spread(text string, totalMs int64) domain.Transcript {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return domain.Transcript{}
	}
	if totalMs <= 0 {
		totalMs = int64(len(fields)) * 400
	}

	step := totalMs / int64(len(fields))
	if step <= 0 {
		step = 1
	}

	words := make([]domain.Word, 0, len(fields))
	for i, field := range fields {
		start := int64(i) * step
		end := start + step
		if end > totalMs {
			end = totalMs
		}
		words = append(words, domain.Word{Word: field, StartMs: start, EndMs: end})
	}
	return domain.Transcript{Words: words}
}
