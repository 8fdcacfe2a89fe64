// Package whisper runs a local whisper.cpp CLI for on-device transcription.
package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"bugbrief/internal/domain"
)

// Config locates the whisper-cli binary and its model file.
type Config struct {
	Command   string
	ModelPath string
}

// Transcriber shells out to whisper-cli with JSON output and token-level
// timestamps, then folds the tokens into a word-timed transcript.
type Transcriber struct {
	cfg Config
}

func NewTranscriber(cfg Config) *Transcriber {
	if cfg.Command == "" {
		cfg.Command = "whisper-cli"
	}
	return &Transcriber{cfg: cfg}
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (domain.Transcript, error) {
	if t.cfg.ModelPath == "" {
		return domain.Transcript{}, errors.New("whisper model path is not configured")
	}
	if _, err := os.Stat(t.cfg.ModelPath); err != nil {
		return domain.Transcript{}, fmt.Errorf("whisper model is missing: %w", err)
	}

	outPrefix := filepath.Join(os.TempDir(), fmt.Sprintf("bugbrief_whisper_%d", os.Getpid()))
	outPath := outPrefix + ".json"
	defer os.Remove(outPath)

	args := []string{
		"-m", t.cfg.ModelPath,
		"-f", audioPath,
		"-ml", "1",
		"-oj",
		"-of", outPrefix,
		"-np",
	}

	cmd := exec.CommandContext(ctx, t.cfg.Command, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		detail := strings.TrimSpace(string(out))
		if detail != "" {
			return domain.Transcript{}, fmt.Errorf("whisper failed: %w: %s", err, detail)
		}
		return domain.Transcript{}, fmt.Errorf("whisper failed: %w", err)
	}

	payload, err := os.ReadFile(outPath)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("whisper produced no output: %w", err)
	}

	return parseOutput(payload)
}

type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseOutput(payload []byte) (domain.Transcript, error) {
	var parsed whisperOutput
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return domain.Transcript{}, fmt.Errorf("unparseable whisper output: %w", err)
	}

	words := make([]domain.Word, 0, len(parsed.Transcription))
	lastEnd := int64(0)
	for _, token := range parsed.Transcription {
		text := strings.TrimSpace(token.Text)
		if text == "" || strings.HasPrefix(text, "[") {
			continue
		}
		start := token.Offsets.From
		end := token.Offsets.To
		if start < lastEnd {
			start = lastEnd
		}
		if end < start {
			end = start
		}
		lastEnd = end
		words = append(words, domain.Word{Word: text, StartMs: start, EndMs: end})
	}
	return domain.Transcript{Words: words}, nil
}
