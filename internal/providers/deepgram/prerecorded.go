package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"bugbrief/internal/domain"
)

// Config controls Deepgram API settings.
type Config struct {
	APIKey     string
	APIBaseURL string
	Model      string
	Language   string
}

func (c Config) withDefaults() Config {
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if c.Model == "" {
		c.Model = "nova-2"
	}
	return c
}

// Transcriber sends a finished recording to Deepgram's prerecorded endpoint
// and returns a word-level timed transcript.
type Transcriber struct {
	cfg    Config
	client *http.Client
}

func NewTranscriber(cfg Config) *Transcriber {
	return &Transcriber{
		cfg:    cfg.withDefaults(),
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (domain.Transcript, error) {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return domain.Transcript{}, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	listenURL, err := buildListenURL(t.cfg)
	if err != nil {
		return domain.Transcript{}, err
	}

	audio, err := os.Open(audioPath)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("failed to open recording: %w", err)
	}
	defer audio.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, listenURL, audio)
	if err != nil {
		return domain.Transcript{}, err
	}
	req.Header.Set("Authorization", "Token "+t.cfg.APIKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := t.client.Do(req)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("deepgram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.Transcript{}, fmt.Errorf("deepgram returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed prerecordedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Transcript{}, fmt.Errorf("failed to decode deepgram response: %w", err)
	}

	return transcriptFromResponse(parsed), nil
}

func buildListenURL(cfg Config) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("punctuate", "true")
	query.Set("smart_format", "true")
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

type prerecordedResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Words      []struct {
					Word           string  `json:"word"`
					Start          float64 `json:"start"`
					End            float64 `json:"end"`
					PunctuatedWord string  `json:"punctuated_word"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func transcriptFromResponse(resp prerecordedResponse) domain.Transcript {
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return domain.Transcript{}
	}

	alt := resp.Results.Channels[0].Alternatives[0]
	words := make([]domain.Word, 0, len(alt.Words))
	lastEnd := int64(0)
	for _, w := range alt.Words {
		text := strings.TrimSpace(w.PunctuatedWord)
		if text == "" {
			text = strings.TrimSpace(w.Word)
		}
		if text == "" {
			continue
		}
		start := int64(w.Start * 1000)
		end := int64(w.End * 1000)
		// Enforce monotonic non-overlap even if the API stutters.
		if start < lastEnd {
			start = lastEnd
		}
		if end < start {
			end = start
		}
		lastEnd = end
		words = append(words, domain.Word{Word: text, StartMs: start, EndMs: end})
	}
	return domain.Transcript{Words: words}
}
