package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"bugbrief/internal/ports"
)

// StreamConfig controls the live-caption websocket session.
type StreamConfig struct {
	SampleRate int
	Channels   int
}

// Streamer implements ports.CaptionStreamer over Deepgram's websocket API.
// Captions are cosmetic: the session machine tolerates any failure here.
type Streamer struct {
	cfg    Config
	stream StreamConfig
}

func NewStreamer(cfg Config, stream StreamConfig) *Streamer {
	if stream.SampleRate <= 0 {
		stream.SampleRate = 16000
	}
	if stream.Channels <= 0 {
		stream.Channels = 1
	}
	return &Streamer{cfg: cfg.withDefaults(), stream: stream}
}

func (p *Streamer) StartStreaming(ctx context.Context) (ports.CaptionSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildStreamURL(p.cfg, p.stream)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to caption websocket: %w", err)
	}

	session := &captionSession{
		conn:   conn,
		events: make(chan ports.CaptionEvent, 64),
		audio:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = session.Close()
	}()

	return session, nil
}

type captionSession struct {
	conn *websocket.Conn

	events chan ports.CaptionEvent
	audio  chan []byte
	done   chan struct{}

	wg sync.WaitGroup

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *captionSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	// The read lock is held across the send so CloseSend cannot close the
	// audio channel between the check and the send.
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("caption stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		return errors.New("caption session closed")
	}
}

func (s *captionSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *captionSession) Events() <-chan ports.CaptionEvent {
	return s.events
}

func (s *captionSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *captionSession) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return
		}
	}

	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
}

func (s *captionSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var response streamResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}
		if strings.EqualFold(response.Type, "Error") {
			return
		}

		text := extractCaption(response)
		if text == "" {
			continue
		}
		s.emit(ports.CaptionEvent{Text: text, Final: response.IsFinal || response.SpeechFinal})
	}
}

// emit drops captions rather than blocking a slow consumer.
func (s *captionSession) emit(event ports.CaptionEvent) {
	select {
	case s.events <- event:
	case <-s.done:
	default:
	}
}

type streamResponse struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func extractCaption(response streamResponse) string {
	if len(response.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(response.Channel.Alternatives[0].Transcript)
}

func buildStreamURL(cfg Config, stream StreamConfig) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(stream.SampleRate))
	query.Set("channels", strconv.Itoa(stream.Channels))
	query.Set("interim_results", "true")
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
