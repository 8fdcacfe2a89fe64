package usecase

import (
	"context"
	"errors"
	"io"

	"bugbrief/internal/domain"
	"bugbrief/internal/ports"
)

// startCaptions begins streaming the capture's audio tap to the caption
// provider. Captions are a live preview only: any failure here is logged
// and the recording carries on untouched.
func (m *SessionMachine) startCaptions(active *activeCapture) {
	if m.captions == nil {
		return
	}
	tap := active.session.AudioTap()
	if tap == nil {
		return
	}

	stream, err := m.captions.StartStreaming(context.Background())
	if err != nil {
		m.log.WithError(err).Debug("live captions unavailable")
		return
	}

	done := make(chan struct{})
	active.captionMu.Lock()
	active.captionSession = stream
	active.captionsDone = done
	active.captionMu.Unlock()

	go m.forwardCaptions(stream, done)
	go m.pumpCaptionAudio(tap, stream)
}

func (m *SessionMachine) forwardCaptions(stream ports.CaptionSession, done chan struct{}) {
	defer close(done)
	for event := range stream.Events() {
		if event.Text == "" {
			continue
		}
		m.events.LiveCaption(event.Text, event.Final)
	}
}

func (m *SessionMachine) pumpCaptionAudio(tap io.Reader, stream ports.CaptionSession) {
	defer func() { _ = stream.CloseSend() }()

	buf := make([]byte, m.cfg.CaptionChunkSize)
	for {
		n, err := tap.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				m.log.WithError(sendErr).Debug("caption stream closed")
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				m.events.SessionError(domain.ErrorCodeCaption, "live caption audio tap ended unexpectedly")
			}
			return
		}
	}
}
