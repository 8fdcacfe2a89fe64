package ports

import (
	"context"
	"io"
	"time"

	"bugbrief/internal/domain"
)

// CaptureConfig describes how screen and microphone should be recorded.
type CaptureConfig struct {
	Display     string
	AudioFormat string
	AudioDevice string
	SampleRate  int
	Channels    int
	FrameRate   int
	OutputDir   string
}

// CaptureArtifacts references the files a finished capture left on disk.
type CaptureArtifacts struct {
	VideoPath string
	AudioPath string
}

// CaptureSession is a live screen+voice recording.
type CaptureSession interface {
	// AudioTap streams raw PCM while recording, for live captions. May be
	// nil when the capture source does not expose one.
	AudioTap() io.Reader
	// Stop finalizes the recording and returns the artifact paths.
	Stop(ctx context.Context) (CaptureArtifacts, error)
	// Abort terminates the recording and discards its artifacts.
	Abort() error
}

// CaptureSource creates screen+voice recording sessions.
type CaptureSource interface {
	Start(ctx context.Context, cfg CaptureConfig) (CaptureSession, error)
}

// Transcriber converts a recorded audio file into a timed transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (domain.Transcript, error)
}

// CaptionEvent is one live partial caption from a streaming session.
type CaptionEvent struct {
	Text  string
	Final bool
}

// CaptionSession is an active live-caption stream.
type CaptionSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan CaptionEvent
	Close() error
}

// CaptionStreamer starts live-caption sessions during recording. Captions
// are a UI nicety: failures must never affect the session lifecycle.
type CaptionStreamer interface {
	StartStreaming(ctx context.Context) (CaptionSession, error)
}

// FrameExtractor pulls a single still frame out of a recorded video.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath string, timestampMs int64, outPath string) error
}

// MediaProber inspects recorded media files.
type MediaProber interface {
	Duration(ctx context.Context, mediaPath string) (time.Duration, error)
}

// SnapshotStore durably persists session snapshots for crash recovery.
type SnapshotStore interface {
	Save(snap domain.Snapshot) error
	// Load returns the most recent incomplete snapshot, or nil when there is
	// nothing to recover.
	Load() (*domain.Snapshot, error)
	LoadByID(id string) (*domain.Snapshot, error)
	Discard(id string) error
}

// EventSink emits engine state and progress to the shell.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.StateReason, session *domain.Session)
	PipelineProgress(progress domain.Progress)
	LiveCaption(text string, final bool)
	SessionError(code domain.ErrorCode, detail string)
}
