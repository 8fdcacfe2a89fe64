package domain

import (
	"errors"
	"testing"
	"time"
)

func TestSessionStateTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[SessionState]bool{
		SessionStateComplete: true,
		SessionStateError:    true,
	}
	for _, state := range []SessionState{
		SessionStateIdle, SessionStateStarting, SessionStateRecording,
		SessionStateStopping, SessionStateProcessing, SessionStateComplete, SessionStateError,
	} {
		if got := state.Terminal(); got != terminal[state] {
			t.Fatalf("%s.Terminal() = %v", state, got)
		}
	}
}

func TestTierTranscribing(t *testing.T) {
	t.Parallel()

	for _, tier := range []Tier{TierCloud, TierLocal, TierDictation} {
		if !tier.Transcribing() {
			t.Fatalf("%s must transcribe", tier)
		}
	}
	if TierTimer.Transcribing() {
		t.Fatalf("timer must not transcribe")
	}
}

func TestTranscriptText(t *testing.T) {
	t.Parallel()

	tr := Transcript{Words: []Word{
		{Word: "the", StartMs: 0, EndMs: 200},
		{Word: "end", StartMs: 300, EndMs: 600},
	}}
	if got := tr.Text(); got != "the end" {
		t.Fatalf("unexpected text: %q", got)
	}
	if got := tr.DurationMs(); got != 600 {
		t.Fatalf("unexpected duration: %d", got)
	}
	if (Transcript{}).Text() != "" || !(Transcript{}).Empty() {
		t.Fatalf("empty transcript misbehaves")
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	session := &Session{
		ID:              "s1",
		State:           SessionStateProcessing,
		StartedAt:       &started,
		ScreenshotPaths: []string{"/a.png"},
		Transcript:      &Transcript{Words: []Word{{Word: "hi", StartMs: 0, EndMs: 100}}},
		FeedbackItems:   []FeedbackItem{{ID: "FB-001", TimestampMs: 5}},
	}

	clone := session.Clone()
	clone.ScreenshotPaths[0] = "/b.png"
	clone.Transcript.Words[0].Word = "bye"
	clone.FeedbackItems[0].ID = "FB-999"
	*clone.StartedAt = started.Add(time.Hour)

	if session.ScreenshotPaths[0] != "/a.png" {
		t.Fatalf("screenshot paths shared")
	}
	if session.Transcript.Words[0].Word != "hi" {
		t.Fatalf("transcript shared")
	}
	if session.FeedbackItems[0].ID != "FB-001" {
		t.Fatalf("feedback items shared")
	}
	if !session.StartedAt.Equal(started) {
		t.Fatalf("timestamps shared")
	}

	var nilSession *Session
	if nilSession.Clone() != nil {
		t.Fatalf("nil clone must be nil")
	}
}

func TestErrorUnwrapping(t *testing.T) {
	t.Parallel()

	cause := errors.New("root")
	var failure error = &StageFailure{Stage: "prepare", Fatal: true, Err: cause}
	if !errors.Is(failure, cause) {
		t.Fatalf("stage failure must unwrap")
	}

	var recErr error = &RecoveryError{Err: cause}
	if !errors.Is(recErr, cause) {
		t.Fatalf("recovery error must unwrap")
	}

	transition := &InvalidTransitionError{Action: "stop", State: SessionStateIdle}
	if transition.Error() == "" {
		t.Fatalf("expected message")
	}
	watchdog := &WatchdogTimeoutError{State: SessionStateRecording, Limit: time.Minute}
	if watchdog.Error() == "" {
		t.Fatalf("expected message")
	}
}
