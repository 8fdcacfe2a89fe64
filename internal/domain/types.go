package domain

import "time"

// SessionState models the capture session lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateStarting   SessionState = "starting"
	SessionStateRecording  SessionState = "recording"
	SessionStateStopping   SessionState = "stopping"
	SessionStateProcessing SessionState = "processing"
	SessionStateComplete   SessionState = "complete"
	SessionStateError      SessionState = "error"
)

// Terminal reports whether a state accepts no further session work.
// Terminal states auto-return to idle after a bounded linger.
func (s SessionState) Terminal() bool {
	return s == SessionStateComplete || s == SessionStateError
}

// StateReason provides a structured reason for state transitions.
type StateReason string

const (
	ReasonEngineReady       StateReason = "engine_ready"
	ReasonStartRequested    StateReason = "start_requested"
	ReasonCaptureReady      StateReason = "capture_ready"
	ReasonStopRequested     StateReason = "stop_requested"
	ReasonCaptureFinalized  StateReason = "capture_finalized"
	ReasonPipelineComplete  StateReason = "pipeline_complete"
	ReasonPipelineFailed    StateReason = "pipeline_failed"
	ReasonCaptureFailed     StateReason = "capture_failed"
	ReasonCancelled         StateReason = "cancelled"
	ReasonWatchdogExpired   StateReason = "watchdog_expired"
	ReasonCompleteAcked     StateReason = "complete_acknowledged"
	ReasonLingerExpired     StateReason = "linger_expired"
	ReasonSessionRecovered  StateReason = "session_recovered"
	ReasonRecoveryDiscarded StateReason = "recovery_discarded"
)

// ErrorCode identifies non-fatal and fatal engine errors surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeCapture       ErrorCode = "capture"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodePipeline      ErrorCode = "pipeline"
	ErrorCodeWatchdog      ErrorCode = "watchdog"
	ErrorCodeSnapshot      ErrorCode = "snapshot"
	ErrorCodeCaption       ErrorCode = "caption"
)

// Tier is one strategy for converting captured audio into text.
type Tier string

const (
	TierCloud     Tier = "cloud"
	TierLocal     Tier = "local"
	TierDictation Tier = "dictation"
	TierTimer     Tier = "timer"
)

// Transcribing reports whether the tier produces narration text at all.
// The timer tier only paces periodic screenshots.
func (t Tier) Transcribing() bool {
	return t == TierCloud || t == TierLocal || t == TierDictation
}

// AllTiers is the fixed reporting order for tier statuses.
var AllTiers = []Tier{TierCloud, TierLocal, TierDictation, TierTimer}

// TierStatus is the availability of one tier, probed fresh per selection.
type TierStatus struct {
	Tier      Tier   `json:"tier"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Progress is one orchestrator progress event during processing.
type Progress struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
	Label   string `json:"label"`
}

// Status summarizes the current engine status for the UI.
type Status struct {
	State     SessionState `json:"state"`
	SessionID string       `json:"sessionId,omitempty"`
	Active    bool         `json:"active"`
	Message   string       `json:"message,omitempty"`
}

// Word is one transcribed word with millisecond timings.
type Word struct {
	Word    string `json:"word"`
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
}

// Transcript is word-level timed narration text. Words are non-overlapping
// and monotonically increasing in StartMs.
type Transcript struct {
	Words []Word `json:"words"`
}

// Empty reports whether the transcript carries no narration.
func (t Transcript) Empty() bool {
	return len(t.Words) == 0
}

// Text returns the whole narration joined with single spaces.
func (t Transcript) Text() string {
	if len(t.Words) == 0 {
		return ""
	}
	size := 0
	for _, w := range t.Words {
		size += len(w.Word) + 1
	}
	buf := make([]byte, 0, size)
	for i, w := range t.Words {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, w.Word...)
	}
	return string(buf)
}

// DurationMs returns the end timestamp of the last word.
func (t Transcript) DurationMs() int64 {
	if len(t.Words) == 0 {
		return 0
	}
	return t.Words[len(t.Words)-1].EndMs
}

// MomentKind classifies why a timestamp was picked as a key moment.
type MomentKind string

const (
	MomentPause    MomentKind = "pause"
	MomentEmphasis MomentKind = "emphasis"
	MomentIssue    MomentKind = "issue"
	MomentTopic    MomentKind = "topic"
	MomentInterval MomentKind = "interval"
	MomentOpening  MomentKind = "opening"
)

// FeedbackItem pairs a narration excerpt with a timestamp and an optional
// screenshot. IDs are sequential (FB-001) and ordered by TimestampMs.
type FeedbackItem struct {
	ID          string     `json:"id"`
	TimestampMs int64      `json:"timestampMs"`
	Text        string     `json:"text"`
	Screenshot  string     `json:"screenshot,omitempty"`
	Kind        MomentKind `json:"kind"`
}

// Session is the unit of work for one capture.
type Session struct {
	ID              string         `json:"id"`
	State           SessionState   `json:"state"`
	StateEnteredAt  time.Time      `json:"stateEnteredAt"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	StoppedAt       *time.Time     `json:"stoppedAt,omitempty"`
	AudioPath       string         `json:"audioPath,omitempty"`
	VideoPath       string         `json:"videoPath,omitempty"`
	ScreenshotPaths []string       `json:"screenshotPaths,omitempty"`
	DurationMs      int64          `json:"durationMs,omitempty"`
	Tier            Tier           `json:"tier,omitempty"`
	Transcript      *Transcript    `json:"transcript,omitempty"`
	FeedbackItems   []FeedbackItem `json:"feedbackItems,omitempty"`
	ReportPath      string         `json:"reportPath,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Clone returns a deep copy safe to hand outside the state machine.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.StoppedAt != nil {
		t := *s.StoppedAt
		out.StoppedAt = &t
	}
	if s.ScreenshotPaths != nil {
		out.ScreenshotPaths = append([]string(nil), s.ScreenshotPaths...)
	}
	if s.Transcript != nil {
		tr := Transcript{Words: append([]Word(nil), s.Transcript.Words...)}
		out.Transcript = &tr
	}
	if s.FeedbackItems != nil {
		out.FeedbackItems = append([]FeedbackItem(nil), s.FeedbackItems...)
	}
	return &out
}

// Snapshot is a durable point-in-time projection of a Session used for
// crash recovery.
type Snapshot struct {
	Session      Session   `json:"session"`
	LastSaveTime time.Time `json:"lastSaveTime"`
}
