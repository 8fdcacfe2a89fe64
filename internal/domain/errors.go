package domain

import (
	"fmt"
	"time"
)

// InvalidTransitionError rejects an action that is illegal in the current
// state. The session state is left untouched.
type InvalidTransitionError struct {
	Action string
	State  SessionState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("action %q is not legal in state %q", e.Action, e.State)
}

// InvalidPreferenceError rejects an attempt to prefer a tier that cannot
// produce transcription.
type InvalidPreferenceError struct {
	Tier Tier
}

func (e *InvalidPreferenceError) Error() string {
	return fmt.Sprintf("tier %q cannot be preferred: it produces no transcription", e.Tier)
}

// WatchdogTimeoutError forces a session into the error state when a state
// dwell exceeds its bound.
type WatchdogTimeoutError struct {
	State SessionState
	Limit time.Duration
}

func (e *WatchdogTimeoutError) Error() string {
	return fmt.Sprintf("state %q exceeded its %s watchdog bound", e.State, e.Limit)
}

// StageFailure tags a pipeline failure with the stage that produced it and
// whether the pipeline had to abort.
type StageFailure struct {
	Stage string
	Fatal bool
	Err   error
}

func (e *StageFailure) Error() string {
	kind := "non-fatal"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, kind, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// RecoveryError marks a snapshot that could not be read back. It is treated
// as "no recoverable session found" and never blocks the user.
type RecoveryError struct {
	Err error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("snapshot unreadable: %v", e.Err)
}

func (e *RecoveryError) Unwrap() error { return e.Err }
