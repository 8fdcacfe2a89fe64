package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"bugbrief/internal/bootstrap"
	"bugbrief/internal/config"
	"bugbrief/internal/domain"
	"bugbrief/internal/recovery"
	"bugbrief/internal/tiers"
	"bugbrief/internal/usecase"
)

const (
	eventSession  = "bugbrief:session"
	eventProgress = "bugbrief:progress"
	eventCaption  = "bugbrief:caption"
	eventError    = "bugbrief:error"
	eventRecovery = "bugbrief:recovery"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	machine *usecase.SessionMachine
	tiers   *tiers.Manager
	status  *tiers.StatusProvider
	saver   *recovery.Saver
	cfg     config.Config
	bootErr error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.machine = services.Machine
	a.tiers = services.Tiers
	a.status = services.Status
	a.saver = services.Saver

	go a.saver.Run(ctx)

	a.SessionStateChanged(domain.SessionStateIdle, domain.ReasonEngineReady, nil)

	if snap, err := a.machine.CheckForIncompleteSession(); err == nil && snap != nil {
		runtime.EventsEmit(a.ctx, eventRecovery, map[string]string{
			"sessionId": snap.Session.ID,
			"savedAt":   snap.LastSaveTime.Format("2006-01-02 15:04:05"),
			"state":     string(snap.Session.State),
		})
	}
}

// StartCapture begins a new capture session.
func (a *App) StartCapture() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.machine.Start(a.ctx); err != nil {
		a.SessionError(domain.ErrorCodeCapture, err.Error())
		return domain.Status{}, err
	}
	return a.machine.Status(), nil
}

// StopCapture stops recording and kicks off processing.
func (a *App) StopCapture() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.machine.Stop(a.ctx); err != nil {
		a.SessionError(domain.ErrorCodeCapture, err.Error())
		return domain.Status{}, err
	}
	return a.machine.Status(), nil
}

// CancelCapture discards an in-progress recording.
func (a *App) CancelCapture() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.machine.Cancel(); err != nil {
		a.SessionError(domain.ErrorCodeCapture, err.Error())
		return err
	}
	return nil
}

// AcknowledgeComplete dismisses a finished session and returns to idle.
func (a *App) AcknowledgeComplete() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.machine.AcknowledgeComplete()
}

// GetStatus returns the current engine status.
func (a *App) GetStatus() domain.Status {
	if a.machine == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle}
	}
	return a.machine.Status()
}

// GetTierStatuses probes every transcription tier fresh.
func (a *App) GetTierStatuses() []domain.TierStatus {
	if a.status == nil {
		return nil
	}
	return a.status.Statuses(a.ctx)
}

// SetPreferredTier pins tier selection; an empty string clears the pin.
func (a *App) SetPreferredTier(tier string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.tiers.SetPreferred(domain.Tier(tier))
}

// GetPreferredTier returns the pinned tier, empty when unset.
func (a *App) GetPreferredTier() string {
	if a.tiers == nil {
		return ""
	}
	return string(a.tiers.Preferred())
}

// CheckRecovery reports a recoverable interrupted session, if any.
func (a *App) CheckRecovery() (*domain.Snapshot, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.machine.CheckForIncompleteSession()
}

// RecoverSession resumes processing for an interrupted session.
func (a *App) RecoverSession(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.machine.Recover(id); err != nil {
		a.SessionError(domain.ErrorCodeSnapshot, err.Error())
		return err
	}
	return nil
}

// DiscardRecovery drops an interrupted session's snapshot.
func (a *App) DiscardRecovery(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.machine.DiscardRecovery(id)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"cloudProvider": "Deepgram",
		"cloudModel":    a.cfg.Deepgram.Model,
		"whisperModel":  a.cfg.Whisper.ModelPath,
		"display":       a.cfg.Capture.Display,
		"audioInput":    a.cfg.Capture.AudioDevice,
		"captureDir":    a.cfg.Capture.OutputDir,
		"reportDir":     a.cfg.Report.OutputDir,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.machine == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.StateReason, session *domain.Session) {
	if a.ctx == nil {
		return
	}
	payload := map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": stateReasonMessage(reason),
	}
	if session != nil {
		payload["sessionId"] = session.ID
		payload["reportPath"] = session.ReportPath
	}
	runtime.EventsEmit(a.ctx, eventSession, payload)
}

// PipelineProgress emits aggregated processing progress.
func (a *App) PipelineProgress(progress domain.Progress) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventProgress, progress)
}

// LiveCaption emits live narration preview text while recording.
func (a *App) LiveCaption(text string, final bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventCaption, map[string]any{
		"text":  text,
		"final": final,
	})
}

// SessionError emits engine errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func stateReasonMessage(reason domain.StateReason) string {
	switch reason {
	case domain.ReasonEngineReady:
		return "Ready"
	case domain.ReasonStartRequested:
		return "Starting capture..."
	case domain.ReasonCaptureReady:
		return "Recording"
	case domain.ReasonStopRequested:
		return "Stopping..."
	case domain.ReasonCaptureFinalized:
		return "Processing recording..."
	case domain.ReasonPipelineComplete:
		return "Report ready"
	case domain.ReasonPipelineFailed:
		return "Processing failed"
	case domain.ReasonCaptureFailed:
		return "Capture failed"
	case domain.ReasonCancelled:
		return "Recording discarded"
	case domain.ReasonWatchdogExpired:
		return "Operation timed out"
	case domain.ReasonCompleteAcked:
		return "Ready"
	case domain.ReasonLingerExpired:
		return "Ready"
	case domain.ReasonSessionRecovered:
		return "Resuming interrupted session..."
	case domain.ReasonRecoveryDiscarded:
		return "Interrupted session discarded"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Screen capture issue"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodePipeline:
		return "Report processing failed"
	case domain.ErrorCodeWatchdog:
		return "Operation timed out"
	case domain.ErrorCodeSnapshot:
		return "Session recovery issue"
	case domain.ErrorCodeCaption:
		return "Live caption issue"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
