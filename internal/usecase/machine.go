package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bugbrief/internal/domain"
	"bugbrief/internal/pipeline"
	"bugbrief/internal/ports"
)

// ErrSessionActive rejects starting a capture while another session is
// active, recovering, or mid-pipeline. Requests are rejected, never queued.
var ErrSessionActive = errors.New("a capture session is already active")

// Bounds are the per-state watchdog dwell limits.
type Bounds struct {
	Starting       time.Duration
	Recording      time.Duration
	Stopping       time.Duration
	ProcessingBase time.Duration
	ProcessingMax  time.Duration
	TerminalLinger time.Duration
}

func (b Bounds) withDefaults() Bounds {
	if b.Starting <= 0 {
		b.Starting = 5 * time.Second
	}
	if b.Recording <= 0 {
		b.Recording = 30 * time.Minute
	}
	if b.Stopping <= 0 {
		b.Stopping = 3 * time.Second
	}
	if b.ProcessingBase <= 0 {
		b.ProcessingBase = 30 * time.Second
	}
	if b.ProcessingMax < b.ProcessingBase {
		b.ProcessingMax = 10 * time.Minute
	}
	if b.TerminalLinger <= 0 {
		b.TerminalLinger = time.Minute
	}
	return b
}

// processingBound scales the pipeline watchdog with the recording length.
func (b Bounds) processingBound(recorded time.Duration) time.Duration {
	bound := b.ProcessingBase + recorded
	if bound > b.ProcessingMax {
		bound = b.ProcessingMax
	}
	return bound
}

// Config controls session machine behavior.
type Config struct {
	Capture          ports.CaptureConfig
	Bounds           Bounds
	ReportDir        string
	CaptionChunkSize int
}

// PipelineRunner runs the post-processing pipeline over a job.
type PipelineRunner interface {
	Run(ctx context.Context, job *pipeline.Job, emit pipeline.EmitFunc) error
}

// SessionMachine owns the capture session lifecycle. Exactly one session is
// active at a time; transitions and watchdog callbacks are serialized under
// one mutex, while capture, captions, and the pipeline run asynchronously
// and report back through epoch-validated callbacks.
type SessionMachine struct {
	capture   ports.CaptureSource
	pipeline  PipelineRunner
	captions  ports.CaptionStreamer
	snapshots ports.SnapshotStore
	events    ports.EventSink
	log       *logrus.Logger
	cfg       Config

	newID func() string
	now   func() time.Time

	mu       sync.Mutex
	session  *domain.Session
	epoch    uint64
	watchdog *time.Timer
	active   *activeCapture
}

func NewSessionMachine(
	capture ports.CaptureSource,
	pipe PipelineRunner,
	captions ports.CaptionStreamer,
	snapshots ports.SnapshotStore,
	events ports.EventSink,
	log *logrus.Logger,
	cfg Config,
) *SessionMachine {
	cfg.Bounds = cfg.Bounds.withDefaults()
	if cfg.CaptionChunkSize < 256 {
		cfg.CaptionChunkSize = 4096
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SessionMachine{
		capture:   capture,
		pipeline:  pipe,
		captions:  captions,
		snapshots: snapshots,
		events:    events,
		log:       log,
		cfg:       cfg,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Start requests a new capture session. Legal only when no session exists.
func (m *SessionMachine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.session != nil {
		state := m.session.State
		m.mu.Unlock()
		if state == domain.SessionStateComplete || state == domain.SessionStateError {
			return &domain.InvalidTransitionError{Action: "start", State: state}
		}
		return ErrSessionActive
	}

	session := &domain.Session{
		ID:             m.newID(),
		State:          domain.SessionStateStarting,
		StateEnteredAt: m.now(),
	}
	m.session = session
	epoch := m.arm(m.cfg.Bounds.Starting, domain.SessionStateStarting)
	snapshot := session.Clone()
	m.mu.Unlock()

	m.events.SessionStateChanged(domain.SessionStateStarting, domain.ReasonStartRequested, snapshot)
	m.log.WithField("session", session.ID).Info("capture session starting")

	go m.openCapture(ctx, epoch, session.ID)
	return nil
}

func (m *SessionMachine) openCapture(ctx context.Context, epoch uint64, sessionID string) {
	cfg := m.cfg.Capture
	cfg.OutputDir = filepath.Join(cfg.OutputDir, sessionID)

	captureCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	captureSession, err := m.capture.Start(captureCtx, cfg)
	if err != nil {
		cancel()
		m.captureFailed(epoch, fmt.Sprintf("capture device failed to start: %v", err))
		return
	}

	active := &activeCapture{session: captureSession, cancel: cancel}
	if !m.captureReady(epoch, active) {
		// Watchdog fired or the user cancelled while ffmpeg was warming up.
		_ = captureSession.Abort()
		cancel()
	}
}

func (m *SessionMachine) captureReady(epoch uint64, active *activeCapture) bool {
	m.mu.Lock()
	if epoch != m.epoch || m.session == nil || m.session.State != domain.SessionStateStarting {
		m.mu.Unlock()
		return false
	}

	started := m.now()
	m.session.StartedAt = &started
	m.session.State = domain.SessionStateRecording
	m.session.StateEnteredAt = started
	m.active = active
	m.arm(m.cfg.Bounds.Recording, domain.SessionStateRecording)
	snapshot := m.session.Clone()
	m.mu.Unlock()

	m.events.SessionStateChanged(domain.SessionStateRecording, domain.ReasonCaptureReady, snapshot)
	m.log.WithField("session", snapshot.ID).Info("recording")
	m.startCaptions(active)
	return true
}

func (m *SessionMachine) captureFailed(epoch uint64, detail string) {
	m.mu.Lock()
	if epoch != m.epoch || m.session == nil {
		m.mu.Unlock()
		return
	}
	m.toErrorLocked(detail, domain.ReasonCaptureFailed, domain.ErrorCodeCapture)
}

// Stop ends recording and hands the session to the pipeline.
func (m *SessionMachine) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.session == nil || m.session.State != domain.SessionStateRecording {
		state := domain.SessionStateIdle
		if m.session != nil {
			state = m.session.State
		}
		m.mu.Unlock()
		return &domain.InvalidTransitionError{Action: "stop", State: state}
	}

	m.session.State = domain.SessionStateStopping
	m.session.StateEnteredAt = m.now()
	epoch := m.arm(m.cfg.Bounds.Stopping, domain.SessionStateStopping)
	active := m.active
	snapshot := m.session.Clone()
	m.mu.Unlock()

	m.events.SessionStateChanged(domain.SessionStateStopping, domain.ReasonStopRequested, snapshot)

	go func() {
		active.stopCaptions()
		artifacts, err := active.session.Stop(ctx)
		active.cancel()
		m.captureFinalized(epoch, artifacts, err)
	}()
	return nil
}

func (m *SessionMachine) captureFinalized(epoch uint64, artifacts ports.CaptureArtifacts, err error) {
	m.mu.Lock()
	if epoch != m.epoch || m.session == nil || m.session.State != domain.SessionStateStopping {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.toErrorLocked(fmt.Sprintf("capture failed to finalize: %v", err), domain.ReasonCaptureFailed, domain.ErrorCodeCapture)
		return
	}

	stopped := m.now()
	m.session.StoppedAt = &stopped
	m.session.AudioPath = artifacts.AudioPath
	m.session.VideoPath = artifacts.VideoPath
	m.session.State = domain.SessionStateProcessing
	m.session.StateEnteredAt = stopped
	m.active = nil

	recorded := time.Duration(0)
	if m.session.StartedAt != nil {
		recorded = stopped.Sub(*m.session.StartedAt)
	}
	nextEpoch := m.arm(m.cfg.Bounds.processingBound(recorded), domain.SessionStateProcessing)
	working := m.session.Clone()
	m.mu.Unlock()

	m.events.SessionStateChanged(domain.SessionStateProcessing, domain.ReasonCaptureFinalized, working.Clone())
	go m.runPipeline(nextEpoch, working)
}

// runPipeline executes the orchestrator over a working copy of the session,
// so snapshot writes keep seeing the last committed data while stages run.
func (m *SessionMachine) runPipeline(epoch uint64, working *domain.Session) {
	job := &pipeline.Job{Session: working, ReportDir: m.cfg.ReportDir}

	err := m.pipeline.Run(context.Background(), job, func(progress domain.Progress) {
		m.events.PipelineProgress(progress)
	})

	m.mu.Lock()
	if epoch != m.epoch || m.session == nil || m.session.State != domain.SessionStateProcessing {
		// The watchdog already forced this session out; drop the stale
		// result, warnings included.
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.toErrorLocked(err.Error(), domain.ReasonPipelineFailed, domain.ErrorCodePipeline)
		return
	}

	working.State = domain.SessionStateComplete
	working.StateEnteredAt = m.now()
	m.session = working
	m.arm(m.cfg.Bounds.TerminalLinger, domain.SessionStateComplete)
	snapshot := working.Clone()
	m.mu.Unlock()

	for _, warning := range job.Warnings {
		m.events.SessionError(domain.ErrorCodePipeline, warning)
	}
	m.discardSnapshot(snapshot.ID)
	m.events.SessionStateChanged(domain.SessionStateComplete, domain.ReasonPipelineComplete, snapshot)
	m.log.WithFields(logrus.Fields{"session": snapshot.ID, "report": snapshot.ReportPath}).Info("report ready")
}

// Cancel discards an in-progress session before processing begins. Capture
// resources are torn down synchronously before Cancel returns.
func (m *SessionMachine) Cancel() error {
	m.mu.Lock()
	if m.session == nil || (m.session.State != domain.SessionStateStarting && m.session.State != domain.SessionStateRecording) {
		state := domain.SessionStateIdle
		if m.session != nil {
			state = m.session.State
		}
		m.mu.Unlock()
		return &domain.InvalidTransitionError{Action: "cancel", State: state}
	}

	sessionID := m.session.ID
	active := m.active
	m.session = nil
	m.active = nil
	m.disarm()
	m.mu.Unlock()

	if active != nil {
		active.stopCaptions()
		_ = active.session.Abort()
		active.cancel()
	}
	m.discardSnapshot(sessionID)
	m.events.SessionStateChanged(domain.SessionStateIdle, domain.ReasonCancelled, nil)
	m.log.WithField("session", sessionID).Info("capture cancelled")
	return nil
}

// AcknowledgeComplete returns the machine to idle after the user has seen
// the finished report.
func (m *SessionMachine) AcknowledgeComplete() error {
	return m.leaveTerminal(domain.SessionStateComplete, "acknowledge", domain.ReasonCompleteAcked)
}

func (m *SessionMachine) leaveTerminal(from domain.SessionState, action string, reason domain.StateReason) error {
	m.mu.Lock()
	if m.session == nil || m.session.State != from {
		state := domain.SessionStateIdle
		if m.session != nil {
			state = m.session.State
		}
		m.mu.Unlock()
		return &domain.InvalidTransitionError{Action: action, State: state}
	}
	sessionID := m.session.ID
	m.session = nil
	m.disarm()
	m.mu.Unlock()

	m.discardSnapshot(sessionID)
	m.events.SessionStateChanged(domain.SessionStateIdle, reason, nil)
	return nil
}

// Status reports the current machine state.
func (m *SessionMachine) Status() domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return domain.Status{
		State:     m.session.State,
		SessionID: m.session.ID,
		Active:    !m.session.State.Terminal(),
		Message:   m.session.Error,
	}
}

// SessionCopy returns the last committed session, for snapshot writes.
// Terminal sessions are not snapshotted: there is nothing left to recover.
func (m *SessionMachine) SessionCopy() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.session.State.Terminal() {
		return nil
	}
	return m.session.Clone()
}

// CheckForIncompleteSession reports a snapshot left behind by a crash.
func (m *SessionMachine) CheckForIncompleteSession() (*domain.Snapshot, error) {
	return m.snapshots.Load()
}

// Recover resumes an interrupted session by re-running the pipeline over
// whatever artifacts the crashed process left on disk.
func (m *SessionMachine) Recover(id string) error {
	snap, err := m.snapshots.LoadByID(id)
	if err != nil {
		return err
	}
	if snap == nil {
		return fmt.Errorf("no recoverable session %q", id)
	}

	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return ErrSessionActive
	}

	session := snap.Session.Clone()
	if session.VideoPath == "" {
		session.VideoPath = filepath.Join(m.cfg.Capture.OutputDir, session.ID, "recording.mkv")
	}
	if session.AudioPath == "" {
		session.AudioPath = filepath.Join(m.cfg.Capture.OutputDir, session.ID, "narration.wav")
	}
	session.State = domain.SessionStateProcessing
	session.StateEnteredAt = m.now()
	session.Error = ""
	m.session = session

	recorded := time.Duration(0)
	if session.StartedAt != nil && session.StoppedAt != nil {
		recorded = session.StoppedAt.Sub(*session.StartedAt)
	}
	epoch := m.arm(m.cfg.Bounds.processingBound(recorded), domain.SessionStateProcessing)
	working := session.Clone()
	m.mu.Unlock()

	m.events.SessionStateChanged(domain.SessionStateProcessing, domain.ReasonSessionRecovered, working.Clone())
	m.log.WithField("session", session.ID).Info("recovering interrupted session")
	go m.runPipeline(epoch, working)
	return nil
}

// DiscardRecovery drops a crash snapshot without recovering it.
func (m *SessionMachine) DiscardRecovery(id string) error {
	if err := m.snapshots.Discard(id); err != nil {
		return err
	}
	m.events.SessionStateChanged(domain.SessionStateIdle, domain.ReasonRecoveryDiscarded, nil)
	return nil
}

// toErrorLocked moves the session to the error state. Callers hold m.mu;
// it is released before events fire.
func (m *SessionMachine) toErrorLocked(detail string, reason domain.StateReason, code domain.ErrorCode) {
	m.session.State = domain.SessionStateError
	m.session.StateEnteredAt = m.now()
	m.session.Error = detail
	active := m.active
	m.active = nil
	m.arm(m.cfg.Bounds.TerminalLinger, domain.SessionStateError)
	snapshot := m.session.Clone()
	m.mu.Unlock()

	if active != nil {
		active.stopCaptions()
		_ = active.session.Abort()
		active.cancel()
	}
	m.events.SessionError(code, detail)
	m.events.SessionStateChanged(domain.SessionStateError, reason, snapshot)
	m.log.WithFields(logrus.Fields{"session": snapshot.ID, "reason": reason}).Error(detail)
}

func (m *SessionMachine) discardSnapshot(id string) {
	if err := m.snapshots.Discard(id); err != nil {
		m.log.WithError(err).WithField("session", id).Warn("snapshot discard failed")
	}
}

type activeCapture struct {
	session ports.CaptureSession
	cancel  context.CancelFunc

	captionMu      sync.Mutex
	captionSession ports.CaptionSession
	captionsDone   chan struct{}
}

func (a *activeCapture) stopCaptions() {
	a.captionMu.Lock()
	session := a.captionSession
	done := a.captionsDone
	a.captionSession = nil
	a.captionMu.Unlock()

	if session == nil {
		return
	}
	_ = session.Close()
	if done != nil {
		<-done
	}
}
