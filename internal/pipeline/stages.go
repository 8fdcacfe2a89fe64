package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bugbrief/internal/analyze"
	"bugbrief/internal/domain"
	"bugbrief/internal/ports"
	"bugbrief/internal/report"
)

// Stage names, also used for failure tagging.
const (
	StagePrepare        = "prepare"
	StageTranscribe     = "transcribe"
	StageAnalyze        = "analyze"
	StageExtractFrames  = "extract_frames"
	StageGenerateReport = "generate_report"
)

// Job carries one session through the stages. Stages receive the session
// for the duration of processing only and must not retain it afterward.
type Job struct {
	Session *domain.Session

	ReportDir string
	ImagesDir string

	Moments []analyze.Moment
	// Screenshots holds the report-relative image path per moment, empty
	// when extraction was skipped.
	Screenshots []string

	// Warnings collects non-fatal degradations for the caller to surface.
	Warnings []string
}

// ProgressFunc reports stage-local progress, 0-100.
type ProgressFunc func(percent int, label string)

// Stage is one sequentially invoked pipeline unit.
type Stage interface {
	Name() string
	Run(ctx context.Context, job *Job, progress ProgressFunc) error
}

// TierSelector picks the transcription tier for a run.
type TierSelector interface {
	SelectBest(ctx context.Context) domain.Tier
}

// PrepareStage finalizes captured assets and rejects empty recordings.
type PrepareStage struct {
	Prober ports.MediaProber
}

func (PrepareStage) Name() string { return StagePrepare }

func (s PrepareStage) Run(ctx context.Context, job *Job, progress ProgressFunc) error {
	progress(0, "Validating recording")

	session := job.Session
	if session.VideoPath == "" || session.AudioPath == "" {
		return errors.New("capture left no artifacts")
	}
	if _, err := os.Stat(session.VideoPath); err != nil {
		return fmt.Errorf("video artifact is missing: %w", err)
	}
	if _, err := os.Stat(session.AudioPath); err != nil {
		return fmt.Errorf("audio artifact is missing: %w", err)
	}

	duration, err := s.Prober.Duration(ctx, session.VideoPath)
	if err != nil {
		return fmt.Errorf("could not probe recording: %w", err)
	}
	if duration <= 0 {
		return errors.New("recording is empty")
	}
	session.DurationMs = duration.Milliseconds()
	progress(60, "Recording validated")

	job.ReportDir = filepath.Join(job.ReportDir, session.ID)
	job.ImagesDir = filepath.Join(job.ReportDir, "images")
	if err := os.MkdirAll(job.ImagesDir, 0o755); err != nil {
		return fmt.Errorf("could not create report directory: %w", err)
	}

	progress(100, "Assets ready")
	return nil
}

// TranscribeStage invokes the selected tier. The timer tier yields an empty
// transcript, which is a valid outcome, not a failure.
type TranscribeStage struct {
	Selector     TierSelector
	Transcribers map[domain.Tier]ports.Transcriber
}

func (TranscribeStage) Name() string { return StageTranscribe }

func (s TranscribeStage) Run(ctx context.Context, job *Job, progress ProgressFunc) error {
	session := job.Session

	tier := s.Selector.SelectBest(ctx)
	session.Tier = tier
	progress(5, fmt.Sprintf("Transcribing via %s tier", tier))

	transcriber, ok := s.Transcribers[tier]
	if !ok {
		return fmt.Errorf("no transcriber wired for tier %q", tier)
	}

	transcript, err := transcriber.Transcribe(ctx, session.AudioPath)
	if err != nil {
		return err
	}

	session.Transcript = &transcript
	progress(100, fmt.Sprintf("Transcribed %d words", len(transcript.Words)))
	return nil
}

// AnalyzeStage scans the transcript for key moments.
type AnalyzeStage struct {
	Options analyze.Options
}

func (AnalyzeStage) Name() string { return StageAnalyze }

func (s AnalyzeStage) Run(_ context.Context, job *Job, progress ProgressFunc) error {
	progress(0, "Scanning narration for key moments")

	session := job.Session
	transcript := domain.Transcript{}
	if session.Transcript != nil {
		transcript = *session.Transcript
	}

	job.Moments = analyze.Moments(transcript, time.Duration(session.DurationMs)*time.Millisecond, s.Options)
	progress(100, fmt.Sprintf("Identified %d key moments", len(job.Moments)))
	return nil
}

// FramesStage extracts one still per key moment. A failed extraction skips
// that moment only; the rest of the report survives.
type FramesStage struct {
	Extractor ports.FrameExtractor
}

func (FramesStage) Name() string { return StageExtractFrames }

func (s FramesStage) Run(ctx context.Context, job *Job, progress ProgressFunc) error {
	session := job.Session
	job.Screenshots = make([]string, len(job.Moments))

	if len(job.Moments) == 0 {
		progress(100, "No frames to extract")
		return nil
	}

	for i, moment := range job.Moments {
		name := fmt.Sprintf("fb-%03d.png", i+1)
		outPath := filepath.Join(job.ImagesDir, name)

		if err := s.Extractor.ExtractFrame(ctx, session.VideoPath, moment.TimestampMs, outPath); err != nil {
			job.Warnings = append(job.Warnings, fmt.Sprintf("frame at %s skipped: %v", report.Timestamp(moment.TimestampMs), err))
		} else {
			job.Screenshots[i] = filepath.Join("images", name)
			session.ScreenshotPaths = append(session.ScreenshotPaths, outPath)
		}
		progress((i+1)*100/len(job.Moments), fmt.Sprintf("Extracted frame %d of %d", i+1, len(job.Moments)))
	}
	return nil
}

// ReportStage assembles the feedback items and writes the Markdown report.
type ReportStage struct {
	Now func() time.Time
}

func (ReportStage) Name() string { return StageGenerateReport }

func (s ReportStage) Run(_ context.Context, job *Job, progress ProgressFunc) error {
	progress(0, "Assembling report")

	session := job.Session
	transcript := domain.Transcript{}
	if session.Transcript != nil {
		transcript = *session.Transcript
	}

	items := make([]domain.FeedbackItem, 0, len(job.Moments))
	for i, moment := range job.Moments {
		endMs := session.DurationMs
		if i+1 < len(job.Moments) {
			endMs = job.Moments[i+1].TimestampMs
		}
		screenshot := ""
		if i < len(job.Screenshots) {
			screenshot = job.Screenshots[i]
		}
		items = append(items, domain.FeedbackItem{
			ID:          fmt.Sprintf("FB-%03d", i+1),
			TimestampMs: moment.TimestampMs,
			Text:        analyze.Excerpt(transcript, moment.TimestampMs, endMs),
			Screenshot:  screenshot,
			Kind:        moment.Kind,
		})
	}
	session.FeedbackItems = items
	progress(40, "Rendering Markdown")

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	recorded := time.Time{}
	if session.StartedAt != nil {
		recorded = *session.StartedAt
	}
	meta := report.Metadata{
		SessionID: session.ID,
		Recorded:  recorded,
		Duration:  time.Duration(session.DurationMs) * time.Millisecond,
		Tier:      session.Tier,
		Generated: now(),
	}

	rendered := report.Render(meta, items, transcript.Text())
	reportPath := filepath.Join(job.ReportDir, "report.md")
	if err := os.WriteFile(reportPath, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("could not write report: %w", err)
	}

	session.ReportPath = reportPath
	progress(100, "Report written")
	return nil
}
