package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"bugbrief/internal/domain"
)

// stageWeights maps each stage onto its slice of the global percent scale.
// Boundaries are fixed so overall progress stays monotonic even though
// stage durations vary wildly.
type stageWeight struct {
	start int
	end   int
}

var defaultWeights = []stageWeight{
	{0, 10},   // prepare
	{10, 45},  // transcribe
	{45, 60},  // analyze
	{60, 85},  // extract frames
	{85, 100}, // generate report
}

// EmitFunc receives aggregated progress events.
type EmitFunc func(progress domain.Progress)

// Orchestrator runs the five stages strictly in order for a single session,
// aggregates their progress into one percent stream, and classifies
// failures. It never retries; the caller decides what a failure means.
type Orchestrator struct {
	stages  []Stage
	weights []stageWeight
	log     *logrus.Logger
}

// New builds the standard five-stage pipeline.
func New(prepare PrepareStage, transcribe TranscribeStage, analyzeStage AnalyzeStage, frames FramesStage, reportStage ReportStage, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		stages:  []Stage{prepare, transcribe, analyzeStage, frames, reportStage},
		weights: defaultWeights,
		log:     log,
	}
}

// NewWithStages is the seam for tests injecting fake stages. Weights must
// cover the stages in order and end at 100.
func NewWithStages(stages []Stage, weights []stageWeight, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if weights == nil {
		weights = defaultWeights
	}
	return &Orchestrator{stages: stages, weights: weights, log: log}
}

// Run executes the pipeline over the job. Fatal failures return a
// *domain.StageFailure with Fatal set; non-fatal degradations land in
// job.Warnings and the run continues.
func (o *Orchestrator) Run(ctx context.Context, job *Job, emit EmitFunc) error {
	if emit == nil {
		emit = func(domain.Progress) {}
	}

	lastPercent := 0
	for i, stage := range o.stages {
		weight := o.weights[i]
		stageLog := o.log.WithFields(logrus.Fields{
			"session": job.Session.ID,
			"stage":   stage.Name(),
		})

		progress := func(percent int, label string) {
			if percent < 0 {
				percent = 0
			}
			if percent > 100 {
				percent = 100
			}
			global := weight.start + percent*(weight.end-weight.start)/100
			if global < lastPercent {
				global = lastPercent
			}
			lastPercent = global
			emit(domain.Progress{Percent: global, Stage: stage.Name(), Label: label})
		}

		stageLog.Debug("stage started")
		err := stage.Run(ctx, job, progress)
		if err == nil {
			progress(100, "")
			stageLog.Debug("stage finished")
			continue
		}

		if ctx.Err() != nil {
			return &domain.StageFailure{Stage: stage.Name(), Fatal: true, Err: ctx.Err()}
		}

		switch stage.Name() {
		case StageTranscribe:
			// Degrade to an empty transcript: the user still gets a report
			// with screenshots but no narration text.
			stageLog.WithError(err).Warn("transcription failed, continuing without narration")
			job.Session.Transcript = &domain.Transcript{}
			job.Warnings = append(job.Warnings, fmt.Sprintf("transcription unavailable: %v", err))
			progress(100, "Continuing without narration")
		case StageAnalyze, StageExtractFrames:
			stageLog.WithError(err).Warn("stage degraded, continuing")
			job.Warnings = append(job.Warnings, fmt.Sprintf("%s degraded: %v", stage.Name(), err))
			progress(100, "")
		default:
			stageLog.WithError(err).Error("stage failed")
			return &domain.StageFailure{Stage: stage.Name(), Fatal: true, Err: err}
		}
	}

	emit(domain.Progress{Percent: 100, Stage: StageGenerateReport, Label: "Done"})
	return nil
}
