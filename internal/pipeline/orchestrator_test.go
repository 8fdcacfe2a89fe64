package pipeline

import (
	"context"
	"errors"
	"testing"

	"bugbrief/internal/domain"
)

type fakeStage struct {
	name string
	run  func(ctx context.Context, job *Job, progress ProgressFunc) error
}

func (s fakeStage) Name() string { return s.name }

func (s fakeStage) Run(ctx context.Context, job *Job, progress ProgressFunc) error {
	if s.run == nil {
		return nil
	}
	return s.run(ctx, job, progress)
}

func evenWeights(n int) []stageWeight {
	out := make([]stageWeight, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, stageWeight{start: i * 100 / n, end: (i + 1) * 100 / n})
	}
	return out
}

func collectProgress(emitted *[]domain.Progress) EmitFunc {
	return func(p domain.Progress) { *emitted = append(*emitted, p) }
}

func TestRunEmitsMonotonicProgress(t *testing.T) {
	t.Parallel()

	noisy := func(_ context.Context, _ *Job, progress ProgressFunc) error {
		// Out-of-order and out-of-range stage reports must not leak through.
		progress(50, "")
		progress(10, "")
		progress(120, "")
		progress(-5, "")
		return nil
	}
	stages := []Stage{
		fakeStage{name: StagePrepare, run: noisy},
		fakeStage{name: StageTranscribe, run: noisy},
		fakeStage{name: StageAnalyze, run: noisy},
		fakeStage{name: StageExtractFrames, run: noisy},
		fakeStage{name: StageGenerateReport, run: noisy},
	}

	var emitted []domain.Progress
	orch := NewWithStages(stages, nil, nil)
	job := &Job{Session: &domain.Session{ID: "s1"}}
	if err := orch.Run(context.Background(), job, collectProgress(&emitted)); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(emitted) == 0 {
		t.Fatalf("expected progress events")
	}
	last := -1
	for i, p := range emitted {
		if p.Percent < last {
			t.Fatalf("progress regressed at %d: %d -> %d", i, last, p.Percent)
		}
		last = p.Percent
	}
	if emitted[len(emitted)-1].Percent != 100 {
		t.Fatalf("expected final 100%%, got %d", emitted[len(emitted)-1].Percent)
	}
}

func TestRunTranscribeFailureDegradesToEmptyTranscript(t *testing.T) {
	t.Parallel()

	stages := []Stage{
		fakeStage{name: StagePrepare},
		fakeStage{name: StageTranscribe, run: func(context.Context, *Job, ProgressFunc) error {
			return errors.New("cloud unreachable")
		}},
		fakeStage{name: StageAnalyze},
		fakeStage{name: StageExtractFrames},
		fakeStage{name: StageGenerateReport},
	}

	orch := NewWithStages(stages, nil, nil)
	job := &Job{Session: &domain.Session{ID: "s1"}}
	if err := orch.Run(context.Background(), job, nil); err != nil {
		t.Fatalf("degraded run must not fail: %v", err)
	}

	if job.Session.Transcript == nil || !job.Session.Transcript.Empty() {
		t.Fatalf("expected empty transcript after degradation, got %+v", job.Session.Transcript)
	}
	if len(job.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", job.Warnings)
	}
}

func TestRunAnalyzeAndFramesFailuresDegrade(t *testing.T) {
	t.Parallel()

	fail := func(context.Context, *Job, ProgressFunc) error { return errors.New("boom") }
	stages := []Stage{
		fakeStage{name: StagePrepare},
		fakeStage{name: StageTranscribe},
		fakeStage{name: StageAnalyze, run: fail},
		fakeStage{name: StageExtractFrames, run: fail},
		fakeStage{name: StageGenerateReport},
	}

	orch := NewWithStages(stages, nil, nil)
	job := &Job{Session: &domain.Session{ID: "s1"}}
	if err := orch.Run(context.Background(), job, nil); err != nil {
		t.Fatalf("degraded run must not fail: %v", err)
	}
	if len(job.Warnings) != 2 {
		t.Fatalf("expected two warnings, got %v", job.Warnings)
	}
}

func TestRunPrepareFailureIsFatal(t *testing.T) {
	t.Parallel()

	stages := []Stage{
		fakeStage{name: StagePrepare, run: func(context.Context, *Job, ProgressFunc) error {
			return errors.New("no artifacts")
		}},
		fakeStage{name: StageTranscribe},
	}

	orch := NewWithStages(stages, evenWeights(2), nil)
	err := orch.Run(context.Background(), &Job{Session: &domain.Session{ID: "s1"}}, nil)

	var failure *domain.StageFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected StageFailure, got %v", err)
	}
	if !failure.Fatal || failure.Stage != StagePrepare {
		t.Fatalf("unexpected failure: %+v", failure)
	}
}

func TestRunReportFailureIsFatal(t *testing.T) {
	t.Parallel()

	stages := []Stage{
		fakeStage{name: StagePrepare},
		fakeStage{name: StageGenerateReport, run: func(context.Context, *Job, ProgressFunc) error {
			return errors.New("disk full")
		}},
	}

	orch := NewWithStages(stages, evenWeights(2), nil)
	err := orch.Run(context.Background(), &Job{Session: &domain.Session{ID: "s1"}}, nil)

	var failure *domain.StageFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected StageFailure, got %v", err)
	}
	if !failure.Fatal || failure.Stage != StageGenerateReport {
		t.Fatalf("unexpected failure: %+v", failure)
	}
}

func TestRunCancellationIsFatalEvenForDegradableStages(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	stages := []Stage{
		fakeStage{name: StageTranscribe, run: func(ctx context.Context, _ *Job, _ ProgressFunc) error {
			cancel()
			return ctx.Err()
		}},
	}

	orch := NewWithStages(stages, evenWeights(1), nil)
	err := orch.Run(ctx, &Job{Session: &domain.Session{ID: "s1"}}, nil)

	var failure *domain.StageFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected StageFailure, got %v", err)
	}
	if !failure.Fatal || !errors.Is(failure, context.Canceled) {
		t.Fatalf("expected fatal cancellation, got %+v", failure)
	}
}

func TestRunStopsAtFirstFatalStage(t *testing.T) {
	t.Parallel()

	ran := []string{}
	mark := func(name string, err error) fakeStage {
		return fakeStage{name: name, run: func(context.Context, *Job, ProgressFunc) error {
			ran = append(ran, name)
			return err
		}}
	}

	stages := []Stage{
		mark(StagePrepare, errors.New("bad capture")),
		mark(StageTranscribe, nil),
	}
	orch := NewWithStages(stages, evenWeights(2), nil)
	if err := orch.Run(context.Background(), &Job{Session: &domain.Session{ID: "s1"}}, nil); err == nil {
		t.Fatalf("expected failure")
	}
	if len(ran) != 1 || ran[0] != StagePrepare {
		t.Fatalf("expected only prepare to run, got %v", ran)
	}
}
