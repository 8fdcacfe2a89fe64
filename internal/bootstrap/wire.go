package bootstrap

import (
	"os"

	"github.com/sirupsen/logrus"

	"bugbrief/internal/analyze"
	"bugbrief/internal/capture"
	"bugbrief/internal/config"
	"bugbrief/internal/domain"
	"bugbrief/internal/media"
	"bugbrief/internal/pipeline"
	"bugbrief/internal/providers/deepgram"
	"bugbrief/internal/providers/dictation"
	"bugbrief/internal/providers/whisper"
	"bugbrief/internal/recovery"
	"bugbrief/internal/tiers"
	"bugbrief/internal/usecase"

	"bugbrief/internal/ports"
)

// Services is the assembled runtime graph.
type Services struct {
	Machine *usecase.SessionMachine
	Tiers   *tiers.Manager
	Status  *tiers.StatusProvider
	Saver   *recovery.Saver
	Config  config.Config
	Log     *logrus.Logger
}

// Build wires all engine dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	log := newLogger()

	mediaTools := media.NewFFmpegTools(cfg.Capture.FFmpegCommand, cfg.Capture.FFprobeCommand)

	deepgramCfg := deepgram.Config{
		APIKey:     cfg.Deepgram.APIKey,
		APIBaseURL: cfg.Deepgram.APIBaseURL,
		Model:      cfg.Deepgram.Model,
		Language:   cfg.Deepgram.Language,
	}

	statusProvider := tiers.NewStatusProvider(tiers.ProviderConfig{
		CloudAPIKey:      cfg.Deepgram.APIKey,
		CloudBaseURL:     cfg.Deepgram.APIBaseURL,
		WhisperCommand:   cfg.Whisper.Command,
		WhisperModelPath: cfg.Whisper.ModelPath,
		DictationCommand: cfg.Dictation.Command,
		ProbeTimeout:     cfg.Tiers.ProbeTimeout,
	})
	tierManager := tiers.NewManager(statusProvider, cfg.Tiers.FallbackOrder)

	orchestrator := pipeline.New(
		pipeline.PrepareStage{Prober: mediaTools},
		pipeline.TranscribeStage{
			Selector: tierManager,
			Transcribers: map[domain.Tier]ports.Transcriber{
				domain.TierCloud:     deepgram.NewTranscriber(deepgramCfg),
				domain.TierLocal:     whisper.NewTranscriber(whisper.Config{Command: cfg.Whisper.Command, ModelPath: cfg.Whisper.ModelPath}),
				domain.TierDictation: dictation.NewTranscriber(dictation.Config{Command: cfg.Dictation.Command}, mediaTools),
				domain.TierTimer:     tiers.TimerTranscriber{},
			},
		},
		pipeline.AnalyzeStage{Options: analyze.Options{}},
		pipeline.FramesStage{Extractor: mediaTools},
		pipeline.ReportStage{},
		log,
	)

	var captions ports.CaptionStreamer
	if cfg.Capture.LiveCaptions && cfg.Deepgram.APIKey != "" {
		captions = deepgram.NewStreamer(deepgramCfg, deepgram.StreamConfig{
			SampleRate: cfg.Capture.SampleRate,
			Channels:   cfg.Capture.Channels,
		})
	}

	snapshots := recovery.NewStore(cfg.Snapshot.Dir)

	machine := usecase.NewSessionMachine(
		capture.NewFFmpegCapture(cfg.Capture.FFmpegCommand),
		orchestrator,
		captions,
		snapshots,
		eventSink,
		log,
		usecase.Config{
			Capture: ports.CaptureConfig{
				Display:     cfg.Capture.Display,
				AudioFormat: cfg.Capture.AudioFormat,
				AudioDevice: cfg.Capture.AudioDevice,
				SampleRate:  cfg.Capture.SampleRate,
				Channels:    cfg.Capture.Channels,
				FrameRate:   cfg.Capture.FrameRate,
				OutputDir:   cfg.Capture.OutputDir,
			},
			Bounds: usecase.Bounds{
				Starting:       cfg.Watchdog.Starting,
				Recording:      cfg.Watchdog.Recording,
				Stopping:       cfg.Watchdog.Stopping,
				ProcessingBase: cfg.Watchdog.ProcessingBase,
				ProcessingMax:  cfg.Watchdog.ProcessingMax,
				TerminalLinger: cfg.Watchdog.TerminalLinger,
			},
			ReportDir: cfg.Report.OutputDir,
		},
	)

	saver := recovery.NewSaver(snapshots, machine.SessionCopy, cfg.Snapshot.Interval, log)

	return Services{
		Machine: machine,
		Tiers:   tierManager,
		Status:  statusProvider,
		Saver:   saver,
		Config:  cfg,
		Log:     log,
	}, nil
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if level, err := logrus.ParseLevel(os.Getenv("BUGBRIEF_LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}
	return log
}
