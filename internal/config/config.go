package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the capture engine.
type Config struct {
	Capture   CaptureConfig
	Deepgram  DeepgramConfig
	Whisper   WhisperConfig
	Dictation DictationConfig
	Tiers     TierConfig
	Watchdog  WatchdogConfig
	Snapshot  SnapshotConfig
	Report    ReportConfig
}

type CaptureConfig struct {
	FFmpegCommand  string
	FFprobeCommand string
	Display        string
	AudioFormat    string
	AudioDevice    string
	SampleRate     int
	Channels       int
	FrameRate      int
	OutputDir      string
	LiveCaptions   bool
}

type DeepgramConfig struct {
	APIKey     string
	APIBaseURL string
	Model      string
	Language   string
}

type WhisperConfig struct {
	Command   string
	ModelPath string
}

type DictationConfig struct {
	Command string
}

type TierConfig struct {
	// FallbackOrder lists the transcribing tiers tried when the preference
	// is unset or unavailable. The timer tier is always the implicit floor.
	FallbackOrder []string
	ProbeTimeout  time.Duration
}

type WatchdogConfig struct {
	Starting       time.Duration
	Recording      time.Duration
	Stopping       time.Duration
	ProcessingBase time.Duration
	ProcessingMax  time.Duration
	TerminalLinger time.Duration
}

type SnapshotConfig struct {
	Dir      string
	Interval time.Duration
}

type ReportConfig struct {
	OutputDir string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	dataDir := envOrDefault("BUGBRIEF_DATA_DIR", filepath.Join(home, ".local", "share", "bugbrief"))

	cfg := Config{
		Capture: CaptureConfig{
			FFmpegCommand:  envOrDefault("BUGBRIEF_FFMPEG_COMMAND", "ffmpeg"),
			FFprobeCommand: envOrDefault("BUGBRIEF_FFPROBE_COMMAND", "ffprobe"),
			Display:        envOrDefault("BUGBRIEF_DISPLAY", ":0.0"),
			AudioFormat:    envOrDefault("BUGBRIEF_AUDIO_INPUT_FORMAT", "pulse"),
			AudioDevice:    envOrDefault("BUGBRIEF_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:     envOrDefaultInt("BUGBRIEF_SAMPLE_RATE", 16000),
			Channels:       envOrDefaultInt("BUGBRIEF_CHANNELS", 1),
			FrameRate:      envOrDefaultInt("BUGBRIEF_FRAME_RATE", 15),
			OutputDir:      envOrDefault("BUGBRIEF_CAPTURE_DIR", filepath.Join(dataDir, "captures")),
			LiveCaptions:   envOrDefaultBool("BUGBRIEF_LIVE_CAPTIONS", true),
		},
		Deepgram: DeepgramConfig{
			APIKey:     strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL: envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:      envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:   strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
		},
		Whisper: WhisperConfig{
			Command:   envOrDefault("BUGBRIEF_WHISPER_COMMAND", "whisper-cli"),
			ModelPath: envOrDefault("BUGBRIEF_WHISPER_MODEL", filepath.Join(home, ".cache", "bugbrief", "models", "ggml-base.en.bin")),
		},
		Dictation: DictationConfig{
			Command: envOrDefault("BUGBRIEF_DICTATION_COMMAND", "hear"),
		},
		Tiers: TierConfig{
			FallbackOrder: splitList(envOrDefault("BUGBRIEF_TIER_ORDER", "cloud,local,dictation")),
			ProbeTimeout:  envOrDefaultMillis("BUGBRIEF_PROBE_TIMEOUT_MS", 1500),
		},
		Watchdog: WatchdogConfig{
			Starting:       envOrDefaultMillis("BUGBRIEF_STARTING_TIMEOUT_MS", 5_000),
			Recording:      envOrDefaultMillis("BUGBRIEF_RECORDING_TIMEOUT_MS", 1_800_000),
			Stopping:       envOrDefaultMillis("BUGBRIEF_STOPPING_TIMEOUT_MS", 3_000),
			ProcessingBase: envOrDefaultMillis("BUGBRIEF_PROCESSING_BASE_TIMEOUT_MS", 30_000),
			ProcessingMax:  envOrDefaultMillis("BUGBRIEF_PROCESSING_MAX_TIMEOUT_MS", 600_000),
			TerminalLinger: envOrDefaultMillis("BUGBRIEF_TERMINAL_LINGER_MS", 60_000),
		},
		Snapshot: SnapshotConfig{
			Dir:      envOrDefault("BUGBRIEF_SNAPSHOT_DIR", filepath.Join(dataDir, "snapshots")),
			Interval: envOrDefaultMillis("BUGBRIEF_SNAPSHOT_INTERVAL_MS", 2_000),
		},
		Report: ReportConfig{
			OutputDir: envOrDefault("BUGBRIEF_REPORT_DIR", filepath.Join(dataDir, "reports")),
		},
	}

	if cfg.Capture.SampleRate <= 0 {
		cfg.Capture.SampleRate = 16000
	}
	if cfg.Capture.Channels <= 0 {
		cfg.Capture.Channels = 1
	}
	if cfg.Capture.FrameRate <= 0 {
		cfg.Capture.FrameRate = 15
	}
	if len(cfg.Tiers.FallbackOrder) == 0 {
		cfg.Tiers.FallbackOrder = []string{"cloud", "local", "dictation"}
	}
	if cfg.Watchdog.ProcessingMax < cfg.Watchdog.ProcessingBase {
		cfg.Watchdog.ProcessingMax = cfg.Watchdog.ProcessingBase
	}
	if cfg.Snapshot.Interval <= 0 {
		cfg.Snapshot.Interval = 2 * time.Second
	}

	return cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback int) time.Duration {
	parsed := envOrDefaultInt(key, fallback)
	if parsed < 0 {
		parsed = fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
