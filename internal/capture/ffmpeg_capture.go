package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"bugbrief/internal/ports"
)

// FFmpegCapture records the screen and the microphone with a single ffmpeg
// process. The video and a 16-bit WAV land in the session output directory;
// raw PCM is teed to stdout as the live-caption audio tap.
type FFmpegCapture struct {
	command string
}

func NewFFmpegCapture(command string) *FFmpegCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegCapture{command: command}
}

func (c *FFmpegCapture) Start(ctx context.Context, cfg ports.CaptureConfig) (ports.CaptureSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 15
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "pulse"
	}
	if cfg.AudioDevice == "" {
		cfg.AudioDevice = "default"
	}
	if cfg.Display == "" {
		cfg.Display = ":0.0"
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("capture output directory is required")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}

	videoPath := filepath.Join(cfg.OutputDir, "recording.mkv")
	audioPath := filepath.Join(cfg.OutputDir, "narration.wav")

	args := captureArgs(cfg, videoPath, audioPath)

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// ffmpeg fails fast on a bad display or device; give it a beat.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, trimmed(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegSession{
		stdout:    stdout,
		stderr:    &stderr,
		process:   cmd.Process,
		waitErr:   waitErr,
		videoPath: videoPath,
		audioPath: audioPath,
	}, nil
}

func captureArgs(cfg ports.CaptureConfig, videoPath, audioPath string) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "x11grab",
		"-framerate", strconv.Itoa(cfg.FrameRate),
		"-i", cfg.Display,
		"-f", cfg.AudioFormat,
		"-i", cfg.AudioDevice,
		"-map", "0:v",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		"-y", videoPath,
		"-map", "1:a",
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-y", audioPath,
		"-map", "1:a",
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	videoPath string
	audioPath string

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) AudioTap() io.Reader {
	return s.stdout
}

func (s *ffmpegSession) Stop(ctx context.Context) (ports.CaptureArtifacts, error) {
	s.shutdown(2500 * time.Millisecond)
	if s.stopErr != nil {
		return ports.CaptureArtifacts{}, s.stopErr
	}

	if _, err := os.Stat(s.videoPath); err != nil {
		return ports.CaptureArtifacts{}, fmt.Errorf("capture produced no video: %w", err)
	}
	if _, err := os.Stat(s.audioPath); err != nil {
		return ports.CaptureArtifacts{}, fmt.Errorf("capture produced no audio: %w", err)
	}

	return ports.CaptureArtifacts{VideoPath: s.videoPath, AudioPath: s.audioPath}, nil
}

func (s *ffmpegSession) Abort() error {
	s.shutdown(500 * time.Millisecond)
	_ = os.Remove(s.videoPath)
	_ = os.Remove(s.audioPath)
	return s.stopErr
}

// shutdown asks ffmpeg to finalize via SIGINT, escalating to SIGKILL after
// the grace period so a wedged encoder cannot hold the session open.
func (s *ffmpegSession) shutdown(grace time.Duration) {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(grace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, trimmed(s.stderr.String()))
		}
	})
}

// ffmpeg exits non-zero on SIGINT even after a clean finalize.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
