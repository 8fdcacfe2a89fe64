package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFmpegTools extracts frames and probes media using the ffmpeg/ffprobe
// binaries.
type FFmpegTools struct {
	ffmpeg  string
	ffprobe string
}

func NewFFmpegTools(ffmpegCommand, ffprobeCommand string) *FFmpegTools {
	if ffmpegCommand == "" {
		ffmpegCommand = "ffmpeg"
	}
	if ffprobeCommand == "" {
		ffprobeCommand = "ffprobe"
	}
	return &FFmpegTools{ffmpeg: ffmpegCommand, ffprobe: ffprobeCommand}
}

// ExtractFrame writes the frame nearest timestampMs as a single image.
func (t *FFmpegTools) ExtractFrame(ctx context.Context, videoPath string, timestampMs int64, outPath string) error {
	if timestampMs < 0 {
		return errors.New("frame timestamp must not be negative")
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeekTime(timestampMs),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y", outPath,
	}

	cmd := exec.CommandContext(ctx, t.ffmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("frame extraction failed: %w: %s", err, detail)
		}
		return fmt.Errorf("frame extraction failed: %w", err)
	}
	return nil
}

// Duration returns the container duration of a media file.
func (t *FFmpegTools) Duration(ctx context.Context, mediaPath string) (time.Duration, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	}

	cmd := exec.CommandContext(ctx, t.ffprobe, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return 0, fmt.Errorf("probe failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return 0, fmt.Errorf("probe failed: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable probe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative media duration %f", seconds)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func formatSeekTime(timestampMs int64) string {
	return strconv.FormatFloat(float64(timestampMs)/1000.0, 'f', 3, 64)
}
