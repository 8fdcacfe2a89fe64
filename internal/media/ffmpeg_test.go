package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExtractFrameInvokesSeekBeforeInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := writeScript(t, "ffmpeg.sh", "#!/usr/bin/env bash\necho \"$@\" > "+argsFile+"\n")

	tools := NewFFmpegTools(script, "")
	outPath := filepath.Join(dir, "frame.png")
	if err := tools.ExtractFrame(context.Background(), "/videos/r.mkv", 12_345, outPath); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("args not recorded: %v", err)
	}
	args := string(data)
	seek := strings.Index(args, "-ss 12.345")
	input := strings.Index(args, "-i /videos/r.mkv")
	if seek < 0 || input < 0 || seek > input {
		t.Fatalf("expected seek before input, got %q", args)
	}
	if !strings.Contains(args, "-frames:v 1") || !strings.Contains(args, outPath) {
		t.Fatalf("unexpected args: %q", args)
	}
}

func TestExtractFrameRejectsNegativeTimestamp(t *testing.T) {
	t.Parallel()

	tools := NewFFmpegTools("ffmpeg", "ffprobe")
	if err := tools.ExtractFrame(context.Background(), "/v.mkv", -1, "/out.png"); err == nil {
		t.Fatalf("expected error for negative timestamp")
	}
}

func TestExtractFrameSurfacesStderr(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "ffmpeg.sh", "#!/usr/bin/env bash\necho 'Output file is empty' 1>&2\nexit 1\n")
	tools := NewFFmpegTools(script, "")

	err := tools.ExtractFrame(context.Background(), "/v.mkv", 1000, "/out.png")
	if err == nil {
		t.Fatalf("expected extraction failure")
	}
	if !strings.Contains(err.Error(), "Output file is empty") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestDurationParsesProbeOutput(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "ffprobe.sh", "#!/usr/bin/env bash\nprintf '95.372000\\n'\n")
	tools := NewFFmpegTools("", script)

	duration, err := tools.Duration(context.Background(), "/videos/r.mkv")
	if err != nil {
		t.Fatalf("duration failed: %v", err)
	}
	if duration != 95*time.Second+372*time.Millisecond {
		t.Fatalf("unexpected duration: %s", duration)
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "ffprobe.sh", "#!/usr/bin/env bash\nprintf 'N/A\\n'\n")
	tools := NewFFmpegTools("", script)
	if _, err := tools.Duration(context.Background(), "/v.mkv"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDurationSurfacesProbeStderr(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "ffprobe.sh", "#!/usr/bin/env bash\necho 'No such file' 1>&2\nexit 1\n")
	tools := NewFFmpegTools("", script)

	_, err := tools.Duration(context.Background(), "/missing.mkv")
	if err == nil {
		t.Fatalf("expected probe failure")
	}
	if !strings.Contains(err.Error(), "No such file") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestFormatSeekTime(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{
		0:      "0.000",
		500:    "0.500",
		12_345: "12.345",
		60_000: "60.000",
	}
	for ms, want := range cases {
		if got := formatSeekTime(ms); got != want {
			t.Fatalf("formatSeekTime(%d) = %q, want %q", ms, got, want)
		}
	}
}
