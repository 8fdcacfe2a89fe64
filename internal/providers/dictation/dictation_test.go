package dictation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeProber struct {
	duration time.Duration
	err      error
}

func (f fakeProber) Duration(context.Context, string) (time.Duration, error) {
	return f.duration, f.err
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestTranscribeSpreadsRecognizedText(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "hear.sh", "#!/usr/bin/env bash\nprintf 'the save button crashes'\n")
	transcriber := NewTranscriber(Config{Command: script}, fakeProber{duration: 4 * time.Second})

	transcript, err := transcriber.Transcribe(context.Background(), "/tmp/narration.wav")
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}

	if len(transcript.Words) != 4 {
		t.Fatalf("expected 4 words, got %+v", transcript.Words)
	}
	if transcript.Words[0].StartMs != 0 || transcript.Words[3].EndMs != 4000 {
		t.Fatalf("timings not spread over the recording: %+v", transcript.Words)
	}
}

func TestTranscribeEmptyRecognition(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "hear.sh", "#!/usr/bin/env bash\nprintf ''\n")
	transcriber := NewTranscriber(Config{Command: script}, fakeProber{duration: time.Second})

	transcript, err := transcriber.Transcribe(context.Background(), "/tmp/narration.wav")
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if !transcript.Empty() {
		t.Fatalf("expected empty transcript, got %+v", transcript)
	}
}

func TestTranscribeSurfacesRecognizerStderr(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "hear.sh", "#!/usr/bin/env bash\necho 'no speech detected' 1>&2\nexit 1\n")
	transcriber := NewTranscriber(Config{Command: script}, fakeProber{duration: time.Second})

	_, err := transcriber.Transcribe(context.Background(), "/tmp/narration.wav")
	if err == nil {
		t.Fatalf("expected recognizer failure")
	}
	if !strings.Contains(err.Error(), "no speech detected") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestTranscribeProbeFailure(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "hear.sh", "#!/usr/bin/env bash\nprintf 'words'\n")
	transcriber := NewTranscriber(Config{Command: script}, fakeProber{err: errors.New("ffprobe missing")})

	if _, err := transcriber.Transcribe(context.Background(), "/tmp/narration.wav"); err == nil {
		t.Fatalf("expected probe failure")
	}
}

func TestSpread(t *testing.T) {
	t.Parallel()

	transcript := Spread("one two three", 3000)
	if len(transcript.Words) != 3 {
		t.Fatalf("unexpected words: %+v", transcript.Words)
	}
	for i, want := range []int64{0, 1000, 2000} {
		if transcript.Words[i].StartMs != want {
			t.Fatalf("word %d start: got %d want %d", i, transcript.Words[i].StartMs, want)
		}
	}

	if got := Spread("   ", 1000); !got.Empty() {
		t.Fatalf("expected empty transcript for blank text")
	}

	// Unknown duration synthesizes a nominal pace instead of zero-width words.
	fallback := Spread("a b", 0)
	if fallback.Words[1].EndMs <= fallback.Words[1].StartMs {
		t.Fatalf("expected non-degenerate timings: %+v", fallback.Words)
	}
}
