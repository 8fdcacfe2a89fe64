// Package analyze scans a timed transcript for the moments worth pairing
// with a video frame. It is deterministic, side-effect free, and linear in
// the transcript length.
package analyze

import (
	"strings"
	"time"

	"bugbrief/internal/domain"
)

// Moment is one candidate timestamp for frame extraction.
type Moment struct {
	TimestampMs int64
	Kind        domain.MomentKind
}

// Options tune the heuristics. Zero values take the defaults.
type Options struct {
	// PauseGapMs is the silence between words treated as a boundary.
	PauseGapMs int64
	// MinSpacingMs suppresses moments crowding an earlier one.
	MinSpacingMs int64
	// IntervalMs paces fallback moments when there is no transcript.
	IntervalMs int64
	// MaxMoments caps the report size.
	MaxMoments int
}

func (o Options) withDefaults() Options {
	if o.PauseGapMs <= 0 {
		o.PauseGapMs = 1200
	}
	if o.MinSpacingMs <= 0 {
		o.MinSpacingMs = 3000
	}
	if o.IntervalMs <= 0 {
		o.IntervalMs = 10_000
	}
	if o.MaxMoments <= 0 {
		o.MaxMoments = 16
	}
	return o
}

var emphasisWords = wordSet(
	"look", "see", "notice", "watch", "important", "highlight", "attention",
)

var issueWords = wordSet(
	"error", "bug", "broken", "crash", "crashes", "crashed", "fails",
	"failed", "failing", "wrong", "issue", "problem", "glitch", "freezes",
	"frozen", "hangs",
)

var issuePhrases = wordSet(
	"doesn't work", "not working", "should be", "supposed to", "instead of",
	"expected to", "no response",
)

var topicStarters = wordSet(
	"so", "now", "next", "then", "okay", "alright", "first", "second",
	"finally", "anyway",
)

// Moments returns candidate key moments in ascending timestamp order,
// clamped to the recording duration. An empty transcript degrades to
// fixed-interval moments so a report still gets periodic screenshots.
func Moments(tr domain.Transcript, total time.Duration, opts Options) []Moment {
	opts = opts.withDefaults()
	totalMs := total.Milliseconds()
	if totalMs <= 0 {
		totalMs = tr.DurationMs()
	}
	if totalMs <= 0 {
		return nil
	}

	if tr.Empty() {
		return intervalMoments(totalMs, opts)
	}

	candidates := scan(tr, opts)
	return thin(candidates, totalMs, opts)
}

func scan(tr domain.Transcript, opts Options) []Moment {
	words := tr.Words
	out := make([]Moment, 0, len(words)/8+1)
	out = append(out, Moment{TimestampMs: words[0].StartMs, Kind: domain.MomentOpening})

	for i, word := range words {
		normalized := normalize(word.Word)

		if i > 0 {
			if gap := word.StartMs - words[i-1].EndMs; gap >= opts.PauseGapMs {
				out = append(out, Moment{TimestampMs: word.StartMs, Kind: domain.MomentPause})
			}
			if sentenceEnd(words[i-1].Word) && topicStarters[normalized] {
				out = append(out, Moment{TimestampMs: word.StartMs, Kind: domain.MomentTopic})
			}
			pair := normalize(words[i-1].Word) + " " + normalized
			if issuePhrases[pair] {
				out = append(out, Moment{TimestampMs: words[i-1].StartMs, Kind: domain.MomentIssue})
			}
		}

		if issueWords[normalized] {
			out = append(out, Moment{TimestampMs: word.StartMs, Kind: domain.MomentIssue})
		} else if emphasisWords[normalized] {
			out = append(out, Moment{TimestampMs: word.StartMs, Kind: domain.MomentEmphasis})
		}
	}
	return out
}

// thin sorts candidates, clamps them into the recording, and drops any
// moment within MinSpacingMs of the previous kept one.
func thin(candidates []Moment, totalMs int64, opts Options) []Moment {
	sortMoments(candidates)

	out := make([]Moment, 0, len(candidates))
	lastKept := int64(-1 << 62)
	for _, moment := range candidates {
		if moment.TimestampMs < 0 || moment.TimestampMs > totalMs {
			continue
		}
		if moment.TimestampMs-lastKept < opts.MinSpacingMs {
			continue
		}
		out = append(out, moment)
		lastKept = moment.TimestampMs
		if len(out) >= opts.MaxMoments {
			break
		}
	}
	return out
}

func intervalMoments(totalMs int64, opts Options) []Moment {
	out := make([]Moment, 0, opts.MaxMoments)
	for ts := opts.IntervalMs / 2; ts <= totalMs && len(out) < opts.MaxMoments; ts += opts.IntervalMs {
		out = append(out, Moment{TimestampMs: ts, Kind: domain.MomentInterval})
	}
	if len(out) == 0 {
		out = append(out, Moment{TimestampMs: totalMs / 2, Kind: domain.MomentInterval})
	}
	return out
}

// Excerpt returns the narration between fromMs (inclusive) and toMs
// (exclusive), for pairing a moment with its prose.
func Excerpt(tr domain.Transcript, fromMs, toMs int64) string {
	var b strings.Builder
	for _, word := range tr.Words {
		if word.StartMs < fromMs || word.StartMs >= toMs {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word.Word)
	}
	return b.String()
}

func sortMoments(moments []Moment) {
	// Insertion sort: candidates arrive nearly ordered from the linear scan.
	for i := 1; i < len(moments); i++ {
		for j := i; j > 0 && moments[j].TimestampMs < moments[j-1].TimestampMs; j-- {
			moments[j], moments[j-1] = moments[j-1], moments[j]
		}
	}
}

func normalize(word string) string {
	return strings.Trim(strings.ToLower(word), ".,!?;:\"'()[]")
}

func sentenceEnd(word string) bool {
	trimmed := strings.TrimRight(word, "\"')")
	return strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "!") || strings.HasSuffix(trimmed, "?")
}

func wordSet(entries ...string) map[string]bool {
	set := make(map[string]bool, len(entries))
	for _, entry := range entries {
		set[entry] = true
	}
	return set
}
