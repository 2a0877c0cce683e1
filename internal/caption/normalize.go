package caption

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedTimestamp is returned when a cue timestamp is not HH:MM:SS with
// an optional fractional part.
var ErrMalformedTimestamp = errors.New("caption: malformed timestamp")

// ParseTimestamp converts "HH:MM:SS[.fraction]" into whole seconds since
// 00:00:00. The fractional part is discarded, not rounded.
func ParseTimestamp(ts string) (int, error) {
	whole, _, _ := strings.Cut(strings.TrimSpace(ts), ".")
	t, err := time.Parse(time.TimeOnly, whole)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTimestamp, ts)
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}

// Normalize lowercases s, replaces every run of characters outside
// [A-Za-z0-9 ] with a single space and collapses runs of spaces to one.
// Index time and query time both go through this function, so a normalized
// query can only ever match normalized corpus text.
//
// Normalize is idempotent.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	gap := false
	for _, r := range strings.ToLower(s) {
		if isWordRune(r) {
			b.WriteRune(r)
			gap = false
			continue
		}
		if !gap {
			b.WriteByte(' ')
			gap = true
		}
	}
	return b.String()
}

// CueText returns the corpus form of a cue's raw text: [Normalize] with
// leading spaces dropped and a single trailing space when the text is
// non-empty. The trailing space keeps the last word of one cue from fusing
// with the first word of the next.
func CueText(raw string) string {
	text := strings.TrimLeft(Normalize(raw), " ")
	if text != "" && !strings.HasSuffix(text, " ") {
		text += " "
	}
	return text
}

// QueryText normalizes a free-text query for phrase search. Surrounding
// spaces are trimmed so the whole-word boundaries sit on the first and last
// word of the phrase.
func QueryText(query string) string {
	return strings.TrimSpace(Normalize(query))
}

// Outcome is the result of normalizing one cue. A cue either normalizes
// (Err == nil) or is skipped with the reason in Err.
type Outcome struct {
	Cue NormalizedCue
	Err error
}

// OK reports whether the cue normalized and should be kept.
func (o Outcome) OK() bool { return o.Err == nil }

// NormalizeCue parses both timestamps of raw and normalizes its text.
func NormalizeCue(raw RawCue) Outcome {
	start, err := ParseTimestamp(raw.Start)
	if err != nil {
		return Outcome{Err: fmt.Errorf("start: %w", err)}
	}
	end, err := ParseTimestamp(raw.End)
	if err != nil {
		return Outcome{Err: fmt.Errorf("end: %w", err)}
	}
	return Outcome{Cue: NormalizedCue{
		StartSeconds: start,
		EndSeconds:   end,
		RawText:      raw.Text,
		Text:         CueText(raw.Text),
	}}
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// IsWordByte reports whether b counts as a word character for whole-word
// matching.
func IsWordByte(b byte) bool {
	return isWordRune(rune(b))
}
