package caption

import (
	"bufio"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

// ErrNotWebVTT is returned by [ParseVTT] when the payload does not start
// with a WEBVTT signature.
var ErrNotWebVTT = errors.New("caption: payload is not WebVTT")

// maxLineBytes bounds a single line of a caption payload.
const maxLineBytes = 1024 * 1024

// inlineTagRe matches inline cue markup such as <c>, </c>, <i>, <v Roger>
// and the karaoke timestamps <00:00:01.000> used by auto-generated tracks.
var inlineTagRe = regexp.MustCompile(`<[^>]*>`)

// ParseVTT reads a WebVTT payload into raw cues in file order.
//
// Header, NOTE, STYLE and REGION blocks are skipped, as are cue identifiers
// and cue settings after the end timestamp. Inline tags are stripped and
// character references unescaped. A cue spanning several lines keeps them
// joined by "\n" so it normalizes as one unit.
//
// Timestamps are returned in HH:MM:SS.mmm form, the short MM:SS.mmm form
// gaining a zero hour; a cue with a malformed timestamp is still returned
// so the caller decides whether to skip it. Cue text is valid UTF-8 without
// NUL bytes.
func ParseVTT(r io.Reader) ([]RawCue, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		cues   []RawCue
		block  []string
		header = true
		first  = true
	)

	flush := func() {
		defer func() { block = block[:0] }()
		if len(block) == 0 {
			return
		}
		if header {
			header = false
			return
		}
		if cue, ok := parseCueBlock(block); ok {
			cues = append(cues, cue)
		}
	}

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			if !strings.HasPrefix(line, "WEBVTT") {
				return nil, ErrNotWebVTT
			}
			first = false
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("caption: read vtt: %w", err)
	}
	if first {
		return nil, ErrNotWebVTT
	}
	flush()
	return cues, nil
}

// parseCueBlock interprets one blank-line separated block. ok is false for
// blocks that are not cues.
func parseCueBlock(block []string) (RawCue, bool) {
	switch word, _, _ := strings.Cut(block[0], " "); word {
	case "NOTE", "STYLE", "REGION":
		return RawCue{}, false
	}

	timing := -1
	for i, line := range block {
		if strings.Contains(line, "-->") {
			timing = i
			break
		}
	}
	// The timing line is either first or follows a single identifier line.
	if timing < 0 || timing > 1 {
		return RawCue{}, false
	}

	left, right, _ := strings.Cut(block[timing], "-->")
	fields := strings.Fields(right)
	end := ""
	if len(fields) > 0 {
		end = fields[0]
	}

	lines := make([]string, 0, len(block)-timing-1)
	for _, line := range block[timing+1:] {
		lines = append(lines, cleanCueLine(line))
	}

	return RawCue{
		Start: fullTimestamp(strings.TrimSpace(left)),
		End:   fullTimestamp(end),
		Text:  strings.Join(lines, "\n"),
	}, true
}

// fullTimestamp adds the optional hour to a MM:SS[.mmm] timestamp.
func fullTimestamp(ts string) string {
	if strings.Count(ts, ":") == 1 {
		return "00:" + ts
	}
	return ts
}

func cleanCueLine(line string) string {
	line = strings.ToValidUTF8(line, "\uFFFD")
	line = strings.ReplaceAll(line, "\x00", "")
	line = inlineTagRe.ReplaceAllString(line, "")
	return strings.TrimSpace(html.UnescapeString(line))
}
