package caption_test

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/MrWong99/saidwhen/internal/caption"
)

const sampleVTT = "WEBVTT\r\n" +
	"Kind: captions\r\n" +
	"Language: en\r\n" +
	"\r\n" +
	"NOTE generated for tests\r\n" +
	"\r\n" +
	"STYLE\r\n" +
	"::cue { color: white }\r\n" +
	"\r\n" +
	"1\r\n" +
	"00:00:01.000 --> 00:00:03.500 align:start position:0%\r\n" +
	"Hello, <c.colorE5E5E5>World</c>!\r\n" +
	"\r\n" +
	"00:00:04.000 --> 00:00:05.000\r\n" +
	"Bye &amp; <00:00:04.500><c>now</c>\r\n" +
	"second line\r\n" +
	"\r\n" +
	"\r\n" +
	"bad --> 00:00:06.000\r\n" +
	"oops\r\n"

func TestParseVTT(t *testing.T) {
	t.Parallel()

	cues, err := caption.ParseVTT(strings.NewReader(sampleVTT))
	if err != nil {
		t.Fatalf("ParseVTT: unexpected error: %v", err)
	}

	want := []caption.RawCue{
		{Start: "00:00:01.000", End: "00:00:03.500", Text: "Hello, World!"},
		{Start: "00:00:04.000", End: "00:00:05.000", Text: "Bye & now\nsecond line"},
		{Start: "bad", End: "00:00:06.000", Text: "oops"},
	}
	if len(cues) != len(want) {
		t.Fatalf("len(cues) = %d, want %d: %+v", len(cues), len(want), cues)
	}
	for i := range want {
		if cues[i] != want[i] {
			t.Errorf("cue %d = %+v, want %+v", i, cues[i], want[i])
		}
	}
}

func TestParseVTT_BOMAndNoTrailingNewline(t *testing.T) {
	t.Parallel()

	in := "\ufeffWEBVTT\n\n00:00:00.000 --> 00:00:02.000\nonly cue"
	cues, err := caption.ParseVTT(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseVTT: unexpected error: %v", err)
	}
	if len(cues) != 1 || cues[0].Text != "only cue" {
		t.Fatalf("cues = %+v, want one cue with text %q", cues, "only cue")
	}
}

func TestParseVTT_NotWebVTT(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"",
		"1\n00:00:01,000 --> 00:00:02,000\nsrt cue\n",
	} {
		if _, err := caption.ParseVTT(strings.NewReader(in)); !errors.Is(err, caption.ErrNotWebVTT) {
			t.Errorf("ParseVTT(%q): err = %v, want ErrNotWebVTT", in, err)
		}
	}
}

func TestParseVTT_HeaderOnly(t *testing.T) {
	t.Parallel()

	cues, err := caption.ParseVTT(strings.NewReader("WEBVTT\n\n"))
	if err != nil {
		t.Fatalf("ParseVTT: unexpected error: %v", err)
	}
	if len(cues) != 0 {
		t.Errorf("len(cues) = %d, want 0", len(cues))
	}
}

func TestParseVTT_ShortTimestamps(t *testing.T) {
	t.Parallel()

	in := "WEBVTT\n\n00:01.000 --> 00:03.500\nHello, World!\n\n00:04.000 --> 01:02:05.000 line:0\nBye now.\n"
	cues, err := caption.ParseVTT(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseVTT: %v", err)
	}

	want := []caption.RawCue{
		{Start: "00:00:01.000", End: "00:00:03.500", Text: "Hello, World!"},
		{Start: "00:00:04.000", End: "01:02:05.000", Text: "Bye now."},
	}
	if len(cues) != len(want) {
		t.Fatalf("len(cues) = %d, want %d: %+v", len(cues), len(want), cues)
	}
	for i := range want {
		if cues[i] != want[i] {
			t.Errorf("cue %d = %+v, want %+v", i, cues[i], want[i])
		}
		if out := caption.NormalizeCue(cues[i]); !out.OK() {
			t.Errorf("cue %d skipped: %v", i, out.Err)
		}
	}
}

func TestParseVTT_CleansText(t *testing.T) {
	t.Parallel()

	in := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nbad\xffbyte and nul\x00here\n"
	cues, err := caption.ParseVTT(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseVTT: %v", err)
	}
	if len(cues) != 1 {
		t.Fatalf("len(cues) = %d, want 1", len(cues))
	}
	got := cues[0].Text
	if !utf8.ValidString(got) {
		t.Errorf("text %q is not valid UTF-8", got)
	}
	if strings.ContainsRune(got, 0) {
		t.Errorf("text %q contains NUL", got)
	}
	if want := "bad\uFFFDbyte and nulhere"; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
}
