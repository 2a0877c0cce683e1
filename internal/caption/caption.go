// Package caption turns timed subtitle cues into a single searchable corpus
// per video while keeping a reversible mapping from corpus offsets back to
// the cue that produced them.
//
// The pipeline is:
//
//	ParseVTT → NormalizeCue (per cue, skip on failure) → Builder → Corpus
//
// Every [Cue] produced by the [Builder] records the half-open range
// [BlobStart, BlobEnd) it occupies in the video's corpus text. Ranges are
// contiguous in emission order and Corpus.Text[c.BlobStart:c.BlobEnd] == c.Text
// for every cue.
package caption

// RawCue is one subtitle entry exactly as it appears in the caption payload.
// Timestamps are kept as strings; [NormalizeCue] validates them.
type RawCue struct {
	Start string
	End   string
	Text  string
}

// NormalizedCue is a cue whose timestamps parsed and whose text has been
// normalized into the corpus form.
type NormalizedCue struct {
	StartSeconds int
	EndSeconds   int
	RawText      string
	Text         string
}

// Cue is a persisted cue record. BlobStart and BlobEnd delimit the cue's
// text inside its video's [Corpus].
type Cue struct {
	StartSeconds int
	EndSeconds   int
	RawText      string
	Text         string
	BlobStart    int
	BlobEnd      int
}

// Contains reports whether offset lies inside the cue's half-open blob range.
func (c Cue) Contains(offset int) bool {
	return c.BlobStart <= offset && offset < c.BlobEnd
}

// Corpus is the concatenation of every surviving cue's normalized text for
// one video, in cue order.
type Corpus struct {
	VideoID string
	Text    string
}
