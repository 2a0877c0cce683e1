package caption

import "strings"

// Builder accumulates normalized cues for one video into a corpus, assigning
// each cue the blob range its text occupies. The zero value is ready to use.
// A Builder is not safe for concurrent use; each video gets its own.
type Builder struct {
	blob strings.Builder
	cues []Cue
}

// Add appends c's text to the corpus and returns the cue record with its
// blob range. A cue with empty text still gets a record with
// BlobStart == BlobEnd.
func (b *Builder) Add(c NormalizedCue) Cue {
	start := b.blob.Len()
	b.blob.WriteString(c.Text)
	cue := Cue{
		StartSeconds: c.StartSeconds,
		EndSeconds:   c.EndSeconds,
		RawText:      c.RawText,
		Text:         c.Text,
		BlobStart:    start,
		BlobEnd:      b.blob.Len(),
	}
	b.cues = append(b.cues, cue)
	return cue
}

// Cues returns the cue records emitted so far, in emission order.
func (b *Builder) Cues() []Cue {
	return b.cues
}

// Corpus returns the corpus built so far for videoID.
func (b *Builder) Corpus(videoID string) Corpus {
	return Corpus{VideoID: videoID, Text: b.blob.String()}
}

// Build runs every cue through a fresh [Builder].
func Build(videoID string, cues []NormalizedCue) ([]Cue, Corpus) {
	var b Builder
	for _, c := range cues {
		b.Add(c)
	}
	return b.Cues(), b.Corpus(videoID)
}
