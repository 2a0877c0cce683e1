// Package locate resolves a free-text phrase to the video and time range of
// a registered channel where it was spoken.
//
// The query is normalized exactly like caption text at index time, the
// channel's corpora are scanned in insertion order for the first whole-word
// match, and the matched character span is mapped back to cue timestamps
// through the cue blob ranges.
package locate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/saidwhen/internal/caption"
	"github.com/MrWong99/saidwhen/internal/channel"
	"github.com/MrWong99/saidwhen/internal/observe"
	"github.com/MrWong99/saidwhen/internal/store"
)

var (
	// ErrEmptyQuery is returned when a query normalizes to nothing.
	ErrEmptyQuery = errors.New("locate: empty query")

	// ErrNoMatch is returned when no corpus of the channel contains the
	// query as a whole-word match.
	ErrNoMatch = errors.New("locate: no match")

	// ErrOffsetResolution is returned when a matched offset is not covered
	// by any cue of the video. It indicates corrupted index data.
	ErrOffsetResolution = errors.New("locate: offset not covered by any cue")
)

// Match is where a phrase was found.
type Match struct {
	VideoID string

	// MatchStart and MatchEnd delimit the half-open match span in the
	// video's corpus.
	MatchStart int
	MatchEnd   int

	// StartSeconds is the start of the cue containing MatchStart;
	// EndSeconds is the end of the cue containing the last matched
	// character.
	StartSeconds int
	EndSeconds   int
}

// Resolver maps a channel name to its id. *channel.Registry satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Locator answers phrase queries. It is read-only and safe for concurrent use.
type Locator struct {
	channels Resolver
	store    store.Store
	metrics  *observe.Metrics
}

// New returns a Locator. A nil m uses [observe.DefaultMetrics].
func New(channels Resolver, s store.Store, m *observe.Metrics) *Locator {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Locator{channels: channels, store: s, metrics: m}
}

// Locate finds the first whole-word occurrence of query in the corpora of
// the channel named channelName.
//
// Errors: [channel.ErrUnknownChannel], [ErrEmptyQuery], [ErrNoMatch],
// [ErrOffsetResolution], or a wrapped store error.
func (l *Locator) Locate(ctx context.Context, channelName, query string) (m Match, err error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "locate",
		trace.WithAttributes(attribute.String("channel.name", channelName)))
	defer func() {
		l.metrics.RecordLocate(ctx, outcome(err), time.Since(start).Seconds())
		observe.EndSpan(span, err)
	}()

	channelID, err := l.channels.Resolve(ctx, channelName)
	if err != nil {
		return Match{}, err
	}

	phrase := caption.QueryText(query)
	if phrase == "" {
		return Match{}, ErrEmptyQuery
	}

	corpus, err := l.store.CorpusMatching(ctx, channelID, phrase)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Match{}, fmt.Errorf("%w: %q in %s", ErrNoMatch, phrase, channelName)
		}
		return Match{}, fmt.Errorf("locate: search corpora: %w", err)
	}

	// The store only says which corpus matched; the span is recomputed here
	// with the same whole-word rule.
	ms, me, ok := caption.FindWord(corpus.Text, phrase)
	if !ok {
		return Match{}, fmt.Errorf("%w: %q in %s", ErrNoMatch, phrase, corpus.VideoID)
	}

	first, err := l.cueAt(ctx, channelID, corpus.VideoID, ms)
	if err != nil {
		return Match{}, err
	}
	last, err := l.cueAt(ctx, channelID, corpus.VideoID, me-1)
	if err != nil {
		return Match{}, err
	}

	m = Match{
		VideoID:      corpus.VideoID,
		MatchStart:   ms,
		MatchEnd:     me,
		StartSeconds: first.StartSeconds,
		EndSeconds:   last.EndSeconds,
	}
	observe.Logger(ctx).Debug("phrase located",
		"channel", channelName, "video_id", m.VideoID,
		"span", fmt.Sprintf("[%d,%d)", ms, me), "start", m.StartSeconds, "end", m.EndSeconds)
	return m, nil
}

// cueAt returns the cue whose blob range contains offset.
func (l *Locator) cueAt(ctx context.Context, channelID, videoID string, offset int) (caption.Cue, error) {
	c, err := l.store.CueSpanning(ctx, channelID, videoID, offset, offset+1)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return caption.Cue{}, fmt.Errorf("%w: offset %d of %s", ErrOffsetResolution, offset, videoID)
		}
		return caption.Cue{}, fmt.Errorf("locate: resolve offset %d: %w", offset, err)
	}
	return c, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "match"
	case errors.Is(err, channel.ErrUnknownChannel):
		return "unknown_channel"
	case errors.Is(err, ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, ErrNoMatch):
		return "no_match"
	case errors.Is(err, ErrOffsetResolution):
		return "offset_resolution"
	default:
		return "error"
	}
}
