package ingest

import (
	"context"
	"errors"
	"iter"

	"github.com/MrWong99/saidwhen/internal/store"
)

var (
	// ErrNoCaptions is returned by a [CaptionSource] when a video has no
	// usable caption track.
	ErrNoCaptions = errors.New("ingest: no captions")

	// ErrTransport wraps network failures while listing videos or fetching
	// caption payloads.
	ErrTransport = errors.New("ingest: transport failure")
)

// Track describes one fetchable caption track of a video.
type Track struct {
	VideoID string

	// Language is the BCP-47 code of the track, e.g. "en".
	Language string

	// Name is the human-readable track label.
	Name string

	// URL is where the caption payload can be fetched from.
	URL string

	// Generated is true for automatic speech recognition tracks.
	Generated bool
}

// VideoLister produces the ids of every video of a channel. The sequence is
// lazy and finite; a non-nil error ends it.
type VideoLister interface {
	Videos(ctx context.Context, channelID string) iter.Seq2[string, error]
}

// CaptionSource locates and downloads caption tracks.
type CaptionSource interface {
	// Lookup returns the track to index for videoID, or an error wrapping
	// [ErrNoCaptions] when there is none.
	Lookup(ctx context.Context, videoID string) (Track, error)

	// Fetch downloads the WebVTT payload of t. Network failures wrap
	// [ErrTransport].
	Fetch(ctx context.Context, t Track) ([]byte, error)
}

// Admitter decides whether a channel may join and records it when it does.
// *channel.Registry satisfies it.
type Admitter interface {
	Check(ctx context.Context, id, name string) error
	Admit(ctx context.Context, id, name string) (store.Channel, error)
}
