// Package store defines the persistence contract for registered channels and
// their indexed captions.
//
// Every backend speaks the same five primitives: insert, find by equality,
// find by range, find by pattern and count. The corpus of a video is written
// after all of its cue records, so a video whose write did not complete has
// no corpus and can never be returned by [Store.CorpusMatching].
//
// Implementations: [MemStore] (in-process), postgres.Store (pgx) and
// sqlite.Store (modernc.org/sqlite).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/saidwhen/internal/caption"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when an insert collides with a unique key.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Channel is a registered video channel. Both ID and Name are unique.
type Channel struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Store persists channels and per-channel caption indexes.
// Implementations must be safe for concurrent use.
type Store interface {
	// InsertChannel adds a channel. It returns [ErrDuplicate] when the id or
	// the name is already taken.
	InsertChannel(ctx context.Context, ch Channel) error

	// FindChannels returns every channel whose id equals id or whose name
	// equals name.
	FindChannels(ctx context.Context, id, name string) ([]Channel, error)

	// ChannelByName returns the channel registered under name, or
	// [ErrNotFound].
	ChannelByName(ctx context.Context, name string) (Channel, error)

	// CountChannels returns the number of registered channels.
	CountChannels(ctx context.Context) (int, error)

	// ListChannels returns all channels ordered by name.
	ListChannels(ctx context.Context) ([]Channel, error)

	// WriteVideo stores the cue records of one video and then its corpus.
	// Records from an earlier write of the same video are replaced.
	WriteVideo(ctx context.Context, channelID string, cues []caption.Cue, corpus caption.Corpus) error

	// CorpusMatching returns the first corpus of the channel, in insertion
	// order, that contains phrase as a whole-word match. phrase must already
	// be normalized. It returns [ErrNotFound] when no corpus matches.
	CorpusMatching(ctx context.Context, channelID, phrase string) (caption.Corpus, error)

	// CueSpanning returns the cue of the video with the lowest BlobStart
	// such that BlobStart <= from and BlobEnd >= to, or [ErrNotFound].
	CueSpanning(ctx context.Context, channelID, videoID string, from, to int) (caption.Cue, error)

	// CountCues returns how many cue records the video has.
	CountCues(ctx context.Context, channelID, videoID string) (int, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
