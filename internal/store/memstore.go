package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/saidwhen/internal/caption"
)

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store]. The zero value is ready to use.
// Data lives only as long as the process.
type MemStore struct {
	mu       sync.RWMutex
	channels []Channel
	videos   map[string][]*memVideo // channel id → videos in insertion order
}

type memVideo struct {
	corpus caption.Corpus
	cues   []caption.Cue
}

// NewMemStore returns an empty [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{}
}

// InsertChannel implements [Store].
func (s *MemStore) InsertChannel(_ context.Context, ch Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.channels {
		if c.ID == ch.ID || c.Name == ch.Name {
			return fmt.Errorf("%w: channel %q (%s)", ErrDuplicate, ch.Name, ch.ID)
		}
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	s.channels = append(s.channels, ch)
	return nil
}

// FindChannels implements [Store].
func (s *MemStore) FindChannels(_ context.Context, id, name string) ([]Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Channel
	for _, c := range s.channels {
		if c.ID == id || c.Name == name {
			out = append(out, c)
		}
	}
	return out, nil
}

// ChannelByName implements [Store].
func (s *MemStore) ChannelByName(_ context.Context, name string) (Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.channels {
		if c.Name == name {
			return c, nil
		}
	}
	return Channel{}, fmt.Errorf("%w: channel %q", ErrNotFound, name)
}

// CountChannels implements [Store].
func (s *MemStore) CountChannels(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels), nil
}

// ListChannels implements [Store].
func (s *MemStore) ListChannels(_ context.Context) ([]Channel, error) {
	s.mu.RLock()
	out := slices.Clone(s.channels)
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Channel) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// WriteVideo implements [Store].
func (s *MemStore) WriteVideo(_ context.Context, channelID string, cues []caption.Cue, corpus caption.Corpus) error {
	v := &memVideo{corpus: corpus, cues: slices.Clone(cues)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.videos == nil {
		s.videos = make(map[string][]*memVideo)
	}
	vids := slices.DeleteFunc(s.videos[channelID], func(old *memVideo) bool {
		return old.corpus.VideoID == corpus.VideoID
	})
	s.videos[channelID] = append(vids, v)
	return nil
}

// CorpusMatching implements [Store].
func (s *MemStore) CorpusMatching(_ context.Context, channelID, phrase string) (caption.Corpus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.videos[channelID] {
		if caption.ContainsWord(v.corpus.Text, phrase) {
			return v.corpus, nil
		}
	}
	return caption.Corpus{}, fmt.Errorf("%w: no corpus matches %q", ErrNotFound, phrase)
}

// CueSpanning implements [Store].
func (s *MemStore) CueSpanning(_ context.Context, channelID, videoID string, from, to int) (caption.Cue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.video(channelID, videoID)
	if v == nil {
		return caption.Cue{}, fmt.Errorf("%w: video %q", ErrNotFound, videoID)
	}

	var (
		best  caption.Cue
		found bool
	)
	for _, c := range v.cues {
		if c.BlobStart <= from && c.BlobEnd >= to && (!found || c.BlobStart < best.BlobStart) {
			best, found = c, true
		}
	}
	if !found {
		return caption.Cue{}, fmt.Errorf("%w: no cue spans [%d,%d) in %q", ErrNotFound, from, to, videoID)
	}
	return best, nil
}

// CountCues implements [Store].
func (s *MemStore) CountCues(_ context.Context, channelID, videoID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v := s.video(channelID, videoID); v != nil {
		return len(v.cues), nil
	}
	return 0, nil
}

// Ping implements [Store]. It always succeeds.
func (s *MemStore) Ping(context.Context) error { return nil }

// Close implements [Store]. It is a no-op.
func (s *MemStore) Close() error { return nil }

// video must be called with s.mu held.
func (s *MemStore) video(channelID, videoID string) *memVideo {
	for _, v := range s.videos[channelID] {
		if v.corpus.VideoID == videoID {
			return v
		}
	}
	return nil
}
