// Package storetest holds the behavioural test suite every [store.Store]
// backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/MrWong99/saidwhen/internal/caption"
	"github.com/MrWong99/saidwhen/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) store.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("channels", func(t *testing.T) { testChannels(t, newStore(t)) })
	t.Run("duplicate channel", func(t *testing.T) { testDuplicateChannel(t, newStore(t)) })
	t.Run("write and resolve", func(t *testing.T) { testWriteAndResolve(t, newStore(t)) })
	t.Run("corpus insertion order", func(t *testing.T) { testCorpusOrder(t, newStore(t)) })
	t.Run("whole word only", func(t *testing.T) { testWholeWord(t, newStore(t)) })
	t.Run("channel isolation", func(t *testing.T) { testIsolation(t, newStore(t)) })
	t.Run("rewrite replaces", func(t *testing.T) { testRewrite(t, newStore(t)) })
	t.Run("concurrent writes", func(t *testing.T) { testConcurrentWrites(t, newStore(t)) })
}

// Video builds the cue records and corpus for lines, one cue per line, with
// cue i spanning seconds [i, i+1].
func Video(videoID string, lines ...string) ([]caption.Cue, caption.Corpus) {
	var b caption.Builder
	for i, l := range lines {
		b.Add(caption.NormalizedCue{
			StartSeconds: i,
			EndSeconds:   i + 1,
			RawText:      l,
			Text:         caption.CueText(l),
		})
	}
	return b.Cues(), b.Corpus(videoID)
}

func testChannels(t *testing.T, s store.Store) {
	ctx := context.Background()

	if n, err := s.CountChannels(ctx); err != nil || n != 0 {
		t.Fatalf("CountChannels on empty store = %d, %v; want 0, nil", n, err)
	}
	for _, ch := range []store.Channel{{ID: "UC2", Name: "zeta"}, {ID: "UC1", Name: "alpha"}} {
		if err := s.InsertChannel(ctx, ch); err != nil {
			t.Fatalf("InsertChannel(%v): %v", ch, err)
		}
	}

	n, err := s.CountChannels(ctx)
	if err != nil || n != 2 {
		t.Fatalf("CountChannels = %d, %v; want 2, nil", n, err)
	}

	ch, err := s.ChannelByName(ctx, "alpha")
	if err != nil {
		t.Fatalf("ChannelByName(alpha): %v", err)
	}
	if ch.ID != "UC1" {
		t.Errorf("ChannelByName(alpha).ID = %q, want UC1", ch.ID)
	}
	if _, err := s.ChannelByName(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ChannelByName(missing): err = %v, want ErrNotFound", err)
	}

	found, err := s.FindChannels(ctx, "UC2", "alpha")
	if err != nil {
		t.Fatalf("FindChannels: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("FindChannels(UC2, alpha) returned %d channels, want 2", len(found))
	}
	found, err = s.FindChannels(ctx, "UC9", "nobody")
	if err != nil {
		t.Fatalf("FindChannels: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("FindChannels(UC9, nobody) returned %v, want none", found)
	}

	list, err := s.ListChannels(ctx)
	if err != nil {
		t.Fatalf("ListChannels: %v", err)
	}
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "zeta" {
		t.Errorf("ListChannels = %v, want alpha then zeta", list)
	}
}

func testDuplicateChannel(t *testing.T, s store.Store) {
	ctx := context.Background()

	if err := s.InsertChannel(ctx, store.Channel{ID: "UC1", Name: "alpha"}); err != nil {
		t.Fatalf("InsertChannel: %v", err)
	}
	for _, ch := range []store.Channel{{ID: "UC1", Name: "other"}, {ID: "UC2", Name: "alpha"}} {
		if err := s.InsertChannel(ctx, ch); !errors.Is(err, store.ErrDuplicate) {
			t.Errorf("InsertChannel(%v): err = %v, want ErrDuplicate", ch, err)
		}
	}
	if n, _ := s.CountChannels(ctx); n != 1 {
		t.Errorf("CountChannels = %d, want 1", n)
	}
}

func testWriteAndResolve(t *testing.T, s store.Store) {
	ctx := context.Background()
	cues, corpus := Video("vid1", "Hello, World!", "Bye now.")

	if err := s.WriteVideo(ctx, "UC1", cues, corpus); err != nil {
		t.Fatalf("WriteVideo: %v", err)
	}
	if n, err := s.CountCues(ctx, "UC1", "vid1"); err != nil || n != 2 {
		t.Fatalf("CountCues = %d, %v; want 2, nil", n, err)
	}

	got, err := s.CorpusMatching(ctx, "UC1", "world")
	if err != nil {
		t.Fatalf("CorpusMatching(world): %v", err)
	}
	if got.VideoID != "vid1" || got.Text != "hello world bye now " {
		t.Errorf("CorpusMatching = %+v, want vid1 with full corpus", got)
	}

	start, err := s.CueSpanning(ctx, "UC1", "vid1", 6, 7)
	if err != nil {
		t.Fatalf("CueSpanning(6,7): %v", err)
	}
	if start.StartSeconds != 0 || start.BlobStart != 0 || start.BlobEnd != 12 {
		t.Errorf("CueSpanning(6,7) = %+v, want first cue", start)
	}

	end, err := s.CueSpanning(ctx, "UC1", "vid1", 12, 13)
	if err != nil {
		t.Fatalf("CueSpanning(12,13): %v", err)
	}
	if end.StartSeconds != 1 || end.EndSeconds != 2 || end.RawText != "Bye now." {
		t.Errorf("CueSpanning(12,13) = %+v, want second cue", end)
	}

	// A range crossing the cue boundary fits no single cue.
	if _, err := s.CueSpanning(ctx, "UC1", "vid1", 10, 14); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CueSpanning(10,14): err = %v, want ErrNotFound", err)
	}
	if _, err := s.CueSpanning(ctx, "UC1", "nope", 0, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CueSpanning on unknown video: err = %v, want ErrNotFound", err)
	}
	if _, err := s.CorpusMatching(ctx, "UC1", "goodbye"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CorpusMatching(goodbye): err = %v, want ErrNotFound", err)
	}
	if n, err := s.CountCues(ctx, "UC1", "nope"); err != nil || n != 0 {
		t.Errorf("CountCues(unknown) = %d, %v; want 0, nil", n, err)
	}
}

func testCorpusOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, id := range []string{"first", "second", "third"} {
		cues, corpus := Video(id, "the same words appear here")
		if err := s.WriteVideo(ctx, "UC1", cues, corpus); err != nil {
			t.Fatalf("WriteVideo(%s): %v", id, err)
		}
	}

	got, err := s.CorpusMatching(ctx, "UC1", "same words")
	if err != nil {
		t.Fatalf("CorpusMatching: %v", err)
	}
	if got.VideoID != "first" {
		t.Errorf("CorpusMatching returned %q, want the earliest written video", got.VideoID)
	}
}

func testWholeWord(t *testing.T, s store.Store) {
	ctx := context.Background()
	cues, corpus := Video("v", "the worldly traveller")
	if err := s.WriteVideo(ctx, "UC1", cues, corpus); err != nil {
		t.Fatalf("WriteVideo: %v", err)
	}

	if _, err := s.CorpusMatching(ctx, "UC1", "world"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CorpusMatching(world): err = %v, want ErrNotFound", err)
	}
	if _, err := s.CorpusMatching(ctx, "UC1", "worldly"); err != nil {
		t.Errorf("CorpusMatching(worldly): %v", err)
	}
}

func testIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	cues, corpus := Video("v", "only in channel one")
	if err := s.WriteVideo(ctx, "UC1", cues, corpus); err != nil {
		t.Fatalf("WriteVideo: %v", err)
	}

	if _, err := s.CorpusMatching(ctx, "UC2", "channel one"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CorpusMatching across channels: err = %v, want ErrNotFound", err)
	}
	if _, err := s.CueSpanning(ctx, "UC2", "v", 0, 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("CueSpanning across channels: err = %v, want ErrNotFound", err)
	}
}

func testRewrite(t *testing.T, s store.Store) {
	ctx := context.Background()
	cues, corpus := Video("v", "old text", "more old text")
	if err := s.WriteVideo(ctx, "UC1", cues, corpus); err != nil {
		t.Fatalf("WriteVideo: %v", err)
	}
	cues, corpus = Video("v", "new text")
	if err := s.WriteVideo(ctx, "UC1", cues, corpus); err != nil {
		t.Fatalf("WriteVideo (rewrite): %v", err)
	}

	if n, _ := s.CountCues(ctx, "UC1", "v"); n != 1 {
		t.Errorf("CountCues after rewrite = %d, want 1", n)
	}
	if _, err := s.CorpusMatching(ctx, "UC1", "old"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("old corpus still matches: err = %v", err)
	}
}

func testConcurrentWrites(t *testing.T, s store.Store) {
	ctx := context.Background()
	const videos = 16

	var wg sync.WaitGroup
	errs := make([]error, videos)
	for i := range videos {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("v%02d", i)
			cues, corpus := Video(id, "shared line", fmt.Sprintf("unique marker %d", i))
			errs[i] = s.WriteVideo(ctx, "UC1", cues, corpus)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("WriteVideo v%02d: %v", i, err)
		}
	}
	for i := range videos {
		got, err := s.CorpusMatching(ctx, "UC1", fmt.Sprintf("unique marker %d", i))
		if err != nil {
			t.Fatalf("CorpusMatching(marker %d): %v", i, err)
		}
		if want := fmt.Sprintf("v%02d", i); got.VideoID != want {
			t.Errorf("marker %d found in %q, want %q", i, got.VideoID, want)
		}
		if n, _ := s.CountCues(ctx, "UC1", got.VideoID); n != 2 {
			t.Errorf("CountCues(%s) = %d, want 2", got.VideoID, n)
		}
	}
}
