package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MrWong99/saidwhen/internal/store"
	"github.com/MrWong99/saidwhen/internal/store/sqlite"
	"github.com/MrWong99/saidwhen/internal/store/storetest"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "saidwhen.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	t.Parallel()
	storetest.Run(t, newTestStore)
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "saidwhen.db")

	s, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.InsertChannel(ctx, store.Channel{ID: "UC1", Name: "alpha"}); err != nil {
		t.Fatalf("InsertChannel: %v", err)
	}
	cues, corpus := storetest.Video("v", "persisted across restarts")
	if err := s.WriteVideo(ctx, "UC1", cues, corpus); err != nil {
		t.Fatalf("WriteVideo: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	ch, err := s.ChannelByName(ctx, "alpha")
	if err != nil {
		t.Fatalf("ChannelByName: %v", err)
	}
	if ch.CreatedAt.IsZero() {
		t.Error("CreatedAt not persisted")
	}
	if _, err := s.CorpusMatching(ctx, "UC1", "across restarts"); err != nil {
		t.Errorf("CorpusMatching after reopen: %v", err)
	}
	if err := s.InsertChannel(ctx, store.Channel{ID: "UC1", Name: "beta"}); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("InsertChannel duplicate id after reopen: err = %v, want ErrDuplicate", err)
	}
}

func TestCorpusMatching_SkipsSubwordCandidates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	for _, v := range []struct{ id, line string }{
		{"a", "an otherworldly sound"},
		{"b", "hello world"},
	} {
		cues, corpus := storetest.Video(v.id, v.line)
		if err := s.WriteVideo(ctx, "UC1", cues, corpus); err != nil {
			t.Fatalf("WriteVideo(%s): %v", v.id, err)
		}
	}

	got, err := s.CorpusMatching(ctx, "UC1", "world")
	if err != nil {
		t.Fatalf("CorpusMatching: %v", err)
	}
	if got.VideoID != "b" {
		t.Errorf("CorpusMatching = %q, want b", got.VideoID)
	}
}
