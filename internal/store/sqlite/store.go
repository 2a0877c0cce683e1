// Package sqlite provides a single-file [store.Store] on top of the pure-Go
// modernc.org/sqlite driver, for deployments without a PostgreSQL server.
//
// SQLite has no word-boundary regular expressions, so [Store.CorpusMatching]
// narrows candidates with instr() and confirms the whole-word match in Go.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/MrWong99/saidwhen/internal/caption"
	"github.com/MrWong99/saidwhen/internal/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS channels (
    id          TEXT  PRIMARY KEY,
    name        TEXT  NOT NULL UNIQUE,
    created_at  TEXT  NOT NULL
);

CREATE TABLE IF NOT EXISTS corpora (
    seq         INTEGER  PRIMARY KEY AUTOINCREMENT,
    channel_id  TEXT     NOT NULL,
    video_id    TEXT     NOT NULL,
    text        TEXT     NOT NULL,
    UNIQUE (channel_id, video_id)
);

CREATE TABLE IF NOT EXISTS cues (
    channel_id     TEXT     NOT NULL,
    video_id       TEXT     NOT NULL,
    start_seconds  INTEGER  NOT NULL,
    end_seconds    INTEGER  NOT NULL,
    raw_text       TEXT     NOT NULL,
    text           TEXT     NOT NULL,
    blob_start     INTEGER  NOT NULL,
    blob_end       INTEGER  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cues_video_blob
    ON cues (channel_id, video_id, blob_start);
`

// Store is a [store.Store] backed by a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("sqlite store: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// InsertChannel implements [store.Store].
func (s *Store) InsertChannel(ctx context.Context, ch store.Channel) error {
	created := ch.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (id, name, created_at) VALUES (?, ?, ?)`,
		ch.ID, ch.Name, created.Format(time.RFC3339Nano))
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("sqlite store: insert channel %q: %w", ch.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("sqlite store: insert channel %q: %w", ch.Name, err)
	}
	return nil
}

// FindChannels implements [store.Store].
func (s *Store) FindChannels(ctx context.Context, id, name string) ([]store.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM channels WHERE id = ? OR name = ? ORDER BY name`, id, name)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: find channels: %w", err)
	}
	return scanChannels(rows)
}

// ChannelByName implements [store.Store].
func (s *Store) ChannelByName(ctx context.Context, name string) (store.Channel, error) {
	var (
		ch      store.Channel
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM channels WHERE name = ?`, name,
	).Scan(&ch.ID, &ch.Name, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Channel{}, fmt.Errorf("sqlite store: channel %q: %w", name, store.ErrNotFound)
		}
		return store.Channel{}, fmt.Errorf("sqlite store: channel %q: %w", name, err)
	}
	ch.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return ch, nil
}

// CountChannels implements [store.Store].
func (s *Store) CountChannels(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM channels`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite store: count channels: %w", err)
	}
	return n, nil
}

// ListChannels implements [store.Store].
func (s *Store) ListChannels(ctx context.Context) ([]store.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list channels: %w", err)
	}
	return scanChannels(rows)
}

// WriteVideo implements [store.Store].
func (s *Store) WriteVideo(ctx context.Context, channelID string, cues []caption.Cue, corpus caption.Corpus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: write video %q: begin: %w", corpus.VideoID, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM corpora WHERE channel_id = ? AND video_id = ?`,
		`DELETE FROM cues    WHERE channel_id = ? AND video_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, channelID, corpus.VideoID); err != nil {
			return fmt.Errorf("sqlite store: write video %q: clear: %w", corpus.VideoID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cues (channel_id, video_id, start_seconds, end_seconds, raw_text, text, blob_start, blob_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite store: write video %q: prepare: %w", corpus.VideoID, err)
	}
	defer stmt.Close()

	for _, c := range cues {
		_, err := stmt.ExecContext(ctx, channelID, corpus.VideoID,
			c.StartSeconds, c.EndSeconds, c.RawText, c.Text, c.BlobStart, c.BlobEnd)
		if err != nil {
			return fmt.Errorf("sqlite store: write video %q: insert cue: %w", corpus.VideoID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO corpora (channel_id, video_id, text) VALUES (?, ?, ?)`,
		channelID, corpus.VideoID, corpus.Text)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("sqlite store: write video %q: %w", corpus.VideoID, store.ErrDuplicate)
		}
		return fmt.Errorf("sqlite store: write video %q: insert corpus: %w", corpus.VideoID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite store: write video %q: commit: %w", corpus.VideoID, err)
	}
	return nil
}

// CorpusMatching implements [store.Store].
func (s *Store) CorpusMatching(ctx context.Context, channelID, phrase string) (caption.Corpus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT video_id, text
		FROM   corpora
		WHERE  channel_id = ? AND instr(text, ?) > 0
		ORDER  BY seq`, channelID, phrase)
	if err != nil {
		return caption.Corpus{}, fmt.Errorf("sqlite store: corpus matching %q: %w", phrase, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c caption.Corpus
		if err := rows.Scan(&c.VideoID, &c.Text); err != nil {
			return caption.Corpus{}, fmt.Errorf("sqlite store: corpus matching %q: scan: %w", phrase, err)
		}
		if caption.ContainsWord(c.Text, phrase) {
			return c, nil
		}
	}
	if err := rows.Err(); err != nil {
		return caption.Corpus{}, fmt.Errorf("sqlite store: corpus matching %q: %w", phrase, err)
	}
	return caption.Corpus{}, fmt.Errorf("sqlite store: corpus matching %q: %w", phrase, store.ErrNotFound)
}

// CueSpanning implements [store.Store].
func (s *Store) CueSpanning(ctx context.Context, channelID, videoID string, from, to int) (caption.Cue, error) {
	var c caption.Cue
	err := s.db.QueryRowContext(ctx, `
		SELECT start_seconds, end_seconds, raw_text, text, blob_start, blob_end
		FROM   cues
		WHERE  channel_id = ? AND video_id = ? AND blob_start <= ? AND blob_end >= ?
		ORDER  BY blob_start
		LIMIT  1`, channelID, videoID, from, to,
	).Scan(&c.StartSeconds, &c.EndSeconds, &c.RawText, &c.Text, &c.BlobStart, &c.BlobEnd)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return caption.Cue{}, fmt.Errorf("sqlite store: cue spanning [%d,%d) of %q: %w", from, to, videoID, store.ErrNotFound)
		}
		return caption.Cue{}, fmt.Errorf("sqlite store: cue spanning [%d,%d) of %q: %w", from, to, videoID, err)
	}
	return c, nil
}

// CountCues implements [store.Store].
func (s *Store) CountCues(ctx context.Context, channelID, videoID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM cues WHERE channel_id = ? AND video_id = ?`, channelID, videoID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite store: count cues: %w", err)
	}
	return n, nil
}

// Ping implements [store.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements [store.Store].
func (s *Store) Close() error {
	return s.db.Close()
}

func scanChannels(rows *sql.Rows) ([]store.Channel, error) {
	defer rows.Close()

	var out []store.Channel
	for rows.Next() {
		var (
			ch      store.Channel
			created string
		)
		if err := rows.Scan(&ch.ID, &ch.Name, &created); err != nil {
			return nil, fmt.Errorf("sqlite store: scan channel: %w", err)
		}
		ch.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: scan channels: %w", err)
	}
	return out, nil
}

func isConstraintError(err error) bool {
	var sqErr *sqlite.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	switch sqErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
