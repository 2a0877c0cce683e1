package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/saidwhen/internal/caption"
	"github.com/MrWong99/saidwhen/internal/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var cueColumns = []string{
	"channel_id", "video_id", "start_seconds", "end_seconds",
	"raw_text", "text", "blob_start", "blob_end",
}

// Store is a [store.Store] backed by PostgreSQL. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection and
// runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// InsertChannel implements [store.Store].
func (s *Store) InsertChannel(ctx context.Context, ch store.Channel) error {
	const q = `INSERT INTO channels (id, name) VALUES ($1, $2)`

	if _, err := s.pool.Exec(ctx, q, ch.ID, ch.Name); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("postgres store: insert channel %q: %w", ch.Name, store.ErrDuplicate)
		}
		return fmt.Errorf("postgres store: insert channel %q: %w", ch.Name, err)
	}
	return nil
}

// FindChannels implements [store.Store].
func (s *Store) FindChannels(ctx context.Context, id, name string) ([]store.Channel, error) {
	const q = `
		SELECT id, name, created_at
		FROM   channels
		WHERE  id = $1 OR name = $2
		ORDER  BY name`

	rows, err := s.pool.Query(ctx, q, id, name)
	if err != nil {
		return nil, fmt.Errorf("postgres store: find channels: %w", err)
	}
	return collectChannels(rows)
}

// ChannelByName implements [store.Store].
func (s *Store) ChannelByName(ctx context.Context, name string) (store.Channel, error) {
	const q = `SELECT id, name, created_at FROM channels WHERE name = $1`

	var ch store.Channel
	err := s.pool.QueryRow(ctx, q, name).Scan(&ch.ID, &ch.Name, &ch.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Channel{}, fmt.Errorf("postgres store: channel %q: %w", name, store.ErrNotFound)
		}
		return store.Channel{}, fmt.Errorf("postgres store: channel %q: %w", name, err)
	}
	return ch, nil
}

// CountChannels implements [store.Store].
func (s *Store) CountChannels(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM channels`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres store: count channels: %w", err)
	}
	return n, nil
}

// ListChannels implements [store.Store].
func (s *Store) ListChannels(ctx context.Context) ([]store.Channel, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list channels: %w", err)
	}
	return collectChannels(rows)
}

// WriteVideo implements [store.Store]. Existing rows for the video are
// replaced inside the same transaction.
func (s *Store) WriteVideo(ctx context.Context, channelID string, cues []caption.Cue, corpus caption.Corpus) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: write video %q: begin: %w", corpus.VideoID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, q := range []string{
		`DELETE FROM corpora WHERE channel_id = $1 AND video_id = $2`,
		`DELETE FROM cues    WHERE channel_id = $1 AND video_id = $2`,
	} {
		if _, err := tx.Exec(ctx, q, channelID, corpus.VideoID); err != nil {
			return fmt.Errorf("postgres store: write video %q: clear: %w", corpus.VideoID, err)
		}
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"cues"}, cueColumns,
		pgx.CopyFromSlice(len(cues), func(i int) ([]any, error) {
			c := cues[i]
			return []any{
				channelID, corpus.VideoID, c.StartSeconds, c.EndSeconds,
				c.RawText, c.Text, c.BlobStart, c.BlobEnd,
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("postgres store: write video %q: copy cues: %w", corpus.VideoID, err)
	}

	const insertCorpus = `INSERT INTO corpora (channel_id, video_id, text) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, insertCorpus, channelID, corpus.VideoID, corpus.Text); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("postgres store: write video %q: %w", corpus.VideoID, store.ErrDuplicate)
		}
		return fmt.Errorf("postgres store: write video %q: insert corpus: %w", corpus.VideoID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: write video %q: commit: %w", corpus.VideoID, err)
	}
	return nil
}

// CorpusMatching implements [store.Store] using a POSIX regular expression
// with \y word boundaries.
func (s *Store) CorpusMatching(ctx context.Context, channelID, phrase string) (caption.Corpus, error) {
	const q = `
		SELECT video_id, text
		FROM   corpora
		WHERE  channel_id = $1
		  AND  text ~ $2
		ORDER  BY seq
		LIMIT  1`

	var c caption.Corpus
	err := s.pool.QueryRow(ctx, q, channelID, wordPattern(phrase)).Scan(&c.VideoID, &c.Text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return caption.Corpus{}, fmt.Errorf("postgres store: corpus matching %q: %w", phrase, store.ErrNotFound)
		}
		return caption.Corpus{}, fmt.Errorf("postgres store: corpus matching %q: %w", phrase, err)
	}
	return c, nil
}

// CueSpanning implements [store.Store].
func (s *Store) CueSpanning(ctx context.Context, channelID, videoID string, from, to int) (caption.Cue, error) {
	const q = `
		SELECT start_seconds, end_seconds, raw_text, text, blob_start, blob_end
		FROM   cues
		WHERE  channel_id = $1
		  AND  video_id   = $2
		  AND  blob_start <= $3
		  AND  blob_end   >= $4
		ORDER  BY blob_start
		LIMIT  1`

	var c caption.Cue
	err := s.pool.QueryRow(ctx, q, channelID, videoID, from, to).Scan(
		&c.StartSeconds, &c.EndSeconds, &c.RawText, &c.Text, &c.BlobStart, &c.BlobEnd,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return caption.Cue{}, fmt.Errorf("postgres store: cue spanning [%d,%d) of %q: %w", from, to, videoID, store.ErrNotFound)
		}
		return caption.Cue{}, fmt.Errorf("postgres store: cue spanning [%d,%d) of %q: %w", from, to, videoID, err)
	}
	return c, nil
}

// CountCues implements [store.Store].
func (s *Store) CountCues(ctx context.Context, channelID, videoID string) (int, error) {
	const q = `SELECT count(*) FROM cues WHERE channel_id = $1 AND video_id = $2`

	var n int
	if err := s.pool.QueryRow(ctx, q, channelID, videoID).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres store: count cues: %w", err)
	}
	return n, nil
}

// Ping implements [store.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// wordPattern builds a Postgres ARE matching phrase as a whole word.
func wordPattern(phrase string) string {
	return `\y` + regexp.QuoteMeta(phrase) + `\y`
}

func collectChannels(rows pgx.Rows) ([]store.Channel, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Channel, error) {
		var ch store.Channel
		err := row.Scan(&ch.ID, &ch.Name, &ch.CreatedAt)
		return ch, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan channels: %w", err)
	}
	return out, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
