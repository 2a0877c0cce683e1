// Package postgres provides a PostgreSQL-backed [store.Store].
//
// Channels, corpora and cue records live in three tables sharing one
// [pgxpool.Pool]. A video is written in a single transaction: cue rows are
// bulk-loaded with COPY and the corpus row is inserted last, so a video
// becomes searchable only once all its cues are visible.
//
// Usage:
//
//	s, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer s.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlChannels = `
CREATE TABLE IF NOT EXISTS channels (
    id          TEXT         PRIMARY KEY,
    name        TEXT         NOT NULL UNIQUE,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlCaptions = `
CREATE TABLE IF NOT EXISTS corpora (
    seq         BIGSERIAL    NOT NULL,
    channel_id  TEXT         NOT NULL,
    video_id    TEXT         NOT NULL,
    text        TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (channel_id, video_id)
);

CREATE INDEX IF NOT EXISTS idx_corpora_channel_seq
    ON corpora (channel_id, seq);

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

// Migrate creates the channels, corpora and cues tables if they do not exist.
// It is idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlChannels, ddlCaptions} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
