package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/saidwhen/internal/store"
	"github.com/MrWong99/saidwhen/internal/store/storetest"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if SAIDWHEN_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("SAIDWHEN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SAIDWHEN_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore drops all tables and returns a freshly migrated [Store].
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS cues CASCADE",
		"DROP TABLE IF EXISTS corpora CASCADE",
		"DROP TABLE IF EXISTS channels CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema %q: %v", stmt, err)
		}
	}

	s, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Integration(t *testing.T) {
	testDSN(t)
	storetest.Run(t, newTestStore)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t).(*Store)
	if err := Migrate(context.Background(), s.pool); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestWordPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		phrase string
		want   string
	}{
		{phrase: "world", want: `\yworld\y`},
		{phrase: "give you up", want: `\ygive you up\y`},
		{phrase: "a.b", want: `\ya\.b\y`},
	}
	for _, tt := range tests {
		if got := wordPattern(tt.phrase); got != tt.want {
			t.Errorf("wordPattern(%q) = %q, want %q", tt.phrase, got, tt.want)
		}
	}
}

func TestIsDuplicateKeyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "wrapped", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: true},
		{name: "other pg error", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isDuplicateKeyError(tt.err); got != tt.want {
				t.Errorf("isDuplicateKeyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
