package app_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/saidwhen/internal/app"
	"github.com/MrWong99/saidwhen/internal/config"
)

// fakeFrontend blocks in Run until cancelled.
type fakeFrontend struct {
	svc     *app.Service
	running atomic.Bool
	closed  atomic.Int32
	pingErr error
}

func (f *fakeFrontend) Run(ctx context.Context) error {
	f.running.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeFrontend) Close() error {
	f.closed.Add(1)
	return nil
}

func (f *fakeFrontend) Ping(context.Context) error { return f.pingErr }

func TestNew_MemoryDriver(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Service() == nil {
		t.Error("Service() = nil")
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNew_SQLiteDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Store = config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: t.TempDir() + "/saidwhen.db"}
	a, err := app.New(context.Background(), cfg, app.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNew_FrontendFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("no gateway")
	_, err := app.New(context.Background(), testConfig(),
		app.WithMetrics(testMetrics(t)),
		app.WithFrontend(func(*app.Service) (app.Frontend, error) { return nil, boom }),
	)
	if !errors.Is(err, boom) {
		t.Errorf("New: err = %v, want %v", err, boom)
	}
}

func TestRun_ServesProbesUntilCancelled(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fe := &fakeFrontend{}
	a := newTestApp(t, testConfig(),
		app.WithListener(ln),
		app.WithFrontend(func(svc *app.Service) (app.Frontend, error) {
			fe.svc = svc
			return fe, nil
		}),
	)
	if fe.svc != a.Service() {
		t.Error("frontend did not receive the app's service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	base := "http://" + ln.Addr().String()
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
	if !fe.running.Load() {
		// Run starts the frontend concurrently; give it a moment.
		time.Sleep(50 * time.Millisecond)
		if !fe.running.Load() {
			t.Error("frontend not running")
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n := fe.closed.Load(); n != 1 {
		t.Errorf("frontend closed %d times, want 1", n)
	}
}

func TestRun_ReadinessReflectsFrontend(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fe := &fakeFrontend{pingErr: errors.New("gateway down")}
	a := newTestApp(t, testConfig(),
		app.WithListener(ln),
		app.WithFrontend(func(*app.Service) (app.Frontend, error) { return fe, nil }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz = %d, want 503", resp.StatusCode)
	}
}

func TestReload(t *testing.T) {
	t.Parallel()

	var level slog.LevelVar
	old := testConfig()
	a := newTestApp(t, old, app.WithLogLevel(&level))

	updated := testConfig()
	updated.Server.LogLevel = config.LogDebug
	updated.Ingest.Concurrency = 2
	updated.Store.Driver = config.DriverSQLite
	a.Reload(old, updated)

	if level.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level.Level())
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := app.SlogLevel(tt.in); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
