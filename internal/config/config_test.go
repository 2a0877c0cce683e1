package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/saidwhen/internal/config"
)

const fullYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
discord:
  token: "bot-token"
  guild_id: "123"
store:
  driver: postgres
  postgres_dsn: "postgres://localhost/saidwhen"
youtube:
  base_url: "http://127.0.0.1:8000"
  language: de
  request_timeout: 10s
  requests_per_second: 2.5
  burst: 3
  user_agent: "saidwhen/1"
ingest:
  concurrency: 16
registry:
  max_channels: 10
telemetry:
  service_name: saidwhen-test
`

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Discord.Token != "bot-token" || cfg.Discord.GuildID != "123" {
		t.Errorf("discord = %+v", cfg.Discord)
	}
	if cfg.Store.Driver != config.DriverPostgres || cfg.Store.PostgresDSN != "postgres://localhost/saidwhen" {
		t.Errorf("store = %+v", cfg.Store)
	}
	want := config.YouTubeConfig{
		BaseURL:           "http://127.0.0.1:8000",
		Language:          "de",
		RequestTimeout:    10 * time.Second,
		RequestsPerSecond: 2.5,
		Burst:             3,
		UserAgent:         "saidwhen/1",
	}
	if cfg.YouTube != want {
		t.Errorf("youtube = %+v, want %+v", cfg.YouTube, want)
	}
	if cfg.Ingest.Concurrency != 16 {
		t.Errorf("ingest.concurrency = %d, want 16", cfg.Ingest.Concurrency)
	}
	if cfg.Registry.MaxChannels != 10 {
		t.Errorf("registry.max_channels = %d, want 10", cfg.Registry.MaxChannels)
	}
	if cfg.Telemetry.ServiceName != "saidwhen-test" {
		t.Errorf("telemetry.service_name = %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr = %q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Store.Driver != config.DriverSQLite || cfg.Store.SQLitePath != config.DefaultSQLitePath {
		t.Errorf("store = %+v, want sqlite at %q", cfg.Store, config.DefaultSQLitePath)
	}
	if cfg.YouTube.Language != "en" || cfg.YouTube.RequestTimeout != config.DefaultRequestTimeout {
		t.Errorf("youtube = %+v", cfg.YouTube)
	}
	if cfg.YouTube.BreakerFailures != config.DefaultBreakerFailures || cfg.YouTube.BreakerCooldown != config.DefaultBreakerCooldown {
		t.Errorf("youtube breaker = %d/%s", cfg.YouTube.BreakerFailures, cfg.YouTube.BreakerCooldown)
	}
	if cfg.Ingest.Concurrency != config.DefaultConcurrency {
		t.Errorf("ingest.concurrency = %d, want %d", cfg.Ingest.Concurrency, config.DefaultConcurrency)
	}
	if cfg.Registry.MaxChannels != 50 {
		t.Errorf("registry.max_channels = %d, want 50", cfg.Registry.MaxChannels)
	}
}

func TestApplyDefaults_DSNImpliesPostgres(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Store: config.StoreConfig{PostgresDSN: "postgres://x"}}
	config.ApplyDefaults(cfg)
	if cfg.Store.Driver != config.DriverPostgres {
		t.Errorf("driver = %q, want postgres", cfg.Store.Driver)
	}
	if cfg.Store.SQLitePath != "" {
		t.Errorf("sqlite_path = %q, want empty for postgres", cfg.Store.SQLitePath)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_adr: \":1\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "saidwhen.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.GuildID != "123" {
		t.Errorf("guild_id = %q, want 123", cfg.Discord.GuildID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config: open") {
		t.Errorf("Load: err = %v, want open error", err)
	}
}

func TestStoreDriver_IsValid(t *testing.T) {
	t.Parallel()
	for _, d := range []config.StoreDriver{config.DriverPostgres, config.DriverSQLite, config.DriverMemory} {
		if !d.IsValid() {
			t.Errorf("%q.IsValid() = false", d)
		}
	}
	if config.StoreDriver("mysql").IsValid() {
		t.Error(`"mysql".IsValid() = true`)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Registry.MaxChannels != config.DefaultMaxChannels {
		t.Errorf("MaxChannels = %d, want %d", cfg.Registry.MaxChannels, config.DefaultMaxChannels)
	}
	if cfg.YouTube.RequestTimeout != config.DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v, want %v", cfg.YouTube.RequestTimeout, config.DefaultRequestTimeout)
	}
}
