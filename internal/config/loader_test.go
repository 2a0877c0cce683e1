package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/saidwhen/internal/config"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name:    "bad log level",
			yaml:    "server:\n  log_level: loud\n",
			wantErr: []string{"server.log_level"},
		},
		{
			name:    "unknown driver",
			yaml:    "store:\n  driver: mysql\n",
			wantErr: []string{"store.driver"},
		},
		{
			name:    "postgres without dsn",
			yaml:    "store:\n  driver: postgres\n",
			wantErr: []string{"store.postgres_dsn"},
		},
		{
			name:    "negative numbers are all reported",
			yaml:    "youtube:\n  requests_per_second: -1\n  burst: -2\n  request_timeout: -1s\n  breaker_cooldown: -1m\ningest:\n  concurrency: -1\nregistry:\n  max_channels: -5\n",
			wantErr: []string{"youtube.requests_per_second", "youtube.burst", "youtube.request_timeout", "youtube.breaker_cooldown", "ingest.concurrency", "registry.max_channels"},
		},
		{
			name: "memory driver",
			yaml: "store:\n  driver: memory\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error should mention %q, got: %v", want, err)
				}
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		config.EnvDiscordToken: "from-env",
		config.EnvPostgresDSN:  "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := &config.Config{
		Discord: config.DiscordConfig{Token: "from-file"},
		Store:   config.StoreConfig{PostgresDSN: "postgres://file"},
	}
	config.ApplyEnv(cfg, lookup)

	if cfg.Discord.Token != "from-env" {
		t.Errorf("token = %q, want from-env", cfg.Discord.Token)
	}
	if cfg.Store.PostgresDSN != "postgres://file" {
		t.Errorf("dsn = %q, want the file value when the variable is empty", cfg.Store.PostgresDSN)
	}
}
