package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the file.
const (
	EnvDiscordToken = "SAIDWHEN_DISCORD_TOKEN"
	EnvPostgresDSN  = "SAIDWHEN_POSTGRES_DSN"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides and defaults, and validates the result. An empty document
// yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg, os.LookupEnv)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets with the environment variables named by
// [EnvDiscordToken] and [EnvPostgresDSN] when they are set and non-empty.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDiscordToken); ok && v != "" {
		cfg.Discord.Token = v
	}
	if v, ok := lookup(EnvPostgresDSN); ok && v != "" {
		cfg.Store.PostgresDSN = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Discord.Token == "" {
		slog.Warn("discord.token is empty; the bot will not connect to Discord", "env", EnvDiscordToken)
	}

	switch cfg.Store.Driver {
	case DriverPostgres:
		if cfg.Store.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("store.postgres_dsn is required when store.driver is postgres"))
		}
	case DriverSQLite:
		if cfg.Store.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("store.sqlite_path is required when store.driver is sqlite"))
		}
	case DriverMemory:
		slog.Warn("store.driver is memory; indexed channels are lost on restart")
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is invalid; valid values: postgres, sqlite, memory", cfg.Store.Driver))
	}

	if cfg.YouTube.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("youtube.request_timeout %s must not be negative", cfg.YouTube.RequestTimeout))
	}
	if cfg.YouTube.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("youtube.requests_per_second %.2f must not be negative", cfg.YouTube.RequestsPerSecond))
	}
	if cfg.YouTube.Burst < 0 {
		errs = append(errs, fmt.Errorf("youtube.burst %d must not be negative", cfg.YouTube.Burst))
	}
	if cfg.YouTube.BreakerCooldown < 0 {
		errs = append(errs, fmt.Errorf("youtube.breaker_cooldown %s must not be negative", cfg.YouTube.BreakerCooldown))
	}
	if cfg.Ingest.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("ingest.concurrency %d must not be negative", cfg.Ingest.Concurrency))
	}
	if cfg.Registry.MaxChannels < 0 {
		errs = append(errs, fmt.Errorf("registry.max_channels %d must not be negative", cfg.Registry.MaxChannels))
	}

	return errors.Join(errs...)
}
