package config

// ConfigDiff describes what changed between two configs. Only log level and
// ingest concurrency are applied at runtime; every other changed section is
// listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ConcurrencyChanged bool
	NewConcurrency     int

	// RestartRequired names the changed sections that only take effect
	// after a restart, in declaration order.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ConcurrencyChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Ingest.Concurrency != new.Ingest.Concurrency {
		d.ConcurrencyChanged = true
		d.NewConcurrency = new.Ingest.Concurrency
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Discord != new.Discord {
		d.RestartRequired = append(d.RestartRequired, "discord")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	if old.YouTube != new.YouTube {
		d.RestartRequired = append(d.RestartRequired, "youtube")
	}
	if old.Registry != new.Registry {
		d.RestartRequired = append(d.RestartRequired, "registry")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}
	return d
}
