package config

// ConfigDiff describes what changed between two configs. Log level changes
// can be applied at runtime; everything else requires a restart and is only
// reported so it can be logged.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ProvidersChanged lists providers whose credential, endpoint, model, or
	// options changed. Applying these requires a restart.
	ProvidersChanged []string

	// AudioChanged is true when the expected PCM format changed.
	AudioChanged bool

	// ListenAddrChanged is true when the server listen address changed.
	ListenAddrChanged bool
}

// Empty reports whether the diff contains no changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && len(d.ProvidersChanged) == 0 &&
		!d.AudioChanged && !d.ListenAddrChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.ListenAddrChanged = true
	}
	if old.Audio != new.Audio {
		d.AudioChanged = true
	}

	for _, name := range ProviderNames {
		oldEntry, _ := old.Providers.Entry(name)
		newEntry, _ := new.Providers.Entry(name)
		if !entryEqual(oldEntry, newEntry) {
			d.ProvidersChanged = append(d.ProvidersChanged, name)
		}
	}

	return d
}

// entryEqual compares two provider entries. Options maps are compared
// shallowly by length and key/value identity.
func entryEqual(a, b ProviderEntry) bool {
	if a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	if len(a.Options) != len(b.Options) {
		return false
	}
	for k, v := range a.Options {
		if bv, ok := b.Options[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
