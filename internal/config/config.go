// Package config provides the configuration schema, loader, provider
// registry, and file watcher for the triscribe comparison server.
package config

// LogLevel controls log verbosity for the triscribe server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Provider names recognised by the server. Also the order in which
// providers are reported to clients.
const (
	ProviderAssemblyAI = "assemblyai"
	ProviderDeepgram   = "deepgram"
	ProviderOpenAI     = "openai"
)

// ProviderNames lists every provider the server knows about.
var ProviderNames = []string{ProviderAssemblyAI, ProviderDeepgram, ProviderOpenAI}

// Config is the root configuration structure for triscribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Audio     AudioConfig     `yaml:"audio"`
}

// ServerConfig holds network and logging settings for the triscribe server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig holds one entry per supported transcription vendor.
// An entry with an empty api_key is treated as not configured: the provider
// is skipped in batch fan-out, realtime streaming, and readiness reporting.
type ProvidersConfig struct {
	AssemblyAI ProviderEntry `yaml:"assemblyai"`
	Deepgram   ProviderEntry `yaml:"deepgram"`
	OpenAI     ProviderEntry `yaml:"openai"`
}

// Entry returns the entry for a provider name.
func (p *ProvidersConfig) Entry(name string) (ProviderEntry, bool) {
	switch name {
	case ProviderAssemblyAI:
		return p.AssemblyAI, true
	case ProviderDeepgram:
		return p.Deepgram, true
	case ProviderOpenAI:
		return p.OpenAI, true
	}
	return ProviderEntry{}, false
}

// Configured reports whether the named provider has a credential.
func (p *ProvidersConfig) Configured(name string) bool {
	entry, ok := p.Entry(name)
	return ok && entry.Configured()
}

// ConfiguredNames returns the names of all providers with credentials, in
// [ProviderNames] order.
func (p *ProvidersConfig) ConfiguredNames() []string {
	var names []string
	for _, name := range ProviderNames {
		if p.Configured(name) {
			names = append(names, name)
		}
	}
	return names
}

// ProviderEntry is the common configuration block shared by all providers.
type ProviderEntry struct {
	// APIKey is the authentication key for the provider's API. An empty key
	// means the provider is not configured.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-2",
	// "whisper-1"). Leave empty to use the provider's default.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// Configured reports whether the entry carries a credential.
func (e ProviderEntry) Configured() bool { return e.APIKey != "" }

// AudioConfig describes the PCM format clients are expected to send.
type AudioConfig struct {
	// SampleRate is the PCM sample rate in Hz (e.g., 16000).
	SampleRate int `yaml:"sample_rate"`

	// Channels is the PCM channel count (1 or 2).
	Channels int `yaml:"channels"`
}
