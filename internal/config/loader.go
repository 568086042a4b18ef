package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults] when the corresponding field is unset.
const (
	DefaultListenAddr = ":8080"
	DefaultLogLevel   = LogInfo
	DefaultSampleRate = 16000
	DefaultChannels   = 1
)

// envOverlay captures the environment variables that may stand in for config
// file fields. The environment fills fields the YAML left empty, so a config
// file value always wins over the environment.
type envOverlay struct {
	AssemblyAIKey string `env:"ASSEMBLYAI_API_KEY"`
	DeepgramKey   string `env:"DEEPGRAM_API_KEY"`
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	ListenAddr    string `env:"TRISCRIBE_LISTEN_ADDR"`
	LogLevel      string `env:"TRISCRIBE_LOG_LEVEL"`
}

// Load reads the YAML configuration file at path, overlays environment
// variables, applies defaults, and returns a validated [Config]. A missing
// file is not an error: credentials may come entirely from the environment.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		slog.Info("config file not found, using environment only", "path", path)
		return LoadFromReader(nil)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, overlays the environment,
// applies defaults, and validates the result. A nil r skips the YAML stage.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if r != nil {
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv fills fields left empty by the YAML from the process environment.
func ApplyEnv(cfg *Config) error {
	var o envOverlay
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("config: parse environment: %w", err)
	}

	setIfEmpty(&cfg.Providers.AssemblyAI.APIKey, o.AssemblyAIKey)
	setIfEmpty(&cfg.Providers.Deepgram.APIKey, o.DeepgramKey)
	setIfEmpty(&cfg.Providers.OpenAI.APIKey, o.OpenAIKey)
	setIfEmpty(&cfg.Server.ListenAddr, o.ListenAddr)
	if cfg.Server.LogLevel == "" && o.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(o.LogLevel)
	}
	return nil
}

func setIfEmpty(dst *string, val string) {
	if *dst == "" && val != "" {
		*dst = val
	}
}

// ApplyDefaults fills unset fields with server defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = DefaultChannels
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", cfg.Audio.Channels))
	}

	if len(cfg.Providers.ConfiguredNames()) == 0 {
		slog.Warn("no provider credentials configured; all transcription requests will return empty results")
	}

	return errors.Join(errs...)
}
