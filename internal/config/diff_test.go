package config_test

import (
	"testing"

	"github.com/triscribe/triscribe/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{
			Deepgram: config.ProviderEntry{APIKey: "dg", Model: "nova-2"},
		},
		Audio: config.AudioConfig{SampleRate: 16000, Channels: 1},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()

	d := config.Diff(old, new)
	if !d.Empty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevelChange(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel: want debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_ProviderCredentialChange(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Providers.Deepgram.APIKey = "rotated"
	new.Providers.OpenAI.APIKey = "fresh"

	d := config.Diff(old, new)
	if len(d.ProvidersChanged) != 2 {
		t.Fatalf("expected 2 changed providers, got %v", d.ProvidersChanged)
	}
	if d.ProvidersChanged[0] != config.ProviderDeepgram || d.ProvidersChanged[1] != config.ProviderOpenAI {
		t.Errorf("changed providers: got %v", d.ProvidersChanged)
	}
}

func TestDiff_ProviderOptionsChange(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Providers.Deepgram.Options = map[string]any{"punctuate": false}

	d := config.Diff(old, new)
	if len(d.ProvidersChanged) != 1 || d.ProvidersChanged[0] != config.ProviderDeepgram {
		t.Errorf("expected deepgram options change, got %v", d.ProvidersChanged)
	}
}

func TestDiff_AudioAndListenAddr(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Audio.SampleRate = 48000
	new.Server.ListenAddr = ":9090"

	d := config.Diff(old, new)
	if !d.AudioChanged {
		t.Error("expected AudioChanged")
	}
	if !d.ListenAddrChanged {
		t.Error("expected ListenAddrChanged")
	}
}
