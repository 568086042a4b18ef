package config_test

import (
	"errors"
	"testing"

	"github.com/triscribe/triscribe/internal/config"
	"github.com/triscribe/triscribe/pkg/stt"
	"github.com/triscribe/triscribe/pkg/stt/mock"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	valid := []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("expected %q to be valid", l)
		}
	}
	for _, l := range []config.LogLevel{"", "trace", "DEBUG"} {
		if l.IsValid() {
			t.Errorf("expected %q to be invalid", l)
		}
	}
}

func TestProvidersConfig_Entry(t *testing.T) {
	t.Parallel()
	p := config.ProvidersConfig{
		Deepgram: config.ProviderEntry{APIKey: "dg"},
	}

	entry, ok := p.Entry(config.ProviderDeepgram)
	if !ok || entry.APIKey != "dg" {
		t.Errorf("Entry(deepgram): got %+v, ok=%v", entry, ok)
	}
	if _, ok := p.Entry("whisper-native"); ok {
		t.Error("expected unknown provider name to report ok=false")
	}
}

func TestProvidersConfig_ConfiguredNames(t *testing.T) {
	t.Parallel()
	p := config.ProvidersConfig{
		AssemblyAI: config.ProviderEntry{APIKey: "a"},
		OpenAI:     config.ProviderEntry{APIKey: "o"},
	}

	names := p.ConfiguredNames()
	if len(names) != 2 || names[0] != config.ProviderAssemblyAI || names[1] != config.ProviderOpenAI {
		t.Errorf("ConfiguredNames: got %v", names)
	}
	if p.Configured(config.ProviderDeepgram) {
		t.Error("deepgram should not be configured without an api key")
	}
}

func TestRegistry_CreateRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.Register("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		return &mock.Provider{ProviderName: "deepgram"}, nil
	})

	p, err := reg.Create("deepgram", config.ProviderEntry{APIKey: "k"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Name() != "deepgram" {
		t.Errorf("expected provider name deepgram, got %q", p.Name())
	}
}

func TestRegistry_CreateUnregistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	_, err := reg.Create("whisper-native", config.ProviderEntry{})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.Register("a", func(config.ProviderEntry) (stt.Provider, error) { return &mock.Provider{}, nil })
	reg.Register("b", func(config.ProviderEntry) (stt.Provider, error) { return &mock.Provider{}, nil })

	if got := len(reg.Names()); got != 2 {
		t.Errorf("expected 2 registered names, got %d", got)
	}
}
