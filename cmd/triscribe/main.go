// Command triscribe runs the speech-to-text comparison server: it fans
// uploaded or streamed audio out to the configured transcription providers
// and relays their results side by side.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/triscribe/triscribe/internal/config"
	"github.com/triscribe/triscribe/internal/health"
	"github.com/triscribe/triscribe/internal/observe"
	"github.com/triscribe/triscribe/internal/server"
	"github.com/triscribe/triscribe/pkg/stt"
	"github.com/triscribe/triscribe/pkg/stt/assemblyai"
	"github.com/triscribe/triscribe/pkg/stt/deepgram"
	"github.com/triscribe/triscribe/pkg/stt/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Credentials may live in a .env file during development; a missing file
	// is fine.
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "triscribe: %v\n", err)
		return 1
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("triscribe starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"providers", cfg.Providers.ConfiguredNames(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "triscribe"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	healthHandler := newHealthHandler(cfg)

	// The watcher hot-reloads the log level on config file edits. Other
	// changes need a restart; the watcher just reports them.
	if watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.Empty() {
			return
		}
		if diff.LogLevelChanged {
			levelVar.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if len(diff.ProvidersChanged) > 0 || diff.AudioChanged || diff.ListenAddrChanged {
			slog.Warn("config change requires restart to take effect")
		}
	}); err == nil {
		defer watcher.Stop()
	} else {
		slog.Debug("config watcher disabled", "err", err)
	}

	srv := server.New(cfg, providers, metrics, healthHandler)

	slog.Info("server ready", "addr", cfg.Server.ListenAddr)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// registerBuiltinProviders wires the three vendor adapter factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.Register(config.ProviderAssemblyAI, func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []assemblyai.Option
		if entry.BaseURL != "" {
			opts = append(opts, assemblyai.WithAPIEndpoint(entry.BaseURL))
		}
		if stream := optString(entry.Options, "stream_endpoint"); stream != "" {
			opts = append(opts, assemblyai.WithStreamEndpoint(stream))
		}
		return assemblyai.New(entry.APIKey, opts...)
	})

	reg.Register(config.ProviderDeepgram, func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBatchEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.Register(config.ProviderOpenAI, func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []openai.Option
		if entry.Model != "" {
			opts = append(opts, openai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, openai.WithLanguage(lang))
		}
		return openai.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates one adapter per provider with a configured
// credential.
func buildProviders(cfg *config.Config, reg *config.Registry) (map[string]stt.Provider, error) {
	providers := make(map[string]stt.Provider)
	for _, name := range cfg.Providers.ConfiguredNames() {
		entry, _ := cfg.Providers.Entry(name)
		p, err := reg.Create(name, entry)
		if err != nil {
			return nil, fmt.Errorf("create provider %q: %w", name, err)
		}
		providers[name] = p
		slog.Info("provider configured", "name", name)
	}
	return providers, nil
}

// newHealthHandler builds the health endpoints: readiness fails when no
// provider credential is configured, and every response carries the
// per-provider credential map.
func newHealthHandler(cfg *config.Config) *health.Handler {
	h := health.New(health.Checker{
		Name: "providers",
		Check: func(_ context.Context) error {
			if len(cfg.Providers.ConfiguredNames()) == 0 {
				return errors.New("no provider credentials configured")
			}
			return nil
		},
	})
	h.ReportProviders(func() map[string]bool {
		status := make(map[string]bool, len(config.ProviderNames))
		for _, name := range config.ProviderNames {
			status[name] = cfg.Providers.Configured(name)
		}
		return status
	})
	return h
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map. Returns ""
// when the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
