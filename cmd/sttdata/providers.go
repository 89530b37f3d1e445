package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/sttdata/internal/app"
	"github.com/MrWong99/sttdata/internal/config"
	"github.com/MrWong99/sttdata/internal/observe"
	"github.com/MrWong99/sttdata/internal/resilience"
	"github.com/MrWong99/sttdata/pkg/provider/llm"
	"github.com/MrWong99/sttdata/pkg/provider/llm/anyllm"
	llmopenai "github.com/MrWong99/sttdata/pkg/provider/llm/openai"
	"github.com/MrWong99/sttdata/pkg/provider/stt"
	"github.com/MrWong99/sttdata/pkg/provider/stt/hfendpoint"
	sttopenai "github.com/MrWong99/sttdata/pkg/provider/stt/openai"
	"github.com/MrWong99/sttdata/pkg/provider/stt/whisper"
	"github.com/MrWong99/sttdata/pkg/provider/vad"
	"github.com/MrWong99/sttdata/pkg/provider/vad/energy"
	"github.com/MrWong99/sttdata/pkg/provider/vad/silero"
	"github.com/MrWong99/sttdata/pkg/storage"
	"github.com/MrWong99/sttdata/pkg/storage/local"
	"github.com/MrWong99/sttdata/pkg/storage/s3"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// Hosted any-llm backends take an API key; the local ones only a BaseURL.
	for _, name := range anyllm.Backends() {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" && anyllm.NeedsAPIKey(name) {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	reg.RegisterLLM("openai-compat", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptString("organization"); org != "" {
			opts = append(opts, llmopenai.WithOrganization(org))
		}
		if n := entry.OptInt("max_retries", -1); n >= 0 {
			opts = append(opts, llmopenai.WithMaxRetries(n))
		}
		if d := entry.OptDuration("timeout", 0); d > 0 {
			opts = append(opts, llmopenai.WithTimeout(d))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("hfendpoint", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		return hfendpoint.New(entry.BaseURL, entry.APIKey)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []sttopenai.Option
		if entry.Model != "" {
			opts = append(opts, sttopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, sttopenai.WithLanguage(lang))
		}
		if prompt := entry.OptString("prompt"); prompt != "" {
			opts = append(opts, sttopenai.WithPrompt(prompt))
		}
		return sttopenai.New(entry.APIKey, opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("energy", func(entry config.ProviderEntry, params vad.Params) (vad.Detector, error) {
		engine := energy.New(
			energy.WithCenterDB(entry.OptFloat("center_db", energy.DefaultCenterDB)),
			energy.WithSlope(entry.OptFloat("slope", energy.DefaultSlope)),
		)
		return vad.NewFrameDetector(engine, params)
	})

	reg.RegisterVAD("silero", func(entry config.ProviderEntry, params vad.Params) (vad.Detector, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		var opts []silero.Option
		if pad := entry.OptInt("speech_pad_ms", -1); pad >= 0 {
			opts = append(opts, silero.WithSpeechPadMs(pad))
		}
		return silero.New(modelPath, params, opts...)
	})

	// ── Storage ───────────────────────────────────────────────────────────────

	reg.RegisterStorage("s3", func(ctx context.Context, entry config.ProviderEntry) (storage.ObjectStore, error) {
		return s3.New(ctx, s3.Config{
			Bucket:         entry.OptString("bucket"),
			Region:         entry.OptString("region"),
			Endpoint:       entry.BaseURL,
			AccessKey:      entry.OptString("access_key"),
			SecretKey:      entry.APIKey,
			ForcePathStyle: entry.OptBool("force_path_style"),
			PublicBaseURL:  entry.OptString("public_base_url"),
		})
	})

	reg.RegisterStorage("local", func(_ context.Context, entry config.ProviderEntry) (storage.ObjectStore, error) {
		var opts []local.Option
		if base := entry.OptString("public_base_url"); base != "" {
			opts = append(opts, local.WithBaseURL(base))
		}
		return local.New(entry.OptString("root"), opts...)
	})

	for _, kind := range []string{"stt", "llm", "vad", "storage"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// builtProviders are the instantiated providers plus the ones holding
// resources that must be released on exit.
type builtProviders struct {
	*app.Providers
	closers []io.Closer
}

func (b *builtProviders) Close() {
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			slog.Warn("provider close error", "err", err)
		}
	}
}

// buildProviders instantiates all providers named in cfg using the registry.
// Fallback entries are chained behind the primary with a circuit breaker
// each, and every STT and LLM backend is instrumented with request metrics.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry, m *observe.Metrics) (*builtProviders, error) {
	b := &builtProviders{Providers: &app.Providers{}}
	fallbackCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state change", "provider", name, "from", from, "to", to)
			},
		},
	}

	track := func(v any) {
		if c, ok := v.(io.Closer); ok {
			b.closers = append(b.closers, c)
		}
	}

	// ── STT ───────────────────────────────────────────────────────────────────
	if entry := cfg.Providers.STT; entry.Name != "" {
		primary, err := reg.CreateSTT(entry)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
		}
		track(primary)
		slog.Info("provider created", "kind", "stt", "name", entry.Name)
		b.STT = app.InstrumentSTT(entry.Name, primary, m)

		if len(cfg.Providers.STTFallbacks) > 0 {
			fb := resilience.NewSTTFallback(b.STT, entry.Name, fallbackCfg)
			for _, e := range cfg.Providers.STTFallbacks {
				t, err := reg.CreateSTT(e)
				if err != nil {
					b.Close()
					return nil, fmt.Errorf("create stt fallback %q: %w", e.Name, err)
				}
				track(t)
				fb.AddFallback(e.Name, app.InstrumentSTT(e.Name, t, m))
				slog.Info("provider created", "kind", "stt", "name", e.Name, "fallback", true)
			}
			b.STT = fb
		}
	}

	// ── LLM ───────────────────────────────────────────────────────────────────
	if entry := cfg.Providers.LLM; entry.Name != "" {
		primary, err := reg.CreateLLM(entry)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		}
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
		b.LLM = app.InstrumentLLM(entry.Name, primary, m)

		if len(cfg.Providers.LLMFallbacks) > 0 {
			fb := resilience.NewLLMFallback(b.LLM, entry.Name, fallbackCfg)
			for _, e := range cfg.Providers.LLMFallbacks {
				p, err := reg.CreateLLM(e)
				if err != nil {
					b.Close()
					return nil, fmt.Errorf("create llm fallback %q: %w", e.Name, err)
				}
				fb.AddFallback(e.Name, app.InstrumentLLM(e.Name, p, m))
				slog.Info("provider created", "kind", "llm", "name", e.Name, "fallback", true)
			}
			b.LLM = fb
		}
	}

	// ── VAD ───────────────────────────────────────────────────────────────────
	vadEntry := cfg.Providers.VAD
	if vadEntry.Name == "" {
		vadEntry.Name = "energy"
	}
	d, err := reg.CreateVAD(vadEntry, cfg.VAD.Params())
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("create vad provider %q: %w", vadEntry.Name, err)
	}
	track(d)
	b.VAD = d
	slog.Info("provider created", "kind", "vad", "name", vadEntry.Name)

	// ── Storage ───────────────────────────────────────────────────────────────
	if entry := cfg.Providers.Storage; entry.Name != "" {
		s, err := reg.CreateStorage(ctx, entry)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("create storage provider %q: %w", entry.Name, err)
		}
		b.Storage = s
		slog.Info("provider created", "kind", "storage", "name", entry.Name)
	} else {
		slog.Info("no storage provider configured; segment audio will not be uploaded")
	}

	return b, nil
}
