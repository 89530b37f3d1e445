package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/sttdata/pkg/provider/vad"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultLowerLimit        = 2.0
	DefaultUpperLimit        = 8.0
	DefaultTopDB             = 30.0
	DefaultFrameLength       = 2048
	DefaultHopLength         = 512
	DefaultSampleRate        = 16000
	DefaultChannels          = 1
	DefaultSampleWidth       = 2
	DefaultThreshold         = 0.4
	DefaultSegmentWorkers    = 4
	DefaultRecordingWorkers  = 1
	DefaultFetchTimeout      = 2 * time.Minute
	DefaultTranscribeTimeout = 60 * time.Second
	DefaultCorrectTimeout    = 60 * time.Second
	DefaultPersistTimeout    = 30 * time.Second
	DefaultKeyPrefix         = "stt_news_auto_data"
	DefaultCSVPath           = "output.csv"
	DefaultServiceName       = "sttdata"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":     {"hfendpoint", "whisper", "whisper-native", "openai"},
	"llm":     {"gemini", "openai", "openai-compat", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"vad":     {"energy", "silero"},
	"storage": {"s3", "local"},
}

// LoadEnv loads KEY=value pairs from dotenv files into the process
// environment without overriding variables that are already set. With no
// paths it loads ./.env when present.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		paths = []string{".env"}
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("config: load env %s: %w", strings.Join(paths, ", "), err)
	}
	return nil
}

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

// LoadFromReader decodes a YAML config from r, expands ${VAR} references
// from the environment, applies defaults and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields of cfg with the package defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = LogFormatText
	}

	s := &cfg.Segment
	s.LowerLimit = orDefault(s.LowerLimit, DefaultLowerLimit)
	s.UpperLimit = orDefault(s.UpperLimit, DefaultUpperLimit)
	s.TopDB = orDefault(s.TopDB, DefaultTopDB)
	s.FrameLength = orDefault(s.FrameLength, DefaultFrameLength)
	s.HopLength = orDefault(s.HopLength, DefaultHopLength)

	v := &cfg.VAD
	v.Onset = orDefault(v.Onset, vad.DefaultOnset)
	v.Offset = orDefault(v.Offset, vad.DefaultOffset)
	v.MinDurationOn = orDefault(v.MinDurationOn, vad.DefaultMinDurationOn)
	v.FrameMs = orDefault(v.FrameMs, vad.DefaultFrameMs)

	a := &cfg.Audio
	a.SampleRate = orDefault(a.SampleRate, DefaultSampleRate)
	a.Channels = orDefault(a.Channels, DefaultChannels)
	a.SampleWidth = orDefault(a.SampleWidth, DefaultSampleWidth)

	if cfg.Validation.Threshold == nil {
		t := DefaultThreshold
		cfg.Validation.Threshold = &t
	}

	p := &cfg.Pipeline
	p.SegmentWorkers = orDefault(p.SegmentWorkers, DefaultSegmentWorkers)
	p.RecordingWorkers = orDefault(p.RecordingWorkers, DefaultRecordingWorkers)
	p.Timeouts.Fetch = orDefault(p.Timeouts.Fetch, DefaultFetchTimeout)
	p.Timeouts.Transcribe = orDefault(p.Timeouts.Transcribe, DefaultTranscribeTimeout)
	p.Timeouts.Correct = orDefault(p.Timeouts.Correct, DefaultCorrectTimeout)
	p.Timeouts.Persist = orDefault(p.Timeouts.Persist, DefaultPersistTimeout)
	p.KeyPrefix = orDefault(p.KeyPrefix, DefaultKeyPrefix)

	cfg.Output.CSVPath = orDefault(cfg.Output.CSVPath, DefaultCSVPath)
	cfg.Server.ServiceName = orDefault(cfg.Server.ServiceName, DefaultServiceName)
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.LogFormat != "" && !cfg.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("log_format %q is invalid; valid values: text, json", cfg.LogFormat))
	}

	// Segment
	if err := cfg.Segment.Bounds().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("segment: %w", err))
	}
	if cfg.Segment.TopDB < 0 {
		errs = append(errs, fmt.Errorf("segment.top_db %.1f must not be negative", cfg.Segment.TopDB))
	}
	if cfg.Segment.FrameLength < 0 || cfg.Segment.HopLength < 0 {
		errs = append(errs, errors.New("segment.frame_length and segment.hop_length must not be negative"))
	}

	// VAD
	if err := cfg.VAD.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("vad: %w", err))
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels != 0 && cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", cfg.Audio.Channels))
	}
	if cfg.Audio.SampleWidth != 0 && cfg.Audio.SampleWidth != 2 {
		errs = append(errs, fmt.Errorf("audio.sample_width %d is unsupported; only 16-bit (2) PCM is handled", cfg.Audio.SampleWidth))
	}

	// Validation
	if t := cfg.Validation.MaxErrorRate(); t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("validation.threshold %.3f is out of range [0, 1]", t))
	}

	// Pipeline
	if cfg.Pipeline.SegmentWorkers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.segment_workers %d must be positive", cfg.Pipeline.SegmentWorkers))
	}
	if cfg.Pipeline.RecordingWorkers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.recording_workers %d must be positive", cfg.Pipeline.RecordingWorkers))
	}
	to := cfg.Pipeline.Timeouts
	if to.Fetch < 0 || to.Transcribe < 0 || to.Correct < 0 || to.Persist < 0 {
		errs = append(errs, errors.New("pipeline.timeouts must not be negative"))
	}

	// Catalog
	c := cfg.Catalog
	if c.StartSrNo < 0 || c.EndSrNo < 0 {
		errs = append(errs, errors.New("catalog: serial number range must not be negative"))
	}
	if c.StartSrNo > 0 && c.EndSrNo > 0 && c.EndSrNo < c.StartSrNo {
		errs = append(errs, fmt.Errorf("catalog.end_sr_no %d is before catalog.start_sr_no %d", c.EndSrNo, c.StartSrNo))
	}

	// Ledger
	if !cfg.Ledger.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("ledger.driver %q is invalid; valid values: sqlite, postgres", cfg.Ledger.Driver))
	}
	if cfg.Ledger.Driver == LedgerPostgres && cfg.Ledger.DSN == "" {
		errs = append(errs, errors.New("ledger.dsn is required when ledger.driver is postgres"))
	}

	// Providers
	validateProviderName("stt", cfg.Providers.STT.Name)
	for _, e := range cfg.Providers.STTFallbacks {
		validateProviderName("stt", e.Name)
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for _, e := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", e.Name)
	}
	validateProviderName("vad", cfg.Providers.VAD.Name)
	validateProviderName("storage", cfg.Providers.Storage.Name)

	for i, e := range cfg.Providers.STTFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
	}
	for i, e := range cfg.Providers.LLMFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
	}
	if len(cfg.Providers.STTFallbacks) > 0 && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_fallbacks requires providers.stt"))
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; corrected transcripts will be empty")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
