// Package config provides the configuration schema, loader, and provider registry
// for the sttdata dataset builder.
package config

import (
	"time"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/vad"
	"github.com/MrWong99/sttdata/pkg/types"
)

// LogLevel controls log verbosity.
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

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// LedgerDriver selects the run ledger backend.
type LedgerDriver string

const (
	// LedgerNone disables the run ledger.
	LedgerNone     LedgerDriver = ""
	LedgerSQLite   LedgerDriver = "sqlite"
	LedgerPostgres LedgerDriver = "postgres"
)

// IsValid reports whether d is a recognised ledger driver.
func (d LedgerDriver) IsValid() bool {
	switch d {
	case LedgerNone, LedgerSQLite, LedgerPostgres:
		return true
	}
	return false
}

// Config is the root configuration structure for sttdata.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	LogLevel   LogLevel         `yaml:"log_level"`
	LogFormat  LogFormat        `yaml:"log_format"`
	Segment    SegmentConfig    `yaml:"segment"`
	VAD        VADConfig        `yaml:"vad"`
	Audio      AudioConfig      `yaml:"audio"`
	Validation ValidationConfig `yaml:"validation"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Output     OutputConfig     `yaml:"output"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Server     ServerConfig     `yaml:"server"`
}

// SegmentConfig bounds the duration of emitted segments.
type SegmentConfig struct {
	// LowerLimit is the minimum segment length in seconds.
	LowerLimit float64 `yaml:"lower_limit"`

	// UpperLimit is the maximum segment length in seconds.
	UpperLimit float64 `yaml:"upper_limit"`

	// TopDB is the silence threshold of the splitter used on over-long spans.
	TopDB float64 `yaml:"top_db"`

	// FrameLength and HopLength are the splitter analysis window and hop in
	// samples.
	FrameLength int `yaml:"frame_length"`
	HopLength   int `yaml:"hop_length"`
}

// Bounds returns the segment bounds.
func (s SegmentConfig) Bounds() types.SegmentBounds {
	return types.SegmentBounds{Lower: s.LowerLimit, Upper: s.UpperLimit}
}

// Splitter returns the silence splitter configured by s.
func (s SegmentConfig) Splitter() audio.Splitter {
	return audio.Splitter{TopDB: s.TopDB, FrameLength: s.FrameLength, HopLength: s.HopLength}
}

// VADConfig holds the speech binarisation parameters.
type VADConfig struct {
	Onset          float64 `yaml:"onset"`
	Offset         float64 `yaml:"offset"`
	MinDurationOn  float64 `yaml:"min_duration_on"`
	MinDurationOff float64 `yaml:"min_duration_off"`
	FrameMs        int     `yaml:"frame_ms"`
}

// Params converts v into detector parameters.
func (v VADConfig) Params() vad.Params {
	return vad.Params{
		Onset:          v.Onset,
		Offset:         v.Offset,
		MinDurationOn:  v.MinDurationOn,
		MinDurationOff: v.MinDurationOff,
		FrameMs:        v.FrameMs,
	}
}

// AudioConfig is the PCM format every recording is decoded to.
type AudioConfig struct {
	SampleRate  int `yaml:"sample_rate"`
	Channels    int `yaml:"channels"`
	SampleWidth int `yaml:"sample_width"`

	// FFmpegPath is the ffmpeg binary used for non-WAV containers.
	// Leave empty to resolve "ffmpeg" from PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// Format returns the target PCM format.
func (a AudioConfig) Format() audio.Format {
	return audio.Format{SampleRate: a.SampleRate, Channels: a.Channels}
}

// ValidationConfig holds the error-rate threshold shared by the whole
// recording gate and the per-segment gate.
type ValidationConfig struct {
	// Threshold is nil when the key is absent. 0 is a valid value that
	// accepts exact matches only.
	Threshold *float64 `yaml:"threshold"`
}

// MaxErrorRate returns the configured threshold, or [DefaultThreshold] when
// none is set.
func (v ValidationConfig) MaxErrorRate() float64 {
	if v.Threshold == nil {
		return DefaultThreshold
	}
	return *v.Threshold
}

// PipelineConfig controls concurrency, timeouts and segment persistence.
type PipelineConfig struct {
	// SegmentWorkers bounds concurrent ASR and correction calls per recording.
	SegmentWorkers int `yaml:"segment_workers"`

	// RecordingWorkers bounds how many recordings are processed at once.
	RecordingWorkers int `yaml:"recording_workers"`

	// Timeouts are applied per collaborator call.
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// ExportDir, if set, receives a WAV file per segment.
	ExportDir string `yaml:"export_dir"`

	// KeyPrefix is prepended to every uploaded object key.
	KeyPrefix string `yaml:"key_prefix"`
}

// TimeoutsConfig holds per-call deadlines. Values are Go duration strings
// in YAML (e.g. "90s", "2m").
type TimeoutsConfig struct {
	Fetch      time.Duration `yaml:"fetch"`
	Transcribe time.Duration `yaml:"transcribe"`
	Correct    time.Duration `yaml:"correct"`
	Persist    time.Duration `yaml:"persist"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	STT          ProviderEntry   `yaml:"stt"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
	VAD          ProviderEntry   `yaml:"vad"`
	Storage      ProviderEntry   `yaml:"storage"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini", "hfendpoint").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gemini-2.0-flash").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// OptString returns Options[key] when it is a string, else "".
func (e ProviderEntry) OptString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptBool returns Options[key] when it is a bool, else false.
func (e ProviderEntry) OptBool(key string) bool {
	b, _ := e.Options[key].(bool)
	return b
}

// OptInt returns Options[key] as an int when it is numeric, else def.
func (e ProviderEntry) OptInt(key string, def int) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// OptFloat returns Options[key] as a float64 when it is numeric, else def.
func (e ProviderEntry) OptFloat(key string, def float64) float64 {
	switch v := e.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// OptDuration returns Options[key] parsed with [time.ParseDuration], or def
// when the key is missing or not a valid duration string.
func (e ProviderEntry) OptDuration(key string, def time.Duration) time.Duration {
	s, ok := e.Options[key].(string)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// CatalogConfig locates the recording catalog.
type CatalogConfig struct {
	// Source is an http(s) URL or a local file path of the JSON catalog.
	Source string `yaml:"source"`

	// StartSrNo and EndSrNo restrict processing to an inclusive range of
	// serial numbers. Zero means unbounded.
	StartSrNo int `yaml:"start_sr_no"`
	EndSrNo   int `yaml:"end_sr_no"`

	// Headers are sent with catalog and audio downloads. They are merged over
	// the built-in browser-like defaults.
	Headers map[string]string `yaml:"headers"`
}

// OutputConfig controls where dataset rows are written.
type OutputConfig struct {
	CSVPath string `yaml:"csv_path"`
}

// LedgerConfig selects the run ledger.
type LedgerConfig struct {
	Driver LedgerDriver `yaml:"driver"`

	// DSN is the SQLite file path or PostgreSQL connection string.
	DSN string `yaml:"dsn"`
}

// ServerConfig configures the optional admin endpoint.
type ServerConfig struct {
	// ListenAddr is the TCP address for /metrics, /healthz and /readyz.
	// Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`

	// ServiceName is reported as the OpenTelemetry service name.
	ServiceName string `yaml:"service_name"`
}
