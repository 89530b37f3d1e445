package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/sttdata/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		mention string
	}{
		{"invalid log level", "log_level: verbose\n", "log_level"},
		{"invalid log format", "log_format: xml\n", "log_format"},
		{"upper below lower", "segment:\n  lower_limit: 5\n  upper_limit: 3\n", "upper limit"},
		{"negative top db", "segment:\n  top_db: -3\n", "top_db"},
		{"onset out of range", "vad:\n  onset: 1.5\n", "onset"},
		{"bad channels", "audio:\n  channels: 6\n", "audio.channels"},
		{"bad sample width", "audio:\n  sample_width: 3\n", "sample_width"},
		{"threshold above one", "validation:\n  threshold: 1.2\n", "validation.threshold"},
		{"negative workers", "pipeline:\n  segment_workers: -1\n", "segment_workers"},
		{"negative timeout", "pipeline:\n  timeouts:\n    fetch: -1s\n", "timeouts"},
		{"range inverted", "catalog:\n  start_sr_no: 20\n  end_sr_no: 10\n", "end_sr_no"},
		{"unknown ledger", "ledger:\n  driver: mysql\n", "ledger.driver"},
		{"postgres without dsn", "ledger:\n  driver: postgres\n", "ledger.dsn"},
		{"fallback without name", "providers:\n  stt:\n    name: whisper\n  stt_fallbacks:\n    - base_url: x\n", "stt_fallbacks[0].name"},
		{"fallback without primary", "providers:\n  llm_fallbacks:\n    - name: openai\n", "requires providers.llm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("error should mention %q, got: %v", tt.mention, err)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()

	yaml := `
log_level: loud
validation:
  threshold: 2
ledger:
  driver: oracle
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, want := range []string{"log_level", "validation.threshold", "ledger.driver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_UnknownProviderOnlyWarns(t *testing.T) {
	t.Parallel()

	yaml := `
providers:
  stt:
    name: my-custom-asr
  llm:
    name: gemini
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unknown provider names should only warn, got: %v", err)
	}
}

func TestLoad_ZeroThresholdIsKept(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("validation:\n  threshold: 0\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if got := cfg.Validation.MaxErrorRate(); got != 0 {
		t.Errorf("threshold = %v, want 0", got)
	}

	if _, err := config.LoadFromReader(strings.NewReader("validation:\n  threshold: -0.1\n")); err == nil {
		t.Error("expected error for negative threshold")
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("validation:\n  threshold: 0.3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Validation.MaxErrorRate() != 0.3 {
		t.Errorf("threshold = %v, want 0.3", cfg.Validation.MaxErrorRate())
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) = nil error")
	} else if !strings.Contains(err.Error(), "missing.yaml") {
		t.Errorf("error should name the file, got: %v", err)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("Load(example.yaml): %v", err)
	}
	if cfg.Ledger.Driver != config.LedgerSQLite {
		t.Errorf("ledger.driver = %q", cfg.Ledger.Driver)
	}
	if got := cfg.Providers.Storage.OptString("bucket"); got != "stt-dataset" {
		t.Errorf("storage bucket = %q", got)
	}
	if got := cfg.Providers.VAD.OptFloat("center_db", 0); got != -35 {
		t.Errorf("vad center_db = %v", got)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "STTDATA_TEST_FROM_FILE=file-value\nSTTDATA_TEST_PRESET=file-value\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STTDATA_TEST_PRESET", "env-value")
	t.Setenv("STTDATA_TEST_FROM_FILE", "")
	os.Unsetenv("STTDATA_TEST_FROM_FILE")

	if err := config.LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("STTDATA_TEST_FROM_FILE"); got != "file-value" {
		t.Errorf("STTDATA_TEST_FROM_FILE = %q, want file-value", got)
	}
	if got := os.Getenv("STTDATA_TEST_PRESET"); got != "env-value" {
		t.Errorf("existing variables must not be overridden, got %q", got)
	}

	if err := config.LoadEnv(filepath.Join(dir, "absent.env")); err == nil {
		t.Error("LoadEnv(absent) = nil error")
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()

	for kind, want := range map[string]string{
		"stt":     "hfendpoint",
		"llm":     "gemini",
		"vad":     "silero",
		"storage": "s3",
	} {
		if !slices.Contains(config.ValidProviderNames[kind], want) {
			t.Errorf("ValidProviderNames[%q] should contain %q", kind, want)
		}
	}
}
