package app_test

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/sttdata/internal/app"
	"github.com/MrWong99/sttdata/internal/catalog"
	"github.com/MrWong99/sttdata/internal/config"
	ledgermock "github.com/MrWong99/sttdata/internal/ledger/mock"
	"github.com/MrWong99/sttdata/internal/observe"
	"github.com/MrWong99/sttdata/internal/pipeline"
	sinkmock "github.com/MrWong99/sttdata/internal/sink/mock"
	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/llm"
	llmmock "github.com/MrWong99/sttdata/pkg/provider/llm/mock"
	sttmock "github.com/MrWong99/sttdata/pkg/provider/stt/mock"
	vadmock "github.com/MrWong99/sttdata/pkg/provider/vad/mock"
	storagemock "github.com/MrWong99/sttdata/pkg/storage/mock"
	"github.com/MrWong99/sttdata/pkg/types"
)

const catalogJSON = `[
  {"Sr.no": 1, "ID": "RFA_001", "Audio URL": "https://audio.example/1.wav", "Audio Text": "hello world", "Speaker Name": "Asha"},
  {"Sr.no": 2, "ID": "RFA_002", "Audio URL": "https://audio.example/2.wav", "Audio Text": "hello world", "Speaker Name": "Ravi"},
  {"Sr.no": 3, "ID": "RFA_003", "Audio URL": "", "Audio Text": "no audio here"}
]`

type fakeFetcher struct {
	wav []byte
}

func (f *fakeFetcher) Fetch(_ context.Context, source string) ([]byte, error) {
	switch {
	case strings.HasSuffix(source, "catalog.json"):
		return []byte(catalogJSON), nil
	case strings.HasSuffix(source, ".wav"):
		return f.wav, nil
	}
	return nil, errors.New("not found: " + source)
}

func voicedWAV(t *testing.T) []byte {
	t.Helper()
	data := make([]byte, 4*16000*2)
	for i := 0; i < len(data); i += 2 {
		binary.LittleEndian.PutUint16(data[i:], 1200)
	}
	wav, err := audio.EncodeWAV(audio.PCM{Data: data, SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return wav
}

// testConfig returns a defaulted config that reads the fake catalog.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Catalog: config.CatalogConfig{Source: "https://catalog.example/catalog.json"},
		Output:  config.OutputConfig{CSVPath: t.TempDir() + "/out.csv"},
	}
	config.ApplyDefaults(cfg)
	cfg.Pipeline.Timeouts.Fetch = 5 * time.Second
	return cfg
}

type deps struct {
	stt    *sttmock.Transcriber
	llm    *llmmock.Provider
	store  *storagemock.Store
	sink   *sinkmock.Sink
	ledger *ledgermock.Ledger
}

func newApp(t *testing.T, opts ...app.Option) (*app.App, *deps) {
	t.Helper()
	d := &deps{
		stt:    &sttmock.Transcriber{Text: "hello world"},
		llm:    &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Hello world."}},
		store:  &storagemock.Store{BaseURL: "https://cdn.example"},
		sink:   &sinkmock.Sink{},
		ledger: &ledgermock.Ledger{},
	}
	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	providers := &app.Providers{
		STT:     d.stt,
		LLM:     d.llm,
		VAD:     &vadmock.Detector{Spans: []types.VoiceSpan{{Start: 0.5, End: 3.0}}},
		Storage: d.store,
	}
	base := []app.Option{
		app.WithFetcher(&fakeFetcher{wav: voicedWAV(t)}),
		app.WithSink(d.sink),
		app.WithLedger(d.ledger),
		app.WithMetrics(metrics),
	}
	a, err := app.New(context.Background(), testConfig(t), providers, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, d
}

func TestNew_RequiresProviders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		providers *app.Providers
	}{
		{"nil", nil},
		{"no stt", &app.Providers{VAD: &vadmock.Detector{}}},
		{"no vad", &app.Providers{STT: &sttmock.Transcriber{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := app.New(context.Background(), testConfig(t), tt.providers); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	a, d := newApp(t)
	sum, err := a.Run(context.Background(), catalog.Range{Start: 1, End: 3}, pipeline.WithRunID("run-1"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 3 || sum.Emitted != 2 || sum.Rejected != 1 || sum.Segments != 2 {
		t.Errorf("summary = %+v", sum)
	}

	recs := d.sink.Records()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec.CorrectedText == nil || *rec.CorrectedText != "Hello world." {
			t.Errorf("%s: CorrectedText = %v", rec.SegmentID, rec.CorrectedText)
		}
		if rec.AudioURL == "" {
			t.Errorf("%s: AudioURL is empty", rec.SegmentID)
		}
		if rec.StartMs != 500 || rec.EndMs != 3000 {
			t.Errorf("%s: bounds = [%d, %d]", rec.SegmentID, rec.StartMs, rec.EndMs)
		}
	}
	if n := len(d.store.Calls()); n != 2 {
		t.Errorf("uploads = %d, want 2", n)
	}
	if e, ok := d.ledger.Entry("run-1", "RFA_003"); !ok || e.State != "REJECTED" {
		t.Errorf("RFA_003 ledger entry = %+v, %v", e, ok)
	}
}

func TestRun_DryRunSkipsUploads(t *testing.T) {
	t.Parallel()

	a, d := newApp(t, app.WithDryRun(true))
	sum, err := a.Run(context.Background(), catalog.Range{End: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Emitted != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if n := len(d.store.Calls()); n != 0 {
		t.Errorf("uploads = %d, want 0 on dry run", n)
	}
	for _, rec := range d.sink.Records() {
		if rec.AudioURL != "" {
			t.Errorf("%s: AudioURL = %q, want empty", rec.SegmentID, rec.AudioURL)
		}
	}
}

func TestRange(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Catalog.StartSrNo, cfg.Catalog.EndSrNo = 5, 9
	a, err := app.New(context.Background(), cfg, &app.Providers{STT: &sttmock.Transcriber{}, VAD: &vadmock.Detector{}},
		app.WithSink(&sinkmock.Sink{}), app.WithLedger(&ledgermock.Ledger{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := a.Range(), (catalog.Range{Start: 5, End: 9}); got != want {
		t.Errorf("Range() = %+v, want %+v", got, want)
	}
}

func TestShutdown_ClosesOnce(t *testing.T) {
	t.Parallel()

	a, d := newApp(t)
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if n := d.sink.CloseCount(); n != 1 {
		t.Errorf("sink closed %d times, want 1", n)
	}
	if !d.ledger.Closed() {
		t.Error("ledger not closed")
	}
}

func TestCheckers(t *testing.T) {
	t.Parallel()

	a, d := newApp(t)
	d.ledger.PingErr = errors.New("database is locked")
	checks := a.Checkers()
	if len(checks) != 1 || checks[0].Name != "ledger" {
		t.Fatalf("checkers = %+v", checks)
	}
	if err := checks[0].Check(context.Background()); err == nil {
		t.Error("ledger check passed despite ping error")
	}
}

func TestNew_OpensSQLiteLedger(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Ledger = config.LedgerConfig{Driver: config.LedgerSQLite, DSN: t.TempDir() + "/ledger.db"}
	a, err := app.New(context.Background(), cfg, &app.Providers{STT: &sttmock.Transcriber{}, VAD: &vadmock.Detector{}},
		app.WithSink(&sinkmock.Sink{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	if err := a.Ledger().Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
