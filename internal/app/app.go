// Package app wires the sttdata subsystems into a runnable dataset builder.
//
// The App struct owns the full lifecycle: New creates and connects the
// fetcher, decoder, run ledger, dataset sink and pipeline; Run processes a
// catalog range; Shutdown closes everything in reverse order.
//
// For testing, inject doubles via functional options (WithLedger, WithSink,
// WithFetcher, etc.). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/sttdata/internal/catalog"
	"github.com/MrWong99/sttdata/internal/config"
	"github.com/MrWong99/sttdata/internal/fetch"
	"github.com/MrWong99/sttdata/internal/health"
	"github.com/MrWong99/sttdata/internal/ledger"
	"github.com/MrWong99/sttdata/internal/ledger/postgres"
	"github.com/MrWong99/sttdata/internal/ledger/sqlite"
	"github.com/MrWong99/sttdata/internal/observe"
	"github.com/MrWong99/sttdata/internal/pipeline"
	"github.com/MrWong99/sttdata/internal/segment"
	"github.com/MrWong99/sttdata/internal/sink"
	"github.com/MrWong99/sttdata/internal/transcript"
	"github.com/MrWong99/sttdata/internal/transcript/llmcorrect"
	"github.com/MrWong99/sttdata/internal/transcript/transfer"
	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/llm"
	"github.com/MrWong99/sttdata/pkg/provider/stt"
	"github.com/MrWong99/sttdata/pkg/provider/vad"
	"github.com/MrWong99/sttdata/pkg/storage"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT     stt.Transcriber
	LLM     llm.Provider
	VAD     vad.Detector
	Storage storage.ObjectStore
}

// App owns all subsystem lifetimes of one dataset build.
type App struct {
	cfg       *config.Config
	providers *Providers

	fetcher fetch.Fetcher
	decoder audio.Decoder
	catalog catalog.Reader
	ledger  ledger.Ledger
	sink    sink.Sink
	metrics *observe.Metrics
	orch    *pipeline.Orchestrator
	dryRun  bool

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithFetcher injects the downloader used for the catalog and audio.
func WithFetcher(f fetch.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithDecoder injects an audio decoder instead of the WAV+ffmpeg chain.
func WithDecoder(d audio.Decoder) Option {
	return func(a *App) { a.decoder = d }
}

// WithCatalog injects a catalog reader instead of reading cfg.Catalog.Source.
func WithCatalog(c catalog.Reader) Option {
	return func(a *App) { a.catalog = c }
}

// WithLedger injects a run ledger instead of opening the configured driver.
func WithLedger(l ledger.Ledger) Option {
	return func(a *App) { a.ledger = l }
}

// WithSink injects a dataset sink instead of opening the CSV file.
func WithSink(s sink.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithMetrics injects the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithDryRun processes recordings without writing dataset rows or
// uploading segment audio.
func WithDryRun(dry bool) Option {
	return func(a *App) { a.dryRun = dry }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). A transcriber and
// a voice activity detector are required.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil {
		return nil, fmt.Errorf("app: no stt provider configured")
	}
	if providers.VAD == nil {
		return nil, fmt.Errorf("app: no vad provider configured")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.initIO()

	if err := a.initLedger(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init ledger: %w", err)
	}
	if err := a.initSink(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init sink: %w", err)
	}
	if err := a.initPipeline(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	return a, nil
}

// initIO sets up the downloader, the decoder chain and the catalog reader.
func (a *App) initIO() {
	if a.fetcher == nil {
		a.fetcher = fetch.New(fetch.WithHeaders(a.cfg.Catalog.Headers))
	}
	if a.decoder == nil {
		target := a.cfg.Audio.Format()
		a.decoder = audio.ChainDecoder{
			&audio.WAVDecoder{Target: target},
			&audio.FFmpegDecoder{Binary: a.cfg.Audio.FFmpegPath, Target: target},
		}
	}
	if a.catalog == nil {
		a.catalog = catalog.NewJSONReader(a.cfg.Catalog.Source, a.fetcher)
	}
}

// initLedger opens the configured run ledger.
func (a *App) initLedger(ctx context.Context) error {
	if a.ledger != nil {
		return nil
	}
	switch a.cfg.Ledger.Driver {
	case config.LedgerSQLite:
		l, err := sqlite.Open(ctx, a.cfg.Ledger.DSN)
		if err != nil {
			return err
		}
		a.ledger = l
		slog.Info("run ledger opened", "driver", "sqlite", "path", l.Path())
	case config.LedgerPostgres:
		l, err := postgres.Open(ctx, a.cfg.Ledger.DSN)
		if err != nil {
			return err
		}
		a.ledger = l
		slog.Info("run ledger opened", "driver", "postgres")
	default:
		a.ledger = ledger.Nop{}
	}
	a.closers = append(a.closers, a.ledger.Close)
	return nil
}

// initSink opens the CSV dataset file, or discards rows on a dry run.
func (a *App) initSink() error {
	if a.sink == nil {
		if a.dryRun {
			a.sink = sink.Discard{}
		} else {
			s, err := sink.OpenCSV(a.cfg.Output.CSVPath)
			if err != nil {
				return err
			}
			a.sink = s
		}
	}
	a.closers = append(a.closers, a.sink.Close)
	return nil
}

// initPipeline builds the segmenter, corrector and orchestrator.
func (a *App) initPipeline() error {
	segOpts := []segment.Option{
		segment.WithSplitter(a.cfg.Segment.Splitter()),
		segment.WithDropHook(func(reason segment.DropReason, _ float64) {
			a.metrics.RecordSegmentDropped(context.Background(), string(reason))
		}),
	}
	if dir := a.cfg.Pipeline.ExportDir; dir != "" {
		segOpts = append(segOpts, segment.WithExporter(&segment.WAVExporter{Dir: dir}))
	}
	engine, err := segment.New(a.cfg.Segment.Bounds(), segOpts...)
	if err != nil {
		return err
	}

	var corrector transcript.Corrector
	if a.providers.LLM != nil {
		corrector = llmcorrect.New(a.providers.LLM)
	}

	store := a.providers.Storage
	if a.dryRun {
		store = nil
	}

	p := a.cfg.Pipeline
	a.orch, err = pipeline.New(pipeline.Capabilities{
		Fetcher:   a.fetcher,
		Decoder:   a.decoder,
		VAD:       a.providers.VAD,
		Segmenter: engine,
		STT:       a.providers.STT,
		Corrector: corrector,
		Aligner:   transcript.NewAligner(transfer.New()),
		Store:     store,
		Sink:      a.sink,
		Ledger:    a.ledger,
		Metrics:   a.metrics,
	}, pipeline.Settings{
		Threshold:        a.cfg.Validation.MaxErrorRate(),
		SegmentWorkers:   p.SegmentWorkers,
		RecordingWorkers: p.RecordingWorkers,
		KeyPrefix:        p.KeyPrefix,
		Timeouts: pipeline.Timeouts{
			Fetch:      p.Timeouts.Fetch,
			Transcribe: p.Timeouts.Transcribe,
			Correct:    p.Timeouts.Correct,
			Persist:    p.Timeouts.Persist,
		},
	})
	return err
}

// Range returns the catalog range configured under catalog.start_sr_no and
// catalog.end_sr_no.
func (a *App) Range() catalog.Range {
	return catalog.Range{Start: a.cfg.Catalog.StartSrNo, End: a.cfg.Catalog.EndSrNo}
}

// Run processes every recording in rng and returns the batch summary.
func (a *App) Run(ctx context.Context, rng catalog.Range, opts ...pipeline.BatchOption) (pipeline.Summary, error) {
	b := pipeline.NewBatch(a.orch, a.catalog, opts...)
	return b.Run(ctx, rng)
}

// Ledger returns the run ledger, which is [ledger.Nop] when none is
// configured.
func (a *App) Ledger() ledger.Ledger { return a.ledger }

// Checkers returns the readiness checks of the app's external dependencies.
func (a *App) Checkers() []health.Checker {
	return []health.Checker{
		{Name: "ledger", Check: a.ledger.Ping},
	}
}

// Shutdown closes all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Debug("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
	})
	return shutdownErr
}

// closeAll runs every registered closer, ignoring errors. Used when New
// fails half way.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		_ = closer()
	}
}
