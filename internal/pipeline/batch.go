package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sttdata/internal/catalog"
	"github.com/MrWong99/sttdata/internal/ledger"
	"github.com/MrWong99/sttdata/internal/observe"
)

// Summary counts the outcomes of a batch run.
type Summary struct {
	RunID     string
	Total     int
	Emitted   int
	Rejected  int
	Failed    int
	Cancelled int

	// Skipped counts recordings already emitted by an earlier run.
	Skipped int

	// Segments is the number of records written.
	Segments int

	Duration time.Duration
}

func (s *Summary) add(res Result) {
	switch res.State {
	case StateEmitted:
		s.Emitted++
		s.Segments += len(res.Records)
	case StateRejected:
		s.Rejected++
	case StateCancelled:
		s.Cancelled++
	default:
		s.Failed++
	}
}

// BatchOption configures a [Batch].
type BatchOption func(*Batch)

// WithRunID overrides the generated run identifier.
func WithRunID(id string) BatchOption {
	return func(b *Batch) { b.runID = id }
}

// WithResume makes the batch skip recordings the ledger already holds as
// EMITTED under any run.
func WithResume(resume bool) BatchOption {
	return func(b *Batch) { b.resume = resume }
}

// Batch processes a catalog range with a shared [Orchestrator].
type Batch struct {
	orch    *Orchestrator
	catalog catalog.Reader
	runID   string
	resume  bool
}

// NewBatch returns a Batch that reads recordings from cat. Without
// [WithRunID] a random UUID identifies the run.
func NewBatch(orch *Orchestrator, cat catalog.Reader, opts ...BatchOption) *Batch {
	b := &Batch{orch: orch, catalog: cat}
	for _, opt := range opts {
		opt(b)
	}
	if b.runID == "" {
		b.runID = uuid.NewString()
	}
	return b
}

// RunID returns the identifier recorded in the ledger for this batch.
func (b *Batch) RunID() string { return b.runID }

// Run processes every catalog entry in rng. Recording failures are counted
// and never abort the batch; a catalog or sink failure does. On cancellation
// in-flight recordings stop at their next state boundary and Run returns
// the context's error alongside the partial summary.
func (b *Batch) Run(ctx context.Context, rng catalog.Range) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: b.runID}
	log := observe.Logger(ctx).With("run_id", b.runID)

	entries, err := b.catalog.Read(ctx, rng)
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	sum.Total = len(entries)

	done, err := b.emitted(ctx)
	if err != nil {
		return sum, err
	}

	log.Info("pipeline: batch started",
		"recordings", len(entries),
		"range_start", rng.Start,
		"range_end", rng.End,
		"workers", b.orch.settings.RecordingWorkers,
		"resume", b.resume,
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.orch.settings.RecordingWorkers)
	for _, entry := range entries {
		if _, ok := done[entry.ID]; ok {
			mu.Lock()
			sum.Skipped++
			mu.Unlock()
			b.orch.metrics.RecordRecording(ctx, observe.OutcomeSkipped)
			log.Debug("pipeline: recording already emitted, skipped", "recording_id", entry.ID)
			continue
		}
		if gctx.Err() != nil {
			mu.Lock()
			sum.Cancelled++
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			res, err := b.orch.Process(gctx, b.runID, entry)
			mu.Lock()
			sum.add(res)
			mu.Unlock()
			if errors.Is(err, ErrSink) {
				return err
			}
			return nil
		})
	}
	werr := g.Wait()
	sum.Duration = time.Since(start)

	log.Info("pipeline: batch finished",
		slog.Int("total", sum.Total),
		slog.Int("emitted", sum.Emitted),
		slog.Int("rejected", sum.Rejected),
		slog.Int("failed", sum.Failed),
		slog.Int("cancelled", sum.Cancelled),
		slog.Int("skipped", sum.Skipped),
		slog.Int("segments", sum.Segments),
		slog.Duration("duration", sum.Duration),
	)

	if werr != nil {
		return sum, werr
	}
	return sum, ctx.Err()
}

// emitted returns the IDs of recordings the ledger holds as EMITTED when
// resuming, or an empty set otherwise.
func (b *Batch) emitted(ctx context.Context) (map[string]struct{}, error) {
	done := make(map[string]struct{})
	if !b.resume {
		return done, nil
	}
	entries, err := b.orch.caps.Ledger.List(ctx, ledger.Filter{State: string(StateEmitted)})
	if err != nil {
		return nil, fmt.Errorf("pipeline: resume: list emitted recordings: %w", err)
	}
	for _, e := range entries {
		done[e.RecordingID] = struct{}{}
	}
	return done, nil
}
