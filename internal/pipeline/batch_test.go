package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/sttdata/internal/catalog"
	"github.com/MrWong99/sttdata/internal/ledger"
	"github.com/MrWong99/sttdata/internal/pipeline"
	"github.com/MrWong99/sttdata/pkg/types"
)

func staticCatalog(entries ...types.RecordingEntry) catalogFunc {
	return func(_ context.Context, r catalog.Range) ([]types.RecordingEntry, error) {
		var out []types.RecordingEntry
		for _, e := range entries {
			if r.Contains(e.SrNo) {
				out = append(out, e)
			}
		}
		return out, nil
	}
}

func mixedCatalog() catalogFunc {
	unrelated := entry("RFA_002", 2)
	unrelated.ReferenceText = "a completely different news bulletin about the weather"
	silent := entry("RFA_003", 3)
	silent.AudioURL = ""
	return staticCatalog(entry("RFA_001", 1), unrelated, silent, entry("RFA_004", 4))
}

func TestBatch_Run(t *testing.T) {
	t.Parallel()

	s := goodSetup()
	s.recordingWorkers = 2
	o, h := newOrchestrator(t, s)
	b := pipeline.NewBatch(o, mixedCatalog(), pipeline.WithRunID("run-7"))

	sum, err := b.Run(context.Background(), catalog.Range{Start: 1, End: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := pipeline.Summary{RunID: "run-7", Total: 3, Emitted: 1, Rejected: 2, Segments: 2}
	sum.Duration = 0
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}
	if n := len(h.sink.Emissions()); n != 1 {
		t.Errorf("sink emissions = %d, want 1", n)
	}
	if _, ok := h.ledger.Entry("run-7", "RFA_004"); ok {
		t.Error("recording outside the range was processed")
	}
	if e, ok := h.ledger.Entry("run-7", "RFA_002"); !ok || e.State != "REJECTED" {
		t.Errorf("RFA_002 ledger entry = %+v, %v", e, ok)
	}
}

func TestBatch_GeneratesRunID(t *testing.T) {
	t.Parallel()

	o, _ := newOrchestrator(t, goodSetup())
	a := pipeline.NewBatch(o, mixedCatalog())
	b := pipeline.NewBatch(o, mixedCatalog())
	if a.RunID() == "" || a.RunID() == b.RunID() {
		t.Errorf("run IDs %q and %q are not unique", a.RunID(), b.RunID())
	}
}

func TestBatch_Resume(t *testing.T) {
	t.Parallel()

	o, h := newOrchestrator(t, goodSetup())
	h.ledger.Seed(ledger.Entry{RunID: "earlier", RecordingID: "RFA_001", SrNo: 1, State: "EMITTED", Done: true})
	h.ledger.Seed(ledger.Entry{RunID: "earlier", RecordingID: "RFA_004", SrNo: 4, State: "FAILED", Done: true})

	b := pipeline.NewBatch(o, mixedCatalog(), pipeline.WithResume(true))
	sum, err := b.Run(context.Background(), catalog.Range{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Skipped != 1 || sum.Emitted != 1 || sum.Rejected != 2 {
		t.Errorf("summary = %+v, want 1 skipped, 1 emitted, 2 rejected", sum)
	}
	if _, ok := h.ledger.Entry(b.RunID(), "RFA_001"); ok {
		t.Error("already emitted recording was processed again")
	}
	if e, ok := h.ledger.Entry(b.RunID(), "RFA_004"); !ok || e.State != "EMITTED" {
		t.Errorf("failed recording was not retried: %+v, %v", e, ok)
	}
}

func TestBatch_SinkFailureAborts(t *testing.T) {
	t.Parallel()

	s := goodSetup()
	s.sinkErr = errors.New("disk full")
	o, _ := newOrchestrator(t, s)
	b := pipeline.NewBatch(o, mixedCatalog())

	sum, err := b.Run(context.Background(), catalog.Range{})
	if !errors.Is(err, pipeline.ErrSink) {
		t.Fatalf("err = %v, want ErrSink", err)
	}
	if sum.Emitted != 0 || sum.Failed == 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestBatch_CatalogFailure(t *testing.T) {
	t.Parallel()

	o, _ := newOrchestrator(t, goodSetup())
	b := pipeline.NewBatch(o, catalogFunc(func(context.Context, catalog.Range) ([]types.RecordingEntry, error) {
		return nil, errors.New("404")
	}))
	if _, err := b.Run(context.Background(), catalog.Range{}); !errors.Is(err, pipeline.ErrCatalog) {
		t.Fatalf("err = %v, want ErrCatalog", err)
	}
}

func TestBatch_FailedRecordingDoesNotAbort(t *testing.T) {
	t.Parallel()

	s := goodSetup()
	s.aligned = "misaligned"
	o, _ := newOrchestrator(t, s)
	b := pipeline.NewBatch(o, mixedCatalog())

	sum, err := b.Run(context.Background(), catalog.Range{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 2 || sum.Rejected != 2 {
		t.Errorf("summary = %+v, want 2 failed, 2 rejected", sum)
	}
}

func TestBatch_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, h := newOrchestrator(t, goodSetup())
	b := pipeline.NewBatch(o, mixedCatalog())
	sum, err := b.Run(ctx, catalog.Range{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if sum.Emitted != 0 || sum.Cancelled != sum.Total {
		t.Errorf("summary = %+v, want every recording cancelled", sum)
	}
	if n := len(h.sink.Emissions()); n != 0 {
		t.Errorf("sink emissions = %d, want 0", n)
	}
}
