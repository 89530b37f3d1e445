// Package pipeline turns catalog recordings into dataset rows.
//
// An [Orchestrator] drives one recording through its lifecycle:
//
//	FETCHED → SEGMENTED → WHOLE_VALIDATED → ALIGNED → PER_SEGMENT_PROCESSED → EMITTED
//
// with REJECTED, FAILED and CANCELLED as the other terminal states. A
// [Batch] runs the orchestrator over a catalog range with bounded
// concurrency.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sttdata/internal/fetch"
	"github.com/MrWong99/sttdata/internal/ledger"
	"github.com/MrWong99/sttdata/internal/observe"
	"github.com/MrWong99/sttdata/internal/segment"
	"github.com/MrWong99/sttdata/internal/sink"
	"github.com/MrWong99/sttdata/internal/transcript"
	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/stt"
	"github.com/MrWong99/sttdata/pkg/provider/vad"
	"github.com/MrWong99/sttdata/pkg/storage"
	"github.com/MrWong99/sttdata/pkg/types"
)

// Capabilities are the collaborators the orchestrator calls. Fetcher,
// Decoder, VAD, Segmenter, STT, Aligner and Sink are required.
type Capabilities struct {
	Fetcher   fetch.Fetcher
	Decoder   audio.Decoder
	VAD       vad.Detector
	Segmenter *segment.Engine
	STT       stt.Transcriber

	// Corrector may be nil; segments are then emitted without corrected
	// text.
	Corrector transcript.Corrector

	Aligner *transcript.Aligner

	// Store may be nil to skip segment uploads.
	Store storage.ObjectStore

	Sink sink.Sink

	// Ledger may be nil to disable run tracking.
	Ledger ledger.Ledger

	// Metrics may be nil to use [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Timeouts bound each collaborator call. Zero means no deadline.
type Timeouts struct {
	Fetch      time.Duration
	Transcribe time.Duration
	Correct    time.Duration
	Persist    time.Duration
}

// Settings are the tunables of a run.
type Settings struct {
	// Threshold is the error rate above which a recording is rejected and a
	// segment is corrected without its reference. 0 accepts exact matches
	// only.
	Threshold float64

	// SegmentWorkers bounds concurrent ASR and correction calls within one
	// recording. Values below 1 mean 1.
	SegmentWorkers int

	// RecordingWorkers bounds concurrent recordings in a [Batch]. Values
	// below 1 mean 1.
	RecordingWorkers int

	Timeouts Timeouts

	// KeyPrefix is prepended to uploaded segment keys.
	KeyPrefix string
}

// Orchestrator processes single recordings. It is safe for concurrent use.
type Orchestrator struct {
	caps     Capabilities
	settings Settings
	gate     transcript.Gate
	router   *transcript.Router
	metrics  *observe.Metrics
}

// New validates caps and returns an Orchestrator.
func New(caps Capabilities, settings Settings) (*Orchestrator, error) {
	var errs []error
	required := []struct {
		name  string
		isNil bool
	}{
		{"fetcher", caps.Fetcher == nil},
		{"decoder", caps.Decoder == nil},
		{"vad", caps.VAD == nil},
		{"segmenter", caps.Segmenter == nil},
		{"stt", caps.STT == nil},
		{"aligner", caps.Aligner == nil},
		{"sink", caps.Sink == nil},
	}
	for _, r := range required {
		if r.isNil {
			errs = append(errs, fmt.Errorf("pipeline: %s is required", r.name))
		}
	}
	if t := settings.Threshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("pipeline: threshold %v is out of range [0, 1]", t))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if caps.Ledger == nil {
		caps.Ledger = ledger.Nop{}
	}
	if caps.Metrics == nil {
		caps.Metrics = observe.DefaultMetrics()
	}
	settings.SegmentWorkers = max(settings.SegmentWorkers, 1)
	settings.RecordingWorkers = max(settings.RecordingWorkers, 1)

	gate := transcript.NewGate(settings.Threshold)
	return &Orchestrator{
		caps:     caps,
		settings: settings,
		gate:     gate,
		router:   transcript.NewRouter(gate, caps.Corrector),
		metrics:  caps.Metrics,
	}, nil
}

// Result is the outcome of one recording.
type Result struct {
	RecordingID string
	State       State

	// WholeErrorRate is the error rate of the whole machine transcript. Only
	// meaningful once the recording reached WHOLE_VALIDATED or was rejected
	// by the gate.
	WholeErrorRate float64

	// Records are the emitted rows, in segment order. Empty unless State is
	// [StateEmitted].
	Records []types.SegmentRecord
}

// run tracks one recording's position in the lifecycle.
type run struct {
	o     *Orchestrator
	runID string
	entry types.RecordingEntry
	state State
	log   *slog.Logger
}

// advance moves r to next and records the transition in the ledger. Ledger
// failures are logged and never stop the recording.
func (r *run) advance(ctx context.Context, next State) {
	if !r.state.CanTransition(next) {
		r.log.Error("pipeline: illegal state transition", "from", r.state, "to", next)
		return
	}
	r.state = next
	if next.Terminal() {
		return
	}
	if err := r.o.caps.Ledger.Transition(context.WithoutCancel(ctx), r.runID, r.entry.ID, string(next)); err != nil {
		r.log.Warn("pipeline: ledger transition failed", "state", next, "err", err)
	}
}

// finish moves r to a terminal state and closes its ledger row.
func (r *run) finish(ctx context.Context, terminal State, segments int, cause error) {
	r.advance(ctx, terminal)
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := r.o.caps.Ledger.Finish(context.WithoutCancel(ctx), r.runID, r.entry.ID, string(r.state), segments, msg); err != nil {
		r.log.Warn("pipeline: ledger finish failed", "state", r.state, "err", err)
	}
	r.o.metrics.RecordRecording(context.WithoutCancel(ctx), r.state.Outcome())
}

// fail ends r as FAILED, or CANCELLED when ctx is done, and wraps err.
func (r *run) fail(ctx context.Context, err error) (Result, error) {
	at := r.state
	terminal := StateFailed
	if ctx.Err() != nil {
		terminal = StateCancelled
	}
	r.finish(ctx, terminal, 0, err)
	if terminal == StateCancelled {
		r.log.Info("pipeline: recording cancelled", "state", at)
	} else {
		r.log.Error("pipeline: recording failed", "state", at, "err", err)
	}
	return Result{RecordingID: r.entry.ID, State: r.state}, &RecordingError{RecordingID: r.entry.ID, State: at, Err: err}
}

// Process runs entry through the full lifecycle.
//
// A rejected recording returns a Result in [StateRejected] and a nil error.
// Fatal failures return a [*RecordingError] wrapping one of the package's
// sentinel errors. [ErrSink] is the only failure a caller should treat as
// fatal to the whole batch.
func (o *Orchestrator) Process(ctx context.Context, runID string, entry types.RecordingEntry) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.process",
		trace.WithAttributes(
			attribute.String("recording.id", entry.ID),
			attribute.Int("recording.sr_no", entry.SrNo),
		),
	)
	defer span.End()

	o.metrics.ActiveRecordings.Add(ctx, 1)
	defer o.metrics.ActiveRecordings.Add(context.WithoutCancel(ctx), -1)

	r := &run{
		o:     o,
		runID: runID,
		entry: entry,
		state: StateFetched,
		log:   observe.Logger(ctx).With("run_id", runID, "recording_id", entry.ID),
	}
	if err := o.caps.Ledger.Begin(context.WithoutCancel(ctx), runID, entry.ID, entry.SrNo, string(StateFetched)); err != nil {
		r.log.Warn("pipeline: ledger begin failed", "err", err)
	}

	res, err := o.process(ctx, r)
	span.SetAttributes(attribute.String("recording.state", string(res.State)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (o *Orchestrator) process(ctx context.Context, r *run) (Result, error) {
	entry := r.entry
	if entry.AudioURL == "" {
		r.log.Info("pipeline: recording has no audio, rejected")
		r.finish(ctx, StateRejected, 0, nil)
		return Result{RecordingID: entry.ID, State: r.state}, nil
	}

	pcm, err := o.load(ctx, entry.AudioURL)
	if err != nil {
		return r.fail(ctx, err)
	}

	spans, err := o.caps.VAD.Detect(ctx, pcm)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("%w: voice activity: %w", ErrDecode, err))
	}
	segs, err := o.caps.Segmenter.Segment(ctx, entry.ID, pcm, spans)
	if err != nil {
		return r.fail(ctx, fmt.Errorf("%w: segment: %w", ErrDecode, err))
	}
	r.advance(ctx, StateSegmented)
	r.log.Debug("pipeline: segmented", "spans", len(spans), "segments", segs.Len())

	texts, err := o.transcribe(ctx, r, segs, pcm.Format())
	if err != nil {
		return r.fail(ctx, err)
	}

	machine := transcript.JoinLines(texts)
	rate, ok := o.gate.CheckWhole(machine, entry.ReferenceText)
	o.metrics.RecordErrorRate(ctx, observe.GranularityRecording, rate)
	r.advance(ctx, StateWholeValidated)
	if !ok {
		r.log.Info("pipeline: recording rejected by whole transcript check",
			"error_rate", rate,
			"threshold", o.settings.Threshold,
		)
		r.finish(ctx, StateRejected, 0, nil)
		return Result{RecordingID: entry.ID, State: r.state, WholeErrorRate: rate}, nil
	}

	refs, err := o.caps.Aligner.Align(ctx, machine, entry.ReferenceText)
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, ErrAlignmentMismatch) {
			err = fmt.Errorf("%w: %w", ErrAlignmentMismatch, err)
		}
		return r.fail(ctx, err)
	}
	r.advance(ctx, StateAligned)

	records, err := o.correctAndPersist(ctx, r, segs, texts, refs, pcm.Format())
	if err != nil {
		return r.fail(ctx, err)
	}
	r.advance(ctx, StatePerSegmentProcessed)

	if err := o.caps.Sink.Emit(ctx, entry, records); err != nil {
		return r.fail(ctx, fmt.Errorf("%w: %w", ErrSink, err))
	}
	o.metrics.RecordSegmentsEmitted(ctx, len(records))
	r.finish(ctx, StateEmitted, len(records), nil)
	r.log.Info("pipeline: recording emitted", "segments", len(records), "error_rate", rate)

	return Result{RecordingID: entry.ID, State: r.state, WholeErrorRate: rate, Records: records}, nil
}

// load downloads and decodes the recording's audio.
func (o *Orchestrator) load(ctx context.Context, url string) (audio.PCM, error) {
	fctx, cancel := withTimeout(ctx, o.settings.Timeouts.Fetch)
	defer cancel()

	start := time.Now()
	data, err := o.caps.Fetcher.Fetch(fctx, url)
	o.metrics.FetchDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return audio.PCM{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	pcm, err := o.caps.Decoder.Decode(ctx, data)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return pcm, nil
}

// transcribe runs ASR over the stored segments concurrently. texts[i]
// belongs to the i-th segment in store order. A failed segment yields an
// empty line; only cancellation aborts.
func (o *Orchestrator) transcribe(ctx context.Context, r *run, segs *segment.Store, format audio.Format) ([]string, error) {
	texts := make([]string, segs.Len())
	var g errgroup.Group
	g.SetLimit(o.settings.SegmentWorkers)
	for i, seg := range segs.Segments() {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			tctx, cancel := withTimeout(ctx, o.settings.Timeouts.Transcribe)
			defer cancel()

			pcm := audio.PCM{Data: seg.Audio, SampleRate: format.SampleRate, Channels: format.Channels}
			start := time.Now()
			text, err := o.caps.STT.Transcribe(tctx, pcm)
			o.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
			if err != nil {
				r.log.Warn("pipeline: segment transcription failed",
					"segment_id", seg.ID,
					"err", fmt.Errorf("%w: %w", ErrTranscription, err),
				)
				return nil
			}
			texts[i] = transcript.NormalizeInference(text)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return texts, nil
}

// correctAndPersist routes and uploads every segment concurrently and
// returns the records in segment order. Per-segment failures degrade the
// record; only cancellation aborts.
func (o *Orchestrator) correctAndPersist(ctx context.Context, r *run, segs *segment.Store, texts, refs []string, format audio.Format) ([]types.SegmentRecord, error) {
	records := make([]types.SegmentRecord, segs.Len())
	var g errgroup.Group
	g.SetLimit(o.settings.SegmentWorkers)
	for i, seg := range segs.Segments() {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			records[i] = o.processSegment(ctx, r, seg, texts[i], refs[i], format)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (o *Orchestrator) processSegment(ctx context.Context, r *run, seg types.AudioSegment, inference, reference string, format audio.Format) types.SegmentRecord {
	log := r.log.With("segment_id", seg.ID)

	cctx, cancel := withTimeout(ctx, o.settings.Timeouts.Correct)
	start := time.Now()
	d := o.router.Route(cctx, inference, reference)
	cancel()
	if o.caps.Corrector != nil {
		o.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}
	o.metrics.RecordErrorRate(ctx, observe.GranularitySegment, d.ErrorRate)
	o.metrics.RecordCorrection(ctx, string(d.Mode))
	if d.Err != nil {
		log.Warn("pipeline: segment correction failed", "err", fmt.Errorf("%w: %w", ErrCorrection, d.Err))
	}

	rec := types.SegmentRecord{
		SegmentID:      seg.ID,
		InferenceText:  inference,
		ReferenceText:  reference,
		CorrectedText:  d.Corrected,
		CorrectionMode: string(d.Mode),
		ErrorRate:      d.ErrorRate,
		StartMs:        seg.StartMs,
		EndMs:          seg.EndMs,
	}

	if o.caps.Store != nil {
		url, err := o.persist(ctx, seg, format)
		if err != nil {
			log.Warn("pipeline: segment upload failed", "err", err)
		}
		rec.AudioURL = url
	}
	return rec
}

// persist uploads seg as WAV and returns its public URL.
func (o *Orchestrator) persist(ctx context.Context, seg types.AudioSegment, format audio.Format) (string, error) {
	wav, err := audio.EncodeWAV(audio.PCM{Data: seg.Audio, SampleRate: format.SampleRate, Channels: format.Channels})
	if err != nil {
		return "", fmt.Errorf("%w: encode %s: %w", ErrPersist, seg.ID, err)
	}

	pctx, cancel := withTimeout(ctx, o.settings.Timeouts.Persist)
	defer cancel()
	start := time.Now()
	url, err := o.caps.Store.Put(pctx, storage.SegmentKey(o.settings.KeyPrefix, seg.ID), wav, storage.ContentTypeWAV)
	o.metrics.StorageDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrPersist, seg.ID, err)
	}
	return url, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
