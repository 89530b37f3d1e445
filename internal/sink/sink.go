// Package sink writes finished dataset rows.
//
// A [Sink] receives every [types.SegmentRecord] of one recording in a single
// [Sink.Emit] call, after the recording's per-segment work has joined. Rows
// of different recordings never interleave.
package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/MrWong99/sttdata/pkg/types"
)

// Header is the column layout of the CSV dataset.
var Header = []string{
	"file_name",
	"audio_url",
	"inference_transcript",
	"audio_duration",
	"speaker_name",
	"speaker_gender",
	"news_channel",
	"publishing_year",
	"reference_transcript",
	"corrected_transcript",
}

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("sink: closed")

// Sink is the destination of emitted records.
//
// Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, entry types.RecordingEntry, records []types.SegmentRecord) error
	Close() error
}

// Row renders one record as CSV fields in [Header] order.
func Row(entry types.RecordingEntry, rec types.SegmentRecord) []string {
	corrected := ""
	if rec.CorrectedText != nil {
		corrected = *rec.CorrectedText
	}
	return []string{
		rec.SegmentID,
		rec.AudioURL,
		rec.InferenceText,
		strconv.FormatFloat(rec.DurationSeconds(), 'f', 2, 64),
		entry.SpeakerName,
		entry.SpeakerGender,
		entry.NewsChannel,
		entry.PublishingYear,
		rec.ReferenceText,
		corrected,
	}
}

// CSVSink appends rows to a CSV file. The header is written once, when the
// file is new or empty.
type CSVSink struct {
	mu     sync.Mutex
	f      *os.File
	w      *csv.Writer
	closed bool
}

var _ Sink = (*CSVSink)(nil)

// OpenCSV opens (or creates) path for appending.
func OpenCSV(path string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: stat %q: %w", path, err)
	}
	s := &CSVSink{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := s.write([][]string{Header}); err != nil {
			f.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewCSV writes CSV rows with a header to w. The caller owns w.
func NewCSV(w io.Writer) (*CSVSink, error) {
	s := &CSVSink{w: csv.NewWriter(w)}
	if err := s.write([][]string{Header}); err != nil {
		return nil, err
	}
	return s, nil
}

// Emit writes all records of entry as one block and flushes.
func (s *CSVSink) Emit(ctx context.Context, entry types.RecordingEntry, records []types.SegmentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row(entry, rec))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.write(rows)
}

func (s *CSVSink) write(rows [][]string) error {
	if err := s.w.WriteAll(rows); err != nil {
		return fmt.Errorf("sink: write csv: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file if the sink opened it.
// Calling Close more than once is a no-op.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.w.Flush()
	err := s.w.Error()
	if s.f != nil {
		err = errors.Join(err, s.f.Close())
	}
	if err != nil {
		return fmt.Errorf("sink: close: %w", err)
	}
	return nil
}

// Discard accepts and drops every record. It backs dry runs.
type Discard struct{}

var _ Sink = Discard{}

func (Discard) Emit(ctx context.Context, _ types.RecordingEntry, _ []types.SegmentRecord) error {
	return ctx.Err()
}

func (Discard) Close() error { return nil }
