// Package catalog reads the list of recordings to process.
//
// The catalog is a JSON array of objects exported from the newsroom
// spreadsheet. Values arrive with loose typing (serial numbers and years are
// sometimes numbers, sometimes strings), so fields are read by key with
// gjson and coerced to the types the pipeline expects.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/MrWong99/sttdata/internal/fetch"
	"github.com/MrWong99/sttdata/pkg/types"
)

// Catalog keys.
const (
	KeySrNo           = "Sr.no"
	KeyID             = "ID"
	KeyAudioURL       = "Audio URL"
	KeyAudioText      = "Audio Text"
	KeySpeakerName    = "Speaker Name"
	KeySpeakerGender  = "Speaker Gender"
	KeyNewsChannel    = "News Channel"
	KeyPublishingYear = "Publishing Year"
)

// ErrMalformed is returned when the catalog is not a JSON array.
var ErrMalformed = errors.New("catalog: malformed catalog")

// Range selects entries by serial number, both ends inclusive. A zero bound
// is open.
type Range struct {
	Start int
	End   int
}

// Contains reports whether srNo lies within r.
func (r Range) Contains(srNo int) bool {
	if r.Start > 0 && srNo < r.Start {
		return false
	}
	if r.End > 0 && srNo > r.End {
		return false
	}
	return true
}

// Reader returns catalog entries in catalog order.
type Reader interface {
	Read(ctx context.Context, r Range) ([]types.RecordingEntry, error)
}

// JSONReader reads a JSON catalog through a [fetch.Fetcher].
type JSONReader struct {
	source  string
	fetcher fetch.Fetcher
}

var _ Reader = (*JSONReader)(nil)

// NewJSONReader returns a reader for the catalog at source (an http(s) URL
// or a local path).
func NewJSONReader(source string, f fetch.Fetcher) *JSONReader {
	return &JSONReader{source: source, fetcher: f}
}

// Read fetches and parses the catalog and returns the entries within r.
func (j *JSONReader) Read(ctx context.Context, r Range) ([]types.RecordingEntry, error) {
	data, err := j.fetcher.Fetch(ctx, j.source)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", j.source, err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if r.Contains(e.SrNo) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Parse decodes a catalog document. Entries without an ID are skipped. When
// an ID repeats, the later row replaces the earlier one in its position.
func Parse(data []byte) ([]types.RecordingEntry, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%w: top level is %s, want array", ErrMalformed, doc.Type)
	}

	var (
		entries []types.RecordingEntry
		index   = make(map[string]int)
	)
	doc.ForEach(func(_, item gjson.Result) bool {
		e := entryOf(item)
		if e.ID == "" {
			slog.Warn("catalog: skipping entry without ID", "sr_no", e.SrNo)
			return true
		}
		if i, dup := index[e.ID]; dup {
			slog.Warn("catalog: duplicate ID, keeping the later row", "id", e.ID, "sr_no", e.SrNo)
			entries[i] = e
			return true
		}
		index[e.ID] = len(entries)
		entries = append(entries, e)
		return true
	})
	return entries, nil
}

func entryOf(item gjson.Result) types.RecordingEntry {
	return types.RecordingEntry{
		SrNo:           int(field(item, KeySrNo).Int()),
		ID:             text(item, KeyID),
		AudioURL:       text(item, KeyAudioURL),
		ReferenceText:  field(item, KeyAudioText).String(),
		SpeakerName:    text(item, KeySpeakerName),
		SpeakerGender:  text(item, KeySpeakerGender),
		NewsChannel:    text(item, KeyNewsChannel),
		PublishingYear: text(item, KeyPublishingYear),
	}
}

// field looks up a literal key; gjson would otherwise treat '.' as a path
// separator.
func field(item gjson.Result, key string) gjson.Result {
	return item.Get(gjson.Escape(key))
}

func text(item gjson.Result, key string) string {
	return strings.TrimSpace(field(item, key).String())
}
