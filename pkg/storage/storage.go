// Package storage defines the object store that segment audio is published to.
//
// An [ObjectStore] accepts an encoded WAV segment under a key and returns the
// URL at which the object can be fetched afterwards. The URL ends up in the
// emitted dataset rows, so implementations must return an address that is
// reachable by dataset consumers (a CDN base, a public bucket URL, a file URL
// for local runs).
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ContentTypeWAV is the content type of uploaded segments.
const ContentTypeWAV = "audio/wav"

// ErrInvalidKey is returned when a key is empty or escapes the store root.
var ErrInvalidKey = errors.New("storage: invalid object key")

// ObjectStore persists blobs and reports where they can be read back.
//
// Implementations must be safe for concurrent use.
type ObjectStore interface {
	// Put stores data under key and returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// SegmentKey returns the object key of a segment: {prefix}/{segmentID}.wav.
// An empty prefix yields a bare file name.
func SegmentKey(prefix, segmentID string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return segmentID + ".wav"
	}
	return path.Join(prefix, segmentID+".wav")
}

// CheckKey reports ErrInvalidKey for keys that are empty, absolute or that
// climb out of the store root with "..".
func CheckKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for elem := range strings.SplitSeq(key, "/") {
		if elem == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}

// JoinURL appends key to base with exactly one slash between them.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
