// Package mock provides a test double for storage.ObjectStore.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sttdata/pkg/storage"
)

// PutCall records a single invocation of Store.Put.
type PutCall struct {
	Key         string
	Data        []byte
	ContentType string
}

// Store is a mock implementation of storage.ObjectStore.
type Store struct {
	mu sync.Mutex

	// BaseURL is joined with the key to form the returned URL.
	BaseURL string

	// Err, if non-nil, is returned by every Put call.
	Err error

	// PutCalls records every call to Put in order. Data is copied.
	PutCalls []PutCall
}

// Put records the call and returns BaseURL/key or Err.
func (s *Store) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PutCalls = append(s.PutCalls, PutCall{Key: key, Data: append([]byte(nil), data...), ContentType: contentType})
	if s.Err != nil {
		return "", s.Err
	}
	return storage.JoinURL(s.BaseURL, key), nil
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (s *Store) Calls() []PutCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PutCall, len(s.PutCalls))
	copy(out, s.PutCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PutCalls = nil
}

var _ storage.ObjectStore = (*Store)(nil)
