// Package local implements storage.ObjectStore on the local filesystem.
//
// It is meant for dry runs and offline dataset builds: objects are written
// below a root directory, and the returned URL is either BaseURL joined with
// the key or a file:// URL of the written file.
package local

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/MrWong99/sttdata/pkg/storage"
)

var _ storage.ObjectStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithBaseURL makes Put return baseURL joined with the key instead of a
// file:// URL.
func WithBaseURL(baseURL string) Option {
	return func(s *Store) { s.baseURL = baseURL }
}

// Store writes objects below a root directory.
type Store struct {
	root    string
	baseURL string
}

// New creates root if needed and returns a Store writing below it.
func New(root string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("local: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("local: create root: %w", err)
	}
	s := &Store{root: abs}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string { return s.root }

// Put writes data to root/key. contentType is not recorded.
func (s *Store) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("local: put %q: %w", key, err)
	}
	if err := storage.CheckKey(key); err != nil {
		return "", fmt.Errorf("local: put %q: %w", key, err)
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("local: put %q: create directory: %w", key, err)
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", fmt.Errorf("local: put %q: %w", key, err)
	}
	if s.baseURL != "" {
		return storage.JoinURL(s.baseURL, key), nil
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String(), nil
}
