// Package fetch downloads recordings and catalogs.
//
// [HTTPFetcher] sends browser-like request headers by default because several
// news archives refuse requests from non-browser user agents. Sources without
// an http(s) scheme are read from the local filesystem, which keeps dry runs
// and tests off the network.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultMaxBytes caps a single download.
const DefaultMaxBytes = 1 << 30

// ErrTooLarge is returned when a download exceeds the configured limit.
var ErrTooLarge = errors.New("fetch: response exceeds size limit")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Fetcher retrieves the raw bytes behind a source URL or path.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// DefaultHeaders returns the browser-like headers sent with every request.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
		"Accept-Language":           "en-US,en;q=0.9,en-IN;q=0.8",
		"Cache-Control":             "max-age=0",
		"Priority":                  "u=0, i",
		"Sec-Ch-Ua":                 `"Microsoft Edge";v="129", "Not=A?Brand";v="8", "Chromium";v="129"`,
		"Sec-Ch-Ua-Mobile":          "?0",
		"Sec-Ch-Ua-Platform":        `"Windows"`,
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Upgrade-Insecure-Requests": "1",
		"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36 Edg/129.0.0.0",
	}
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithHeaders merges h over the default headers. An empty value removes a
// default header.
func WithHeaders(h map[string]string) Option {
	return func(f *HTTPFetcher) {
		for k, v := range h {
			k = http.CanonicalHeaderKey(k)
			if v == "" {
				delete(f.headers, k)
				continue
			}
			f.headers[k] = v
		}
	}
}

// WithMaxBytes caps the size of a single download. Values <= 0 are ignored.
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// HTTPFetcher implements [Fetcher] over HTTP(S) and the local filesystem.
// It is safe for concurrent use.
type HTTPFetcher struct {
	client   *http.Client
	headers  map[string]string
	maxBytes int64
}

var _ Fetcher = (*HTTPFetcher)(nil)

// New returns an HTTPFetcher with the given options applied.
func New(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:   &http.Client{Timeout: 5 * time.Minute},
		headers:  make(map[string]string),
		maxBytes: DefaultMaxBytes,
	}
	for k, v := range DefaultHeaders() {
		f.headers[http.CanonicalHeaderKey(k)] = v
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Headers returns a copy of the headers sent with each request.
func (f *HTTPFetcher) Headers() map[string]string {
	return maps.Clone(f.headers)
}

// Fetch implements [Fetcher].
func (f *HTTPFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if source == "" {
		return nil, errors.New("fetch: empty source")
	}
	if !isHTTP(source) {
		return f.readFile(ctx, source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: GET %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: source, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: read %s: %w", source, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, source)
	}
	return data, nil
}

func (f *HTTPFetcher) readFile(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	path := source
	if u, err := url.Parse(source); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if st.Size() > f.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, source)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return data, nil
}

func isHTTP(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
