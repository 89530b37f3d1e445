package s3_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MrWong99/sttdata/pkg/storage"
	"github.com/MrWong99/sttdata/pkg/storage/s3"
)

type captured struct {
	mu          sync.Mutex
	method      string
	path        string
	contentType string
	disposition string
	body        []byte
}

func newServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.method = r.Method
		c.path = r.URL.Path
		c.contentType = r.Header.Get("Content-Type")
		c.disposition = r.Header.Get("Content-Disposition")
		c.body = body
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestStore_Put(t *testing.T) {
	t.Parallel()

	srv, c := newServer(t, http.StatusOK)
	st, err := s3.New(context.Background(), s3.Config{
		Bucket:        "segments",
		Region:        "eu-central-1",
		Endpoint:      srv.URL,
		AccessKey:     "AKIDTEST",
		SecretKey:     "secret",
		PublicBaseURL: "https://cdn.example.com/",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := []byte("RIFF-segment-bytes")
	key := storage.SegmentKey("stt_news_auto_data", "rec_0001")
	url, err := st.Put(context.Background(), key, data, storage.ContentTypeWAV)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if want := "https://cdn.example.com/stt_news_auto_data/rec_0001.wav"; url != want {
		t.Errorf("url = %q, want %q", url, want)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.method != http.MethodPut {
		t.Errorf("method = %q, want PUT", c.method)
	}
	if want := "/segments/stt_news_auto_data/rec_0001.wav"; c.path != want {
		t.Errorf("path = %q, want %q", c.path, want)
	}
	if c.contentType != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", c.contentType)
	}
	if c.disposition != "inline" {
		t.Errorf("Content-Disposition = %q, want inline", c.disposition)
	}
	if !bytes.Contains(c.body, data) {
		t.Errorf("body %q does not contain payload", c.body)
	}
}

func TestStore_PutServerError(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t, http.StatusForbidden)
	st, err := s3.New(context.Background(), s3.Config{
		Bucket:    "segments",
		Endpoint:  srv.URL,
		AccessKey: "AKIDTEST",
		SecretKey: "secret",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := st.Put(context.Background(), "k.wav", []byte("x"), storage.ContentTypeWAV); err == nil {
		t.Error("Put() = nil error, want error on 403")
	}
}

func TestStore_PutInvalidKey(t *testing.T) {
	t.Parallel()

	st, err := s3.New(context.Background(), s3.Config{Bucket: "b", AccessKey: "a", SecretKey: "s", Endpoint: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := st.Put(context.Background(), "../x.wav", nil, storage.ContentTypeWAV); !errors.Is(err, storage.ErrInvalidKey) {
		t.Errorf("Put(../x.wav) error = %v, want ErrInvalidKey", err)
	}
}

func TestStore_URL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  s3.Config
		want string
	}{
		{
			name: "virtual hosted",
			cfg:  s3.Config{Bucket: "b", Region: "eu-west-1", AccessKey: "a", SecretKey: "s"},
			want: "https://b.s3.eu-west-1.amazonaws.com/p/k.wav",
		},
		{
			name: "path style",
			cfg:  s3.Config{Bucket: "b", AccessKey: "a", SecretKey: "s", ForcePathStyle: true},
			want: "https://s3.us-east-1.amazonaws.com/b/p/k.wav",
		},
		{
			name: "custom endpoint",
			cfg:  s3.Config{Bucket: "b", AccessKey: "a", SecretKey: "s", Endpoint: "http://minio:9000/"},
			want: "http://minio:9000/b/p/k.wav",
		},
		{
			name: "public base",
			cfg:  s3.Config{Bucket: "b", AccessKey: "a", SecretKey: "s", PublicBaseURL: "https://cdn.example.org"},
			want: "https://cdn.example.org/p/k.wav",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st, err := s3.New(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := st.URL("p/k.wav"); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     s3.Config
		wantErr bool
	}{
		{"ok", s3.Config{Bucket: "b"}, false},
		{"missing bucket", s3.Config{}, true},
		{"half credentials", s3.Config{Bucket: "b", AccessKey: "a"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr != (err != nil) {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
