package whisper_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/sttdata/pkg/audio"
	"github.com/MrWong99/sttdata/pkg/provider/stt"
	"github.com/MrWong99/sttdata/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

// inferenceRequest captures the multipart fields of one /inference call.
type inferenceRequest struct {
	fields map[string]string
	wav    []byte
}

// newMockServer creates a test server that responds to POST /inference with
// a JSON body containing responseText and forwards the parsed request.
func newMockServer(t *testing.T, responseText string, calls *atomic.Int32, got chan<- inferenceRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if calls != nil {
			calls.Add(1)
		}
		if got != nil {
			if err := r.ParseMultipartForm(10 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			req := inferenceRequest{fields: map[string]string{}}
			for k, v := range r.MultipartForm.Value {
				req.fields[k] = v[0]
			}
			if f, _, err := r.FormFile("file"); err == nil {
				req.wav, _ = io.ReadAll(f)
				f.Close()
			}
			got <- req
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// speechPCM generates a 440 Hz sine segment of the given number of samples.
func speechPCM(samples int) audio.PCM {
	buf := make([]byte, samples*2)
	for i := range samples {
		v := int16(10_000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return audio.PCM{Data: buf, SampleRate: 16000, Channels: 1}
}

// ---- construction -----------------------------------------------------------

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
	p, err := whisper.New("http://localhost:8080",
		whisper.WithModel("small"),
		whisper.WithLanguage("bo"),
		whisper.WithHTTPClient(&http.Client{Timeout: time.Second}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil Provider")
	}
}

// ---- transcription ----------------------------------------------------------

func TestTranscribe_SendsWAVAndFields(t *testing.T) {
	t.Parallel()

	got := make(chan inferenceRequest, 1)
	srv := newMockServer(t, "  བཀྲ་ཤིས་བདེ་ལེགས། \n", nil, got)

	p, err := whisper.New(srv.URL+"/", whisper.WithLanguage("bo"), whisper.WithModel("small"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pcm := speechPCM(16000)
	text, err := p.Transcribe(context.Background(), pcm)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "བཀྲ་ཤིས་བདེ་ལེགས།" {
		t.Errorf("text = %q, want trimmed server text", text)
	}

	req := <-got
	if req.fields["language"] != "bo" || req.fields["model"] != "small" {
		t.Errorf("fields = %v, want language=bo model=small", req.fields)
	}
	decoded, err := audio.DecodeWAV(req.wav)
	if err != nil {
		t.Fatalf("uploaded file is not a WAV: %v", err)
	}
	if decoded.SampleRate != 16000 || decoded.Channels != 1 || len(decoded.Data) != len(pcm.Data) {
		t.Errorf("uploaded WAV = %s with %d bytes, want 16000Hz mono with %d bytes",
			decoded.Format(), len(decoded.Data), len(pcm.Data))
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newMockServer(t, "ignored", &calls, nil)
	p, _ := whisper.New(srv.URL)

	_, err := p.Transcribe(context.Background(), audio.PCM{SampleRate: 16000, Channels: 1})
	if !errors.Is(err, stt.ErrEmptyAudio) {
		t.Fatalf("err = %v, want ErrEmptyAudio", err)
	}
	if calls.Load() != 0 {
		t.Errorf("server called %d times for empty audio", calls.Load())
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	_, err := p.Transcribe(context.Background(), speechPCM(1600))
	if err == nil || !strings.Contains(err.Error(), "HTTP 500") {
		t.Fatalf("err = %v, want HTTP 500 error", err)
	}
}

func TestTranscribe_BadJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	p, _ := whisper.New(srv.URL)
	if _, err := p.Transcribe(context.Background(), speechPCM(1600)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTranscribe_CancelledContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newMockServer(t, "x", &calls, nil)
	p, _ := whisper.New(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Transcribe(ctx, speechPCM(1600)); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestTranscribe_Concurrent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newMockServer(t, "ok", &calls, nil)
	p, _ := whisper.New(srv.URL)

	const n = 8
	errs := make(chan error, n)
	for range n {
		go func() {
			_, err := p.Transcribe(context.Background(), speechPCM(800))
			errs <- err
		}()
	}
	for range n {
		if err := <-errs; err != nil {
			t.Errorf("Transcribe: %v", err)
		}
	}
	if calls.Load() != n {
		t.Errorf("server saw %d calls, want %d", calls.Load(), n)
	}
}
