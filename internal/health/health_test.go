package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func get(t *testing.T, h http.Handler, path string) (int, result) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func ok(context.Context) error { return nil }

func TestRoutes(t *testing.T) {
	t.Parallel()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name       string
		checkers   []Checker
		path       string
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "liveness ignores checkers",
			checkers:   []Checker{{Name: "ledger", Check: func(context.Context) error { return errors.New("down") }}},
			path:       "/healthz",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "ready",
			checkers:   []Checker{{Name: "ledger", Check: ok}, {Name: "batch", Check: ok}},
			path:       "/readyz",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"ledger": "ok", "batch": "ok"},
		},
		{
			name: "one failing",
			checkers: []Checker{
				{Name: "ledger", Check: func(context.Context) error { return errors.New("connection refused") }},
				{Name: "batch", Check: ok},
			},
			path:       "/readyz",
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"ledger": "fail: connection refused", "batch": "ok"},
		},
		{
			name:       "cancelled batch",
			checkers:   []Checker{ContextChecker(cancelled, "batch")},
			path:       "/readyz",
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"batch": "fail: context canceled"},
		},
		{
			name:       "no checkers",
			path:       "/readyz",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			New(tt.checkers...).Register(mux)
			code, body := get(t, mux, tt.path)
			if code != tt.wantCode || body.Status != tt.wantStatus {
				t.Errorf("got %d/%q, want %d/%q", code, body.Status, tt.wantCode, tt.wantStatus)
			}
			for k, want := range tt.wantChecks {
				if body.Checks[k] != want {
					t.Errorf("checks[%q] = %q, want %q", k, body.Checks[k], want)
				}
			}
		})
	}
}

func TestReadyz_CheckTimeout(t *testing.T) {
	t.Parallel()

	slow := Checker{Name: "ledger", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	h := New(slow).WithTimeout(20 * time.Millisecond)

	code, body := get(t, http.HandlerFunc(h.Readyz), "/readyz")
	if code != http.StatusServiceUnavailable {
		t.Errorf("code = %d", code)
	}
	if !strings.Contains(body.Checks["ledger"], "deadline exceeded") {
		t.Errorf("ledger check = %q", body.Checks["ledger"])
	}
}

func TestRegister_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	New().Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz = %d, want 405", rec.Code)
	}
}
