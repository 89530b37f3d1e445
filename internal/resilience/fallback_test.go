package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func newGroup(names ...string) *FallbackGroup[string] {
	fg := NewFallbackGroup(names[0], names[0], FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	for _, n := range names[1:] {
		fg.AddFallback(n, n)
	}
	return fg
}

func TestFallbackGroup_Execute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failing   []string
		want      string
		wantErr   bool
		wantTried []string
	}{
		{name: "primary ok", want: "a", wantTried: []string{"a"}},
		{name: "primary fails", failing: []string{"a"}, want: "b", wantTried: []string{"a", "b"}},
		{name: "only last ok", failing: []string{"a", "b"}, want: "c", wantTried: []string{"a", "b", "c"}},
		{name: "all fail", failing: []string{"a", "b", "c"}, wantErr: true, wantTried: []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fg := newGroup("a", "b", "c")
			var tried []string
			got, err := ExecuteWithResult(context.Background(), fg, func(v string) (string, error) {
				tried = append(tried, v)
				if slices.Contains(tt.failing, v) {
					return "", errTest
				}
				return v, nil
			})
			if tt.wantErr {
				if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
					t.Fatalf("err = %v, want ErrAllFailed wrapping errTest", err)
				}
			} else if err != nil || got != tt.want {
				t.Fatalf("got %q, %v; want %q", got, err, tt.want)
			}
			if !slices.Equal(tried, tt.wantTried) {
				t.Errorf("tried = %v, want %v", tried, tt.wantTried)
			}
		})
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	fg := newGroup("a", "b")
	calls := map[string]int{}
	fn := func(v string) error {
		calls[v]++
		if v == "a" {
			return errTest
		}
		return nil
	}
	for range 4 {
		if err := fg.Execute(context.Background(), fn); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}
	if calls["a"] != 2 || calls["b"] != 4 {
		t.Errorf("calls = %v, want a tried until its breaker opened", calls)
	}
	if fg.Breaker("a").State() != StateOpen {
		t.Errorf("breaker a = %v", fg.Breaker("a").State())
	}
	if fg.Breaker("missing") != nil {
		t.Error("Breaker(missing) should be nil")
	}
}

func TestFallbackGroup_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	fg := newGroup("a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	var tried []string
	err := fg.Execute(ctx, func(v string) error {
		tried = append(tried, v)
		cancel()
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want plain context.Canceled", err)
	}
	if !slices.Equal(tried, []string{"a"}) {
		t.Errorf("tried = %v, want only the primary", tried)
	}
}

func TestFallbackGroup_NamesAndPrimary(t *testing.T) {
	t.Parallel()

	fg := newGroup("hfendpoint", "whisper", "openai")
	if got := fg.Names(); !slices.Equal(got, []string{"hfendpoint", "whisper", "openai"}) {
		t.Errorf("Names() = %v", got)
	}
	if fg.Primary() != "hfendpoint" {
		t.Errorf("Primary() = %q", fg.Primary())
	}
}
