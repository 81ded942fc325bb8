package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"trustmed/internal/config"
)

func testCollectorConfig() *config.CollectorConfig {
	return &config.CollectorConfig{
		Retry: config.RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    10,
			MaxDelayMs:        100,
			BackoffMultiplier: 2.0,
			TimeoutSec:        5,
			RateLimitWaitSec:  5,
			ForbiddenWaitSec:  3,
		},
	}
}

// recordSleeps returns a sleeper that stores requested delays without waiting.
func recordSleeps(delays *[]time.Duration) SleepFunc {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestScraper_FetchWithMetrics_Statuses(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		wantErr    error
		wantCalls  int32
		wantDelays []time.Duration
	}{
		{"ok", []int{200}, nil, 1, nil},
		{"rate limited then ok", []int{429, 200}, nil, 2, []time.Duration{5 * time.Second}},
		{"forbidden twice then ok", []int{403, 403, 200}, nil, 3, []time.Duration{3 * time.Second, 6 * time.Second}},
		{"forbidden exhausted", []int{403, 403, 403}, ErrForbidden, 3, []time.Duration{3 * time.Second, 6 * time.Second}},
		{"rate limit exhausted", []int{429, 429, 429}, ErrRateLimited, 3, []time.Duration{5 * time.Second, 10 * time.Second}},
		{"service unavailable backoff", []int{503, 200}, nil, 2, []time.Duration{20 * time.Millisecond}},
		{"gateway timeout backoff", []int{504, 200}, nil, 2, []time.Duration{20 * time.Millisecond}},
		{"request timeout backoff", []int{408, 200}, nil, 2, []time.Duration{20 * time.Millisecond}},
		{"not found gives up", []int{404}, ErrUnexpectedStatusCode, 1, nil},
		{"bad gateway gives up", []int{502}, ErrUnexpectedStatusCode, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.statuses[n-1])
				_, _ = w.Write([]byte("body"))
			}))
			defer server.Close()

			var delays []time.Duration

			s := NewScraperWithConfig(testCollectorConfig()).WithSleep(recordSleeps(&delays))

			content, status, _, err := s.FetchWithMetrics(context.Background(), server.URL, nil)

			if tt.wantErr == nil && err != nil {
				t.Fatalf("FetchWithMetrics() error = %v", err)
			}

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("FetchWithMetrics() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr == nil && (content != "body" || status != 200) {
				t.Errorf("FetchWithMetrics() = %q, %d", content, status)
			}

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}

			if len(delays) != len(tt.wantDelays) {
				t.Fatalf("delays = %v, want %v", delays, tt.wantDelays)
			}

			for i := range delays {
				if delays[i] != tt.wantDelays[i] {
					t.Errorf("delay[%d] = %v, want %v", i, delays[i], tt.wantDelays[i])
				}
			}
		})
	}
}

func TestScraper_SendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("User-Agent header missing")
		}

		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q, want application/json", r.Header.Get("Accept"))
		}

		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var v struct {
		OK bool `json:"ok"`
	}

	s := NewScraperWithConfig(testCollectorConfig())
	if err := s.FetchJSON(context.Background(), server.URL, &v); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}

	if !v.OK {
		t.Error("FetchJSON did not decode body")
	}
}

func TestURLManager(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.Example.org/path/#section", "https://example.org/path"},
		{"https://example.org/path", "https://example.org/path"},
		{"HTTP://WWW.CDC.GOV/diabetes/", "http://cdc.gov/diabetes"},
	}

	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error = %v", tt.in, err)
		}

		if got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	um := NewURLManager()

	if !um.MarkSeen("https://www.example.org/a#x") {
		t.Error("first MarkSeen should return true")
	}

	if um.MarkSeen("https://example.org/a/") {
		t.Error("MarkSeen of equivalent URL should return false")
	}

	if !um.Seen("https://EXAMPLE.org/a") {
		t.Error("Seen should match normalized URL")
	}

	um.RecordAttempt("https://example.org/a", true, nil, 200, time.Second)
	um.RecordAttempt("https://example.org/b", false, errors.New("boom"), 500, time.Second)

	stats := um.GetAttemptStats()
	if stats.TotalAttempts != 2 || stats.SuccessfulAttempts != 1 || stats.FailedAttempts != 1 {
		t.Errorf("stats = %+v", stats)
	}

	um.Reset()

	if um.SeenCount() != 0 {
		t.Errorf("SeenCount() after Reset = %d, want 0", um.SeenCount())
	}
}
