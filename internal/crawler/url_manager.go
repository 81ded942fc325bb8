package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/idna"

	"trustmed/internal/logger"
)

// ErrInvalidURL indicates a URL that cannot be normalized.
var ErrInvalidURL = errors.New("invalid url")

// URLManager deduplicates URLs across a collection run and keeps a log of
// every fetch attempt for the end-of-run summary.
type URLManager struct {
	seen       map[string]struct{}
	attemptLog map[string][]AttemptResult
	mu         sync.Mutex
}

// AttemptResult records the result of a URL fetch attempt.
type AttemptResult struct {
	Timestamp  time.Time
	URL        string
	Error      string
	Attempt    int
	Duration   time.Duration
	StatusCode int
	Success    bool
}

// NewURLManager creates a new URL manager.
func NewURLManager() *URLManager {
	return &URLManager{
		seen:       make(map[string]struct{}),
		attemptLog: make(map[string][]AttemptResult),
	}
}

// NormalizeURL lowercases scheme and host, strips "www.", converts the host
// to its IDNA ASCII form and drops the fragment and trailing slash.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}

	if u.Scheme == "" {
		u.Scheme = "https"
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")

	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}

	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}

	return u.String(), nil
}

// MarkSeen records url and reports whether it was new.
func (um *URLManager) MarkSeen(rawURL string) bool {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		key = rawURL
	}

	um.mu.Lock()
	defer um.mu.Unlock()

	if _, ok := um.seen[key]; ok {
		return false
	}

	um.seen[key] = struct{}{}

	return true
}

// Seen reports whether url was already recorded.
func (um *URLManager) Seen(rawURL string) bool {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		key = rawURL
	}

	um.mu.Lock()
	defer um.mu.Unlock()

	_, ok := um.seen[key]

	return ok
}

// SeenCount returns the number of distinct URLs recorded.
func (um *URLManager) SeenCount() int {
	um.mu.Lock()
	defer um.mu.Unlock()

	return len(um.seen)
}

// RecordAttempt records the result of a fetch attempt.
func (um *URLManager) RecordAttempt(url string, success bool, err error, statusCode int, duration time.Duration) {
	um.mu.Lock()
	defer um.mu.Unlock()

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}

	um.attemptLog[url] = append(um.attemptLog[url], AttemptResult{
		URL:        url,
		Attempt:    len(um.attemptLog[url]) + 1,
		Success:    success,
		Error:      errMsg,
		Timestamp:  time.Now(),
		Duration:   duration,
		StatusCode: statusCode,
	})
}

// GetAttemptLog returns the attempt log for a URL.
func (um *URLManager) GetAttemptLog(url string) []AttemptResult {
	um.mu.Lock()
	defer um.mu.Unlock()

	return append([]AttemptResult(nil), um.attemptLog[url]...)
}

// GetAttemptStats returns statistics about fetch attempts.
func (um *URLManager) GetAttemptStats() AttemptStats {
	um.mu.Lock()
	defer um.mu.Unlock()

	stats := AttemptStats{
		TotalURLs:   len(um.attemptLog),
		URLAttempts: make(map[string]int),
	}

	for url, results := range um.attemptLog {
		stats.URLAttempts[url] = len(results)
		stats.TotalAttempts += len(results)

		urlSuccess := false

		for _, result := range results {
			if result.Success {
				stats.SuccessfulAttempts++
				urlSuccess = true
			} else {
				stats.FailedAttempts++
			}
		}

		if urlSuccess {
			stats.SuccessfulURLs++
		} else {
			stats.FailedURLs++
		}
	}

	return stats
}

// AttemptStats contains statistics about fetch attempts.
type AttemptStats struct {
	URLAttempts        map[string]int
	TotalURLs          int
	SuccessfulURLs     int
	FailedURLs         int
	TotalAttempts      int
	SuccessfulAttempts int
	FailedAttempts     int
}

// String returns a string representation of attempt stats.
func (s AttemptStats) String() string {
	return fmt.Sprintf(
		"URLs: %d total, %d success, %d failed | Attempts: %d total, %d success, %d failed",
		s.TotalURLs,
		s.SuccessfulURLs,
		s.FailedURLs,
		s.TotalAttempts,
		s.SuccessfulAttempts,
		s.FailedAttempts,
	)
}

// LogAttemptSummary logs failed URLs and the overall numbers.
func (um *URLManager) LogAttemptSummary(l *logger.Logger) {
	um.mu.Lock()

	urls := make([]string, 0, len(um.attemptLog))
	for url := range um.attemptLog {
		urls = append(urls, url)
	}

	sort.Strings(urls)

	failed := make(map[string]AttemptResult)

	for _, url := range urls {
		results := um.attemptLog[url]
		if last := results[len(results)-1]; !last.Success {
			failed[url] = last
		}
	}
	um.mu.Unlock()

	l.Info("📊 Fetch Attempt Summary:")

	for _, url := range urls {
		if last, ok := failed[url]; ok {
			l.Info(fmt.Sprintf("   ❌ %s (status %d): %s", url, last.StatusCode, last.Error))
		}
	}

	l.Info(fmt.Sprintf("Overall: %s", um.GetAttemptStats()))
}

// Reset resets the URL manager state.
func (um *URLManager) Reset() {
	um.mu.Lock()
	defer um.mu.Unlock()

	um.seen = make(map[string]struct{})
	um.attemptLog = make(map[string][]AttemptResult)
}
