package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"trustmed/internal/config"
	"trustmed/pkg/utils"
)

// Scraper errors.
var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrRateLimited          = errors.New("rate limited")
	ErrForbidden            = errors.New("access forbidden")
)

// DefaultUserAgents are rotated across requests when none are configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Scraper handles HTTP fetching with config-driven retry logic.
type Scraper struct {
	client       *http.Client
	retryPolicy  *config.RetryPolicy
	userAgents   []string
	sleep        SleepFunc
	bufferSizeKb int
}

// NewScraper creates a new scraper instance with default config.
func NewScraper() *Scraper {
	return &Scraper{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryPolicy: &config.RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    500,
			MaxDelayMs:        30000,
			BackoffMultiplier: 2.0,
			TimeoutSec:        30,
			RateLimitWaitSec:  5,
			ForbiddenWaitSec:  3,
		},
		userAgents:   DefaultUserAgents,
		sleep:        utils.SleepContext,
		bufferSizeKb: 4096,
	}
}

// NewScraperWithConfig creates a new scraper from the collector settings.
func NewScraperWithConfig(cfg *config.CollectorConfig) *Scraper {
	agents := cfg.UserAgents
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}

	bufferSizeKb := cfg.BufferSizeKb
	if bufferSizeKb <= 0 {
		bufferSizeKb = 4096
	}

	return &Scraper{
		client: &http.Client{
			Timeout: cfg.Retry.GetTimeout(),
		},
		retryPolicy:  &cfg.Retry,
		userAgents:   agents,
		sleep:        utils.SleepContext,
		bufferSizeKb: bufferSizeKb,
	}
}

// WithHTTPClient swaps the underlying client.
func (s *Scraper) WithHTTPClient(c *http.Client) *Scraper {
	s.client = c
	return s
}

// WithSleep swaps the wait function used between attempts.
func (s *Scraper) WithSleep(fn SleepFunc) *Scraper {
	s.sleep = fn
	return s
}

// UserAgent returns a random user agent from the rotation.
func (s *Scraper) UserAgent() string {
	return s.userAgents[rand.IntN(len(s.userAgents))]
}

// FetchWithMetrics returns (content, statusCode, duration, error).
func (s *Scraper) FetchWithMetrics(ctx context.Context, url string, headers map[string]string) (string, int, time.Duration, error) {
	var lastErr error

	var lastStatusCode int

	totalDuration := time.Duration(0)
	maxAttempts := max(s.retryPolicy.MaxAttempts, 1)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		startTime := time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return "", 0, totalDuration, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("User-Agent", s.UserAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")

		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := s.client.Do(req)
		totalDuration += time.Since(startTime)

		if err != nil {
			lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, maxAttempts, err)

			if ctx.Err() != nil {
				return "", 0, totalDuration, ctx.Err()
			}

			if attempt < maxAttempts {
				if err := s.sleep(ctx, s.retryPolicy.GetRetryDelay(attempt+1)); err != nil {
					return "", 0, totalDuration, err
				}
			}

			continue
		}

		lastStatusCode = resp.StatusCode

		if resp.StatusCode == http.StatusOK {
			limit := int64(s.bufferSizeKb) * 1024
			body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
			resp.Body.Close()

			if err != nil {
				lastErr = fmt.Errorf("failed to read response body: %w", err)

				continue
			}

			return string(body), resp.StatusCode, totalDuration, nil
		}

		resp.Body.Close()

		var delay time.Duration

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: %s", ErrRateLimited, url)
			delay = s.retryPolicy.GetRateLimitDelay(attempt)
		case resp.StatusCode == http.StatusForbidden:
			lastErr = fmt.Errorf("%w: %s", ErrForbidden, url)
			delay = s.retryPolicy.GetForbiddenDelay(attempt)
		case isRetryableStatus(resp.StatusCode):
			lastErr = fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
			delay = s.retryPolicy.GetRetryDelay(attempt + 1)
		default:
			return "", resp.StatusCode, totalDuration, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
		}

		if attempt < maxAttempts {
			if err := s.sleep(ctx, delay); err != nil {
				return "", lastStatusCode, totalDuration, err
			}
		}
	}

	return "", lastStatusCode, totalDuration, lastErr
}

// Fetch fetches and returns content from the given URL.
func (s *Scraper) Fetch(ctx context.Context, url string) (string, error) {
	content, _, _, err := s.FetchWithMetrics(ctx, url, nil)

	return content, err
}

// FetchJSON fetches url and decodes the JSON body into v.
func (s *Scraper) FetchJSON(ctx context.Context, url string, v any) error {
	content, _, _, err := s.FetchWithMetrics(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", url, err)
	}

	return nil
}

// ReadLocalFileWithMetrics returns (content, fileSize, duration, error).
func (s *Scraper) ReadLocalFileWithMetrics(filePath string) (string, int64, time.Duration, error) {
	startTime := time.Now()

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return "", 0, time.Since(startTime), fmt.Errorf("failed to stat file %s: %w", filePath, err)
	}

	content, err := os.ReadFile(filePath)
	duration := time.Since(startTime)

	if err != nil {
		return "", 0, duration, fmt.Errorf("failed to read local file %s: %w", filePath, err)
	}

	return string(content), fileInfo.Size(), duration, nil
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusServiceUnavailable:
		return true
	case http.StatusGatewayTimeout:
		return true
	case http.StatusRequestTimeout:
		return true
	}

	return false
}
