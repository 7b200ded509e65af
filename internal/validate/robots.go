package validate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/ppiankov/evidex/internal/model"
	"github.com/ppiankov/evidex/internal/worker"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const (
	robotsMaxRetries = 3
	robotsMaxBody    = 512 * 1024
	robotsHostRPS    = 2
	robotsHostBurst  = 4
)

// robotsSleepFunc is the sleep function used between retries (injectable for tests)
var robotsSleepFunc = func(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// RobotsChecker drops evidence URLs that robots.txt disallows for our agent
type RobotsChecker struct {
	cache      *cache.Cache
	httpClient *http.Client
	limiter    *worker.Limiter
	userAgent  string
	agent      string
	maxWorkers int
	logger     *zap.Logger
}

// NewRobotsChecker creates a robots.txt checker. Parsed files are cached per
// host for cfg.TTL.
func NewRobotsChecker(cfg model.RobotsConfig, userAgent string, client *http.Client, logger *zap.Logger) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}

	return &RobotsChecker{
		cache:      cache.New(ttl, ttl),
		httpClient: client,
		limiter:    worker.NewLimiter(robotsHostRPS, robotsHostBurst),
		userAgent:  userAgent,
		agent:      normalizeUserAgent(userAgent),
		maxWorkers: 8,
		logger:     logger,
	}
}

// Allowed reports whether the URL may be offered as evidence. Unreachable or
// unparseable robots.txt files allow everything.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	data, err := r.robotsData(ctx, parsed)
	if err != nil {
		r.logger.Debug("robots.txt unavailable", zap.String("host", parsed.Host), zap.Error(err))
		return true
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, r.agent)
}

// Filter checks evidence concurrently and returns the allowed entries in their
// original order
func (r *RobotsChecker) Filter(ctx context.Context, evidence []model.EvidenceURL) []model.EvidenceURL {
	if len(evidence) == 0 {
		return evidence
	}

	allowed := make([]bool, len(evidence))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, r.maxWorkers)

	for i, ev := range evidence {
		wg.Add(1)
		go func(idx int, rawURL string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				// Keep what we could not check
				allowed[idx] = true
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			allowed[idx] = r.Allowed(ctx, rawURL)
		}(i, ev.URL)
	}
	wg.Wait()

	kept := make([]model.EvidenceURL, 0, len(evidence))
	for i, ev := range evidence {
		if allowed[i] {
			kept = append(kept, ev)
			continue
		}
		r.logger.Debug("evidence disallowed by robots.txt", zap.String("url", ev.URL))
	}
	return kept
}

// robotsData returns the cached robots.txt for a host, fetching it on a miss
func (r *RobotsChecker) robotsData(ctx context.Context, parsed *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(parsed.Host)
	if v, ok := r.cache.Get(host); ok {
		return v.(*robotstxt.RobotsData), nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)
	data, err := r.fetchWithRetry(ctx, robotsURL)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(host, data)
	return data, nil
}

// fetchWithRetry retries transient failures with exponential backoff
func (r *RobotsChecker) fetchWithRetry(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	var lastErr error
	for attempt := 0; attempt < robotsMaxRetries; attempt++ {
		status, body, err := r.fetch(ctx, robotsURL)
		switch {
		case err == nil && !retryableStatus(status):
			return robotstxt.FromStatusAndBytes(status, body)
		case err == nil:
			lastErr = fmt.Errorf("robots.txt status %d", status)
		default:
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < robotsMaxRetries-1 {
			robotsSleepFunc(ctx, time.Duration(1<<uint(attempt))*time.Second)
		}
	}
	return nil, lastErr
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) (int, []byte, error) {
	host, err := worker.HostKey(robotsURL)
	if err != nil {
		return 0, nil, fmt.Errorf("parse robots url: %w", err)
	}
	if err := r.limiter.Wait(ctx, host); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBody))
	if err != nil {
		return 0, nil, fmt.Errorf("read robots.txt: %w", err)
	}
	return resp.StatusCode, body, nil
}

// retryableStatus returns true for 429 and 5xx responses
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

// normalizeUserAgent extracts the product token used for robots.txt matching
// (e.g., "Evidex/0.1 (+https://...)" -> "Evidex")
func normalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) > 0 {
		return strings.Split(parts[0], "/")[0]
	}
	return ua
}
