package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/evidex/internal/model"
)

// ErrNoProvider is returned when no live search provider is configured
var ErrNoProvider = errors.New("no search provider configured")

// Result is one raw organic result from a provider
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider runs a web search
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Doer executes HTTP requests; *http.Client satisfies it
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// StatusError is returned for non-200 provider responses
type StatusError struct {
	Provider   string
	Code       int
	Body       string        // Truncated response body
	RetryAfter time.Duration // Parsed Retry-After header, if any
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Provider, e.Code, e.Body)
}

// Retryable reports whether the status is worth retrying
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || (e.Code >= 500 && e.Code < 600)
}

// NewProvider builds the provider named in cfg. Provider "none" returns a nil
// provider, which sends every query to the fallback catalog.
func NewProvider(cfg model.SearchConfig, doer Doer) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil
	case "brave":
		return &Brave{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, UserAgent: cfg.UserAgent, Doer: doer}, nil
	case "serper":
		return &Serper{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, UserAgent: cfg.UserAgent, Doer: doer}, nil
	case "duckduckgo", "ddg":
		return &DuckDuckGo{BaseURL: cfg.BaseURL, UserAgent: cfg.UserAgent, Doer: doer}, nil
	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.Provider)
	}
}

// statusError builds a StatusError from a failed response
func statusError(provider string, resp *http.Response, body []byte) *StatusError {
	return &StatusError{
		Provider:   provider,
		Code:       resp.StatusCode,
		Body:       truncate(string(body), 300),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms
func parseRetryAfter(h string) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func doerOrDefault(d Doer) Doer {
	if d == nil {
		return &http.Client{Timeout: 20 * time.Second}
	}
	return d
}

func clampLimit(k int) int {
	if k < 1 || k > 20 {
		return 10
	}
	return k
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
