package validate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/evidex/internal/model"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	robotsSleepFunc = func(context.Context, time.Duration) {}
}

const testAgent = "Evidex/0.1 (+https://github.com/ppiankov/evidex)"

func newRobotsServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			t.Errorf("Expected /robots.txt request, got %s", r.URL.Path)
		}
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestChecker() *RobotsChecker {
	cfg := model.DefaultConfig().Robots
	return NewRobotsChecker(cfg, testAgent, nil, nil)
}

func TestRobotsChecker_Allowed(t *testing.T) {
	robots := "User-agent: *\nDisallow: /private/\n\nUser-agent: Evidex\nDisallow: /pricing/internal\n"
	server := newRobotsServer(t, http.StatusOK, robots, nil)
	checker := newTestChecker()

	tests := []struct {
		path     string
		expected bool
		desc     string
	}{
		{"/pricing", true, "allowed path"},
		{"/pricing/internal", false, "disallowed for our agent"},
		{"/private/report", true, "disallow for other agents only"},
		{"", true, "root"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := checker.Allowed(context.Background(), server.URL+tt.path); got != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.path, got)
			}
		})
	}
}

func TestRobotsChecker_CachesPerHost(t *testing.T) {
	var hits int32
	server := newRobotsServer(t, http.StatusOK, "User-agent: *\nDisallow:\n", &hits)
	checker := newTestChecker()

	for i := 0; i < 3; i++ {
		checker.Allowed(context.Background(), server.URL+"/docs")
	}

	if hits != 1 {
		t.Errorf("Expected 1 robots.txt fetch, got %d", hits)
	}
}

func TestRobotsChecker_MissingFileAllows(t *testing.T) {
	server := newRobotsServer(t, http.StatusNotFound, "", nil)
	checker := newTestChecker()

	if !checker.Allowed(context.Background(), server.URL+"/anything") {
		t.Error("Expected a missing robots.txt to allow everything")
	}
}

func TestRobotsChecker_TransientThenSuccess(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
	}))
	defer server.Close()

	checker := newTestChecker()
	if checker.Allowed(context.Background(), server.URL+"/pricing") {
		t.Error("Expected path to be disallowed after retries")
	}
	if hits != 3 {
		t.Errorf("Expected 3 attempts, got %d", hits)
	}
}

func TestRobotsChecker_UnavailableAllows(t *testing.T) {
	var hits int32
	server := newRobotsServer(t, http.StatusInternalServerError, "", &hits)
	checker := newTestChecker()

	if !checker.Allowed(context.Background(), server.URL+"/pricing") {
		t.Error("Expected an unavailable robots.txt to allow")
	}
	if hits != robotsMaxRetries {
		t.Errorf("Expected %d attempts, got %d", robotsMaxRetries, hits)
	}
}

func TestRobotsChecker_Filter(t *testing.T) {
	server := newRobotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /blocked\n", nil)
	checker := newTestChecker()

	evidence := []model.EvidenceURL{
		{URL: server.URL + "/pricing"},
		{URL: server.URL + "/blocked/page"},
		{URL: server.URL + "/docs"},
	}

	kept := checker.Filter(context.Background(), evidence)

	var urls []string
	for _, ev := range kept {
		urls = append(urls, ev.URL)
	}
	want := []string{server.URL + "/pricing", server.URL + "/docs"}
	if diff := cmp.Diff(want, urls); diff != "" {
		t.Errorf("Filter mismatch (-want +got):\n%s", diff)
	}
}

func TestRobotsChecker_FilterEmpty(t *testing.T) {
	checker := newTestChecker()
	if kept := checker.Filter(context.Background(), nil); len(kept) != 0 {
		t.Errorf("Expected no evidence, got %d", len(kept))
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{testAgent, "Evidex"},
		{"curl/8.0", "curl"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeUserAgent(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
