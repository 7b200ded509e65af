package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	tests := []struct {
		httpProxy  string
		httpsProxy string
		noProxy    string
		target     string
		expected   string
		desc       string
	}{
		{"http://proxy:3128", "", "", "https://api.search.brave.com/res/v1/web/search", "http://proxy:3128", "https falls back to http proxy"},
		{"http://proxy:3128", "http://secure:3129", "", "https://google.serper.dev/search", "http://secure:3129", "https proxy preferred"},
		{"http://proxy:3128", "", "", "http://example.com/robots.txt", "http://proxy:3128", "plain http"},
		{"http://proxy:3128", "", "example.com", "http://example.com/robots.txt", "", "no_proxy match"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			fn := NewProxyFunc(tt.httpProxy, tt.httpsProxy, tt.noProxy)
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)

			got, err := fn(req)
			if err != nil {
				t.Fatalf("proxy func failed: %v", err)
			}
			gotStr := ""
			if got != nil {
				gotStr = got.String()
			}
			if gotStr != tt.expected {
				t.Errorf("expected proxy %q, got %q", tt.expected, gotStr)
			}
		})
	}
}

func TestNewHTTPClient_RedirectLimit(t *testing.T) {
	hops := 0
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, srv.URL+"/next", http.StatusFound)
	}))
	defer srv.Close()

	client := NewHTTPClient(0, "", "", "")
	if _, err := client.Get(srv.URL); err == nil {
		t.Fatal("expected redirect loop to fail")
	}
	if hops != 3 {
		t.Errorf("expected 3 requests before giving up, got %d", hops)
	}
}
