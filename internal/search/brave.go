package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave queries the Brave Search API
type Brave struct {
	APIKey    string
	BaseURL   string // Overrides the API endpoint
	UserAgent string
	Doer      Doer
}

// Name returns the provider name
func (b *Brave) Name() string { return "brave" }

// Search returns up to limit results for q
func (b *Brave) Search(ctx context.Context, q string, limit int) ([]Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("brave: empty query")
	}
	limit = clampLimit(limit)

	endpoint := braveEndpoint
	if b.BaseURL != "" {
		endpoint = b.BaseURL
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("count", fmt.Sprint(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := doerOrDefault(b.Doer).Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("brave: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(b.Name(), resp, body)
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("brave: decode: %w", err)
	}

	out := make([]Result, 0, len(raw.Web.Results))
	for i, r := range raw.Web.Results {
		if i >= limit {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return out, nil
}
