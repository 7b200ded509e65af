package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const serperEndpoint = "https://google.serper.dev/search"

// Serper queries the Serper.dev Google search API
type Serper struct {
	APIKey    string
	BaseURL   string // Overrides the API endpoint
	UserAgent string
	Doer      Doer
}

// Name returns the provider name
func (s *Serper) Name() string { return "serper" }

// Search returns up to limit results for q
func (s *Serper) Search(ctx context.Context, q string, limit int) ([]Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("serper: empty query")
	}
	limit = clampLimit(limit)

	endpoint := serperEndpoint
	if s.BaseURL != "" {
		endpoint = s.BaseURL
	}

	payload, err := json.Marshal(map[string]any{"q": q, "num": limit})
	if err != nil {
		return nil, fmt.Errorf("serper: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("serper: create request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}

	resp, err := doerOrDefault(s.Doer).Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("serper: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(s.Name(), resp, body)
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("serper: decode: %w", err)
	}

	out := make([]Result, 0, len(raw.Organic))
	for i, r := range raw.Organic {
		if i >= limit {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}
