package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the keyless HTML results page
type DuckDuckGo struct {
	BaseURL   string // Overrides the results page URL
	UserAgent string
	Doer      Doer
}

// Name returns the provider name
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search returns up to limit results for q
func (d *DuckDuckGo) Search(ctx context.Context, q string, limit int) ([]Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("duckduckgo: empty query")
	}
	limit = clampLimit(limit)

	endpoint := duckDuckGoEndpoint
	if d.BaseURL != "" {
		endpoint = d.BaseURL
	}

	form := url.Values{}
	form.Set("q", q)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	resp, err := doerOrDefault(d.Doer).Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: read body: %w", err)
	}
	// DuckDuckGo answers throttled clients with 202 and an empty page
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(d.Name(), resp, body)
	}

	results, err := parseDuckDuckGo(string(body))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse: %w", err)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// parseDuckDuckGo extracts organic results from the HTML results page
func parseDuckDuckGo(content string) ([]Result, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	var results []Result
	var current *Result
	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				if current != nil && current.URL != "" {
					results = append(results, *current)
				}
				current = &Result{
					URL:   unwrapRedirect(attr(n, "href")),
					Title: textContent(n),
				}
				return
			case hasClass(n, "result__snippet") && current != nil:
				current.Snippet = textContent(n)
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	if current != nil && current.URL != "" {
		results = append(results, *current)
	}

	return results, nil
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg= redirect links
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(parsed.Host, "duckduckgo.com") && strings.HasPrefix(parsed.Path, "/l/") {
		if target := parsed.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// textContent concatenates the text under n with collapsed whitespace
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
