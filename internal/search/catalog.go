package search

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/evidex/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// CatalogEntry is a curated evidence page
type CatalogEntry struct {
	URL      string   `yaml:"url"`
	Title    string   `yaml:"title"`
	Snippet  string   `yaml:"snippet"`
	Keywords []string `yaml:"keywords"`
}

type catalogFile struct {
	Entries []CatalogEntry `yaml:"entries"`
}

// Catalog generates deterministic fallback results when live search is
// unavailable
type Catalog struct {
	entries []CatalogEntry
}

var patternPaths = map[model.PageType]string{
	model.PageTypePricing:    "/pricing",
	model.PageTypeFeatures:   "/features",
	model.PageTypeDocs:       "/docs",
	model.PageTypeReviews:    "/customers/reviews",
	model.PageTypeComparison: "/compare",
	model.PageTypeNews:       "/newsroom",
	model.PageTypeCaseStudy:  "/customers",
	model.PageTypeListings:   "/listings",
	model.PageTypeReport:     "/resources/reports",
}

// genericKeywords describe a page type rather than a subject and never
// select an entry on their own
var genericKeywords = map[string]bool{
	"pricing": true, "plans": true, "features": true, "comparison": true, "compare": true,
	"reviews": true, "vendor": true, "vendors": true, "alternatives": true, "market": true,
	"report": true, "trends": true, "industry": true, "news": true, "listings": true,
	"implementation": true, "lease": true,
}

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() *Catalog {
	c, err := parseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog returns the built-in catalog extended with the entries of a
// YAML file. An empty path returns the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	base := DefaultCatalog()
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	extra, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	// File entries take precedence over built-ins with the same URL
	seen := make(map[string]bool)
	var merged []CatalogEntry
	for _, e := range append(extra.entries, base.entries...) {
		key, err := NormalizeURL(e.URL)
		if err != nil || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, e)
	}
	return &Catalog{entries: merged}, nil
}

func parseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	for i := range f.Entries {
		if _, err := NormalizeURL(f.Entries[i].URL); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		for j, kw := range f.Entries[i].Keywords {
			f.Entries[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	return &Catalog{entries: f.Entries}, nil
}

// Len returns the number of catalog entries
func (c *Catalog) Len() int {
	return len(c.entries)
}

// parsedQuery splits a query into free text and site operators
type parsedQuery struct {
	text     string // Lowercase words padded with spaces for phrase matching
	site     string
	excluded map[string]bool
}

func parseQuery(q string) parsedQuery {
	pq := parsedQuery{excluded: make(map[string]bool)}
	var words []string
	for _, tok := range strings.Fields(strings.ToLower(q)) {
		switch {
		case strings.HasPrefix(tok, "-site:"):
			pq.excluded[DomainOf(strings.TrimPrefix(tok, "-site:"))] = true
		case strings.HasPrefix(tok, "site:"):
			pq.site = DomainOf(strings.TrimPrefix(tok, "site:"))
		default:
			words = append(words, strings.Trim(tok, `"'.,;:()`))
		}
	}
	pq.text = " " + strings.Join(words, " ") + " "
	return pq
}

// Generate returns up to limit fallback candidates for a query: matching
// catalog entries first, then pattern URLs on the expected domains
func (c *Catalog) Generate(q model.SearchQuery, limit int) []model.URLCandidate {
	pq := parseQuery(q.Query)

	type scored struct {
		entry CatalogEntry
		score int
		order int
	}
	var matches []scored

	for i, e := range c.entries {
		domain := DomainOf(e.URL)
		if pq.excluded[domain] {
			continue
		}
		if pq.site != "" && domain != pq.site {
			continue
		}

		score, subject := 0, pq.site != ""
		for _, kw := range e.Keywords {
			if strings.Contains(pq.text, " "+kw+" ") {
				score++
				subject = subject || !genericKeywords[kw]
			}
		}
		if score == 0 || !subject {
			continue
		}
		matches = append(matches, scored{entry: e, score: score, order: i})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].order < matches[j].order
	})

	var raw []Result
	for _, m := range matches {
		raw = append(raw, Result{URL: m.entry.URL, Title: m.entry.Title, Snippet: m.entry.Snippet})
	}
	raw = append(raw, patternResults(q, pq)...)

	out := Sanitize(raw, "fallback", true)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// patternResults builds conventional page URLs on the query's expected
// domains
func patternResults(q model.SearchQuery, pq parsedQuery) []Result {
	domains := q.ExpectedDomains
	if pq.site != "" {
		domains = []string{pq.site}
	}

	var out []Result
	for _, d := range domains {
		if pq.excluded[DomainOf(d)] {
			continue
		}
		for _, pt := range q.ExpectedPageTypes {
			path, ok := patternPaths[pt]
			if !ok {
				continue
			}
			label := strings.ReplaceAll(string(pt), "_", " ")
			out = append(out, Result{
				URL:     "https://" + d + path,
				Title:   fmt.Sprintf("%s %s", d, label),
				Snippet: fmt.Sprintf("%s page on %s", label, d),
			})
		}
	}
	return out
}
