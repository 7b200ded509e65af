package search

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/ppiankov/evidex/internal/model"
	"golang.org/x/net/publicsuffix"
)

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id",
	"fbclid", "gclid", "msclkid", "dclid", "yclid", "igshid",
	"mc_cid", "mc_eid", "_hsenc", "_hsmi", "hsctatracking",
	"ref", "ref_src", "source",
}

// NormalizeURL canonicalizes a URL for deduplication and reservation.
// Only http(s) URLs are accepted; http on the default port becomes https.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", fmt.Errorf("missing host in %q", rawURL)
	}
	host = strings.TrimPrefix(host, "www.")
	if port := parsed.Port(); port != "" && !isDefaultPort(parsed.Scheme, port) {
		host = net.JoinHostPort(host, port)
	} else {
		// Same page either way; one key per page
		parsed.Scheme = "https"
	}
	parsed.Host = host
	parsed.User = nil
	parsed.Fragment = ""
	parsed.RawFragment = ""

	if parsed.RawQuery != "" {
		q := parsed.Query()
		for _, param := range trackingParams {
			q.Del(param)
		}
		parsed.RawQuery = q.Encode()
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	parsed.RawPath = ""

	return parsed.String(), nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// DomainOf returns the registrable domain of a URL or host
// (e.g., "https://blog.hubspot.com/x" -> "hubspot.com")
func DomainOf(rawURLOrHost string) string {
	host := rawURLOrHost
	if strings.Contains(host, "://") {
		parsed, err := url.Parse(host)
		if err != nil {
			return ""
		}
		host = parsed.Hostname()
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return ""
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// personProfilePrefixes are host+path prefixes of pages about individuals
var personProfilePrefixes = []string{
	"linkedin.com/in/",
	"linkedin.com/pub/",
	"crunchbase.com/person/",
	"facebook.com/",
	"instagram.com/",
	"twitter.com/",
	"x.com/",
	"tiktok.com/@",
	"zoominfo.com/p/",
	"rocketreach.co/",
	"about.me/",
}

// IsPersonProfile reports whether a normalized URL points at a page about an
// individual
func IsPersonProfile(normalized string) bool {
	rest := normalized
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	for _, prefix := range personProfilePrefixes {
		if strings.HasPrefix(rest, prefix) {
			return true
		}
	}
	return false
}

// IsHomepage reports whether a normalized URL is a bare site root
func IsHomepage(normalized string) bool {
	parsed, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	return (parsed.Path == "" || parsed.Path == "/") && parsed.RawQuery == ""
}

// Sanitize normalizes raw results into URL candidates, dropping unsupported
// schemes, homepages, person profiles and duplicates
func Sanitize(results []Result, source string, fallback bool) []model.URLCandidate {
	seen := make(map[string]bool, len(results))
	out := make([]model.URLCandidate, 0, len(results))

	for _, r := range results {
		normalized, err := NormalizeURL(r.URL)
		if err != nil || seen[normalized] {
			continue
		}
		if IsHomepage(normalized) || IsPersonProfile(normalized) {
			continue
		}
		seen[normalized] = true

		out = append(out, model.URLCandidate{
			URL:          normalized,
			Title:        strings.TrimSpace(r.Title),
			Snippet:      strings.TrimSpace(r.Snippet),
			Domain:       DomainOf(normalized),
			Source:       source,
			FallbackUsed: fallback,
		})
	}

	return out
}
