package score

import (
	"math"
	"net/url"
	"strings"

	"github.com/ppiankov/evidex/internal/model"
	"github.com/ppiankov/evidex/internal/validate"
)

// TierClassifier maps a URL to a source tier given the claim's official domains
type TierClassifier interface {
	Classify(rawURL string, official []string) model.SourceTier
}

// pageTypeKeywords are URL path and title fragments that identify a page type
var pageTypeKeywords = map[model.PageType][]string{
	model.PageTypePricing:    {"pricing", "price", "plans", "cost", "editions"},
	model.PageTypeFeatures:   {"features", "product", "platform", "solutions", "capabilities"},
	model.PageTypeDocs:       {"docs", "documentation", "developer", "guide", "help", "api", "learn"},
	model.PageTypeReviews:    {"review", "ratings", "reviews"},
	model.PageTypeComparison: {"compare", "comparison", "vs", "versus", "alternatives", "best"},
	model.PageTypeNews:       {"news", "press", "announces", "announcement"},
	model.PageTypeCaseStudy:  {"case-study", "case-studies", "case study", "customers", "customer-stories", "success"},
	model.PageTypeListings:   {"listings", "for-sale", "for-rent", "for-lease", "homes", "properties"},
	model.PageTypeReport:     {"report", "research", "statistics", "forecast", "market-size", "outlook"},
}

// Scorer computes relevance for search candidates against claims
type Scorer struct {
	cfg   model.ScoringConfig
	tiers TierClassifier
}

// NewScorer creates a new scorer
func NewScorer(cfg model.ScoringConfig, tiers TierClassifier) *Scorer {
	return &Scorer{cfg: cfg, tiers: tiers}
}

// Score turns one search candidate into evidence for a claim. The relevance
// score is the clamped sum of the authority, page-type and content terms.
func (s *Scorer) Score(claim model.Claim, q model.SearchQuery, official []string, c model.URLCandidate) model.EvidenceURL {
	tier := s.tiers.Classify(c.URL, official)

	pageTypes := q.ExpectedPageTypes
	if len(pageTypes) == 0 {
		pageTypes = model.ExpectedPageTypes(claim.Category)
	}

	breakdown := model.ScoreBreakdown{
		Authority: validate.Weight(s.cfg, tier),
		Content:   round(s.cfg.ContentWeight * contentFraction(claim.SearchTerms, c.Title+" "+c.Snippet)),
	}
	if matchesPageType(c.URL, c.Title, pageTypes) {
		breakdown.PageType = s.cfg.PageTypeWeight
	}

	relevance := round(clamp(breakdown.Authority + breakdown.PageType + breakdown.Content))
	evidenceType := ClassifyEvidence(c.URL, c.Title, tier)

	return model.EvidenceURL{
		URL:            c.URL,
		Title:          c.Title,
		Description:    c.Snippet,
		EvidenceType:   evidenceType,
		RelevanceScore: relevance,
		Confidence:     Confidence(relevance, c.FallbackUsed),
		ClaimRef:       claim.ID,
		Domain:         c.Domain,
		SourceTier:     tier,
		FallbackUsed:   c.FallbackUsed,
		Breakdown:      breakdown,
	}
}

// Filter keeps evidence at or above the relevance floor
func Filter(evidence []model.EvidenceURL, floor float64) []model.EvidenceURL {
	kept := make([]model.EvidenceURL, 0, len(evidence))
	for _, ev := range evidence {
		if ev.RelevanceScore >= floor {
			kept = append(kept, ev)
		}
	}
	return kept
}

// Confidence maps a relevance score to a confidence level. Fallback evidence
// is capped at medium.
func Confidence(relevance float64, fallback bool) model.ConfidenceLevel {
	level := model.ConfidenceLow
	switch {
	case relevance >= 0.7:
		level = model.ConfidenceHigh
	case relevance >= 0.5:
		level = model.ConfidenceMedium
	}
	if fallback && level == model.ConfidenceHigh {
		level = model.ConfidenceMedium
	}
	return level
}

// matchesPageType checks the URL path and title for any expected page type
func matchesPageType(rawURL, title string, pageTypes []model.PageType) bool {
	path := ""
	if parsed, err := url.Parse(rawURL); err == nil {
		path = strings.ToLower(parsed.Path)
	}
	title = strings.ToLower(title)
	pathWords := " " + strings.NewReplacer("/", " ", "-", " ", "_", " ", ".", " ").Replace(path) + " "

	for _, pt := range pageTypes {
		for _, kw := range pageTypeKeywords[pt] {
			if strings.Contains(kw, "-") {
				if strings.Contains(path, kw) {
					return true
				}
				continue
			}
			if strings.Contains(pathWords, " "+kw+" ") || containsWord(title, kw) {
				return true
			}
		}
	}
	return false
}

// contentFraction is the share of search terms present in the text
func contentFraction(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	text = strings.ToLower(text)
	found := 0
	for _, term := range terms {
		if containsWord(text, strings.ToLower(term)) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

// containsWord matches term in text on word boundaries
func containsWord(text, term string) bool {
	if term == "" {
		return false
	}
	for start := 0; ; {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(term)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 'A' && b <= 'Z'
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
