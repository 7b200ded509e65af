package score

import (
	"net/url"
	"strings"

	"github.com/ppiankov/evidex/internal/model"
	"github.com/ppiankov/evidex/internal/search"
)

var (
	reviewSites = map[string]bool{
		"g2.com": true, "capterra.com": true, "trustradius.com": true, "getapp.com": true,
		"softwareadvice.com": true, "trustpilot.com": true,
	}
	reportSites = map[string]bool{
		"gartner.com": true, "forrester.com": true, "idc.com": true, "statista.com": true,
		"mckinsey.com": true, "grandviewresearch.com": true, "nar.realtor": true,
	}
	newsSites = map[string]bool{
		"techcrunch.com": true, "reuters.com": true, "bloomberg.com": true, "wsj.com": true,
		"cnbc.com": true, "venturebeat.com": true, "businessinsider.com": true, "theverge.com": true,
		"housingwire.com": true, "inman.com": true,
	}
)

// ClassifyEvidence infers what kind of page a URL is from its domain, path
// and title
func ClassifyEvidence(rawURL, title string, tier model.SourceTier) model.EvidenceType {
	path := ""
	if parsed, err := url.Parse(rawURL); err == nil {
		path = strings.ToLower(parsed.Path)
	}
	title = strings.ToLower(title)
	domain := search.DomainOf(rawURL)

	has := func(fragments ...string) bool {
		for _, f := range fragments {
			if strings.Contains(path, f) || strings.Contains(title, f) {
				return true
			}
		}
		return false
	}

	if tier == model.TierOfficial {
		switch {
		case has("pricing", "/plans", "/price"):
			return model.EvidencePricingPage
		case has("/docs", "documentation", "/developer", "/help", "/guide", "/api"):
			return model.EvidenceDocumentation
		case has("case-stud", "case stud", "/customers", "customer-stor"):
			return model.EvidenceCaseStudy
		case has("/blog"):
			return model.EvidenceBlogPost
		case has("/news", "/press", "newsroom"):
			return model.EvidenceNews
		case has("/product", "/features", "/solutions", "/platform"):
			return model.EvidenceProductPage
		default:
			return model.EvidenceOfficialPage
		}
	}

	switch {
	case reviewSites[domain] || has("/reviews", "review"):
		return model.EvidenceReviewSite
	case has(" vs ", "-vs-", "/compare", "comparison", "alternatives"):
		return model.EvidenceComparisonSite
	case reportSites[domain] || has("/research", "/report", "market report", "statistics", "forecast"):
		return model.EvidenceIndustryReport
	case newsSites[domain] || has("/news", "/press"):
		return model.EvidenceNews
	case has("case-stud", "case stud"):
		return model.EvidenceCaseStudy
	case has("/docs", "documentation"):
		return model.EvidenceDocumentation
	case tier == model.TierReputable && !has("/blog"):
		return model.EvidenceNews
	default:
		return model.EvidenceBlogPost
	}
}
