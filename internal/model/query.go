package model

// SearchQuery is one query string generated from a claim
type SearchQuery struct {
	Query             string        `json:"query"`
	ExpectedDomains   []string      `json:"expected_domains,omitempty"`
	ExpectedPageTypes []PageType    `json:"expected_page_types,omitempty"`
	Priority          int           `json:"priority"`
	Strategy          QueryStrategy `json:"strategy"`
	ClaimID           string        `json:"claim_id"`
}

// QueryStrategy names the template that produced a query
type QueryStrategy string

const (
	StrategyCompany  QueryStrategy = "company"  // site-scoped to the company's domain
	StrategyProduct  QueryStrategy = "product"  // product name plus page-type keyword
	StrategyActivity QueryStrategy = "activity" // topic or terms plus category phrase
	StrategyWidening QueryStrategy = "widening" // extra strategy requested after reservation losses
)

// PageType is a kind of page a query expects to surface
type PageType string

const (
	PageTypePricing    PageType = "pricing"
	PageTypeFeatures   PageType = "features"
	PageTypeDocs       PageType = "docs"
	PageTypeReviews    PageType = "reviews"
	PageTypeComparison PageType = "comparison"
	PageTypeNews       PageType = "news"
	PageTypeCaseStudy  PageType = "case_study"
	PageTypeListings   PageType = "listings"
	PageTypeReport     PageType = "report"
)

// ExpectedPageTypes returns the page types that best support a category
func ExpectedPageTypes(c ClaimCategory) []PageType {
	switch c {
	case CategoryPricingResearch:
		return []PageType{PageTypePricing}
	case CategoryProductEvaluation:
		return []PageType{PageTypeFeatures, PageTypeReviews, PageTypeDocs}
	case CategoryVendorComparison:
		return []PageType{PageTypeComparison, PageTypeReviews}
	case CategoryImplementation:
		return []PageType{PageTypeDocs, PageTypeCaseStudy}
	case CategoryMarketResearch:
		return []PageType{PageTypeReport, PageTypeNews}
	case CategoryRealEstateSearch:
		return []PageType{PageTypeListings, PageTypeReport}
	default:
		return []PageType{PageTypeFeatures, PageTypeNews}
	}
}

// URLCandidate is a raw search result before scoring
type URLCandidate struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Snippet      string `json:"snippet"`
	Domain       string `json:"domain"`                  // Registrable domain (e.g., salesforce.com)
	Source       string `json:"source,omitempty"`        // Provider that produced it (brave, serper, fallback...)
	FallbackUsed bool   `json:"fallback_used,omitempty"` // Produced by the pattern-based fallback
}
