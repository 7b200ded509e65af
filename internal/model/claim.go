package model

import "strings"

// Claim represents a searchable assertion extracted from a behavioral explanation
type Claim struct {
	ID          string        `json:"id"`                  // Stable within one candidate (e.g., "claim-0")
	Text        string        `json:"text"`                // Sentence the claim was extracted from
	Entities    Entities      `json:"entities"`            // Named companies, products, topics, activities
	Category    ClaimCategory `json:"category"`            // Activity category from the fixed taxonomy
	Priority    int           `json:"priority"`            // Higher means more specific
	SearchTerms []string      `json:"search_terms"`        // Lowercased terms used for content matching
	Heuristic   string        `json:"heuristic,omitempty"` // Which extraction rule matched (e.g., "keyword:pricing")
}

// Entities holds the named things a claim refers to
type Entities struct {
	Companies  []string `json:"companies,omitempty"`
	Products   []string `json:"products,omitempty"`
	Topics     []string `json:"topics,omitempty"` // Product categories such as "crm"
	Activities []string `json:"activities,omitempty"`
}

// HasNamedEntity reports whether the claim names a company or product
func (e Entities) HasNamedEntity() bool {
	return len(e.Companies) > 0 || len(e.Products) > 0
}

// ClaimCategory is the closed set of activity categories
type ClaimCategory int

const (
	CategoryGeneralActivity   ClaimCategory = iota // Nothing more specific matched
	CategoryPricingResearch                        // Looking at prices, plans, quotes
	CategoryProductEvaluation                      // Trials, demos, feature reviews
	CategoryVendorComparison                       // Comparing vendors or alternatives
	CategoryImplementation                         // Migrating, integrating, deploying
	CategoryMarketResearch                         // Industry reports, trends
	CategoryRealEstateSearch                       // Property and listing searches
)

// AllCategories lists every category, most specific first
func AllCategories() []ClaimCategory {
	return []ClaimCategory{
		CategoryPricingResearch,
		CategoryVendorComparison,
		CategoryProductEvaluation,
		CategoryImplementation,
		CategoryRealEstateSearch,
		CategoryMarketResearch,
		CategoryGeneralActivity,
	}
}

func (c ClaimCategory) String() string {
	switch c {
	case CategoryPricingResearch:
		return "pricing_research"
	case CategoryProductEvaluation:
		return "product_evaluation"
	case CategoryVendorComparison:
		return "vendor_comparison"
	case CategoryImplementation:
		return "implementation"
	case CategoryMarketResearch:
		return "market_research"
	case CategoryRealEstateSearch:
		return "real_estate_search"
	default:
		return "general_activity"
	}
}

// ParseClaimCategory converts a category name back to its enum value
func ParseClaimCategory(s string) (ClaimCategory, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range AllCategories() {
		if c.String() == s {
			return c, true
		}
	}
	return CategoryGeneralActivity, false
}

// MarshalText encodes the category by name
func (c ClaimCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a category name; unknown names become general_activity
func (c *ClaimCategory) UnmarshalText(text []byte) error {
	*c, _ = ParseClaimCategory(string(text))
	return nil
}
