package model

// EvidenceURL is a scored, categorized link offered as support for a claim
type EvidenceURL struct {
	URL            string          `json:"url"`
	Title          string          `json:"title"`
	Description    string          `json:"description,omitempty"`
	EvidenceType   EvidenceType    `json:"evidence_type"`
	RelevanceScore float64         `json:"relevance_score"`      // In [0,1]
	Confidence     ConfidenceLevel `json:"confidence_level"`     // high, medium, low
	ClaimRef       string          `json:"supporting_claim_ref"` // Claim.ID this URL supports
	Domain         string          `json:"domain"`
	SourceTier     SourceTier      `json:"source_tier"`
	FallbackUsed   bool            `json:"fallback_used,omitempty"`
	Breakdown      ScoreBreakdown  `json:"breakdown"` // Transparent scoring inputs
}

// ScoreBreakdown exposes the weighted terms behind a relevance score
type ScoreBreakdown struct {
	Authority float64 `json:"authority"`
	PageType  float64 `json:"page_type"`
	Content   float64 `json:"content"`
	Rank      float64 `json:"rank"` // Relevance blended with the diversity bonus
}

// EvidenceType classifies what kind of page the evidence is
type EvidenceType string

const (
	EvidenceOfficialPage   EvidenceType = "official_page"
	EvidenceProductPage    EvidenceType = "product_page"
	EvidencePricingPage    EvidenceType = "pricing_page"
	EvidenceDocumentation  EvidenceType = "documentation"
	EvidenceNews           EvidenceType = "news"
	EvidenceCaseStudy      EvidenceType = "case_study"
	EvidenceComparisonSite EvidenceType = "comparison_site"
	EvidenceIndustryReport EvidenceType = "industry_report"
	EvidenceReviewSite     EvidenceType = "review_site"
	EvidenceBlogPost       EvidenceType = "blog_post"
)

// FirstParty reports whether the type describes a company's own page
func (t EvidenceType) FirstParty() bool {
	switch t {
	case EvidenceOfficialPage, EvidenceProductPage, EvidencePricingPage, EvidenceDocumentation:
		return true
	}
	return false
}

// ConfidenceLevel is the coarse confidence attached to one evidence URL
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// SourceTier represents the classification of a domain's authority
type SourceTier int

const (
	TierUnknown       SourceTier = 0 // Not recognized
	TierOfficial      SourceTier = 1 // The claimed company's own domain
	TierAuthoritative SourceTier = 2 // Analysts, review aggregators, standards bodies
	TierReputable     SourceTier = 3 // Major publishers and trade media
	TierNiche         SourceTier = 4 // Lesser-known but relevant sources
)

func (t SourceTier) String() string {
	switch t {
	case TierOfficial:
		return "official"
	case TierAuthoritative:
		return "authoritative"
	case TierReputable:
		return "reputable"
	case TierNiche:
		return "niche"
	default:
		return "unknown"
	}
}

// MarshalText encodes the tier by name
func (t SourceTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name
func (t *SourceTier) UnmarshalText(text []byte) error {
	*t = ParseSourceTier(string(text))
	return nil
}

// ParseSourceTier converts a tier string to SourceTier
func ParseSourceTier(s string) SourceTier {
	switch s {
	case "official", "1":
		return TierOfficial
	case "authoritative", "2":
		return TierAuthoritative
	case "reputable", "3":
		return TierReputable
	case "niche", "alternative", "4":
		return TierNiche
	default:
		return TierUnknown
	}
}
