package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/evidex/internal/extract"
	"github.com/ppiankov/evidex/internal/model"
)

// Strategy priorities; higher runs first
const (
	priorityCompany  = 3
	priorityProduct  = 2
	priorityActivity = 1
	priorityWidening = 0
)

var pageKeywords = map[model.PageType]string{
	model.PageTypePricing:    "pricing",
	model.PageTypeFeatures:   "features",
	model.PageTypeDocs:       "documentation",
	model.PageTypeReviews:    "reviews",
	model.PageTypeComparison: "comparison",
	model.PageTypeNews:       "news",
	model.PageTypeCaseStudy:  "case study",
	model.PageTypeListings:   "listings",
	model.PageTypeReport:     "market report",
}

var categoryPhrases = map[model.ClaimCategory]string{
	model.CategoryPricingResearch:   "pricing plans",
	model.CategoryProductEvaluation: "software reviews",
	model.CategoryVendorComparison:  "vendor comparison",
	model.CategoryImplementation:    "implementation guide",
	model.CategoryMarketResearch:    "market report",
	model.CategoryRealEstateSearch:  "listings",
	model.CategoryGeneralActivity:   "news",
}

// Generator turns claims into search queries
type Generator struct {
	lexicon      *extract.Lexicon
	majorPlayers []string
	perClaim     int
}

// Options carries per-candidate generation context
type Options struct {
	ExcludedNames          []string // Candidate name; no query may contain its tokens
	PrioritizeAlternatives bool     // Exclude major players from non-company queries
}

// NewGenerator creates a query generator
func NewGenerator(lexicon *extract.Lexicon, majorPlayers []string, perClaim int) *Generator {
	if lexicon == nil {
		lexicon = extract.DefaultLexicon()
	}
	if perClaim <= 0 {
		perClaim = 3
	}
	return &Generator{
		lexicon:      lexicon,
		majorPlayers: majorPlayers,
		perClaim:     perClaim,
	}
}

// Generate returns up to perClaim queries for the claim, highest priority first
func (g *Generator) Generate(claim model.Claim, opts Options) []model.SearchQuery {
	names := extract.PersonTokens(claim.Text, opts.ExcludedNames)
	pageTypes := model.ExpectedPageTypes(claim.Category)
	official := g.lexicon.OfficialDomains(claim.Entities.Companies, claim.Entities.Products)

	var queries []model.SearchQuery

	// Strategy 1: company pages
	for _, company := range claim.Entities.Companies {
		domains := g.lexicon.OfficialDomains([]string{company}, nil)
		keyword := pageKeywords[pageTypes[0]]
		q := fmt.Sprintf("%q %s", company, keyword)
		if len(domains) > 0 {
			q = fmt.Sprintf("site:%s %s", domains[0], keyword)
		}
		queries = append(queries, model.SearchQuery{
			Query:             q,
			ExpectedDomains:   domains,
			ExpectedPageTypes: pageTypes,
			Priority:          priorityCompany,
			Strategy:          model.StrategyCompany,
		})
	}

	// Strategy 2: product pages per expected page type
	for _, product := range claim.Entities.Products {
		domains := g.lexicon.OfficialDomains(nil, []string{product})
		for _, pt := range pageTypes {
			queries = append(queries, model.SearchQuery{
				Query:             g.exclude(fmt.Sprintf("%q %s", product, pageKeywords[pt]), official, opts),
				ExpectedDomains:   domains,
				ExpectedPageTypes: []model.PageType{pt},
				Priority:          priorityProduct,
				Strategy:          model.StrategyProduct,
			})
		}
	}

	// Strategy 3: activity, only when nothing more specific exists
	if len(queries) == 0 {
		if subject := activitySubject(claim); subject != "" {
			queries = append(queries, model.SearchQuery{
				Query:             g.exclude(subject+" "+categoryPhrases[claim.Category], official, opts),
				ExpectedDomains:   official,
				ExpectedPageTypes: pageTypes,
				Priority:          priorityActivity,
				Strategy:          model.StrategyActivity,
			})
		}
	}

	return g.finish(claim, queries, names, nil)
}

// Widen returns extra queries for a claim whose evidence was lost to
// reservation or the relevance floor. Queries already in existing are skipped.
func (g *Generator) Widen(claim model.Claim, opts Options, existing []model.SearchQuery) []model.SearchQuery {
	subject := activitySubject(claim)
	if subject == "" {
		return nil
	}

	names := extract.PersonTokens(claim.Text, opts.ExcludedNames)
	official := g.lexicon.OfficialDomains(claim.Entities.Companies, claim.Entities.Products)

	var queries []model.SearchQuery
	for _, suffix := range []string{categoryPhrases[claim.Category], "alternatives", "reviews"} {
		queries = append(queries, model.SearchQuery{
			Query:             g.exclude(subject+" "+suffix, official, opts),
			ExpectedPageTypes: []model.PageType{model.PageTypeComparison, model.PageTypeReviews},
			Priority:          priorityWidening,
			Strategy:          model.StrategyWidening,
		})
	}

	seen := make(map[string]bool)
	for _, q := range existing {
		seen[NormalizeKey(q.Query)] = true
	}

	return g.finish(claim, queries, names, seen)
}

// exclude appends -site: operators for major players the claim is not about
func (g *Generator) exclude(q string, own []string, opts Options) string {
	if !opts.PrioritizeAlternatives {
		return q
	}
	ownSet := make(map[string]bool, len(own))
	for _, d := range own {
		ownSet[d] = true
	}
	for _, d := range g.majorPlayers {
		if !ownSet[d] {
			q += " -site:" + d
		}
	}
	return q
}

// finish strips name tokens, drops duplicates and guarded queries, then sorts
// and truncates
func (g *Generator) finish(claim model.Claim, queries []model.SearchQuery, names, seen map[string]bool) []model.SearchQuery {
	if seen == nil {
		seen = make(map[string]bool)
	}

	var out []model.SearchQuery
	for _, q := range queries {
		q.Query = stripNames(q.Query, names)
		key := NormalizeKey(q.Query)
		if key == "" || seen[key] || ContainsName(q.Query, names) {
			continue
		}
		seen[key] = true
		q.ClaimID = claim.ID
		out = append(out, q)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	if len(out) > g.perClaim {
		out = out[:g.perClaim]
	}
	return out
}

// activitySubject picks the topic, or the leading search terms, of a claim
func activitySubject(claim model.Claim) string {
	if len(claim.Entities.Topics) > 0 {
		return claim.Entities.Topics[0]
	}
	n := len(claim.SearchTerms)
	if n > 3 {
		n = 3
	}
	return strings.Join(claim.SearchTerms[:n], " ")
}

// stripNames removes whitespace-separated tokens containing a name fragment
func stripNames(q string, names map[string]bool) string {
	if len(names) == 0 {
		return q
	}
	var kept []string
	for _, tok := range strings.Fields(q) {
		if ContainsName(tok, names) {
			continue
		}
		kept = append(kept, tok)
	}
	q = strings.Join(kept, " ")
	if q == `""` || strings.HasPrefix(q, `"" `) {
		q = strings.TrimSpace(strings.TrimPrefix(q, `""`))
	}
	return q
}

// ContainsName reports whether any fragment of q equals a name token
func ContainsName(q string, names map[string]bool) bool {
	if len(names) == 0 {
		return false
	}
	for _, w := range extract.NameFragments(q) {
		if names[w] {
			return true
		}
	}
	return false
}

// NormalizeKey lowercases a query and collapses its whitespace
func NormalizeKey(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
