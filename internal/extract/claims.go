package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/evidex/internal/model"
)

// MinExplanationLength is the shortest explanation worth extracting from
const MinExplanationLength = 10

const maxSearchTerms = 8

var (
	domainPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*(\.[a-z0-9-]+)*\.(com|io|ai|co|net|org|app|dev|realtor)$`)
	inlineDomain     = regexp.MustCompile(`\b[a-z0-9][a-z0-9-]*\.(?:com|io|ai|co|net|org|app|dev)\b`)
	corporateSuffix  = regexp.MustCompile(`\b([A-Z][A-Za-z0-9&]+(?:\s[A-Z][A-Za-z0-9&]+)?)\s(?:Inc|Corp|Corporation|LLC|Ltd|GmbH)\b`)
	honorificPattern = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+([A-Z][a-z]+(?:\s[A-Z][a-z]+)?)`)
)

// categoryRule maps keywords to a claim category. A keyword ending in "*"
// matches any word with that prefix; multi-word keywords match as phrases.
type categoryRule struct {
	category model.ClaimCategory
	keywords []string
}

// ClaimExtractor extracts claims from behavioral explanations
type ClaimExtractor struct {
	lexicon   *Lexicon
	rules     []categoryRule
	aliases   []*aliasMatcher
	products  []*aliasMatcher
	minLength int
}

type aliasMatcher struct {
	name string
	re   *regexp.Regexp
}

// ExtractOptions carries per-candidate extraction context
type ExtractOptions struct {
	CategoryHint  model.ClaimCategory // Used when a sentence names no specific activity
	ExcludedNames []string            // Candidate's own name; never becomes an entity or term
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor(lexicon *Lexicon) *ClaimExtractor {
	if lexicon == nil {
		lexicon = DefaultLexicon()
	}

	e := &ClaimExtractor{
		lexicon:   lexicon,
		minLength: MinExplanationLength,
		rules: []categoryRule{
			{model.CategoryPricingResearch, []string{"pricing", "price", "prices", "priced", "cost", "costs", "quote", "quotes", "plans", "budget", "budgeting", "subscription", "licensing", "tiers"}},
			{model.CategoryVendorComparison, []string{"compar*", "versus", "vs", "alternative", "alternatives", "shortlist*", "vendor", "vendors", "rfp", "competitors", "switching from"}},
			{model.CategoryProductEvaluation, []string{"evaluat*", "trial", "trials", "demo", "demos", "testing", "reviewing", "assessing", "pilot*", "features", "proof of concept"}},
			{model.CategoryImplementation, []string{"implement*", "migrat*", "integrat*", "deploy*", "onboard*", "rollout", "roll out", "setting up", "switching to"}},
			{model.CategoryRealEstateSearch, []string{"real estate", "property", "properties", "listing", "listings", "lease", "leasing", "office space", "apartment", "apartments", "mortgage", "home buying"}},
			{model.CategoryMarketResearch, []string{"market", "industry", "trends", "report", "reports", "benchmark*", "analyst", "analysts"}},
		},
	}

	for _, c := range lexicon.companies {
		e.aliases = append(e.aliases, newAliasMatcher(c.Name, c.Name))
		for _, alias := range c.Aliases {
			e.aliases = append(e.aliases, newAliasMatcher(alias, c.Name))
		}
		for _, p := range c.Products {
			e.products = append(e.products, newAliasMatcher(p, p))
		}
	}

	return e
}

// newAliasMatcher builds a whole-word matcher. Short all-caps aliases such as
// SAP or AWS must match case-sensitively.
func newAliasMatcher(alias, name string) *aliasMatcher {
	pattern := `\b` + regexp.QuoteMeta(alias) + `\b`
	if !(len(alias) <= 4 && strings.ToUpper(alias) == alias) {
		pattern = `(?i)` + pattern
	}
	return &aliasMatcher{name: name, re: regexp.MustCompile(pattern)}
}

// Extract extracts claims from one explanation. It returns
// model.ErrInsufficientText when the explanation is too short; zero claims
// with a nil error means the explanation was too vague.
func (e *ClaimExtractor) Extract(text string, opts ExtractOptions) ([]model.Claim, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < e.minLength {
		return nil, model.ErrInsufficientText
	}

	excluded := nameTokens(opts.ExcludedNames)

	var claims []model.Claim
	for _, sentence := range splitSentences(text, e.minLength) {
		if claim, ok := e.extractSentence(sentence, opts.CategoryHint, excluded); ok {
			claims = append(claims, claim)
		}
	}

	return dedupeClaims(claims), nil
}

// ExtractAll extracts claims from every explanation of one candidate, sorts
// them by priority and assigns IDs. Explanations that are too short are
// reported as failures.
func (e *ClaimExtractor) ExtractAll(explanations []string, opts ExtractOptions) ([]model.Claim, []model.Failure) {
	var claims []model.Claim
	var failures []model.Failure

	for _, explanation := range explanations {
		extracted, err := e.Extract(explanation, opts)
		if err != nil {
			failures = append(failures, model.Failure{
				Kind:   model.FailureInsufficientText,
				Claim:  explanation,
				Detail: err.Error(),
			})
			continue
		}
		claims = append(claims, extracted...)
	}

	claims = dedupeClaims(claims)
	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].Priority > claims[j].Priority
	})
	for i := range claims {
		claims[i].ID = fmt.Sprintf("claim-%d", i)
	}

	return claims, failures
}

// CategoryHint classifies a free-text prompt into a category hint
func (e *ClaimExtractor) CategoryHint(prompt string) model.ClaimCategory {
	category, _ := e.classify(strings.ToLower(prompt))
	return category
}

func (e *ClaimExtractor) extractSentence(sentence string, hint model.ClaimCategory, excluded map[string]bool) (model.Claim, bool) {
	lower := strings.ToLower(sentence)

	for _, m := range honorificPattern.FindAllStringSubmatch(sentence, -1) {
		for _, tok := range NameFragments(m[1]) {
			excluded[tok] = true
		}
	}

	entities := model.Entities{
		Companies: e.matchCompanies(sentence, excluded),
		Products:  e.matchProducts(sentence, excluded),
		Topics:    e.matchTopics(lower),
	}

	category, matched := e.classify(lower)
	heuristic := ""
	if category != model.CategoryGeneralActivity {
		heuristic = "keyword:" + matched[0]
	} else if hint != model.CategoryGeneralActivity {
		category = hint
		heuristic = "hint:" + hint.String()
	}
	entities.Activities = activityWords(lower, matched)

	if !entities.HasNamedEntity() && len(entities.Topics) == 0 && category == model.CategoryGeneralActivity {
		return model.Claim{}, false
	}
	if heuristic == "" {
		heuristic = "entity"
	}

	priority := 1
	if len(entities.Companies) > 0 {
		priority += 3
	}
	if len(entities.Products) > 0 {
		priority += 2
	}
	if len(entities.Topics) > 0 {
		priority++
	}
	if category != model.CategoryGeneralActivity {
		priority++
	}

	return model.Claim{
		Text:        sentence,
		Entities:    entities,
		Category:    category,
		Priority:    priority,
		SearchTerms: searchTerms(lower, entities, matched, excluded),
		Heuristic:   heuristic,
	}, true
}

func (e *ClaimExtractor) matchCompanies(sentence string, excluded map[string]bool) []string {
	var found []string
	seen := make(map[string]bool)
	add := func(name string) {
		key := strings.ToLower(name)
		if seen[key] || isExcluded(key, excluded) {
			return
		}
		seen[key] = true
		found = append(found, name)
	}

	for _, m := range e.aliases {
		if m.re.MatchString(sentence) {
			add(m.name)
		}
	}

	for _, m := range corporateSuffix.FindAllStringSubmatch(sentence, -1) {
		add(m[1])
	}

	for _, d := range inlineDomain.FindAllString(strings.ToLower(sentence), -1) {
		if c, ok := e.lexicon.companyByDomain(d); ok {
			add(c.Name)
			continue
		}
		add(d)
	}

	return found
}

func (e *ClaimExtractor) matchProducts(sentence string, excluded map[string]bool) []string {
	var found []string
	for _, m := range e.products {
		if m.re.MatchString(sentence) && !isExcluded(strings.ToLower(m.name), excluded) {
			found = append(found, m.name)
		}
	}
	return found
}

func (e *ClaimExtractor) matchTopics(lower string) []string {
	var found []string
	for _, t := range e.lexicon.topics {
		for _, kw := range t.Keywords {
			if containsKeyword(lower, kw) {
				found = append(found, t.Name)
				break
			}
		}
	}
	return found
}

// classify returns the first category whose keywords appear in the text,
// along with the words that matched
func (e *ClaimExtractor) classify(lower string) (model.ClaimCategory, []string) {
	for _, rule := range e.rules {
		var matched []string
		for _, kw := range rule.keywords {
			if w, ok := matchKeyword(lower, kw); ok {
				matched = append(matched, w)
			}
		}
		if len(matched) > 0 {
			return rule.category, matched
		}
	}
	return model.CategoryGeneralActivity, nil
}

// matchKeyword matches a rule keyword and returns the word it matched
func matchKeyword(lower, kw string) (string, bool) {
	if strings.Contains(kw, " ") {
		if containsKeyword(lower, kw) {
			return kw, true
		}
		return "", false
	}
	prefix := strings.HasSuffix(kw, "*")
	kw = strings.TrimSuffix(kw, "*")
	for _, w := range words(lower) {
		if w == kw || (prefix && strings.HasPrefix(w, kw)) {
			return w, true
		}
	}
	return "", false
}

// containsKeyword reports whether a phrase appears on word boundaries
func containsKeyword(lower, kw string) bool {
	padded := " " + strings.Join(words(lower), " ") + " "
	return strings.Contains(padded, " "+kw+" ")
}

var activityVerbs = map[string]bool{
	"researching": true, "exploring": true, "evaluating": true, "comparing": true,
	"looking": true, "reviewing": true, "testing": true, "considering": true,
	"migrating": true, "implementing": true, "shopping": true, "searching": true,
	"planning": true, "budgeting": true, "assessing": true, "investigating": true,
	"piloting": true, "integrating": true, "deploying": true, "onboarding": true,
}

func activityWords(lower string, matched []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range words(lower) {
		if activityVerbs[w] && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	for _, w := range matched {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "into": true,
	"about": true, "their": true, "they": true, "them": true, "this": true, "that": true,
	"these": true, "those": true, "has": true, "have": true, "had": true, "been": true,
	"being": true, "was": true, "were": true, "are": true, "is": true, "its": true,
	"our": true, "your": true, "his": true, "her": true, "she": true, "him": true,
	"who": true, "which": true, "what": true, "when": true, "where": true, "while": true,
	"currently": true, "recently": true, "actively": true, "options": true, "option": true,
	"various": true, "several": true, "some": true, "more": true, "most": true, "very": true,
	"also": true, "just": true, "new": true, "team": true, "company": true, "companies": true,
	"possibly": true, "likely": true, "appears": true, "seems": true, "showing": true,
	"signs": true, "interest": true, "interested": true, "at": true, "on": true, "in": true,
	"of": true, "to": true, "a": true, "an": true, "or": true, "by": true, "as": true,
	"over": true, "last": true, "past": true, "weeks": true, "months": true, "days": true,
	"multiple": true, "different": true, "other": true, "solutions": true, "tools": true,
}

// searchTerms builds the lowercase terms used for content matching
func searchTerms(lower string, entities model.Entities, matched []string, excluded map[string]bool) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] || len(terms) >= maxSearchTerms || isExcluded(t, excluded) {
			return
		}
		seen[t] = true
		terms = append(terms, t)
	}

	covered := make(map[string]bool)
	for _, group := range [][]string{entities.Companies, entities.Products, entities.Topics} {
		for _, name := range group {
			add(name)
			for _, w := range words(strings.ToLower(name)) {
				covered[w] = true
			}
		}
	}
	for _, w := range matched {
		if !activityVerbs[w] {
			add(w)
		}
	}
	for _, w := range words(lower) {
		if len(w) < 3 || stopWords[w] || activityVerbs[w] || covered[w] {
			continue
		}
		add(w)
	}

	return terms
}

// words splits lowercase text into alphanumeric words, keeping dots inside
// domains and slashes inside product names
func words(lower string) []string {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '/' || r == '-' || r == '&')
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, ".-/"); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func nameTokens(names []string) map[string]bool {
	tokens := make(map[string]bool)
	for _, name := range names {
		for _, tok := range NameFragments(name) {
			tokens[tok] = true
		}
	}
	return tokens
}

// NameFragments splits a name into lowercase alphanumeric fragments of at
// least two characters. "Sean O'Brien" and "Sean O’Brien" both yield
// [sean brien].
func NameFragments(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if utf8.RuneCountInString(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// isExcluded reports whether a term is, or contains, an excluded name token
func isExcluded(term string, excluded map[string]bool) bool {
	if len(excluded) == 0 {
		return false
	}
	for _, w := range NameFragments(term) {
		if excluded[w] {
			return true
		}
	}
	return false
}

// splitSentences splits text into sentences (simple heuristic)
func splitSentences(text string, minLength int) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		sentence = strings.TrimRight(sentence, ".!?; ")
		if utf8.RuneCountInString(sentence) >= minLength {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' || r == ';' {
			flush()
			continue
		}
		current.WriteRune(r)

		// Only split when followed by whitespace to skip domains and decimals
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			if r == '.' && endsWithAbbreviation(current.String()) {
				continue
			}
			flush()
		}
	}
	flush()

	return sentences
}

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"inc": true, "corp": true, "ltd": true, "co": true, "st": true, "vs": true,
}

func endsWithAbbreviation(s string) bool {
	fields := strings.Fields(strings.TrimSuffix(s, "."))
	if len(fields) == 0 {
		return false
	}
	return abbreviations[strings.ToLower(fields[len(fields)-1])]
}

// dedupeClaims removes duplicate claims
func dedupeClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]bool)
	var unique []model.Claim

	for _, claim := range claims {
		key := strings.ToLower(strings.TrimSpace(claim.Text))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, claim)
		}
	}

	return unique
}

// PersonTokens returns the lowercase name tokens of people mentioned with an
// honorific, plus the tokens of the given names
func PersonTokens(text string, names []string) map[string]bool {
	tokens := nameTokens(names)
	for _, m := range honorificPattern.FindAllStringSubmatch(text, -1) {
		for _, tok := range NameFragments(m[1]) {
			tokens[tok] = true
		}
	}
	return tokens
}
