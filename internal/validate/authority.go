package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/evidex/internal/model"
	"github.com/ppiankov/evidex/internal/search"
)

// AuthorityClassifier classifies evidence sources into tiers
type AuthorityClassifier struct {
	domainMap     map[string]model.SourceTier
	authoritative map[string]bool
	reputable     map[string]bool
	niche         map[string]bool
	pathPatterns  []*compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.SourceTier
}

// NewAuthorityClassifier creates a new authority classifier
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	classifier := &AuthorityClassifier{
		domainMap:     make(map[string]model.SourceTier, len(config.DomainMap)),
		authoritative: domainSet(config.AuthoritativeDomains),
		reputable:     domainSet(config.ReputableDomains),
		niche:         domainSet(config.NicheDomains),
	}

	for domain, tier := range config.DomainMap {
		classifier.domainMap[strings.ToLower(domain)] = model.ParseSourceTier(strings.ToLower(tier))
	}

	for _, pathPattern := range config.PathPatterns {
		re, err := regexp.Compile(pathPattern.Pattern)
		if err != nil {
			continue
		}
		classifier.pathPatterns = append(classifier.pathPatterns, &compiledPattern{
			pattern: re,
			tier:    model.ParseSourceTier(strings.ToLower(pathPattern.Tier)),
		})
	}

	return classifier
}

func domainSet(domains []string) map[string]bool {
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		set[strings.TrimPrefix(strings.ToLower(d), "www.")] = true
	}
	return set
}

// Classify returns the tier of a URL. Hosts under one of the claim's
// official domains are always TierOfficial.
func (a *AuthorityClassifier) Classify(rawURL string, official []string) model.SourceTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return model.TierUnknown
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	registrable := search.DomainOf(host)
	for _, d := range official {
		d = strings.ToLower(d)
		if matchesDomain(host, d) || (registrable != "" && registrable == search.DomainOf(d)) {
			return model.TierOfficial
		}
	}

	// Explicit mappings win over the lists
	if tier, ok := a.domainMap[host]; ok {
		return tier
	}
	if tier, ok := a.domainMap[registrable]; ok {
		return tier
	}

	switch {
	case inSet(host, a.authoritative):
		return model.TierAuthoritative
	case inSet(host, a.reputable):
		return model.TierReputable
	case inSet(host, a.niche):
		return model.TierNiche
	}

	for _, cp := range a.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier
		}
	}

	// Government and academic hosts
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return model.TierAuthoritative
	}

	return model.TierUnknown
}

// Weight returns the relevance weight configured for a tier
func Weight(cfg model.ScoringConfig, tier model.SourceTier) float64 {
	switch tier {
	case model.TierOfficial:
		return cfg.OfficialWeight
	case model.TierAuthoritative:
		return cfg.AuthoritativeWeight
	case model.TierReputable:
		return cfg.ReputableWeight
	case model.TierNiche:
		return cfg.NicheWeight
	default:
		return cfg.UnknownWeight
	}
}

func inSet(host string, set map[string]bool) bool {
	for d := range set {
		if matchesDomain(host, d) {
			return true
		}
	}
	return false
}

// matchesDomain reports whether host is domain or one of its subdomains
func matchesDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
