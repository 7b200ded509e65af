package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/evidex/internal/model"
)

// CandidateConfidence is the mean relevance of the selected evidence scaled
// by the share of claims it supports
func CandidateConfidence(claims []model.Claim, evidence []model.EvidenceURL) float64 {
	if len(evidence) == 0 || len(claims) == 0 {
		return 0
	}

	total := 0.0
	supported := make(map[string]bool)
	for _, ev := range evidence {
		total += ev.RelevanceScore
		supported[ev.ClaimRef] = true
	}

	covered := 0
	for _, c := range claims {
		if supported[c.ID] {
			covered++
		}
	}

	mean := total / float64(len(evidence))
	return round(mean * float64(covered) / float64(len(claims)))
}

// Summarize writes a short deterministic summary of a candidate's evidence
func Summarize(claims []model.Claim, evidence []model.EvidenceURL) string {
	if len(evidence) == 0 {
		if len(claims) == 0 {
			return "No verifiable claims found in the explanations."
		}
		return fmt.Sprintf("No qualifying evidence found for %s.", plural(len(claims), "claim"))
	}

	domains := make(map[string]bool)
	for _, ev := range evidence {
		domains[ev.Domain] = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s across %s for %s",
		plural(len(evidence), "evidence URL"), plural(len(domains), "domain"), supportedClaims(claims, evidence))

	parts := make([]string, 0, 3)
	for i, ev := range evidence {
		if i == 3 {
			break
		}
		parts = append(parts, fmt.Sprintf("%s on %s", strings.ReplaceAll(string(ev.EvidenceType), "_", " "), ev.Domain))
	}
	fmt.Fprintf(&b, ": %s.", strings.Join(parts, ", "))
	return b.String()
}

// supportedClaims describes which claim categories have evidence
func supportedClaims(claims []model.Claim, evidence []model.EvidenceURL) string {
	byID := make(map[string]model.Claim, len(claims))
	for _, c := range claims {
		byID[c.ID] = c
	}

	seen := make(map[string]bool)
	var categories []string
	for _, ev := range evidence {
		c, ok := byID[ev.ClaimRef]
		if !ok {
			continue
		}
		name := strings.ReplaceAll(c.Category.String(), "_", " ")
		if !seen[name] {
			seen[name] = true
			categories = append(categories, name)
		}
	}
	sort.Strings(categories)

	if len(categories) == 0 {
		return "the candidate's claims"
	}
	return strings.Join(categories, " and ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
