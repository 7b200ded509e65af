package score

import (
	"math"

	"github.com/ppiankov/evidex/internal/model"
)

// Metrics computes diversity metrics over a batch's evidence
func Metrics(evidence []model.EvidenceURL) model.DiversityMetrics {
	m := model.DiversityMetrics{
		TotalEvidence:            len(evidence),
		SourceTierDistribution:   make(map[string]int),
		EvidenceTypeDistribution: make(map[string]int),
	}
	if len(evidence) == 0 {
		return m
	}

	domains := make(map[string]int)
	for _, ev := range evidence {
		domains[ev.Domain]++
		m.SourceTierDistribution[ev.SourceTier.String()]++
		m.EvidenceTypeDistribution[string(ev.EvidenceType)]++
	}

	m.UniqueDomainCount = len(domains)
	m.UniqueDomainRate = round(float64(len(domains)) / float64(len(evidence)))
	m.DiversityIndex = round(normalizedEntropy(domains, len(evidence)))
	return m
}

// DomainDiversity is unique domains over evidence count for one candidate
func DomainDiversity(evidence []model.EvidenceURL) float64 {
	if len(evidence) == 0 {
		return 0
	}
	domains := make(map[string]bool)
	for _, ev := range evidence {
		domains[ev.Domain] = true
	}
	return round(float64(len(domains)) / float64(len(evidence)))
}

// normalizedEntropy is Shannon entropy over domain counts divided by its
// maximum, ln(number of domains). A single domain scores 0.
func normalizedEntropy(counts map[string]int, total int) float64 {
	if len(counts) < 2 {
		return 0
	}
	h := 0.0
	for _, n := range counts {
		p := float64(n) / float64(total)
		h -= p * math.Log(p)
	}
	return h / math.Log(float64(len(counts)))
}
