package score

import (
	"sort"

	"github.com/ppiankov/evidex/internal/model"
)

// Rank blends relevance with a diversity bonus and sorts best first. held
// counts the URLs per domain already selected for the candidate.
//
// rank = (1-w)*relevance + w*bonus, where the bonus rewards a domain the
// candidate does not hold yet and, when alternatives are prioritized, niche
// sources.
func Rank(evidence []model.EvidenceURL, cfg model.DiversityConfig, held map[string]int) []model.EvidenceURL {
	w := cfg.DiversityWeight
	ranked := make([]model.EvidenceURL, len(evidence))
	copy(ranked, evidence)

	for i := range ranked {
		bonus := 0.0
		if held[ranked[i].Domain] == 0 {
			bonus = 1
		}
		if cfg.PrioritizeAlternatives {
			niche := 0.0
			if ranked[i].SourceTier == model.TierNiche {
				niche = 1
			}
			bonus = (bonus + niche) / 2
		}
		ranked[i].Breakdown.Rank = round((1-w)*ranked[i].RelevanceScore + w*bonus)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	return ranked
}

// less orders by rank, then first-party pages, then content match, then URL
func less(a, b model.EvidenceURL) bool {
	if a.Breakdown.Rank != b.Breakdown.Rank {
		return a.Breakdown.Rank > b.Breakdown.Rank
	}
	if a.EvidenceType.FirstParty() != b.EvidenceType.FirstParty() {
		return a.EvidenceType.FirstParty()
	}
	if a.Breakdown.Content != b.Breakdown.Content {
		return a.Breakdown.Content > b.Breakdown.Content
	}
	return a.URL < b.URL
}
