package pipeline

import (
	"context"
	"fmt"

	"github.com/ppiankov/evidex/internal/model"
	"github.com/ppiankov/evidex/internal/score"
)

// selection greedily reserves evidence for one candidate: the best URL for
// each claim first, then the rest by rank, re-ranking after every pick so
// the diversity bonus tracks the domains already held
type selection struct {
	pass   *candidatePass
	holder string
	claims []model.Claim
	limit  int

	selected []model.EvidenceURL
	covered  map[string]bool
	tried    map[string]bool
	refused  refusals
}

// refusals counts URLs the registry would not reserve for a candidate
type refusals struct {
	taken   int // Held by another candidate
	bounded int // Refused by the per-domain bound
}

func (r refusals) total() int {
	return r.taken + r.bounded
}

func (r refusals) String() string {
	return fmt.Sprintf("%d URLs reserved by other candidates, %d refused by the domain bound", r.taken, r.bounded)
}

func newSelection(c *candidatePass, holder string, claims []model.Claim) *selection {
	limit := c.diversity.MaxEvidencePerCandidate
	if limit <= 0 {
		limit = 5
	}
	return &selection{
		pass:    c,
		holder:  holder,
		claims:  claims,
		limit:   limit,
		covered: make(map[string]bool),
		tried:   make(map[string]bool),
	}
}

// add selects from a pool of scored evidence until the candidate is full or
// the pool is exhausted
func (s *selection) add(ctx context.Context, pool []model.EvidenceURL) {
	for _, claim := range s.claims {
		if s.full() || ctx.Err() != nil {
			return
		}
		if s.covered[claim.ID] {
			continue
		}
		for _, ev := range s.rank(pool, claim.ID) {
			if s.take(ev) {
				break
			}
		}
	}

	for !s.full() && ctx.Err() == nil {
		picked := false
		for _, ev := range s.rank(pool, "") {
			if s.take(ev) {
				picked = true
				break
			}
		}
		if !picked {
			return
		}
	}
}

// rank orders the untried evidence of one claim, or of all claims when
// claimID is empty
func (s *selection) rank(pool []model.EvidenceURL, claimID string) []model.EvidenceURL {
	var open []model.EvidenceURL
	for _, ev := range pool {
		if s.tried[ev.URL] || (claimID != "" && ev.ClaimRef != claimID) {
			continue
		}
		open = append(open, ev)
	}
	if len(open) == 0 {
		return nil
	}
	held := s.pass.pipeline.registry.DomainCounts(s.pass.batchID, s.holder)
	return score.Rank(open, s.pass.diversity, held)
}

// take tries to reserve one URL. A refused URL is never retried: ownership
// and domain counts only grow while the candidate is processed.
func (s *selection) take(ev model.EvidenceURL) bool {
	s.tried[ev.URL] = true
	p := s.pass.pipeline
	if !p.registry.Reserve(s.pass.batchID, s.holder, ev.URL, ev.Domain, s.pass.domainLimit) {
		if owner, ok := p.registry.Owner(ev.URL); ok && owner.CandidateID != s.holder {
			s.refused.taken++
		} else {
			s.refused.bounded++
		}
		return false
	}
	s.selected = append(s.selected, ev)
	s.covered[ev.ClaimRef] = true
	return true
}

func (s *selection) full() bool {
	return len(s.selected) >= s.limit
}
