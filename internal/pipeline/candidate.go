package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/evidex/internal/extract"
	"github.com/ppiankov/evidex/internal/model"
	"github.com/ppiankov/evidex/internal/query"
	"github.com/ppiankov/evidex/internal/score"
	"github.com/ppiankov/evidex/internal/search"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// candidatePass processes candidates with one set of batch parameters. The
// first pass uses the configured floor and domain limit; the relaxation pass
// lowers the floor, raises the limit and widens queries up front.
type candidatePass struct {
	pipeline    *Pipeline
	batchID     string
	holders     []string // Registry holder per input row, see holderKeys
	hint        model.ClaimCategory
	diversity   model.DiversityConfig
	floor       float64
	domainLimit int
	widenFirst  bool
	relaxed     bool
}

// searchRound is the scored, filtered evidence pool of one set of queries
type searchRound struct {
	pool     []model.EvidenceURL
	fallback bool
	failures []model.Failure
}

// ProcessCandidate runs extract, generate, execute, score and reserve for one
// candidate. It never fails: degraded steps are attached as failures.
func (c *candidatePass) ProcessCandidate(batchCtx context.Context, index int, in model.CandidateInput) model.CandidateEvidence {
	p := c.pipeline
	start := time.Now()
	holder := c.holder(index, in.CandidateID)

	ctx, cancel := context.WithTimeout(batchCtx, p.candidateTimeout())
	defer cancel()

	out := model.CandidateEvidence{
		CandidateID:    in.CandidateID,
		EvidenceURLs:   []model.EvidenceURL{},
		RelevanceFloor: c.floor,
		Relaxed:        c.relaxed,
	}

	names := candidateNames(in.Name)
	claims, failures := p.extractor.ExtractAll(in.Explanations, extract.ExtractOptions{
		CategoryHint:  c.hint,
		ExcludedNames: names,
	})
	out.Claims = claims
	if out.Claims == nil {
		out.Claims = []model.Claim{}
	}
	for _, f := range failures {
		f.CandidateID = in.CandidateID
		out.Failures = append(out.Failures, p.logFailure(f))
	}

	var refused refusals
	if len(claims) > 0 {
		var round searchRound
		out.EvidenceURLs, round, refused = c.discover(ctx, in.CandidateID, holder, claims, names)
		out.FallbackUsed = round.fallback
		out.Failures = append(out.Failures, round.failures...)
	}

	if err := batchCtx.Err(); err != nil {
		p.registry.ReleaseCandidate(c.batchID, holder)
		out.EvidenceURLs = []model.EvidenceURL{}
		out.TimedOut = true
		out.Failures = append(out.Failures, p.logFailure(model.Failure{
			Kind:        model.FailureBatchDeadlineExceeded,
			CandidateID: in.CandidateID,
			Detail:      err.Error(),
		}))
		out.Summary = score.Summarize(claims, nil)
		out.ProcessingTime = seconds(time.Since(start))
		return out
	}
	out.TimedOut = ctx.Err() != nil

	if len(claims) > 0 && len(out.EvidenceURLs) == 0 && !out.TimedOut {
		kind, detail := model.FailureNoQualifyingEvidence, ""
		if refused.total() > 0 {
			kind, detail = model.FailureUniquenessExhausted, refused.String()
		}
		for _, claim := range claims {
			out.Failures = append(out.Failures, p.logFailure(model.Failure{
				Kind:        kind,
				CandidateID: in.CandidateID,
				Claim:       claim.Text,
				Detail:      detail,
			}))
		}
	}

	out.Confidence = score.CandidateConfidence(claims, out.EvidenceURLs)
	out.DiversityScore = score.DomainDiversity(out.EvidenceURLs)
	out.Summary = c.summarize(ctx, in.CandidateID, claims, out.EvidenceURLs)
	out.ProcessingTime = seconds(time.Since(start))

	p.logger.Debug("candidate processed",
		zap.String("batch_id", c.batchID),
		zap.String("candidate_id", in.CandidateID),
		zap.Int("claims", len(claims)),
		zap.Int("evidence", len(out.EvidenceURLs)),
		zap.Bool("relaxed", c.relaxed),
		zap.Bool("timed_out", out.TimedOut),
		zap.Float64("processing_time", out.ProcessingTime),
	)
	return out
}

// discover searches for every claim, selects evidence and widens once when
// the selection is short. It returns the selection, the merged search
// outcome and the URLs the registry refused.
func (c *candidatePass) discover(ctx context.Context, candidateID, holder string, claims []model.Claim, names []string) ([]model.EvidenceURL, searchRound, refusals) {
	p := c.pipeline
	opts := query.Options{
		ExcludedNames:          names,
		PrioritizeAlternatives: c.diversity.PrioritizeAlternatives,
	}

	byClaim := make(map[string][]model.SearchQuery, len(claims))
	var queries []model.SearchQuery
	for _, claim := range claims {
		qs := p.generator.Generate(claim, opts)
		if c.widenFirst {
			qs = append(qs, p.generator.Widen(claim, opts, qs)...)
		}
		byClaim[claim.ID] = qs
		queries = append(queries, qs...)
	}

	round := c.search(ctx, candidateID, claims, queries)
	sel := newSelection(c, holder, claims)
	sel.add(ctx, round.pool)

	if len(sel.selected) < c.diversity.MinEvidencePerCandidate && !c.widenFirst && ctx.Err() == nil {
		var extra []model.SearchQuery
		for _, claim := range claims {
			extra = append(extra, p.generator.Widen(claim, opts, byClaim[claim.ID])...)
		}
		if len(extra) > 0 {
			p.logger.Debug("widening queries",
				zap.String("candidate_id", candidateID),
				zap.Int("selected", len(sel.selected)),
				zap.Int("queries", len(extra)),
			)
			more := c.search(ctx, candidateID, claims, extra)
			sel.add(ctx, more.pool)
			round.fallback = round.fallback || more.fallback
			round.failures = append(round.failures, more.failures...)
		}
	}

	return sel.selected, round, sel.refused
}

// search executes queries with bounded fan-out and scores every result
// against the claim that produced its query
func (c *candidatePass) search(ctx context.Context, candidateID string, claims []model.Claim, queries []model.SearchQuery) searchRound {
	p := c.pipeline

	outcomes := make([]search.Outcome, len(queries))
	var g errgroup.Group
	g.SetLimit(p.fanOut())
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			outcomes[i] = p.executor.Execute(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[string]model.Claim, len(claims))
	for _, claim := range claims {
		byID[claim.ID] = claim
	}

	var round searchRound
	best := make(map[string]int)
	for _, o := range outcomes {
		claim := byID[o.Query.ClaimID]
		if o.Failure != nil {
			f := *o.Failure
			f.CandidateID = candidateID
			f.Claim = claim.Text
			round.failures = append(round.failures, p.logFailure(f))
		}
		round.fallback = round.fallback || o.FallbackUsed

		official := p.lexicon.OfficialDomains(claim.Entities.Companies, claim.Entities.Products)
		scored := make([]model.EvidenceURL, 0, len(o.Candidates))
		for _, cand := range o.Candidates {
			scored = append(scored, p.scorer.Score(claim, o.Query, official, cand))
		}

		// Keep the best-scoring claim for a URL found by several queries
		for _, ev := range score.Filter(scored, c.floor) {
			if i, ok := best[ev.URL]; ok {
				if ev.RelevanceScore > round.pool[i].RelevanceScore {
					round.pool[i] = ev
				}
				continue
			}
			best[ev.URL] = len(round.pool)
			round.pool = append(round.pool, ev)
		}
	}

	if p.robots != nil && len(round.pool) > 0 {
		round.pool = p.robots.Filter(ctx, round.pool)
	}
	return round
}

// summarize prefers an LLM summary and falls back to the deterministic one
func (c *candidatePass) summarize(ctx context.Context, candidateID string, claims []model.Claim, evidence []model.EvidenceURL) string {
	p := c.pipeline
	if p.summarizer != nil && len(evidence) > 0 && ctx.Err() == nil {
		summary, err := p.summarizer.SummarizeEvidence(ctx, candidateID, claims, evidence)
		if err != nil {
			// Don't fail the candidate, keep the deterministic summary
			p.logger.Warn("LLM summary failed", zap.String("candidate_id", candidateID), zap.Error(err))
		} else if summary != "" {
			return summary
		}
	}
	return score.Summarize(claims, evidence)
}

// holder returns the registry holder for the input row at index
func (c *candidatePass) holder(index int, candidateID string) string {
	if index >= 0 && index < len(c.holders) {
		return c.holders[index]
	}
	return candidateID
}

// holderKeys returns one registry holder per input row. Rows repeating an
// earlier candidate ID get a row-qualified holder so they never share
// reservations.
func holderKeys(inputs []model.CandidateInput) []string {
	holders := make([]string, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		holders[i] = in.CandidateID
		if seen[in.CandidateID] {
			holders[i] = fmt.Sprintf("%s\x00%d", in.CandidateID, i)
		}
		seen[in.CandidateID] = true
	}
	return holders
}

// candidateNames returns the candidate's name as an exclusion list
func candidateNames(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return []string{name}
}

func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
