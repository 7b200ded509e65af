package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/evidex/internal/model"
	"github.com/ppiankov/evidex/internal/score"
	"github.com/ppiankov/evidex/internal/worker"
	"go.uber.org/zap"
)

// Batch states, recorded in BatchResult.States in the order visited
const (
	StatePending                = "pending"
	StatePerCandidateProcessing = "per_candidate_processing"
	StateBatchBalancing         = "batch_balancing"
	StateFallbackRelaxation     = "fallback_relaxation"
	StateCompleted              = "completed"
)

// ProcessBatch discovers evidence for every candidate of a batch. It always
// completes: candidates without evidence get an empty list, and candidates
// cut off by the batch deadline are returned empty with timed_out set.
// Results are in input order.
func (p *Pipeline) ProcessBatch(ctx context.Context, req model.BatchRequest) model.BatchResult {
	start := time.Now()
	result := model.BatchResult{
		BatchID: uuid.NewString(),
		States:  []string{StatePending},
	}

	div := p.config.Diversity
	if req.Config != nil {
		div = *req.Config
	}
	div = div.Normalize()

	p.registry.OpenBatch(result.BatchID, div.EnsureUniqueness)
	defer p.registry.ReleaseBatch(result.BatchID)

	ctx, cancel := context.WithTimeout(ctx, p.batchDeadline())
	defer cancel()

	hint := model.CategoryGeneralActivity
	if req.Prompt != "" {
		hint = p.extractor.CategoryHint(req.Prompt)
	}

	p.logger.Info("batch started",
		zap.String("batch_id", result.BatchID),
		zap.Int("candidates", len(req.Candidates)),
		zap.String("provider", p.ProviderName()),
	)

	// 1. Per-candidate processing
	result.States = append(result.States, StatePerCandidateProcessing)
	holders := holderKeys(req.Candidates)
	first := &candidatePass{
		pipeline:    p,
		batchID:     result.BatchID,
		holders:     holders,
		hint:        hint,
		diversity:   div,
		floor:       p.config.Scoring.RelevanceFloor,
		domainLimit: div.MaxSameDomainPerCandidate,
	}
	result.Candidates = worker.NewBatchProcessor(first, p.concurrency()).ProcessCandidates(ctx, req.Candidates)

	// 2. Batch balancing
	result.States = append(result.States, StateBatchBalancing)
	result.Metrics = score.Metrics(allEvidence(result.Candidates))

	// 3. Relaxation for candidates the first pass left empty
	if affected := p.relaxationTargets(result.Candidates); len(affected) > 0 && ctx.Err() == nil {
		result.States = append(result.States, StateFallbackRelaxation)

		relaxed := &candidatePass{
			pipeline:    p,
			batchID:     result.BatchID,
			holders:     make([]string, len(affected)),
			hint:        hint,
			diversity:   div,
			floor:       p.config.Scoring.RelaxedFloor,
			domainLimit: div.MaxSameDomainPerCandidate + 1,
			widenFirst:  true,
			relaxed:     true,
		}

		inputs := make([]model.CandidateInput, len(affected))
		for i, idx := range affected {
			inputs[i] = req.Candidates[idx]
			relaxed.holders[i] = holders[idx]
		}
		p.logger.Info("relaxing relevance floor",
			zap.String("batch_id", result.BatchID),
			zap.Int("candidates", len(inputs)),
			zap.Float64("floor", relaxed.floor),
			zap.Int("domain_limit", relaxed.domainLimit),
		)

		rerun := worker.NewBatchProcessor(relaxed, p.concurrency()).ProcessCandidates(ctx, inputs)
		for i, idx := range affected {
			result.Candidates[idx] = rerun[i]
		}
		result.RelaxedCandidates = len(affected)
		result.Metrics = score.Metrics(allEvidence(result.Candidates))
	}

	result.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	result.States = append(result.States, StateCompleted)

	duration := time.Since(start)
	result.Duration = seconds(duration)
	p.recorder.BatchCompleted(result, duration)

	p.logger.Info("batch completed",
		zap.String("batch_id", result.BatchID),
		zap.Int("candidates", len(result.Candidates)),
		zap.Int("evidence", result.Metrics.TotalEvidence),
		zap.Int("unique_domains", result.Metrics.UniqueDomainCount),
		zap.Int("relaxed_candidates", result.RelaxedCandidates),
		zap.Bool("timed_out", result.TimedOut),
		zap.Duration("duration", duration),
	)
	return result
}

// relaxationTargets returns the indexes of candidates to rerun with relaxed
// parameters, or nil when the share of candidates with claims but no
// evidence does not exceed the trigger. Timed-out candidates are not rerun.
func (p *Pipeline) relaxationTargets(candidates []model.CandidateEvidence) []int {
	withClaims := 0
	var empty []int
	for i, c := range candidates {
		if len(c.Claims) == 0 {
			continue
		}
		withClaims++
		if len(c.EvidenceURLs) == 0 && !c.TimedOut {
			empty = append(empty, i)
		}
	}
	if withClaims == 0 || float64(len(empty))/float64(withClaims) <= p.config.Orchestrator.RelaxationTrigger {
		return nil
	}
	return empty
}

func allEvidence(candidates []model.CandidateEvidence) []model.EvidenceURL {
	var all []model.EvidenceURL
	for _, c := range candidates {
		all = append(all, c.EvidenceURLs...)
	}
	return all
}
