package model

import (
	"encoding/json"
	"fmt"
)

// CandidateInput is one candidate handed over by the search API layer
type CandidateInput struct {
	CandidateID  string         `json:"candidate_id"`
	Name         string         `json:"name,omitempty"`   // Never used in queries, only to exclude it
	Explanations []string       `json:"explanations"`     // Free-text behavioral explanations
	Record       map[string]any `json:"record,omitempty"` // Caller's existing record, returned untouched plus evidence
}

// CandidateEvidence is the per-candidate result of one batch
type CandidateEvidence struct {
	CandidateID    string        `json:"candidate_id"`
	Claims         []Claim       `json:"claims"`
	EvidenceURLs   []EvidenceURL `json:"evidence_urls"`
	Summary        string        `json:"evidence_summary"`
	Confidence     float64       `json:"evidence_confidence"`
	ProcessingTime float64       `json:"processing_time"` // Seconds
	DiversityScore float64       `json:"diversity_score"` // Unique domains / evidence count
	RelevanceFloor float64       `json:"relevance_floor"` // Floor applied to this candidate's evidence
	TimedOut       bool          `json:"timed_out,omitempty"`
	Relaxed        bool          `json:"relaxed,omitempty"`
	FallbackUsed   bool          `json:"fallback_used,omitempty"`
	Failures       []Failure     `json:"failures,omitempty"`
}

// EvidenceJSON returns the payload handed to the storage collaborator
func (c CandidateEvidence) EvidenceJSON() ([]byte, float64, error) {
	urls := c.EvidenceURLs
	if urls == nil {
		urls = []EvidenceURL{}
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal evidence: %w", err)
	}
	return data, c.Confidence, nil
}

// AttachEvidence returns a copy of record with the evidence fields added.
// Every other key of the record is preserved as-is.
func AttachEvidence(record map[string]any, ev CandidateEvidence) map[string]any {
	out := make(map[string]any, len(record)+4)
	for k, v := range record {
		out[k] = v
	}
	urls := ev.EvidenceURLs
	if urls == nil {
		urls = []EvidenceURL{}
	}
	out["evidence_urls"] = urls
	out["evidence_summary"] = ev.Summary
	out["evidence_confidence"] = ev.Confidence
	out["evidence_processing_time"] = ev.ProcessingTime
	return out
}

// BatchRequest is the input contract for one batch
type BatchRequest struct {
	Prompt     string           `json:"prompt,omitempty"` // Original search prompt, only seeds category hints
	Candidates []CandidateInput `json:"candidates"`
	Config     *DiversityConfig `json:"config,omitempty"` // Defaults applied when nil
}

// BatchResult is the output of one batch, candidates in input order
type BatchResult struct {
	BatchID           string              `json:"batch_id"`
	Candidates        []CandidateEvidence `json:"candidates"`
	Metrics           DiversityMetrics    `json:"metrics"`
	States            []string            `json:"states"` // Orchestrator states visited, in order
	RelaxedCandidates int                 `json:"relaxed_candidates"`
	TimedOut          bool                `json:"timed_out"`
	Duration          float64             `json:"duration_seconds"`
}

// Records merges every candidate's evidence into its input record
func (r *BatchResult) Records(inputs []CandidateInput) []map[string]any {
	records := make([]map[string]any, len(inputs))
	for i, in := range inputs {
		record := in.Record
		if record == nil {
			record = map[string]any{"candidate_id": in.CandidateID}
		}
		if i < len(r.Candidates) {
			records[i] = AttachEvidence(record, r.Candidates[i])
		} else {
			records[i] = AttachEvidence(record, CandidateEvidence{CandidateID: in.CandidateID})
		}
	}
	return records
}

// DiversityMetrics summarizes source diversity across a completed batch
type DiversityMetrics struct {
	UniqueDomainCount        int            `json:"unique_domain_count"`
	TotalEvidence            int            `json:"total_evidence"`
	SourceTierDistribution   map[string]int `json:"source_tier_distribution"`
	EvidenceTypeDistribution map[string]int `json:"evidence_type_distribution"`
	DiversityIndex           float64        `json:"diversity_index"` // Normalized Shannon entropy over domains
	UniqueDomainRate         float64        `json:"unique_domain_rate"`
}

// EngineStats are process-wide counters for operational visibility
type EngineStats struct {
	Batches          int64   `json:"batches"`
	Candidates       int64   `json:"candidates"`
	QueriesIssued    int64   `json:"queries_issued"`
	CacheLookups     int64   `json:"cache_lookups"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
	FallbackRate     float64 `json:"fallback_rate"`
	EvidenceReturned int64   `json:"evidence_returned"`
	AverageRelevance float64 `json:"average_relevance"`
	UniqueDomainRate float64 `json:"unique_domain_rate"`
}
