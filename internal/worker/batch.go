package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/evidex/internal/model"
)

// CandidateProcessor produces evidence for one candidate. index is the
// candidate's position in the inputs handed to ProcessCandidates.
type CandidateProcessor interface {
	ProcessCandidate(ctx context.Context, index int, input model.CandidateInput) model.CandidateEvidence
}

// CandidateJob represents one candidate's evidence discovery
type CandidateJob struct {
	Index     int
	Input     model.CandidateInput
	Processor CandidateProcessor
}

// Execute executes the candidate job
func (j *CandidateJob) Execute(ctx context.Context) Result {
	ev := j.Processor.ProcessCandidate(ctx, j.Index, j.Input)
	return &CandidateResult{Evidence: ev, Error: ctx.Err()}
}

// CandidateResult wraps a candidate's evidence. Degraded outcomes are carried
// as failures inside the evidence, so GetError only reports cancellation.
type CandidateResult struct {
	Evidence model.CandidateEvidence
	Error    error
}

// GetError returns the error from the candidate result
func (r *CandidateResult) GetError() error {
	return r.Error
}

// BatchProcessor processes candidates concurrently
type BatchProcessor struct {
	processor   CandidateProcessor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor CandidateProcessor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessCandidates processes candidates concurrently and returns their
// evidence in input order
func (b *BatchProcessor) ProcessCandidates(ctx context.Context, inputs []model.CandidateInput) []model.CandidateEvidence {
	if len(inputs) == 0 {
		return []model.CandidateEvidence{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()
	defer pool.Shutdown()

	for i, in := range inputs {
		pool.Submit(&CandidateJob{
			Index:     i,
			Input:     in,
			Processor: b.processor,
		})
	}

	results := pool.Wait()

	evidence := make([]model.CandidateEvidence, len(results))
	for i, result := range results {
		if cr, ok := result.(*CandidateResult); ok {
			evidence[i] = cr.Evidence
			continue
		}
		evidence[i] = model.CandidateEvidence{CandidateID: inputs[i].CandidateID, TimedOut: true}
	}

	return evidence
}

// ReadBatchRequest reads a batch from a .json file (a BatchRequest) or a
// .jsonl file (one CandidateInput per line)
func ReadBatchRequest(filePath string) (*model.BatchRequest, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if strings.EqualFold(filepath.Ext(filePath), ".jsonl") {
		return readCandidatesJSONL(file)
	}

	var req model.BatchRequest
	if err := json.NewDecoder(file).Decode(&req); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if err := ValidateCandidates(req.Candidates); err != nil {
		return nil, err
	}
	return &req, nil
}

func readCandidatesJSONL(r io.Reader) (*model.BatchRequest, error) {
	var req model.BatchRequest

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var in model.CandidateInput
		if err := json.Unmarshal([]byte(line), &in); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		req.Candidates = append(req.Candidates, in)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	if err := ValidateCandidates(req.Candidates); err != nil {
		return nil, err
	}

	return &req, nil
}

// ValidateCandidates rejects missing and duplicate candidate IDs
func ValidateCandidates(candidates []model.CandidateInput) error {
	seen := make(map[string]bool, len(candidates))
	for i, c := range candidates {
		if c.CandidateID == "" {
			return fmt.Errorf("candidate %d: missing candidate_id", i)
		}
		if seen[c.CandidateID] {
			return fmt.Errorf("candidate %d: duplicate candidate_id %q", i, c.CandidateID)
		}
		seen[c.CandidateID] = true
	}
	return nil
}
