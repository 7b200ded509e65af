package worker

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/evidex/internal/model"
)

// mockProcessor implements CandidateProcessor
type mockProcessor struct {
	delay time.Duration
}

func (m *mockProcessor) ProcessCandidate(ctx context.Context, index int, in model.CandidateInput) model.CandidateEvidence {
	timer := time.NewTimer(m.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return model.CandidateEvidence{CandidateID: in.CandidateID, TimedOut: true}
	}
	return model.CandidateEvidence{
		CandidateID:  in.CandidateID,
		EvidenceURLs: []model.EvidenceURL{{URL: "https://example.com/" + in.CandidateID}},
		Summary:      strconv.Itoa(index),
	}
}

func TestBatchProcessor_ProcessCandidates(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{delay: 5 * time.Millisecond}, 2)

	inputs := []model.CandidateInput{{CandidateID: "a"}, {CandidateID: "b"}, {CandidateID: "c"}}
	results := processor.ProcessCandidates(context.Background(), inputs)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.CandidateID != inputs[i].CandidateID {
			t.Errorf("result %d: expected %s, got %s", i, inputs[i].CandidateID, res.CandidateID)
		}
		if len(res.EvidenceURLs) != 1 {
			t.Errorf("result %d: expected 1 evidence URL, got %d", i, len(res.EvidenceURLs))
		}
		if res.Summary != strconv.Itoa(i) {
			t.Errorf("result %d: processed with index %s", i, res.Summary)
		}
	}
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{delay: time.Second}, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	results := processor.ProcessCandidates(ctx, []model.CandidateInput{{CandidateID: "a"}, {CandidateID: "b"}})
	for _, res := range results {
		if !res.TimedOut {
			t.Errorf("expected %s to time out", res.CandidateID)
		}
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{}, 2)
	if results := processor.ProcessCandidates(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadBatchRequest(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		content   string
		wantIDs   []string
		wantError string
		desc      string
	}{
		{
			name:    "batch.json",
			content: `{"prompt":"crm buyers","candidates":[{"candidate_id":"c1","explanations":["Comparing CRM vendors"]}],"config":{"max_evidence_per_candidate":3}}`,
			wantIDs: []string{"c1"},
			desc:    "json batch",
		},
		{
			name:    "batch.jsonl",
			content: "# exported candidates\n{\"candidate_id\":\"c1\",\"explanations\":[\"a\"]}\n\n{\"candidate_id\":\"c2\",\"explanations\":[\"b\"]}\n",
			wantIDs: []string{"c1", "c2"},
			desc:    "jsonl with comments and blank lines",
		},
		{
			name:      "dupe.jsonl",
			content:   "{\"candidate_id\":\"c1\"}\n{\"candidate_id\":\"c1\"}\n",
			wantError: "duplicate candidate_id",
			desc:      "duplicate ids",
		},
		{
			name:      "bad.jsonl",
			content:   "{\"candidate_id\":\"c1\"}\nnot json\n",
			wantError: "line 2",
			desc:      "malformed line",
		},
		{
			name:      "missing.json",
			content:   `{"candidates":[{"explanations":["x"]}]}`,
			wantError: "missing candidate_id",
			desc:      "missing id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			req, err := ReadBatchRequest(path)
			if tt.wantError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantError) {
					t.Fatalf("expected error containing %q, got %v", tt.wantError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadBatchRequest failed: %v", err)
			}

			var ids []string
			for _, c := range req.Candidates {
				ids = append(ids, c.CandidateID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("expected ids %v, got %v", tt.wantIDs, ids)
			}
		})
	}
}

func TestReadBatchRequest_JSONConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	content := `{"candidates":[{"candidate_id":"c1"}],"config":{"max_evidence_per_candidate":3}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	req, err := ReadBatchRequest(path)
	if err != nil {
		t.Fatalf("ReadBatchRequest failed: %v", err)
	}
	if req.Config == nil {
		t.Fatal("expected config to be decoded")
	}
	if req.Config.MaxEvidencePerCandidate != 3 {
		t.Errorf("expected max evidence 3, got %d", req.Config.MaxEvidencePerCandidate)
	}
	if !req.Config.EnsureUniqueness || req.Config.MaxSameDomainPerCandidate != 2 {
		t.Errorf("expected omitted fields to default, got %+v", req.Config)
	}
}

func TestReadBatchRequest_NonExistent(t *testing.T) {
	if _, err := ReadBatchRequest("/nonexistent/batch.json"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}
