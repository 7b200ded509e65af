package llm

import (
	"context"
	"fmt"

	"github.com/ppiankov/evidex/internal/model"
	"go.uber.org/zap"
)

// Summarizer writes optional LLM summaries of a candidate's evidence. It
// never changes scores or evidence; a failed summary is reported to the
// caller, which keeps its deterministic summary.
type Summarizer struct {
	provider Provider
	config   Config
	logger   *zap.Logger
}

// NewSummarizer creates a summarizer. An empty provider disables it.
func NewSummarizer(config Config, logger *zap.Logger) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{provider: provider, config: config, logger: logger}, nil
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the configured provider name, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

// SummarizeEvidence returns an LLM summary citing only the given evidence.
// It returns "" without error when disabled or when there is no evidence.
func (s *Summarizer) SummarizeEvidence(ctx context.Context, candidateID string, claims []model.Claim, evidence []model.EvidenceURL) (string, error) {
	if !s.IsEnabled() || len(evidence) == 0 {
		return "", nil
	}

	allowed := make([]string, len(evidence))
	for i, ev := range evidence {
		allowed[i] = ev.URL
	}

	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		CandidateID:  candidateID,
		Claims:       claims,
		Evidence:     evidence,
		EvidenceURLs: allowed,
		MaxTokens:    s.config.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s summary: %w", s.provider.Name(), err)
	}

	s.logger.Debug("evidence summary generated",
		zap.String("candidate_id", candidateID),
		zap.String("provider", s.provider.Name()),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.TokensUsed),
		zap.Int("cited_urls", len(resp.CitedURLs)),
	)
	return resp.Summary, nil
}
