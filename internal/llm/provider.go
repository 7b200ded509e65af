package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/evidex/internal/model"
)

// ErrCitationLeak is returned when a summary cites a URL outside the allowlist
var ErrCitationLeak = errors.New("summary cited a URL outside the evidence allowlist")

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize writes a summary of one candidate's evidence
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	CandidateID string
	Claims      []model.Claim
	Evidence    []model.EvidenceURL

	// EvidenceURLs is the allowlist of URLs the summary may cite
	EvidenceURLs []string

	// Prompt overrides the default prompt when set
	Prompt string

	Model     string
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary    string
	CitedURLs  []string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	Model   string
	APIKey  string
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// StrictEvidence rejects summaries citing URLs outside the allowlist
	StrictEvidence bool

	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:        30,
		StrictEvidence: true,
		MaxTokens:      400,
	}
}

const systemPrompt = "You summarize web evidence about a person's professional activity. You only describe what the listed sources are; you never claim anything they do not show."

// BuildPrompt constructs the default prompt for an evidence summary
func BuildPrompt(req SummarizeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Summarize the evidence found for a candidate's stated activities.

RULES:
1. You MUST ONLY cite URLs from this allowed list:
%s

2. Do not cite, infer or speculate about any other source.
3. Never mention the candidate's name or any personal detail.
4. Describe what kind of source supports each activity (pricing page, review site, report).
5. If evidence is missing for an activity, say so.

Activities:
`, joinURLs(req.EvidenceURLs))

	for _, c := range req.Claims {
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", c.ID, c.Text, c.Category)
	}

	b.WriteString("\nEvidence:\n")
	for i, ev := range req.Evidence {
		if i >= 20 {
			break
		}
		fmt.Fprintf(&b, "- %s supports %s: %s (%s, %s source, relevance %.2f)\n",
			ev.URL, ev.ClaimRef, ev.Title, ev.EvidenceType, ev.SourceTier, ev.RelevanceScore)
	}

	b.WriteString("\nWrite two or three plain sentences.")
	return b.String()
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "(No evidence URLs available)"
	}
	var b strings.Builder
	for i, u := range urls {
		if i >= 20 {
			fmt.Fprintf(&b, "\n... and %d more URLs", len(urls)-20)
			break
		}
		fmt.Fprintf(&b, "\n- %s", u)
	}
	return b.String()
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)\]>"]+`)

// extractURLs extracts the distinct URLs cited in text
func extractURLs(text string) []string {
	seen := make(map[string]bool)
	var unique []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?'")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}

// verifyCitations returns the cited URLs, failing when strict and any of
// them is not allowed
func verifyCitations(summary string, allowed []string, strict bool) ([]string, error) {
	cited := extractURLs(summary)
	if !strict {
		return cited, nil
	}

	allow := make(map[string]bool, len(allowed))
	for _, u := range allowed {
		allow[strings.TrimRight(u, "/")] = true
	}
	for _, u := range cited {
		if !allow[strings.TrimRight(u, "/")] {
			return nil, fmt.Errorf("%w: %s", ErrCitationLeak, u)
		}
	}
	return cited, nil
}

// promptFor returns the request's prompt or the default one
func promptFor(req SummarizeRequest) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return BuildPrompt(req)
}

// maxTokensFor resolves the response length limit
func maxTokensFor(req SummarizeRequest, cfg Config) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return 400
}
