package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/evidex/internal/model"
	"github.com/ppiankov/evidex/internal/pipeline"
	"github.com/ppiankov/evidex/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	outPath     string
	withRecords bool
	prompt      string
	noCache     bool
	timeout     time.Duration
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover <batch.json|candidates.jsonl>",
	Short: "Discover diverse evidence for a batch of candidates",
	Long: `Discover reads a batch of candidates with their match explanations and:
- Extracts verifiable activity claims from each explanation
- Generates search queries that never contain the candidate's name
- Searches the configured provider, falling back to a curated catalog
- Scores evidence and reserves each URL for one candidate only
- Writes the batch result as JSON

Input is a .json BatchRequest or a .jsonl file with one candidate per line.

Example:
  evidex discover batch.json
  evidex discover candidates.jsonl --prompt "CRM buyers" --out result.json
  evidex discover batch.json --records --provider brave`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVar(&outPath, "out", "", "output JSON path (default: stdout)")
	discoverCmd.Flags().BoolVar(&withRecords, "records", false, "output input records with evidence fields attached")
	discoverCmd.Flags().StringVar(&prompt, "prompt", "", "original search prompt, overrides the one in the batch file")
	discoverCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the query result cache")
	discoverCmd.Flags().DurationVar(&timeout, "timeout", 0, "overall timeout (default: orchestrator.batch_deadline)")
	discoverCmd.Flags().String("provider", "", "search provider (brave, serper, duckduckgo, none)")

	_ = viper.BindPFlag("search.provider", discoverCmd.Flags().Lookup("provider"))
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}

	req, err := worker.ReadBatchRequest(args[0])
	if err != nil {
		return fmt.Errorf("read batch: %w", err)
	}
	if prompt != "" {
		req.Prompt = prompt
	}

	p, err := pipeline.NewPipeline(cfg, pipeline.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result := p.ProcessBatch(ctx, *req)

	var payload any = result
	if withRecords {
		payload = result.Records(req.Candidates)
	}

	if err := writeJSON(cmd.OutOrStdout(), outPath, payload); err != nil {
		return err
	}
	printSummary(os.Stderr, result, p.ProviderName())
	return nil
}

// writeJSON writes v as indented JSON to path, or to w when path is empty
func writeJSON(w io.Writer, path string, v any) (err error) {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close output: %w", closeErr)
			}
		}()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// printSummary prints a human-readable batch summary
func printSummary(w io.Writer, result model.BatchResult, provider string) {
	withEvidence, failures := 0, 0
	for _, c := range result.Candidates {
		if len(c.EvidenceURLs) > 0 {
			withEvidence++
		}
		failures += len(c.Failures)
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Batch Complete\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Batch:          %s\n", result.BatchID)
	fmt.Fprintf(w, "  Provider:       %s\n", provider)
	fmt.Fprintf(w, "  Candidates:     %d (%d with evidence)\n", len(result.Candidates), withEvidence)
	fmt.Fprintf(w, "  Evidence URLs:  %d across %d domains\n", result.Metrics.TotalEvidence, result.Metrics.UniqueDomainCount)
	fmt.Fprintf(w, "  Diversity:      %.2f\n", result.Metrics.DiversityIndex)
	fmt.Fprintf(w, "  Relaxed:        %d\n", result.RelaxedCandidates)
	fmt.Fprintf(w, "  Failures:       %d\n", failures)
	fmt.Fprintf(w, "  Timed out:      %v\n", result.TimedOut)
	fmt.Fprintf(w, "  Duration:       %.2fs\n", result.Duration)
	fmt.Fprintf(w, "\n")
}
