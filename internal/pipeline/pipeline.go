package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/evidex/internal/cache"
	"github.com/ppiankov/evidex/internal/extract"
	"github.com/ppiankov/evidex/internal/llm"
	"github.com/ppiankov/evidex/internal/metrics"
	"github.com/ppiankov/evidex/internal/model"
	"github.com/ppiankov/evidex/internal/query"
	"github.com/ppiankov/evidex/internal/registry"
	"github.com/ppiankov/evidex/internal/score"
	"github.com/ppiankov/evidex/internal/search"
	"github.com/ppiankov/evidex/internal/util"
	"github.com/ppiankov/evidex/internal/validate"
	"go.uber.org/zap"
)

// Summarizer writes an optional free-text summary of a candidate's evidence.
// *llm.Summarizer satisfies it.
type Summarizer interface {
	SummarizeEvidence(ctx context.Context, candidateID string, claims []model.Claim, evidence []model.EvidenceURL) (string, error)
}

// Pipeline discovers diverse evidence for batches of candidates
type Pipeline struct {
	extractor  *extract.ClaimExtractor
	lexicon    *extract.Lexicon
	generator  *query.Generator
	executor   *search.Executor
	scorer     *score.Scorer
	registry   *registry.Registry
	robots     *validate.RobotsChecker // Optional robots.txt gate (nil if disabled)
	summarizer Summarizer              // Optional LLM summarizer (nil if disabled)
	recorder   *metrics.Recorder
	logger     *zap.Logger
	config     *model.Config
}

// Options overrides collaborators the pipeline would otherwise build from
// its configuration
type Options struct {
	Provider   search.Provider // Replaces the provider named in search.provider
	Cache      cache.Cache     // Replaces the cache built from the cache section
	Registry   *registry.Registry
	Recorder   *metrics.Recorder
	Summarizer Summarizer
	Lexicon    *extract.Lexicon
	Logger     *zap.Logger
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts Options) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lexicon := opts.Lexicon
	if lexicon == nil {
		lexicon = extract.DefaultLexicon()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.New(cfg.Orchestrator.GlobalRegistry, cfg.Orchestrator.RegistryRetention)
	}

	provider := opts.Provider
	if provider == nil {
		client := util.NewHTTPClient(cfg.Search.Timeout, cfg.Search.HTTPProxy, cfg.Search.HTTPSProxy, cfg.Search.NoProxy)
		p, err := search.NewProvider(cfg.Search, client)
		if err != nil {
			return nil, fmt.Errorf("search provider: %w", err)
		}
		provider = p
	}

	store := opts.Cache
	if store == nil {
		c, err := cache.New(cfg.Cache, logger)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		store = c
	}

	catalog := search.DefaultCatalog()
	if cfg.Search.FallbackCatalog != "" {
		c, err := search.LoadCatalog(cfg.Search.FallbackCatalog)
		if err != nil {
			return nil, fmt.Errorf("fallback catalog: %w", err)
		}
		catalog = c
	}

	executor := search.NewExecutor(cfg.Search, search.ExecutorOptions{
		Provider: provider,
		Catalog:  catalog,
		Results:  cache.NewResultCache(store, cfg.Cache.TTL),
		Observer: recorder,
		Logger:   logger,
	})

	var robots *validate.RobotsChecker
	if cfg.Robots.Enabled {
		client := util.NewHTTPClient(cfg.Robots.Timeout, cfg.Search.HTTPProxy, cfg.Search.HTTPSProxy, cfg.Search.NoProxy)
		robots = validate.NewRobotsChecker(cfg.Robots, cfg.Search.UserAgent, client, logger)
	}

	summarizer := opts.Summarizer
	if summarizer == nil && cfg.LLM.Provider != "" {
		s, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM, cfg.Search), logger)
		if err != nil {
			logger.Warn("LLM summaries disabled", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
		} else if s.IsEnabled() {
			summarizer = s
		}
	}

	return &Pipeline{
		extractor:  extract.NewClaimExtractor(lexicon),
		lexicon:    lexicon,
		generator:  query.NewGenerator(lexicon, cfg.Authority.MajorPlayers, cfg.Search.QueriesPerClaim),
		executor:   executor,
		scorer:     score.NewScorer(cfg.Scoring, validate.NewAuthorityClassifier(&cfg.Authority)),
		registry:   reg,
		robots:     robots,
		summarizer: summarizer,
		recorder:   recorder,
		logger:     logger,
		config:     cfg,
	}, nil
}

// Recorder returns the pipeline's metrics recorder
func (p *Pipeline) Recorder() *metrics.Recorder {
	return p.recorder
}

// Stats returns the engine counters accumulated so far
func (p *Pipeline) Stats() model.EngineStats {
	return p.recorder.Snapshot()
}

// ProviderName returns the live search provider's name, or "none"
func (p *Pipeline) ProviderName() string {
	return p.executor.ProviderName()
}

func (p *Pipeline) candidateTimeout() time.Duration {
	if d := p.config.Orchestrator.CandidateTimeout; d > 0 {
		return d
	}
	return 30 * time.Second
}

func (p *Pipeline) batchDeadline() time.Duration {
	if d := p.config.Orchestrator.BatchDeadline; d > 0 {
		return d
	}
	return 45 * time.Second
}

func (p *Pipeline) concurrency() int {
	if n := p.config.Orchestrator.Concurrency; n > 0 {
		return n
	}
	return 5
}

func (p *Pipeline) fanOut() int {
	if n := p.config.Search.FanOut; n > 0 {
		return n
	}
	return 3
}

// logFailure logs a degraded step with the fields needed for offline
// diagnosis
func (p *Pipeline) logFailure(f model.Failure) model.Failure {
	p.logger.Warn("evidence discovery degraded",
		zap.String("candidate_id", f.CandidateID),
		zap.String("claim", f.Claim),
		zap.String("query", f.Query),
		zap.String("kind", string(f.Kind)),
		zap.String("detail", f.Detail),
	)
	return f
}
