package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Config is the complete engine configuration
type Config struct {
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Scoring      ScoringConfig      `yaml:"scoring" mapstructure:"scoring"`
	Diversity    DiversityConfig    `yaml:"diversity" mapstructure:"diversity"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	Authority    AuthorityConfig    `yaml:"authority" mapstructure:"authority"`
	Robots       RobotsConfig       `yaml:"robots" mapstructure:"robots"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
}

// SearchConfig controls the external search capability
type SearchConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"` // brave, serper, duckduckgo, none
	APIKey            string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	BaseBackoff       time.Duration `yaml:"base_backoff" mapstructure:"base_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"` // Upper bound for one wait, Retry-After included
	ResultsPerQuery   int           `yaml:"results_per_query" mapstructure:"results_per_query"`
	QueriesPerClaim   int           `yaml:"queries_per_claim" mapstructure:"queries_per_claim"`
	FanOut            int           `yaml:"fan_out" mapstructure:"fan_out"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	FallbackCatalog   string        `yaml:"fallback_catalog,omitempty" mapstructure:"fallback_catalog"` // Optional YAML file extending the built-in catalog
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the query result cache
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL             time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	MaxEntries      int           `yaml:"max_entries" mapstructure:"max_entries"`
	Dir             string        `yaml:"dir,omitempty" mapstructure:"dir"` // Disk layer, disabled when empty
	RedisAddr       string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB         int           `yaml:"redis_db" mapstructure:"redis_db"`
}

// ScoringConfig holds the relevance weights and floors
type ScoringConfig struct {
	RelevanceFloor      float64 `yaml:"relevance_floor" mapstructure:"relevance_floor"`
	RelaxedFloor        float64 `yaml:"relaxed_floor" mapstructure:"relaxed_floor"`
	OfficialWeight      float64 `yaml:"official_weight" mapstructure:"official_weight"`
	AuthoritativeWeight float64 `yaml:"authoritative_weight" mapstructure:"authoritative_weight"`
	ReputableWeight     float64 `yaml:"reputable_weight" mapstructure:"reputable_weight"`
	NicheWeight         float64 `yaml:"niche_weight" mapstructure:"niche_weight"`
	UnknownWeight       float64 `yaml:"unknown_weight" mapstructure:"unknown_weight"`
	PageTypeWeight      float64 `yaml:"page_type_weight" mapstructure:"page_type_weight"`
	ContentWeight       float64 `yaml:"content_weight" mapstructure:"content_weight"`
}

// DiversityConfig is passed once per batch and read-only during processing
type DiversityConfig struct {
	EnsureUniqueness          bool    `json:"ensure_uniqueness" yaml:"ensure_uniqueness" mapstructure:"ensure_uniqueness"`
	MaxSameDomainPerCandidate int     `json:"max_same_domain_per_candidate" yaml:"max_same_domain_per_candidate" mapstructure:"max_same_domain_per_candidate"`
	PrioritizeAlternatives    bool    `json:"prioritize_alternatives" yaml:"prioritize_alternatives" mapstructure:"prioritize_alternatives"`
	DiversityWeight           float64 `json:"diversity_weight" yaml:"diversity_weight" mapstructure:"diversity_weight"`
	MinEvidencePerCandidate   int     `json:"min_evidence_per_candidate" yaml:"min_evidence_per_candidate" mapstructure:"min_evidence_per_candidate"`
	MaxEvidencePerCandidate   int     `json:"max_evidence_per_candidate" yaml:"max_evidence_per_candidate" mapstructure:"max_evidence_per_candidate"`
}

// UnmarshalJSON fills fields missing from the payload with defaults
func (d *DiversityConfig) UnmarshalJSON(data []byte) error {
	type plain DiversityConfig
	p := plain(DefaultDiversityConfig())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = DiversityConfig(p)
	return nil
}

// Normalize clamps values into their valid ranges
func (d DiversityConfig) Normalize() DiversityConfig {
	if d.MaxSameDomainPerCandidate < 1 {
		d.MaxSameDomainPerCandidate = 1
	}
	if d.DiversityWeight < 0 {
		d.DiversityWeight = 0
	}
	if d.DiversityWeight > 1 {
		d.DiversityWeight = 1
	}
	if d.MinEvidencePerCandidate < 0 {
		d.MinEvidencePerCandidate = 0
	}
	if d.MaxEvidencePerCandidate < 1 {
		d.MaxEvidencePerCandidate = 5
	}
	if d.MaxEvidencePerCandidate < d.MinEvidencePerCandidate {
		d.MaxEvidencePerCandidate = d.MinEvidencePerCandidate
	}
	return d
}

// OrchestratorConfig controls batch scheduling
type OrchestratorConfig struct {
	Concurrency       int           `yaml:"concurrency" mapstructure:"concurrency"`
	CandidateTimeout  time.Duration `yaml:"candidate_timeout" mapstructure:"candidate_timeout"`
	BatchDeadline     time.Duration `yaml:"batch_deadline" mapstructure:"batch_deadline"`
	RelaxationTrigger float64       `yaml:"relaxation_trigger" mapstructure:"relaxation_trigger"` // Fraction of empty candidates that triggers relaxation
	GlobalRegistry    bool          `yaml:"global_registry" mapstructure:"global_registry"`       // Keep reservations across batches
	RegistryRetention time.Duration `yaml:"registry_retention" mapstructure:"registry_retention"`
}

// AuthorityConfig holds domain lists for source tier classification
type AuthorityConfig struct {
	AuthoritativeDomains []string          `yaml:"authoritative_domains" mapstructure:"authoritative_domains"`
	ReputableDomains     []string          `yaml:"reputable_domains" mapstructure:"reputable_domains"`
	NicheDomains         []string          `yaml:"niche_domains" mapstructure:"niche_domains"`
	MajorPlayers         []string          `yaml:"major_players" mapstructure:"major_players"` // Excluded when alternatives are prioritized
	DomainMap            map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
	PathPatterns         []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
}

// PathPattern maps a URL path regex to a tier
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// RobotsConfig controls the optional robots.txt gate
type RobotsConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LLMConfig controls optional evidence summaries
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
}

// ServerConfig controls the stats HTTP surface
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// OutputConfig controls CLI output
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultDiversityConfig returns the per-batch defaults
func DefaultDiversityConfig() DiversityConfig {
	return DiversityConfig{
		EnsureUniqueness:          true,
		MaxSameDomainPerCandidate: 2,
		PrioritizeAlternatives:    false,
		DiversityWeight:           0.3,
		MinEvidencePerCandidate:   2,
		MaxEvidencePerCandidate:   5,
	}
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			Provider:          "none",
			UserAgent:         "Evidex/0.1 (+https://github.com/ppiankov/evidex)",
			Timeout:           5 * time.Second,
			MaxRetries:        2,
			BaseBackoff:       500 * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			ResultsPerQuery:   8,
			QueriesPerClaim:   3,
			FanOut:            3,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             time.Hour,
			CleanupInterval: 10 * time.Minute,
			MaxEntries:      1000,
		},
		Scoring: ScoringConfig{
			RelevanceFloor:      0.3,
			RelaxedFloor:        0.15,
			OfficialWeight:      0.4,
			AuthoritativeWeight: 0.3,
			ReputableWeight:     0.2,
			NicheWeight:         0.2,
			UnknownWeight:       0.0,
			PageTypeWeight:      0.3,
			ContentWeight:       0.3,
		},
		Diversity: DefaultDiversityConfig(),
		Orchestrator: OrchestratorConfig{
			Concurrency:       5,
			CandidateTimeout:  30 * time.Second,
			BatchDeadline:     45 * time.Second,
			RelaxationTrigger: 0.2,
			RegistryRetention: 24 * time.Hour,
		},
		Authority: AuthorityConfig{
			AuthoritativeDomains: []string{
				"g2.com", "capterra.com", "trustradius.com", "gartner.com", "forrester.com",
				"idc.com", "getapp.com", "softwareadvice.com", "statista.com", "nar.realtor",
				"sec.gov", "census.gov",
			},
			ReputableDomains: []string{
				"forbes.com", "techcrunch.com", "reuters.com", "bloomberg.com", "wsj.com",
				"cnbc.com", "zdnet.com", "techradar.com", "pcmag.com", "venturebeat.com",
				"businessinsider.com", "theverge.com", "hbr.org", "zillow.com", "realtor.com",
				"redfin.com", "loopnet.com",
			},
			NicheDomains: []string{
				"selecthub.com", "crm.org", "softwarereviews.com", "saasworthy.com",
				"featuredcustomers.com", "crozdesk.com", "goodfirms.co", "housingwire.com",
				"inman.com", "nocrm.io",
			},
			MajorPlayers: []string{
				"salesforce.com", "hubspot.com", "microsoft.com", "oracle.com", "sap.com",
				"zillow.com", "g2.com",
			},
		},
		Robots: RobotsConfig{
			Enabled: false,
			Timeout: 5 * time.Second,
			TTL:     6 * time.Hour,
		},
		LLM: LLMConfig{
			Timeout:        30,
			MaxTokens:      400,
			StrictEvidence: true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	var errs []error
	switch c.Search.Provider {
	case "brave", "serper":
		if c.Search.APIKey == "" {
			errs = append(errs, fmt.Errorf("search.api_key is required for provider %q", c.Search.Provider))
		}
	case "duckduckgo", "none", "":
	default:
		errs = append(errs, fmt.Errorf("unknown search provider %q (supported: brave, serper, duckduckgo, none)", c.Search.Provider))
	}
	if c.Search.Timeout <= 0 {
		errs = append(errs, errors.New("search.timeout must be positive"))
	}
	if c.Search.MaxRetries < 0 {
		errs = append(errs, errors.New("search.max_retries must not be negative"))
	}
	if c.Scoring.RelevanceFloor < 0 || c.Scoring.RelevanceFloor > 1 {
		errs = append(errs, errors.New("scoring.relevance_floor must be within [0,1]"))
	}
	if c.Scoring.RelaxedFloor > c.Scoring.RelevanceFloor {
		errs = append(errs, errors.New("scoring.relaxed_floor must not exceed scoring.relevance_floor"))
	}
	if c.Orchestrator.Concurrency < 1 {
		errs = append(errs, errors.New("orchestrator.concurrency must be at least 1"))
	}
	if c.Orchestrator.RelaxationTrigger < 0 || c.Orchestrator.RelaxationTrigger > 1 {
		errs = append(errs, errors.New("orchestrator.relaxation_trigger must be within [0,1]"))
	}
	return errors.Join(errs...)
}
