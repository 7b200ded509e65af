package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	v := viper.New()
	if err := configureViper(v, ""); err != nil {
		t.Fatalf("configureViper failed: %v", err)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Search.Timeout != 5*time.Second || cfg.Orchestrator.BatchDeadline != 45*time.Second {
		t.Errorf("Expected default durations, got %v and %v", cfg.Search.Timeout, cfg.Orchestrator.BatchDeadline)
	}
	if cfg.Scoring.RelevanceFloor != 0.3 || !cfg.Diversity.EnsureUniqueness {
		t.Errorf("Unexpected defaults: %+v", cfg.Scoring)
	}
	if len(cfg.Authority.AuthoritativeDomains) == 0 {
		t.Error("Expected default authority lists")
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `scoring:
  relevance_floor: 0.4
orchestrator:
  batch_deadline: 20s
diversity:
  max_evidence_per_candidate: 3
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EVIDEX_SEARCH_PROVIDER", "brave")
	t.Setenv("EVIDEX_SEARCH_API_KEY", "test-key")
	t.Setenv("EVIDEX_ORCHESTRATOR_CONCURRENCY", "8")

	v := viper.New()
	if err := configureViper(v, path); err != nil {
		t.Fatalf("configureViper failed: %v", err)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Scoring.RelevanceFloor != 0.4 {
		t.Errorf("Expected floor from file, got %v", cfg.Scoring.RelevanceFloor)
	}
	if cfg.Orchestrator.BatchDeadline != 20*time.Second {
		t.Errorf("Expected deadline from file, got %v", cfg.Orchestrator.BatchDeadline)
	}
	if cfg.Diversity.MaxEvidencePerCandidate != 3 || cfg.Diversity.MaxSameDomainPerCandidate != 2 {
		t.Errorf("Expected file value merged with defaults, got %+v", cfg.Diversity)
	}
	if cfg.Search.Provider != "brave" || cfg.Search.APIKey != "test-key" {
		t.Errorf("Expected provider from env, got %q %q", cfg.Search.Provider, cfg.Search.APIKey)
	}
	if cfg.Orchestrator.Concurrency != 8 {
		t.Errorf("Expected concurrency from env, got %d", cfg.Orchestrator.Concurrency)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("EVIDEX_SEARCH_PROVIDER", "serper")
	t.Setenv("EVIDEX_SEARCH_API_KEY", "")
	t.Setenv("SERPER_API_KEY", "")
	t.Setenv("BRAVE_API_KEY", "")

	v := viper.New()
	if err := configureViper(v, ""); err != nil {
		t.Fatalf("configureViper failed: %v", err)
	}
	if _, err := loadConfig(v); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Errorf("Expected missing api key error, got %v", err)
	}
}

func TestConfigureViper_MissingExplicitFile(t *testing.T) {
	v := viper.New()
	if err := configureViper(v, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing explicit config file")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".evidex", "config.yaml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}

	v := viper.New()
	if err := configureViper(v, path); err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if _, err := loadConfig(v); err != nil {
		t.Errorf("written config is invalid: %v", err)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("Expected error when the file already exists")
	}
}

func TestRedacted(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	v := viper.New()
	if err := configureViper(v, ""); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	cfg.LLM.APIKey = "sk-secret"

	if got := redacted(*cfg); got.LLM.APIKey != "********" || got.Search.APIKey != "" {
		t.Errorf("Unexpected redaction: %q %q", got.LLM.APIKey, got.Search.APIKey)
	}
	if cfg.LLM.APIKey != "sk-secret" {
		t.Error("Expected the original config untouched")
	}
}
