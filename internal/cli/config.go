package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/evidex/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// secretEnv lists keys whose defaults are empty, with the extra environment
// variables they are read from
var secretEnv = map[string][]string{
	"search.api_key":       {"EVIDEX_SEARCH_API_KEY", "BRAVE_API_KEY", "SERPER_API_KEY"},
	"search.base_url":      {"EVIDEX_SEARCH_BASE_URL"},
	"search.http_proxy":    {"EVIDEX_SEARCH_HTTP_PROXY"},
	"search.https_proxy":   {"EVIDEX_SEARCH_HTTPS_PROXY"},
	"search.no_proxy":      {"EVIDEX_SEARCH_NO_PROXY"},
	"cache.dir":            {"EVIDEX_CACHE_DIR"},
	"cache.redis_addr":     {"EVIDEX_CACHE_REDIS_ADDR"},
	"cache.redis_password": {"EVIDEX_CACHE_REDIS_PASSWORD"},
	"llm.api_key":          {"EVIDEX_LLM_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"},
	"llm.base_url":         {"EVIDEX_LLM_BASE_URL", "OLLAMA_BASE_URL"},
}

// configureViper registers defaults, the config file and EVIDEX_* environment
// variables. A missing default config file is not an error; a missing
// explicit one is.
func configureViper(v *viper.Viper, file string) error {
	defaults, err := defaultSettings()
	if err != nil {
		return err
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("EVIDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range secretEnv {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(filepath.Join(home, ".evidex"))
	v.SetConfigType("yaml")
	v.SetConfigName("config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// loadConfig builds the configuration from defaults, config file, environment
// and bound flags, then validates it
func loadConfig(v *viper.Viper) (*model.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// defaultSettings flattens the default configuration into dotted viper keys
func defaultSettings() (map[string]any, error) {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("unmarshal defaults: %w", err)
	}

	flat := make(map[string]any)
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, val := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := val.(map[string]any); ok {
				walk(key, child)
				continue
			}
			flat[key] = val
		}
	}
	walk("", tree)
	return flat, nil
}

// redacted returns a copy of cfg with secrets masked for display
func redacted(cfg model.Config) model.Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	cfg.Search.APIKey = mask(cfg.Search.APIKey)
	cfg.LLM.APIKey = mask(cfg.LLM.APIKey)
	cfg.Cache.RedisPassword = mask(cfg.Cache.RedisPassword)
	return cfg
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Evidex configuration",
	Long: `Manage Evidex configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (EVIDEX_*)
3. Config file (~/.evidex/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, config file, env vars and flags are merged. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(redacted(*cfg))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(yamlData)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.evidex/config.yaml with every available option.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configPath := filepath.Join(home, ".evidex", "config.yaml")
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nTo view the configuration:\n")
		fmt.Fprintf(out, "  evidex config show\n")
		return nil
	},
}

// writeDefaultConfig writes the default configuration with a short header.
// It refuses to overwrite an existing file.
func writeDefaultConfig(configPath string) (err error) {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'evidex config show' to view it, or delete it first to recreate", configPath)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Evidex Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Configuration hierarchy (highest to lowest priority):\n")
	b.WriteString("#   1. CLI flags\n")
	b.WriteString("#   2. Environment variables (EVIDEX_*, e.g. EVIDEX_SEARCH_PROVIDER)\n")
	b.WriteString("#   3. This config file\n")
	b.WriteString("#   4. Built-in defaults\n")
	b.WriteString("#\n")
	b.WriteString("# API keys are better kept in the environment:\n")
	b.WriteString("#   export EVIDEX_SEARCH_API_KEY=...\n")
	b.WriteString("#   export OPENAI_API_KEY=sk-...\n\n")
	b.Write(yamlData)

	if err := os.WriteFile(configPath, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
