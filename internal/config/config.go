// ABOUTME: Configuration loading and parsing for gaia-gateway
// ABOUTME: Supports YAML files with environment variable expansion

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gaia-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	RAG       RAGConfig       `yaml:"rag"`
	WebSearch WebSearchConfig `yaml:"websearch"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig holds provider definitions and turn policy
type LLMConfig struct {
	Providers    []ProviderConfig `yaml:"providers"`
	BackupChain  []string         `yaml:"backup_chain"`
	SystemPrompt string           `yaml:"system_prompt"`
	HistoryCap   int              `yaml:"history_cap"`
}

// ProviderConfig describes one LLM backend
type ProviderConfig struct {
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	// Rates are stored per million tokens, matching the rate table.
	InputCostPerMTok  float64 `yaml:"input_cost_per_mtok"`
	OutputCostPerMTok float64 `yaml:"output_cost_per_mtok"`
}

// RAGConfig holds retrieval service configuration
type RAGConfig struct {
	Enabled        bool    `yaml:"enabled"`
	SearchURL      string  `yaml:"search_url"`
	CollectionName string  `yaml:"collection_name"`
	SearchLimit    int     `yaml:"search_limit"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// WebSearchConfig holds web search configuration
type WebSearchConfig struct {
	Enabled    bool   `yaml:"enabled"`
	MaxResults int    `yaml:"max_results"`
	Region     string `yaml:"region"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values the file may omit.
func (c *Config) applyDefaults() {
	if c.LLM.HistoryCap <= 0 {
		c.LLM.HistoryCap = 50
	}
	if c.WebSearch.MaxResults <= 0 {
		c.WebSearch.MaxResults = 5
	}
	if c.RAG.SearchLimit <= 0 {
		c.RAG.SearchLimit = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.LLM.Providers) == 0 {
		return fmt.Errorf("llm.providers must list at least one provider")
	}

	known := make(map[string]bool, len(c.LLM.Providers))
	for i, p := range c.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("llm.providers[%d].name is required", i)
		}
		if p.Model == "" {
			return fmt.Errorf("llm.providers[%d].model is required (provider %q)", i, p.Name)
		}
		if known[p.Name] {
			return fmt.Errorf("llm.providers: duplicate provider %q", p.Name)
		}
		known[p.Name] = true
	}

	for _, name := range c.LLM.BackupChain {
		if !known[name] {
			return fmt.Errorf("llm.backup_chain references unknown provider %q", name)
		}
	}

	if c.RAG.Enabled && c.RAG.SearchURL == "" {
		return fmt.Errorf("rag.search_url is required when rag is enabled")
	}

	return nil
}
