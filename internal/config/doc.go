// Package config handles configuration loading for gaia-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	llm:
//	  providers:
//	    - name: "claude"
//	      api_key_env: "ANTHROPIC_API_KEY"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # WebSocket chat and REST API
//
// Database:
//
//	database:
//	  path: "/var/lib/gaia/gateway.db"
//
// Providers and turn policy:
//
//	llm:
//	  providers:
//	    - name: "claude"
//	      model: "claude-sonnet-4-20250514"
//	      api_key_env: "ANTHROPIC_API_KEY"
//	      temperature: 0.7
//	      max_tokens: 4096
//	      input_cost_per_mtok: 3.0
//	      output_cost_per_mtok: 15.0
//	  backup_chain: ["claude", "openai", "gemini"]
//	  system_prompt: "You are a capable assistant."
//	  history_cap: 50
//
// Retrieval:
//
//	rag:
//	  enabled: true
//	  search_url: "http://localhost:9000"
//	  collection_name: "documents"
//	  search_limit: 5
//	  score_threshold: 0.5
//
// Web search:
//
//	websearch:
//	  enabled: true
//	  max_results: 5
//	  region: "kr-kr"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Server address and database path presence
//   - At least one provider with a name and model
//   - Backup chain entries reference defined providers
//   - Retrieval URL presence when retrieval is enabled
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/gaia/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
