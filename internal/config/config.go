// Package config loads application configuration.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config aggregates all application configuration.
// Priority: environment variables > config file > defaults.
type Config struct {
	Gemini GeminiConfig `yaml:"gemini"`
	Audit  AuditConfig  `yaml:"audit"`
}

// GeminiConfig configures the remote review service. An absent API key
// is not a load error; it surfaces as a classified failure when a
// review is attempted.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key" env:"GEMINI_API_KEY"`
	Model   string `yaml:"model" env:"GEMINI_MODEL" env-default:"gemini-2.0-flash"`
	BaseURL string `yaml:"base_url" env:"GEMINI_BASE_URL" env-default:"https://generativelanguage.googleapis.com/v1beta"`
}

// AuditConfig configures the append-only request log.
type AuditConfig struct {
	LogFile string `yaml:"log_file" env:"AUDIT_LOG_FILE" env-default:"mcp-server.log"`
}

// Load reads configuration from path (YAML, optional) and the
// environment. A missing file is not an error; environment variables
// and defaults still apply.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			return &cfg, nil
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	return &cfg, nil
}
