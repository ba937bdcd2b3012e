package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/PanHywel/TidyMark-sub000/internal/domain"
)

const (
	configPathEnv   = "TIDYMARK_CONFIG"
	databasePathEnv = "TIDYMARK_DB"
	aiAPIKeyEnv     = "TIDYMARK_AI_API_KEY"
	aiModelEnv      = "TIDYMARK_AI_MODEL"
	aiProviderEnv   = "TIDYMARK_AI_PROVIDER"
	aiURLEnv        = "TIDYMARK_AI_URL"
	aiEnabledEnv    = "TIDYMARK_AI_ENABLED"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Organize OrganizeConfig `yaml:"organize"`
	Rules    []domain.Rule  `yaml:"rules"`
}

// LoggingConfig selects the console log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig locates the SQLite file backing bookmarks and settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AIConfig defines how to contact the chat-completion endpoint.
type AIConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Provider    string `yaml:"provider"`
	APIKey      string `yaml:"apiKey"`
	APIURL      string `yaml:"apiUrl"`
	Model       string `yaml:"model"`
	MaxTokens   int    `yaml:"maxTokens"`
	BatchSize   int    `yaml:"batchSize"`
	Concurrency int    `yaml:"concurrency"`
	Language    string `yaml:"language"`
}

// OrganizeConfig controls where category folders are created.
type OrganizeConfig struct {
	TargetParentID string `yaml:"targetParentId"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(aiAPIKeyEnv); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv(aiModelEnv); v != "" {
		c.AI.Model = v
	}
	if v := os.Getenv(aiProviderEnv); v != "" {
		c.AI.Provider = v
	}
	if v := os.Getenv(aiURLEnv); v != "" {
		c.AI.APIURL = v
	}
	if v := os.Getenv(aiEnabledEnv); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.AI.Enabled = enabled
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}

	if override.AI.Provider != "" {
		base.AI.Provider = override.AI.Provider
	}
	if override.AI.APIKey != "" {
		base.AI.APIKey = override.AI.APIKey
	}
	if override.AI.APIURL != "" {
		base.AI.APIURL = override.AI.APIURL
	}
	if override.AI.Model != "" {
		base.AI.Model = override.AI.Model
	}
	if override.AI.MaxTokens > 0 {
		base.AI.MaxTokens = override.AI.MaxTokens
	}
	if override.AI.BatchSize > 0 {
		base.AI.BatchSize = override.AI.BatchSize
	}
	if override.AI.Concurrency > 0 {
		base.AI.Concurrency = override.AI.Concurrency
	}
	if override.AI.Language != "" {
		base.AI.Language = override.AI.Language
	}
	if override.AI.Enabled {
		base.AI.Enabled = true
	}

	if override.Organize.TargetParentID != "" {
		base.Organize.TargetParentID = override.Organize.TargetParentID
	}

	if len(override.Rules) > 0 {
		base.Rules = override.Rules
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Path: defaultDatabasePath()},
		AI: AIConfig{
			Enabled:     false,
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   4096,
			BatchSize:   80,
			Concurrency: 4,
			Language:    "en",
		},
		Organize: OrganizeConfig{TargetParentID: "1"},
	}
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tidymark.db"
	}
	return filepath.Join(home, ".config", "tidymark", "tidymark.db")
}
