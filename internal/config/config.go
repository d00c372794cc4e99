package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Project struct {
		Root     string   `yaml:"root"`
		Excludes []string `yaml:"excludes"` // doublestar globs relative to root
	} `yaml:"project"`
	Analysis struct {
		CacheSize            int    `yaml:"cache_size"`
		Deep                 bool   `yaml:"deep"`
		UsageFrequency       bool   `yaml:"usage_frequency"`
		DocstringPlaceholder string `yaml:"docstring_placeholder"`
	} `yaml:"analysis"`
	AI struct {
		Provider string `yaml:"provider"` // openai | gemini
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"`
	} `yaml:"ai"`
	Git struct {
		RepoPath string `yaml:"repo_path"`
		Branch   string `yaml:"branch"`
		Tag      string `yaml:"tag"`
		Commit   string `yaml:"commit"`
	} `yaml:"git"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	// Categories maps a request category key to the text put in the prompt.
	Categories map[string]string `yaml:"categories"`
}

// DefaultCategories are used when the configuration names none.
var DefaultCategories = map[string]string{
	"bug_fix":       "Identify the defect, fix it and explain the root cause.",
	"refactor":      "Restructure the code for readability and maintainability without changing behavior.",
	"documentation": "Add or improve docstrings and comments.",
	"testing":       "Write unit tests covering the function's behavior and edge cases.",
	"performance":   "Improve runtime and memory efficiency.",
	"security":      "Find and fix security weaknesses such as injection or unsafe input handling.",
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Project.Root = "."
	cfg.Analysis.CacheSize = 256
	cfg.Analysis.UsageFrequency = true
	cfg.Analysis.DocstringPlaceholder = "No docstring provided."
	cfg.AI.Provider = "openai"
	cfg.Server.Addr = ":8000"
	cfg.Storage.DBPath = "pyctx.db"
	cfg.Logging.Level = "info"
	cfg.Categories = make(map[string]string, len(DefaultCategories))
	for k, v := range DefaultCategories {
		cfg.Categories[k] = v
	}
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config over the defaults
	cfg := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			// configured categories replace the defaults instead of merging
			cfg.Categories = nil
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = Default().Categories
	}

	// 3. Override with Environment Variables if present
	applyEnv(cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&cfg.Project.Root, "PYCTX_PROJECT_ROOT", "PROJECT_ROOT")
	set(&cfg.AI.APIKey, "PYCTX_API_KEY", "OPENAI_API_KEY")
	set(&cfg.AI.Provider, "PYCTX_AI_PROVIDER")
	set(&cfg.AI.BaseURL, "OPENAI_API_URL")
	set(&cfg.Git.RepoPath, "REPO_PATH")
	set(&cfg.Git.Branch, "BRANCH_NAME")
	set(&cfg.Git.Tag, "TAG_NAME")
	set(&cfg.Git.Commit, "COMMIT_HASH")
	set(&cfg.Storage.DBPath, "PYCTX_DB")
}

// CategoryKeys returns the configured category keys in sorted order.
func (c *Config) CategoryKeys() []string {
	keys := make([]string, 0, len(c.Categories))
	for k := range c.Categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SlogLevel maps logging.level to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
