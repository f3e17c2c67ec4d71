package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/docslot/internal/normalize"
)

// Generator backends.
const (
	GeneratorStatic = "static"
	GeneratorClaude = "claude"
	GeneratorGemini = "gemini"
)

type Config struct {
	Port string

	// Auth
	DocslotAPIKey string

	// Collaborators
	Generator       string
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiModel     string
	MappingRules    string

	// Pipeline
	MergeRuns         normalize.MergeMode
	PromptTokenBudget int

	// Worker pool
	WorkerCount           int
	MaxQueueSize          int
	MaxConcurrentGenerate int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration
	DBPath string

	Debug bool

	mergeErr error
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		DocslotAPIKey: os.Getenv("DOCSLOT_API_KEY"),

		Generator:       envOr("GENERATOR", GeneratorStatic),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     envOr("GEMINI_MODEL", "gemini-2.5-flash"),
		MappingRules:    os.Getenv("MAPPING_RULES"),

		PromptTokenBudget: envInt("PROMPT_TOKEN_BUDGET", 2000),

		WorkerCount:           envInt("WORKER_COUNT", 4),
		MaxQueueSize:          envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentGenerate: envInt("MAX_CONCURRENT_GENERATE", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),
		DBPath: envOr("DB_PATH", "docslot.db"),

		Debug: envBool("LOG_DEBUG", false),
	}
	cfg.MergeRuns, cfg.mergeErr = normalize.ParseMergeMode(os.Getenv("MERGE_RUNS"))

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentGenerate <= 0 {
		cfg.MaxConcurrentGenerate = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.PromptTokenBudget <= 0 {
		cfg.PromptTokenBudget = 2000
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate reports the first setting that makes the collaborators unusable.
func (c Config) Validate() error {
	if c.mergeErr != nil {
		return fmt.Errorf("MERGE_RUNS: %w", c.mergeErr)
	}
	switch c.Generator {
	case GeneratorStatic:
	case GeneratorClaude:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for GENERATOR=claude")
		}
	case GeneratorGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for GENERATOR=gemini")
		}
	default:
		return fmt.Errorf("GENERATOR must be one of static, claude, gemini (got %q)", c.Generator)
	}
	return nil
}

// SetMergeRuns overrides MERGE_RUNS, clearing any error from the
// environment value.
func (c *Config) SetMergeRuns(s string) error {
	m, err := normalize.ParseMergeMode(s)
	if err != nil {
		return err
	}
	c.MergeRuns, c.mergeErr = m, nil
	return nil
}

// ValidateServer additionally requires the settings the HTTP service needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DocslotAPIKey == "" {
		return fmt.Errorf("DOCSLOT_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
