package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the ReviewLens server.
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	AI     AIConfig
	Limits LimitsConfig
	Cache  CacheConfig
	Fetch  FetchConfig
	Auth   AuthConfig
	Log    LogConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	MaxConcurrency   int
	Ollama           OllamaConfig
	VLLM             VLLMConfig
	OpenAI           OpenAIConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// LimitsConfig bounds the cost of a single job.
type LimitsConfig struct {
	MaxTokenBudgetPerJob int
	MaxReviewCount       int
	DefaultReviewLimit   int
	BatchSize            int
	SupportedLocales     []string
}

type CacheConfig struct {
	ResultTTL time.Duration
	ReviewTTL time.Duration
}

type FetchConfig struct {
	Timeout     time.Duration
	RatePerSec  float64
	MaxRetries  int
	MaxPages    int
	AppStoreURL string
}

// AuthConfig enables bearer API key auth when APIKeyHashes is non-empty.
type AuthConfig struct {
	APIKeyHashes      []string
	RequestsPerMinute int
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var validProviders = map[string]bool{
	"ollama": true,
	"vllm":   true,
	"openai": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Variables from a .env file (REVIEWLENS_ENV_FILE, default ".env") are loaded first
// without overriding the real environment.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	envFile := envString("REVIEWLENS_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("REVIEWLENS_PORT", 8000),
			Env:  envString("REVIEWLENS_ENV", "development"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "openai"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second),
			MaxRetries:       envInt("AI_MAX_RETRIES", 3),
			RetryBaseDelay:   envDuration("AI_RETRY_BASE_DELAY", 2*time.Second),
			RetryMaxDelay:    envDuration("AI_RETRY_MAX_DELAY", 10*time.Second),
			MaxConcurrency:   envInt("AI_MAX_CONCURRENCY", 4),
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8001/v1"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4-turbo-preview"),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
			},
		},
		Limits: LimitsConfig{
			MaxTokenBudgetPerJob: envInt("MAX_TOKEN_BUDGET_PER_JOB", 50000),
			MaxReviewCount:       envInt("MAX_REVIEW_COUNT", 1000),
			DefaultReviewLimit:   envInt("DEFAULT_REVIEW_LIMIT", 500),
			BatchSize:            envInt("ANALYSIS_BATCH_SIZE", 50),
			SupportedLocales:     envList("SUPPORTED_LOCALES", []string{"en-US", "en-GB"}),
		},
		Cache: CacheConfig{
			ResultTTL: envDurationSecs("RESULT_CACHE_TTL", 24*time.Hour),
			ReviewTTL: envDurationSecs("REVIEW_CACHE_TTL", time.Hour),
		},
		Fetch: FetchConfig{
			Timeout:     envDuration("FETCH_TIMEOUT", 30*time.Second),
			RatePerSec:  envFloat("FETCH_RATE_PER_SEC", 2),
			MaxRetries:  envInt("FETCH_MAX_RETRIES", 3),
			MaxPages:    envInt("FETCH_MAX_PAGES", 10),
			AppStoreURL: envString("APPSTORE_RSS_BASE_URL", "https://itunes.apple.com"),
		},
		Auth: AuthConfig{
			APIKeyHashes:      envList("API_KEY_HASHES", nil),
			RequestsPerMinute: envInt("RATE_LIMIT_PER_MIN", 60),
		},
		Log: LogConfig{
			Level:      envString("LOG_LEVEL", "info"),
			Format:     envString("LOG_FORMAT", "json"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 28),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, vllm, openai; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "vllm" && c.AI.VLLM.Model == "" {
		return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
	}
	if c.AI.MaxRetries < 1 {
		return fmt.Errorf("AI_MAX_RETRIES must be at least 1, got %d", c.AI.MaxRetries)
	}

	if c.Limits.MaxTokenBudgetPerJob <= 0 {
		return fmt.Errorf("MAX_TOKEN_BUDGET_PER_JOB must be positive, got %d", c.Limits.MaxTokenBudgetPerJob)
	}
	if c.Limits.MaxReviewCount <= 0 {
		return fmt.Errorf("MAX_REVIEW_COUNT must be positive, got %d", c.Limits.MaxReviewCount)
	}
	if c.Limits.DefaultReviewLimit < 1 || c.Limits.DefaultReviewLimit > c.Limits.MaxReviewCount {
		return fmt.Errorf("DEFAULT_REVIEW_LIMIT must be between 1 and %d, got %d", c.Limits.MaxReviewCount, c.Limits.DefaultReviewLimit)
	}
	if c.Limits.BatchSize <= 0 {
		return fmt.Errorf("ANALYSIS_BATCH_SIZE must be positive, got %d", c.Limits.BatchSize)
	}
	if len(c.Limits.SupportedLocales) == 0 {
		return fmt.Errorf("SUPPORTED_LOCALES must list at least one locale")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

// envList splits a comma separated value, dropping blanks.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// Model returns the model name of the selected provider.
func (c AIConfig) Model() string {
	switch c.Provider {
	case "ollama":
		return c.Ollama.Model
	case "vllm":
		return c.VLLM.Model
	}
	return c.OpenAI.Model
}
