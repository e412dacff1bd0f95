package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the service configuration file.
const ConfigPath = "config.yaml"

// Supported AI providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config is the full service configuration, loaded once at startup and
// passed explicitly to every component.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL    string `yaml:"databaseURL"`
	RedisAddr      string `yaml:"redisAddr"`
	RedisPassword  string `yaml:"redisPassword"`
	IdentitySecret string `yaml:"identitySecret"`

	Provider         string `yaml:"provider"`
	APIKey           string `yaml:"apiKey"`
	BaseURL          string `yaml:"baseURL"`
	SystemPrompt     string `yaml:"systemPrompt"`
	RetrievalStoreID string `yaml:"retrievalStoreID"`

	AllowPattern       string `yaml:"allowPattern"`
	RedactPII          bool   `yaml:"redactPII"`
	DocsFolder         string `yaml:"docsFolder"`
	AnswerOnlyFromDocs bool   `yaml:"answerOnlyFromDocs"`

	ThrottleMaxRequests   int     `yaml:"throttleMaxRequests"`
	ThrottleWindowSeconds int     `yaml:"throttleWindowSeconds"`
	RequestTimeoutSeconds int     `yaml:"requestTimeoutSeconds"`
	Temperature           float64 `yaml:"temperature"`
	MaxOutputTokens       int     `yaml:"maxOutputTokens"`

	QuestionMaxLen int `yaml:"questionMaxLen"`
	AnswerMaxLen   int `yaml:"answerMaxLen"`

	RetrievalMaxFiles        int `yaml:"retrievalMaxFiles"`
	RetrievalMaxPagesPerFile int `yaml:"retrievalMaxPagesPerFile"`
	RetrievalMaxHits         int `yaml:"retrievalMaxHits"`
	RetrievalMaxRuntimeMS    int `yaml:"retrievalMaxRuntimeMS"`
}

// Load reads config from path (defaults to config.yaml), applies environment
// overrides, fills defaults and validates.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("IDENTITY_SECRET"); v != "" {
		cfg.IdentitySecret = v
	}
}

func applyDefaults(cfg *Config) {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = ProviderGemini
	}
	if cfg.ThrottleMaxRequests <= 0 {
		cfg.ThrottleMaxRequests = 4
	}
	if cfg.ThrottleWindowSeconds <= 0 {
		cfg.ThrottleWindowSeconds = 15
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = 30
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.2
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 512
	}
	if cfg.QuestionMaxLen <= 0 {
		cfg.QuestionMaxLen = 4000
	}
	if cfg.AnswerMaxLen <= 0 {
		cfg.AnswerMaxLen = 1800
	}
	if cfg.RetrievalMaxFiles <= 0 {
		cfg.RetrievalMaxFiles = 40
	}
	if cfg.RetrievalMaxPagesPerFile <= 0 {
		cfg.RetrievalMaxPagesPerFile = 50
	}
	if cfg.RetrievalMaxHits <= 0 {
		cfg.RetrievalMaxHits = 6
	}
	if cfg.RetrievalMaxRuntimeMS <= 0 {
		cfg.RetrievalMaxRuntimeMS = 1500
	}
}

func validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.IdentitySecret == "" {
		return errors.New("config: identitySecret is required (set in config.yaml or IDENTITY_SECRET)")
	}
	switch cfg.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("config: unknown provider %q (expected %q or %q)", cfg.Provider, ProviderOpenAI, ProviderGemini)
	}
	// A missing API key is not a startup failure; the send pipeline reports
	// "not configured" to users so an administrator can fix it live.
	return nil
}

// RequestTimeout returns the provider call timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ThrottleWindow returns the short-window rate limit period.
func (c Config) ThrottleWindow() time.Duration {
	return time.Duration(c.ThrottleWindowSeconds) * time.Second
}

// RetrievalMaxRuntime returns the document scan budget.
func (c Config) RetrievalMaxRuntime() time.Duration {
	return time.Duration(c.RetrievalMaxRuntimeMS) * time.Millisecond
}
