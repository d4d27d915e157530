package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable pointing at an optional config file.
const ConfigFileEnv = "CONCIERGE_CONFIG"

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	OpenAI OpenAIConfig
	Tavily TavilyConfig
	Engine EngineConfig
	OTEL   OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	SSEPort        int
	Environment    string
	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// OpenAIConfig holds OpenAI configuration
type OpenAIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	Temperature    float64
	MaxTokens      int
	RequestsPerMin int
	Burst          int
}

// TavilyConfig holds web search configuration
type TavilyConfig struct {
	APIKey  string
	BaseURL string
}

// EngineConfig holds plan mutation engine tuning.
type EngineConfig struct {
	// StoreBackend is "redis" or "memory".
	StoreBackend           string
	PlanTTL                time.Duration
	HistoryWindow          int
	MaxEvidenceItems       int
	EvidenceExcerptChars   int
	RetrievalSourceTimeout time.Duration
	RetrievalTimeout       time.Duration
	RetrievalCacheTTL      time.Duration
	RetrievalCacheSize     int
	ModelTimeout           time.Duration
	SentinelIDs            []string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables and, when
// CONCIERGE_CONFIG is set, from that file. Environment wins over file.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			SSEPort:        v.GetInt("SSE_PORT"),
			Environment:    v.GetString("ENV"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         v.GetString("OPENAI_API_KEY"),
			Model:          v.GetString("OPENAI_MODEL"),
			BaseURL:        v.GetString("OPENAI_BASE_URL"),
			Temperature:    v.GetFloat64("OPENAI_TEMPERATURE"),
			MaxTokens:      v.GetInt("OPENAI_MAX_TOKENS"),
			RequestsPerMin: v.GetInt("OPENAI_REQUESTS_PER_MINUTE"),
			Burst:          v.GetInt("OPENAI_BURST"),
		},
		Tavily: TavilyConfig{
			APIKey:  v.GetString("TAVILY_API_KEY"),
			BaseURL: v.GetString("TAVILY_BASE_URL"),
		},
		Engine: EngineConfig{
			StoreBackend:           strings.ToLower(v.GetString("PLAN_STORE_BACKEND")),
			PlanTTL:                v.GetDuration("PLAN_TTL"),
			HistoryWindow:          v.GetInt("PLAN_HISTORY_WINDOW"),
			MaxEvidenceItems:       v.GetInt("RETRIEVAL_MAX_ITEMS"),
			EvidenceExcerptChars:   v.GetInt("RETRIEVAL_EXCERPT_CHARS"),
			RetrievalSourceTimeout: v.GetDuration("RETRIEVAL_SOURCE_TIMEOUT"),
			RetrievalTimeout:       v.GetDuration("RETRIEVAL_TIMEOUT"),
			RetrievalCacheTTL:      v.GetDuration("RETRIEVAL_CACHE_TTL"),
			RetrievalCacheSize:     v.GetInt("RETRIEVAL_CACHE_SIZE"),
			ModelTimeout:           v.GetDuration("MODEL_TIMEOUT"),
			SentinelIDs:            splitList(v.GetString("PLAN_SENTINEL_IDS")),
		},
		OTEL: OTELConfig{
			ServiceName:    v.GetString("OTEL_SERVICE_NAME"),
			ServiceVersion: v.GetString("OTEL_SERVICE_VERSION"),
			Endpoint:       v.GetString("OTEL_ENDPOINT"),
			Enabled:        v.GetBool("OTEL_ENABLED"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	switch c.Engine.StoreBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid PLAN_STORE_BACKEND %q: want redis or memory", c.Engine.StoreBackend)
	}
	if c.Engine.PlanTTL <= 0 {
		return fmt.Errorf("PLAN_TTL must be positive, got %s", c.Engine.PlanTTL)
	}
	if c.Engine.HistoryWindow < 0 {
		return fmt.Errorf("PLAN_HISTORY_WINDOW must not be negative")
	}
	if c.Engine.MaxEvidenceItems <= 0 {
		return fmt.Errorf("RETRIEVAL_MAX_ITEMS must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SSE_PORT", 8081)
	v.SetDefault("ENV", "development")
	v.SetDefault("ALLOWED_ORIGINS", "*")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_TEMPERATURE", 0.2)
	v.SetDefault("OPENAI_MAX_TOKENS", 2048)
	v.SetDefault("OPENAI_REQUESTS_PER_MINUTE", 60)
	v.SetDefault("OPENAI_BURST", 5)

	v.SetDefault("TAVILY_API_KEY", "")
	v.SetDefault("TAVILY_BASE_URL", "https://api.tavily.com")

	v.SetDefault("PLAN_STORE_BACKEND", "redis")
	v.SetDefault("PLAN_TTL", 24*time.Hour)
	v.SetDefault("PLAN_HISTORY_WINDOW", 6)
	v.SetDefault("RETRIEVAL_MAX_ITEMS", 10)
	v.SetDefault("RETRIEVAL_EXCERPT_CHARS", 500)
	v.SetDefault("RETRIEVAL_SOURCE_TIMEOUT", 8*time.Second)
	v.SetDefault("RETRIEVAL_TIMEOUT", 12*time.Second)
	v.SetDefault("RETRIEVAL_CACHE_TTL", 5*time.Minute)
	v.SetDefault("RETRIEVAL_CACHE_SIZE", 256)
	v.SetDefault("MODEL_TIMEOUT", 45*time.Second)
	v.SetDefault("PLAN_SENTINEL_IDS", "current")

	v.SetDefault("OTEL_SERVICE_NAME", "itinerary-concierge")
	v.SetDefault("OTEL_SERVICE_VERSION", "1.0.0")
	v.SetDefault("OTEL_ENDPOINT", "")
	v.SetDefault("OTEL_ENABLED", false)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
