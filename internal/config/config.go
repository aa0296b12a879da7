package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LLM providers.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

const (
	minGenerationTimeout = 12 * time.Second
	maxGenerationTimeout = 15 * time.Second
)

// Entitlement holds the non-production overrides for membership and
// subscription checks. It is passed explicitly to the checker.
type Entitlement struct {
	// QABypass lets demo users through and auto-enrolls them as owners.
	QABypass bool
	// ForcePro treats every family as subscribed.
	ForcePro bool
}

// Retry configures backoff for remote generation calls.
type Retry struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxJitter  time.Duration
}

// Config holds the configuration for the application.
type Config struct {
	Timezone     string
	DatabasePath string
	StoreDriver  string

	LLMProvider       string
	GeminiAPIKey      string
	GeminiModel       string
	GroqAPIKey        string
	GroqModel         string
	GenerationTimeout time.Duration
	Retry             Retry

	AIMaxPerHour int
	AIMaxPerDay  int
	RedisURL     string

	JWTSecret string
	Port      string

	// Telegram Config (optional; notifications fall back to the log)
	TelegramBotToken string
	TelegramChatID   int64

	Entitlement Entitlement
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_timezone", "America/New_York")
	v.SetDefault("database_path", "data/familyops.db")
	v.SetDefault("store_driver", StoreSQLite)
	v.SetDefault("llm_provider", ProviderGroq)
	v.SetDefault("gemini_model", "gemini-1.5-flash")
	v.SetDefault("groq_model", "llama-3.3-70b-versatile")
	v.SetDefault("generation_timeout", "12s")
	v.SetDefault("retry_max_retries", 3)
	v.SetDefault("retry_base_delay", "500ms")
	v.SetDefault("retry_max_jitter", "250ms")
	v.SetDefault("ai_max_per_hour", 10)
	v.SetDefault("ai_max_per_day", 50)
	v.SetDefault("port", "8080")
	v.SetDefault("entitlement_qa_bypass", false)
	v.SetDefault("entitlement_force_pro", false)
}

// NewFromEnv creates a new Config from environment variables, layered over
// an optional familyops.yaml file.
func NewFromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv("FAMILYOPS_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("familyops")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.familyops")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		Timezone:          v.GetString("app_timezone"),
		DatabasePath:      v.GetString("database_path"),
		StoreDriver:       strings.ToLower(v.GetString("store_driver")),
		LLMProvider:       strings.ToLower(v.GetString("llm_provider")),
		GeminiAPIKey:      v.GetString("gemini_api_key"),
		GeminiModel:       v.GetString("gemini_model"),
		GroqAPIKey:        v.GetString("groq_api_key"),
		GroqModel:         v.GetString("groq_model"),
		GenerationTimeout: v.GetDuration("generation_timeout"),
		Retry: Retry{
			MaxRetries: v.GetInt("retry_max_retries"),
			BaseDelay:  v.GetDuration("retry_base_delay"),
			MaxJitter:  v.GetDuration("retry_max_jitter"),
		},
		AIMaxPerHour:     v.GetInt("ai_max_per_hour"),
		AIMaxPerDay:      v.GetInt("ai_max_per_day"),
		RedisURL:         v.GetString("redis_url"),
		JWTSecret:        v.GetString("jwt_secret"),
		Port:             v.GetString("port"),
		TelegramBotToken: v.GetString("telegram_bot_token"),
		TelegramChatID:   v.GetInt64("telegram_chat_id"),
		Entitlement: Entitlement{
			QABypass: v.GetBool("entitlement_qa_bypass"),
			ForcePro: v.GetBool("entitlement_force_pro"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and clamps the generation deadline.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case ProviderNone:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of groq, gemini, none (got %q)", c.LLMProvider)
	}

	switch c.StoreDriver {
	case StoreSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH environment variable not set")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of sqlite, memory (got %q)", c.StoreDriver)
	}

	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID environment variable not set")
	}

	if c.GenerationTimeout < minGenerationTimeout {
		c.GenerationTimeout = minGenerationTimeout
	}
	if c.GenerationTimeout > maxGenerationTimeout {
		c.GenerationTimeout = maxGenerationTimeout
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	return nil
}
