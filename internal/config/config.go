// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string // devserverd listen port
	APIURL      string // REST backend base URL
	SocketURL   string // realtime backend base URL
	FrontendURL string
	DBPath      string
	RequestTimeout time.Duration
	Chat        ChatConfig
	Purchase    PurchaseConfig
	Assistant   AssistantConfig
}

// ChatConfig bounds the realtime connection behavior.
type ChatConfig struct {
	DialTimeout      time.Duration
	ReconnectEnabled bool
	MaxReconnects    int
	ReconnectBase    time.Duration
	ReconnectMax     time.Duration
}

// PurchaseConfig configures the purchase provider.
type PurchaseConfig struct {
	APIKey       string
	UseTestStore bool
}

// AssistantConfig configures the dev backend assistant.
type AssistantConfig struct {
	OpenAIKey string
	Model     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		APIURL:      getEnv("API_URL", "http://localhost:8080"),
		SocketURL:   getEnv("SOCKET_URL", "ws://localhost:8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/companion.db"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		Chat: ChatConfig{
			DialTimeout:      getEnvDuration("CHAT_DIAL_TIMEOUT", 10*time.Second),
			ReconnectEnabled: getEnvBool("CHAT_RECONNECT_ENABLED", true),
			MaxReconnects:    getEnvInt("CHAT_MAX_RECONNECTS", 5),
			ReconnectBase:    getEnvDuration("CHAT_RECONNECT_BASE", time.Second),
			ReconnectMax:     getEnvDuration("CHAT_RECONNECT_MAX", 30*time.Second),
		},
		Purchase: PurchaseConfig{
			APIKey:       getEnv("PURCHASE_API_KEY", ""),
			UseTestStore: getEnvBool("USE_TEST_STORE", true),
		},
		Assistant: AssistantConfig{
			OpenAIKey: getEnv("OPENAI_API_KEY", ""),
			Model:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API_URL cannot be empty")
	}
	if c.SocketURL == "" {
		return fmt.Errorf("SOCKET_URL cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Chat.MaxReconnects < 0 {
		return fmt.Errorf("CHAT_MAX_RECONNECTS cannot be negative")
	}
	// A test-store key in a production build gets the app rejected.
	if !c.IsDevelopment() && c.Purchase.UseTestStore {
		return fmt.Errorf("USE_TEST_STORE must be false outside development")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
