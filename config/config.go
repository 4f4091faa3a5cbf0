package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr       string
	Prefix           string
	DatabaseURL      string
	OpenAIAPIURL     string
	AnthropicAPIURL  string
	BraveAPIURL      string
	ProviderTimeout  time.Duration
	UsageWorkers     int
	DefaultUsageDays int
}

var AppConfig *Config

func LoadConfig() {
	_ = godotenv.Load() // Load from .env if it exists, ignore error if not

	AppConfig = &Config{
		ListenAddr:       getEnv("KEYDASH_LISTEN_ADDR", ":8080"),
		Prefix:           getEnv("KEYDASH_PREFIX", "/api"),
		DatabaseURL:      getEnv("KEYDASH_DATABASE_URL", "file:keydash.db?cache=shared&mode=rwc"),
		OpenAIAPIURL:     getEnv("KEYDASH_OPENAI_API_URL", "https://api.openai.com"),
		AnthropicAPIURL:  getEnv("KEYDASH_ANTHROPIC_API_URL", "https://api.anthropic.com"),
		BraveAPIURL:      getEnv("KEYDASH_BRAVE_API_URL", "https://api.search.brave.com"),
		ProviderTimeout:  getEnvDuration("KEYDASH_PROVIDER_TIMEOUT", 10*time.Second),
		UsageWorkers:     getEnvInt("KEYDASH_USAGE_WORKERS", 4),
		DefaultUsageDays: getEnvInt("KEYDASH_DEFAULT_USAGE_DAYS", 30),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
