// Package config loads the service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything the server wires at startup.
type Config struct {
	ListenAddr string
	DBPath     string

	// Optional: empty disables redis-backed presence.
	RedisAddr string

	TranslateAPIKey  string
	TranslateBaseURL string
	TranslateHost    string

	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	MediaUploadURL string
	MediaPreset    string
	MediaFolder    string

	BotID   string
	BotName string

	ReconcileSpec   string
	ReconcileRepair bool
}

// Load reads .env if present, then the environment, falling back to the
// defaults table.
func Load() (*Config, error) {
	// A missing .env is fine; the environment alone is enough.
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr: getEnv("LISTEN_ADDR", DefaultListenAddr),
		DBPath:     getEnv("DB_PATH", DefaultDBPath),
		RedisAddr:  getEnv("REDIS_ADDR", ""),

		TranslateAPIKey:  getEnv("TRANSLATE_API_KEY", ""),
		TranslateBaseURL: getEnv("TRANSLATE_BASE_URL", DefaultTranslateBaseURL),
		TranslateHost:    getEnv("TRANSLATE_HOST", DefaultTranslateHost),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", DefaultGeminiBaseURL),
		GeminiModel:   getEnv("GEMINI_MODEL", DefaultGeminiModel),

		MediaUploadURL: getEnv("MEDIA_UPLOAD_URL", ""),
		MediaPreset:    getEnv("MEDIA_UPLOAD_PRESET", DefaultMediaPreset),
		MediaFolder:    getEnv("MEDIA_FOLDER", DefaultMediaFolder),

		BotID:   getEnv("CHATBOT_ID", DefaultBotID),
		BotName: getEnv("CHATBOT_NAME", DefaultBotName),

		ReconcileSpec:   getEnv("RECONCILE_SPEC", DefaultReconcileSpec),
		ReconcileRepair: getEnv("RECONCILE_REPAIR", "") == "true",
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the server cannot run without.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.BotID == "" {
		return fmt.Errorf("CHATBOT_ID must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
