package config

// Default values for configuration.
const (
	DefaultListenAddr = "127.0.0.1:3000"
	DefaultDBPath     = "lingochat.db"

	DefaultTranslateBaseURL = "https://deep-translate1.p.rapidapi.com"
	DefaultTranslateHost    = "deep-translate1.p.rapidapi.com"

	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.0-flash"

	DefaultMediaPreset = "chat-pro"
	DefaultMediaFolder = "lingochat"

	DefaultBotID   = "assistant-bot"
	DefaultBotName = "Assistant"

	DefaultReconcileSpec = "@every 10m"
)
