package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGroq      = "groq"
	ProviderFallback  = "fallback"
)

// Config holds validated environment configuration
type Config struct {
	// Server
	Port            string
	GoEnv           string
	DevelopmentMode bool
	AllowedOrigins  string
	SessionSecret   string

	// Game pacing
	NumAIPlayers    int
	DiscussionTime  time.Duration
	VotingTime      time.Duration
	RoundsToWin     int
	MessageCooldown time.Duration

	// Agent orchestration
	MaxConcurrentAgentResponses int

	// LLM provider
	AIProvider       string
	AIModelName      string
	AITemperature    float64
	LLMAPIKey        string
	LLMBaseURL       string
	LLMTimeout       time.Duration
	LLMMaxConcurrent int

	// Redis event mirror
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Rate limits (ulule formatted, e.g. "100-M")
	RateLimitAPIGlobal string
	RateLimitAPIRooms  string

	// Tracing
	OTLPEndpoint string
}

// ValidateEnv validates all environment variables and returns a Config object.
// Returns an error if any variable is missing or out of range.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	cfg.Port = getEnvOrDefault("PORT", "8080")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		if cfg.DevelopmentMode {
			cfg.SessionSecret = "dev-only-session-secret-not-for-prod"
			slog.Warn("SESSION_SECRET not set, using development default")
		} else {
			errors = append(errors, "SESSION_SECRET is required")
		}
	} else if len(cfg.SessionSecret) < 32 {
		errors = append(errors, fmt.Sprintf("SESSION_SECRET must be at least 32 characters (got %d)", len(cfg.SessionSecret)))
	}

	var err error
	if cfg.NumAIPlayers, err = getEnvInt("NUM_AI_PLAYERS", 4); err != nil {
		errors = append(errors, err.Error())
	} else if cfg.NumAIPlayers < 2 || cfg.NumAIPlayers > 10 {
		errors = append(errors, fmt.Sprintf("NUM_AI_PLAYERS must be between 2 and 10 (got %d)", cfg.NumAIPlayers))
	}

	if cfg.DiscussionTime, err = getEnvSeconds("DISCUSSION_TIME", 180); err != nil {
		errors = append(errors, err.Error())
	}
	if cfg.VotingTime, err = getEnvSeconds("VOTING_TIME", 60); err != nil {
		errors = append(errors, err.Error())
	}
	if cfg.MessageCooldown, err = getEnvSeconds("MESSAGE_COOLDOWN", 20); err != nil {
		errors = append(errors, err.Error())
	}
	if cfg.RoundsToWin, err = getEnvInt("ROUNDS_TO_WIN", 3); err != nil {
		errors = append(errors, err.Error())
	} else if cfg.RoundsToWin < 1 {
		errors = append(errors, fmt.Sprintf("ROUNDS_TO_WIN must be at least 1 (got %d)", cfg.RoundsToWin))
	}

	if cfg.MaxConcurrentAgentResponses, err = getEnvInt("MAX_CONCURRENT_AGENT_RESPONSES", 2); err != nil {
		errors = append(errors, err.Error())
	} else if cfg.MaxConcurrentAgentResponses < 1 {
		errors = append(errors, "MAX_CONCURRENT_AGENT_RESPONSES must be at least 1")
	}

	cfg.AIProvider = getEnvOrDefault("AI_MODEL_PROVIDER", ProviderOpenAI)
	switch cfg.AIProvider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGroq, ProviderFallback:
	default:
		errors = append(errors, fmt.Sprintf("AI_MODEL_PROVIDER must be one of openai|anthropic|groq|fallback (got '%s')", cfg.AIProvider))
	}

	cfg.AIModelName = os.Getenv("AI_MODEL_NAME")
	if cfg.AIModelName == "" {
		switch cfg.AIProvider {
		case ProviderAnthropic:
			cfg.AIModelName = "claude-sonnet-4-20250514"
		case ProviderGroq:
			cfg.AIModelName = "llama-3.3-70b-versatile"
		default:
			cfg.AIModelName = "gpt-4o-mini"
		}
	}

	cfg.AITemperature = 0.9
	if raw := os.Getenv("AI_TEMPERATURE"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil || t < 0 || t > 1 {
			errors = append(errors, fmt.Sprintf("AI_TEMPERATURE must be a number between 0 and 1 (got '%s')", raw))
		} else {
			cfg.AITemperature = t
		}
	}

	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	if cfg.LLMAPIKey == "" && cfg.AIProvider != ProviderFallback {
		errors = append(errors, "LLM_API_KEY is required")
	}
	cfg.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	if cfg.LLMTimeout, err = getEnvSeconds("LLM_TIMEOUT", 20); err != nil {
		errors = append(errors, err.Error())
	}
	if cfg.LLMMaxConcurrent, err = getEnvInt("LLM_MAX_CONCURRENT", 8); err != nil {
		errors = append(errors, err.Error())
	} else if cfg.LLMMaxConcurrent < 1 {
		errors = append(errors, "LLM_MAX_CONCURRENT must be at least 1")
	}

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errors = append(errors, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.RateLimitAPIGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitAPIRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")

	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// Public returns the effective non-secret configuration for the /config endpoint.
func (cfg *Config) Public() map[string]any {
	return map[string]any{
		"num_ai_players":    cfg.NumAIPlayers,
		"ai_model_provider": cfg.AIProvider,
		"ai_model_name":     cfg.AIModelName,
		"ai_temperature":    cfg.AITemperature,
		"discussion_time":   int(cfg.DiscussionTime.Seconds()),
		"voting_time":       int(cfg.VotingTime.Seconds()),
		"rounds_to_win":     cfg.RoundsToWin,
		"message_cooldown":  int(cfg.MessageCooldown.Seconds()),
	}
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	return parts[0] != ""
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("Environment configuration validated")
	slog.Info("Configuration",
		"port", cfg.Port,
		"go_env", cfg.GoEnv,
		"development_mode", cfg.DevelopmentMode,
		"num_ai_players", cfg.NumAIPlayers,
		"ai_model_provider", cfg.AIProvider,
		"ai_model_name", cfg.AIModelName,
		"discussion_time", cfg.DiscussionTime,
		"voting_time", cfg.VotingTime,
		"rounds_to_win", cfg.RoundsToWin,
		"message_cooldown", cfg.MessageCooldown,
		"llm_api_key", redactSecret(cfg.LLMAPIKey),
		"redis_enabled", cfg.RedisEnabled,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got '%s')", key, raw)
	}
	return v, nil
}

func getEnvSeconds(key string, defaultSeconds int) (time.Duration, error) {
	v, err := getEnvInt(key, defaultSeconds)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, fmt.Errorf("%s must be a positive number of seconds (got %d)", key, v)
	}
	return time.Duration(v) * time.Second, nil
}

// redactSecret redacts a secret by showing only the first 4 characters
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***"
}
