package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setBaseEnv sets the minimum required variables for a valid production
// configuration.
func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("LLM_API_KEY", "sk-test")
}

func TestValidateEnv_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := ValidateEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 4, cfg.NumAIPlayers)
	assert.Equal(t, 180*time.Second, cfg.DiscussionTime)
	assert.Equal(t, 60*time.Second, cfg.VotingTime)
	assert.Equal(t, 20*time.Second, cfg.MessageCooldown)
	assert.Equal(t, 3, cfg.RoundsToWin)
	assert.Equal(t, 2, cfg.MaxConcurrentAgentResponses)
	assert.Equal(t, ProviderOpenAI, cfg.AIProvider)
	assert.Equal(t, "gpt-4o-mini", cfg.AIModelName)
	assert.InDelta(t, 0.9, cfg.AITemperature, 1e-9)
	assert.False(t, cfg.RedisEnabled)
}

func TestValidateEnv_ProviderModelDefaults(t *testing.T) {
	tests := []struct {
		provider string
		model    string
	}{
		{ProviderAnthropic, "claude-sonnet-4-20250514"},
		{ProviderGroq, "llama-3.3-70b-versatile"},
		{ProviderOpenAI, "gpt-4o-mini"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv("AI_MODEL_PROVIDER", tt.provider)

			cfg, err := ValidateEnv()
			require.NoError(t, err)
			assert.Equal(t, tt.model, cfg.AIModelName)
		})
	}
}

func TestValidateEnv_FallbackProviderNeedsNoKey(t *testing.T) {
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AI_MODEL_PROVIDER", ProviderFallback)

	_, err := ValidateEnv()
	assert.NoError(t, err)
}

func TestValidateEnv_MissingAPIKey(t *testing.T) {
	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_API_KEY is required")
}

func TestValidateEnv_ShortSessionSecret(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SESSION_SECRET", "too-short")

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET must be at least 32 characters")
}

func TestValidateEnv_DevelopmentSecretDefault(t *testing.T) {
	t.Setenv("DEVELOPMENT_MODE", "true")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := ValidateEnv()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.SessionSecret)
}

func TestValidateEnv_CollectsMultipleErrors(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "99999")
	t.Setenv("NUM_AI_PLAYERS", "1")
	t.Setenv("DISCUSSION_TIME", "0")

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "NUM_AI_PLAYERS")
	assert.Contains(t, err.Error(), "DISCUSSION_TIME")
}

func TestValidateEnv_InvalidRedisAddr(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "not-an-addr")

	_, err := ValidateEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_ADDR")
}

func TestPublic_OmitsSecrets(t *testing.T) {
	setBaseEnv(t)

	cfg, err := ValidateEnv()
	require.NoError(t, err)

	pub := cfg.Public()
	assert.Equal(t, 4, pub["num_ai_players"])
	assert.Equal(t, 180, pub["discussion_time"])
	for k := range pub {
		assert.NotContains(t, k, "secret")
		assert.NotContains(t, k, "key")
	}
}
