package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POSTGRES_USER", "comfy")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "comfy")
	t.Setenv("JWT_SECRET", "jwt-secret")
	t.Setenv("STRIPE_API_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.WebhookMaxEventAge)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10, cfg.SignupBonusCredits)
	assert.Equal(t, time.Duration(0), cfg.WorkflowTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STRIPE_API_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "STRIPE_API_KEY")
}

func TestLoadConfig_UnsupportedDriver(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DB_DRIVER", "oracle")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WEBHOOK_MAX_EVENT_AGE", "five minutes")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_StripeFromSecretsManager(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STRIPE_API_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("STRIPE_SECRET_ID", "comfy/stripe")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	err = cfg.ApplyStripeSecret(`{"STRIPE_API_KEY":"sk_live_x","STRIPE_WEBHOOK_SECRET":"whsec_x"}`)
	require.NoError(t, err)
	assert.Equal(t, "sk_live_x", cfg.StripeSecretKey)
	assert.Equal(t, "whsec_x", cfg.StripeWebhookKey)

	assert.Error(t, (&Config{}).ApplyStripeSecret(`{"STRIPE_API_KEY":"only"}`))
	assert.Error(t, (&Config{}).ApplyStripeSecret(`not json`))
}
