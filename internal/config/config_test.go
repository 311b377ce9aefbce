package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "crm:changes", cfg.Redis.Channel)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, "0 */15 * * * *", cfg.Jobs.OverdueSchedule)
	assert.Equal(t, "BYN", cfg.Pricing.Currency)
	assert.Equal(t, "local", cfg.Storage.Mode)
	assert.Equal(t, int64(50), cfg.Storage.MaxUploadSizeMB)

	rate, err := cfg.Pricing.VATRateDecimal()
	require.NoError(t, err)
	assert.Equal(t, "0.2", rate.String())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENVIRONMENT", "staging")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("JWT_SECRET", "jwt-from-env")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "jwt-from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
}

func TestLoad_RejectsInvalidVATRate(t *testing.T) {
	t.Setenv("PRICING_VATRATE", "1.5")

	_, err := Load()
	assert.ErrorContains(t, err, "vatRate")
}

func TestConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, User: "u", Password: "p", Name: "n", SSLMode: "require"}
	assert.Equal(t, "host=h port=5433 user=u password=p dbname=n sslmode=require", d.ConnectionString())
}

type mapSource map[string]string

func (m mapSource) GetSecretOrEnv(_ context.Context, secretName, _ string) (string, error) {
	if v, ok := m[secretName]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Host = "localhost"

	applySecrets(context.Background(), cfg, mapSource{
		"POSTGRES-PASSWORD":  "pg-pass",
		"jwt-secret":         "vault-jwt",
		"telegram-bot-token": "vault-bot",
	})

	assert.Equal(t, "localhost", cfg.Database.Host, "missing secrets keep existing values")
	assert.Equal(t, "pg-pass", cfg.Database.Password)
	assert.Equal(t, "vault-jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, "vault-bot", cfg.Telegram.BotToken)
	assert.Empty(t, cfg.Auth.APIKey)
}
