package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingFetcher struct {
	values map[string]string
	calls  int
}

func (f *countingFetcher) fetch(_ context.Context, name string) (string, error) {
	f.calls++
	v, ok := f.values[name]
	if !ok {
		return "", errors.New("SecretNotFound")
	}
	return v, nil
}

func TestVaultClient_CachesWhileFresh(t *testing.T) {
	src := &countingFetcher{values: map[string]string{"jwt-secret": "s3cret"}}
	v := newVaultClient(src, &VaultConfig{CacheEnabled: true, CacheTTL: time.Minute}, zap.NewNop())

	for i := 0; i < 3; i++ {
		got, err := v.GetSecret(context.Background(), "jwt-secret")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", got)
	}
	assert.Equal(t, 1, src.calls)

	v.ClearCache()
	_, err := v.GetSecret(context.Background(), "jwt-secret")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestVaultClient_NoCache(t *testing.T) {
	src := &countingFetcher{values: map[string]string{"a": "1"}}
	v := newVaultClient(src, &VaultConfig{}, zap.NewNop())

	_, _ = v.GetSecret(context.Background(), "a")
	_, _ = v.GetSecret(context.Background(), "a")
	assert.Equal(t, 2, src.calls)
}

func TestVaultClient_MissingSecret(t *testing.T) {
	v := newVaultClient(&countingFetcher{}, &VaultConfig{CacheEnabled: true}, zap.NewNop())
	_, err := v.GetSecret(context.Background(), "missing")
	assert.ErrorContains(t, err, "missing")
}

func TestProvider_EnvironmentSource(t *testing.T) {
	t.Setenv("CRM_TEST_SECRET", "from-env")
	p := &Provider{source: SourceEnvironment, logger: zap.NewNop()}

	got, err := p.GetSecret(context.Background(), "CRM_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	_, err = p.GetSecret(context.Background(), "CRM_TEST_SECRET_UNSET")
	assert.Error(t, err)
}

func TestProvider_GetSecretOrEnvPrefersEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	src := &countingFetcher{values: map[string]string{"telegram-bot-token": "vault-token"}}
	p := &Provider{
		source: SourceVault,
		vault:  newVaultClient(src, &VaultConfig{}, zap.NewNop()),
		logger: zap.NewNop(),
	}

	got, err := p.GetSecretOrEnv(context.Background(), "telegram-bot-token", "TELEGRAM_BOT_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "env-token", got)
	assert.Zero(t, src.calls)

	got, err = p.GetSecretOrEnv(context.Background(), "telegram-bot-token", "TELEGRAM_BOT_TOKEN_UNSET")
	require.NoError(t, err)
	assert.Equal(t, "vault-token", got)
	assert.True(t, p.IsVaultEnabled())
}
