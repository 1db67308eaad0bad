package auth

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelforge/modelforge/internal/config"
	apperrors "github.com/modelforge/modelforge/internal/errors"
	"github.com/modelforge/modelforge/internal/secrets"
)

// countingStore wraps a secrets store and records every access so tests
// can assert which persistence layers were actually consulted.
type countingStore struct {
	inner secrets.Store
	gets  int
	sets  int
	dels  int
}

func (c *countingStore) Set(service, account, secret string) error {
	c.sets++
	return c.inner.Set(service, account, secret)
}

func (c *countingStore) Get(service, account string) (string, error) {
	c.gets++
	return c.inner.Get(service, account)
}

func (c *countingStore) Delete(service, account string) error {
	c.dels++
	return c.inner.Delete(service, account)
}

// failingStore errors on every operation, simulating a broken keychain.
type failingStore struct{}

func (failingStore) Set(string, string, string) error { return errors.New("keychain locked") }
func (failingStore) Get(string, string) (string, error) {
	return "", errors.New("keychain locked")
}
func (failingStore) Delete(string, string) error { return errors.New("keychain locked") }

func testConfigStore(t *testing.T) *config.Store {
	t.Helper()
	dir := t.TempDir()
	return config.NewStoreAt(
		filepath.Join(dir, "global", "config.json"),
		filepath.Join(dir, "local", "config.json"),
	)
}

func apiKeyDeps(t *testing.T, store secrets.Store) Deps {
	t.Helper()
	return Deps{
		Secrets: store,
		Config:  testConfigStore(t),
		Logger:  slog.New(slog.DiscardHandler),
	}
}

func TestAPIKeyCredentialsEnvShadowsEverything(t *testing.T) {
	counting := &countingStore{inner: secrets.NewMemory()}
	a := NewAPIKeyAuth("openai", apiKeyDeps(t, counting))

	require.NoError(t, counting.inner.Set("openai", secrets.Account("openai"), "sk-stored"))
	t.Setenv("MODELFORGE_OPENAI_API_KEY", "sk-from-env")

	b, err := a.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", b[KeyAPIKey])
	assert.Zero(t, counting.gets, "environment hit must not touch the secret store")
}

func TestAPIKeyCredentialsBlankEnvIgnored(t *testing.T) {
	mem := secrets.NewMemory()
	a := NewAPIKeyAuth("openai", apiKeyDeps(t, mem))

	require.NoError(t, mem.Set("openai", secrets.Account("openai"), "sk-stored"))
	t.Setenv("MODELFORGE_OPENAI_API_KEY", "   ")

	b, err := a.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-stored", b[KeyAPIKey])
}

func TestAPIKeyCredentialsSecretStoreBeforeConfig(t *testing.T) {
	deps := apiKeyDeps(t, secrets.NewMemory())
	require.NoError(t, deps.Config.SetProvider("openai", &config.ProviderConfig{
		AuthStrategy: config.StrategyAPIKey,
		AuthData:     map[string]string{KeyAPIKey: "sk-from-config"},
	}, config.ScopeGlobal))
	require.NoError(t, deps.Secrets.Set("openai", secrets.Account("openai"), "sk-from-keyring"))

	a := NewAPIKeyAuth("openai", deps)
	b, err := a.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-from-keyring", b[KeyAPIKey])
}

func TestAPIKeyCredentialsConfigFallback(t *testing.T) {
	deps := apiKeyDeps(t, secrets.NewMemory())
	require.NoError(t, deps.Config.SetProvider("openai", &config.ProviderConfig{
		AuthStrategy: config.StrategyAPIKey,
		AuthData:     map[string]string{KeyAPIKey: "sk-from-config"},
	}, config.ScopeGlobal))

	a := NewAPIKeyAuth("openai", deps)
	b, err := a.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-from-config", b[KeyAPIKey])
}

func TestAPIKeyCredentialsBrokenKeyringFallsThrough(t *testing.T) {
	deps := apiKeyDeps(t, failingStore{})
	require.NoError(t, deps.Config.SetProvider("openai", &config.ProviderConfig{
		AuthStrategy: config.StrategyAPIKey,
		AuthData:     map[string]string{KeyAPIKey: "sk-from-config"},
	}, config.ScopeGlobal))

	a := NewAPIKeyAuth("openai", deps)
	b, err := a.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-from-config", b[KeyAPIKey])
}

func TestAPIKeyCredentialsNothingStored(t *testing.T) {
	a := NewAPIKeyAuth("openai", apiKeyDeps(t, secrets.NewMemory()))
	b, err := a.Credentials(context.Background())
	require.NoError(t, err)
	assert.Nil(t, b, "absent credentials are nil, not an error")
}

func TestAPIKeyAuthenticateEmptyInput(t *testing.T) {
	counting := &countingStore{inner: secrets.NewMemory()}
	deps := apiKeyDeps(t, counting)
	deps.Prompt = func(string) (string, error) { return "   ", nil }

	a := NewAPIKeyAuth("openai", deps)
	_, err := a.Authenticate(context.Background())

	var authErr *apperrors.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, apperrors.CodeEmptyAPIKey, authErr.Code)
	assert.Zero(t, counting.sets, "empty input must not write to any store")
}

func TestAPIKeyAuthenticateStoresKey(t *testing.T) {
	mem := secrets.NewMemory()
	deps := apiKeyDeps(t, mem)
	deps.Prompt = func(string) (string, error) { return "  sk-test123  ", nil }

	a := NewAPIKeyAuth("openai", deps)
	b, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-test123", b[KeyAPIKey], "stored key is trimmed")

	stored, err := mem.Get("openai", secrets.Account("openai"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test123", stored)
}

func TestAPIKeyFormatMismatchStillStores(t *testing.T) {
	mem := secrets.NewMemory()
	deps := apiKeyDeps(t, mem)
	deps.Prompt = func(string) (string, error) { return "definitely-not-sk-prefixed", nil }

	a := NewAPIKeyAuth("openai", deps)
	b, err := a.Authenticate(context.Background())
	require.NoError(t, err, "format mismatch is advisory only")
	assert.Equal(t, "definitely-not-sk-prefixed", b[KeyAPIKey])
}

func TestAPIKeySaveFallsBackToConfig(t *testing.T) {
	deps := apiKeyDeps(t, failingStore{})

	a := NewAPIKeyAuth("openai", deps)
	require.NoError(t, deps.Config.SetProvider("openai", &config.ProviderConfig{
		AuthStrategy: config.StrategyAPIKey,
	}, config.ScopeGlobal))
	require.NoError(t, a.StoreAPIKey("sk-fallback"))

	cfg, err := deps.Config.Provider("openai")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "sk-fallback", cfg.AuthData[KeyAPIKey])
}

func TestAPIKeyClearCredentials(t *testing.T) {
	deps := apiKeyDeps(t, secrets.NewMemory())
	require.NoError(t, deps.Config.SetProvider("openai", &config.ProviderConfig{
		AuthStrategy: config.StrategyAPIKey,
		AuthData:     map[string]string{KeyAPIKey: "sk-x"},
	}, config.ScopeGlobal))
	require.NoError(t, deps.Secrets.Set("openai", secrets.Account("openai"), "sk-x"))

	a := NewAPIKeyAuth("openai", deps)
	require.NoError(t, a.ClearCredentials())

	_, err := deps.Secrets.Get("openai", secrets.Account("openai"))
	assert.ErrorIs(t, err, secrets.ErrNotFound)

	b, err := a.Credentials(context.Background())
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestAPIKeyClearCredentialsIdempotent(t *testing.T) {
	a := NewAPIKeyAuth("openai", apiKeyDeps(t, secrets.NewMemory()))
	assert.NoError(t, a.ClearCredentials())
	assert.NoError(t, a.ClearCredentials())
}
