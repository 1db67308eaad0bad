package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStoreAt(
		filepath.Join(dir, "global", "config.json"),
		filepath.Join(dir, "local", "config.json"),
	)
}

func TestLoadMissingFilesYieldsEmptyDocument(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Providers)
	assert.Empty(t, doc.DefaultProvider)
}

func TestSetProviderRoundTrip(t *testing.T) {
	s := newTestStore(t)

	want := &ProviderConfig{
		AuthStrategy: StrategyAPIKey,
		BaseURL:      "https://api.openai.com/v1",
		DefaultModel: "gpt-4o",
	}
	require.NoError(t, s.SetProvider("OpenAI", want, ScopeGlobal))

	got, err := s.Provider("openai")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.AuthStrategy, got.AuthStrategy)
	assert.Equal(t, want.BaseURL, got.BaseURL)
	assert.Equal(t, want.DefaultModel, got.DefaultModel)
}

func TestLocalLayerOverridesGlobalWholesale(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetProvider("openai", &ProviderConfig{
		AuthStrategy: StrategyAPIKey,
		BaseURL:      "https://global.example.com",
		DefaultModel: "gpt-4o",
	}, ScopeGlobal))
	require.NoError(t, s.SetProvider("openai", &ProviderConfig{
		AuthStrategy: StrategyAPIKey,
		BaseURL:      "https://local.example.com",
	}, ScopeLocal))

	got, err := s.Provider("openai")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://local.example.com", got.BaseURL)
	assert.Empty(t, got.DefaultModel, "local entry replaces the global one entirely, no field merge")
}

func TestLoadMergesDistinctProviders(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetProvider("openai", &ProviderConfig{AuthStrategy: StrategyAPIKey}, ScopeGlobal))
	require.NoError(t, s.SetProvider("ollama", &ProviderConfig{AuthStrategy: StrategyLocal}, ScopeLocal))

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, doc.Providers, 2)
}

func TestProviderUnconfiguredIsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Provider("ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRemoveProvider(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetProvider("openai", &ProviderConfig{AuthStrategy: StrategyAPIKey}, ScopeGlobal))
	require.NoError(t, s.RemoveProvider("openai", ScopeGlobal))

	got, err := s.Provider("openai")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSetAuthDataTargetsOwningLayer(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetProvider("openai", &ProviderConfig{AuthStrategy: StrategyAPIKey}, ScopeLocal))

	require.NoError(t, s.SetAuthData("openai", map[string]string{"api_key": "sk-x"}))

	local, err := s.Layer(ScopeLocal)
	require.NoError(t, err)
	assert.Equal(t, "sk-x", local.Providers["openai"].AuthData["api_key"])

	global, err := s.Layer(ScopeGlobal)
	require.NoError(t, err)
	assert.NotContains(t, global.Providers, "openai")
}

func TestSetAuthDataUnconfiguredProvider(t *testing.T) {
	s := newTestStore(t)
	err := s.SetAuthData("ghost", map[string]string{"api_key": "sk-x"})
	assert.Error(t, err)
}

func TestClearAuthData(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetProvider("openai", &ProviderConfig{
		AuthStrategy: StrategyAPIKey,
		AuthData:     map[string]string{"api_key": "sk-x"},
	}, ScopeGlobal))

	require.NoError(t, s.ClearAuthData("openai"))

	got, err := s.Provider("openai")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.AuthData)
	assert.Equal(t, StrategyAPIKey, got.AuthStrategy, "only auth_data is cleared")
}

func TestClearAuthDataUnconfiguredIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.ClearAuthData("ghost"))
}

func TestSetDefaultProvider(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetDefaultProvider("OpenAI", ScopeGlobal))

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", doc.DefaultProvider)
}

func TestLocalDefaultProviderWins(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetDefaultProvider("openai", ScopeGlobal))
	require.NoError(t, s.SetDefaultProvider("ollama", ScopeLocal))

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "ollama", doc.DefaultProvider)
}

func TestWritePermissions(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetProvider("openai", &ProviderConfig{
		AuthStrategy: StrategyAPIKey,
		AuthData:     map[string]string{"api_key": "sk-x"},
	}, ScopeGlobal))

	info, err := os.Stat(s.GlobalPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "config may hold credentials")
}

func TestLayerMalformedJSON(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.GlobalPath()), 0o755))
	require.NoError(t, os.WriteFile(s.GlobalPath(), []byte("{not json"), 0o600))

	_, err := s.Layer(ScopeGlobal)
	assert.Error(t, err)
}

func TestProviderNameNormalizedOnRead(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SetProvider("github_copilot", &ProviderConfig{AuthStrategy: StrategyDeviceFlow}, ScopeGlobal))

	got, err := s.Provider("GitHub-Copilot")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
