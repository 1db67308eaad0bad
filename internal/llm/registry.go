package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/modelforge/modelforge/internal/auth"
	"github.com/modelforge/modelforge/internal/config"
	apperrors "github.com/modelforge/modelforge/internal/errors"
	"github.com/modelforge/modelforge/internal/llm/ollama"
)

// Registry is the uniform access point: it resolves a provider name to
// its auth strategy and a ready-to-use client. Strategies are cached
// per provider and dropped when the configuration changes on disk.
type Registry struct {
	store  *config.Store
	deps   auth.Deps
	logger *slog.Logger

	mu         sync.Mutex
	strategies map[string]auth.Strategy
}

// NewRegistry creates a registry over the given configuration store.
func NewRegistry(store *config.Store, deps auth.Deps, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	deps.Config = store
	return &Registry{
		store:      store,
		deps:       deps,
		logger:     logger,
		strategies: make(map[string]auth.Strategy),
	}
}

// Strategy returns the auth strategy for a provider, building and
// caching it on first use.
func (r *Registry) Strategy(name string) (auth.Strategy, error) {
	name = config.CanonicalName(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.strategies[name]; ok {
		return s, nil
	}

	cfg, err := r.store.Provider(name)
	if err != nil {
		return nil, err
	}
	strategy, err := auth.ForProvider(name, cfg, r.deps)
	if err != nil {
		return nil, err
	}
	r.strategies[name] = strategy
	return strategy, nil
}

// Credentials resolves a provider's credential bundle without user
// interaction. A nil bundle means nothing usable is stored.
func (r *Registry) Credentials(ctx context.Context, name string) (auth.Bundle, error) {
	strategy, err := r.Strategy(name)
	if err != nil {
		return nil, err
	}
	return strategy.Credentials(ctx)
}

// Client builds a ready-to-use LLM client for a provider, resolving
// credentials first. Providers with no usable stored credential fail
// with an authentication error pointing at 'auth login'.
func (r *Registry) Client(ctx context.Context, name string) (Client, error) {
	name = config.CanonicalName(name)

	cfg, err := r.store.Provider(name)
	if err != nil {
		return nil, err
	}
	strategy, err := r.Strategy(name)
	if err != nil {
		return nil, err
	}

	creds, err := strategy.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, &apperrors.AuthenticationError{
			Code:       apperrors.CodeAuthenticationRequired,
			Message:    fmt.Sprintf("no credentials available for %s", name),
			Suggestion: fmt.Sprintf("run 'modelforge auth login %s'", name),
		}
	}

	// An empty (non-nil) bundle is the no-auth case: a local runtime.
	if len(creds) == 0 {
		provider, err := ollama.New(ollama.Config{
			Host:  cfg.BaseURL,
			Model: cfg.DefaultModel,
		}, r.logger)
		if err != nil {
			return nil, err
		}
		return &ollamaAdapter{provider: provider}, nil
	}

	if cfg.BaseURL == "" {
		return nil, &apperrors.ConfigurationError{
			Code:       apperrors.CodeProviderNotConfigured,
			Message:    fmt.Sprintf("provider %s has no base_url configured", name),
			Suggestion: fmt.Sprintf("set base_url via 'modelforge config set-provider %s'", name),
		}
	}

	token := creds[auth.KeyAccessToken]
	if token == "" {
		token = creds[auth.KeyAPIKey]
	}

	client := &openAIClient{
		baseURL:    cfg.BaseURL,
		token:      token,
		model:      cfg.DefaultModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     r.logger,
	}

	// Device flow tokens age out mid-conversation; let stream traffic
	// trigger a detached refresh when the token nears expiry.
	if df, ok := strategy.(*auth.DeviceFlowAuth); ok {
		client.onStreamEvent = func() { df.RefreshIfNeeded(ctx) }
	}

	return client, nil
}

// Invalidate drops all cached strategies. The next lookup rebuilds
// them from the current configuration.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = make(map[string]auth.Strategy)
	r.logger.Debug("provider strategy cache invalidated")
}

// WatchConfig blocks, invalidating the cache whenever a configuration
// layer file changes. Intended to run in its own goroutine.
func (r *Registry) WatchConfig(ctx context.Context) error {
	return r.store.Watch(ctx, r.Invalidate)
}
