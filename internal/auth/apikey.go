package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/modelforge/modelforge/internal/config"
	apperrors "github.com/modelforge/modelforge/internal/errors"
	"github.com/modelforge/modelforge/internal/secrets"
)

// keyFormatCheckers holds advisory per-provider API key shape checks.
// Unknown providers skip the check entirely. A mismatch is logged and
// the key is stored anyway; only an empty key is a hard failure.
var keyFormatCheckers = map[string]func(key string) string{
	"openai": func(key string) string {
		if !strings.HasPrefix(key, "sk-") {
			return "OpenAI keys normally start with sk-"
		}
		return ""
	},
	"anthropic": func(key string) string {
		if !strings.HasPrefix(key, "sk-ant-") {
			return "Anthropic keys normally start with sk-ant-"
		}
		return ""
	},
	"github-copilot": func(key string) string {
		if !strings.HasPrefix(key, "gh") {
			return "GitHub tokens normally start with gh"
		}
		return ""
	},
}

// APIKeyAuth authenticates a provider with a static API key.
type APIKeyAuth struct {
	provider string
	deps     Deps
}

// NewAPIKeyAuth creates the API key strategy for a provider. The name
// is canonicalized; deps get production defaults where unset.
func NewAPIKeyAuth(provider string, deps Deps) *APIKeyAuth {
	return &APIKeyAuth{
		provider: config.CanonicalName(provider),
		deps:     deps.withDefaults(),
	}
}

// Authenticate prompts for the key with echo disabled, persists it, and
// returns the bundle. An empty key after trimming fails without touching
// any store.
func (a *APIKeyAuth) Authenticate(ctx context.Context) (Bundle, error) {
	input, err := a.deps.Prompt(fmt.Sprintf("Enter API key for %s: ", a.provider))
	if err != nil {
		return nil, &apperrors.AuthenticationError{
			Code:       apperrors.CodeEmptyAPIKey,
			Message:    fmt.Sprintf("could not read API key for %s", a.provider),
			Suggestion: "set " + EnvVar(a.provider, EnvKindAPIKey) + " instead of the interactive prompt",
			Err:        err,
		}
	}
	return a.store(input)
}

// StoreAPIKey persists a key non-interactively, applying the same
// validation as Authenticate.
func (a *APIKeyAuth) StoreAPIKey(key string) error {
	_, err := a.store(key)
	return err
}

func (a *APIKeyAuth) store(key string) (Bundle, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, &apperrors.AuthenticationError{
			Code:       apperrors.CodeEmptyAPIKey,
			Message:    fmt.Sprintf("no API key provided for %s", a.provider),
			Suggestion: "paste a non-empty key, or set " + EnvVar(a.provider, EnvKindAPIKey),
		}
	}

	a.checkFormat(key)

	if err := a.save(key); err != nil {
		return nil, err
	}
	return Bundle{KeyAPIKey: key}, nil
}

// checkFormat runs the advisory shape check. Any problem, including a
// checker blowing up, downgrades to a log line; the key is kept.
func (a *APIKeyAuth) checkFormat(key string) {
	checker, ok := keyFormatCheckers[a.provider]
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			a.deps.Logger.Warn("key format check failed internally, accepting key",
				"provider", a.provider, "panic", r)
		}
	}()
	if warning := checker(key); warning != "" {
		a.deps.Logger.Warn("API key format looks unusual",
			"provider", a.provider, "detail", warning)
	}
}

// Credentials resolves the key: environment variable first, then the
// secret store, then the config document's auth_data. When the
// environment variable is set no persisted store is consulted at all.
func (a *APIKeyAuth) Credentials(ctx context.Context) (Bundle, error) {
	if v := os.Getenv(EnvVar(a.provider, EnvKindAPIKey)); strings.TrimSpace(v) != "" {
		return Bundle{KeyAPIKey: v}, nil
	}

	if a.deps.Secrets != nil {
		secret, err := a.deps.Secrets.Get(a.provider, secrets.Account(a.provider))
		switch {
		case err == nil && secret != "":
			return Bundle{KeyAPIKey: secret}, nil
		case err != nil && !errors.Is(err, secrets.ErrNotFound):
			// Keychain trouble should not make the key unreachable when
			// the config document has a copy.
			a.deps.Logger.Warn("secret store read failed, falling back to config",
				"provider", a.provider, "error", err)
		}
	}

	if a.deps.Config != nil {
		cfg, err := a.deps.Config.Provider(a.provider)
		if err != nil {
			return nil, err
		}
		if cfg != nil && cfg.AuthData[KeyAPIKey] != "" {
			return Bundle{KeyAPIKey: cfg.AuthData[KeyAPIKey]}, nil
		}
	}

	return nil, nil
}

// ClearCredentials removes the key from the secret store and the config
// document. Clearing when nothing is stored is not an error.
func (a *APIKeyAuth) ClearCredentials() error {
	if a.deps.Secrets != nil {
		if err := a.deps.Secrets.Delete(a.provider, secrets.Account(a.provider)); err != nil {
			return fmt.Errorf("deleting stored key for %s: %w", a.provider, err)
		}
	}
	if a.deps.Config != nil {
		if err := a.deps.Config.ClearAuthData(a.provider); err != nil {
			return err
		}
	}
	return nil
}

// save persists the key, preferring the OS secret store and falling
// back to the config document when the keyring is unusable.
func (a *APIKeyAuth) save(key string) error {
	if a.deps.Secrets != nil {
		err := a.deps.Secrets.Set(a.provider, secrets.Account(a.provider), key)
		if err == nil {
			return nil
		}
		a.deps.Logger.Warn("secret store write failed, persisting to config",
			"provider", a.provider, "error", err)
	}
	if a.deps.Config != nil {
		return a.deps.Config.SetAuthData(a.provider, map[string]string{KeyAPIKey: key})
	}
	return fmt.Errorf("no credential store available for %s", a.provider)
}

var _ Strategy = (*APIKeyAuth)(nil)
