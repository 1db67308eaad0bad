package auth

import (
	"fmt"

	"github.com/modelforge/modelforge/internal/config"
	apperrors "github.com/modelforge/modelforge/internal/errors"
)

// ForProvider resolves a provider's configured auth_strategy to a
// concrete Strategy. An absent auth_strategy defaults to NoAuth; an
// unknown one is a configuration error, never a silent fallback.
func ForProvider(provider string, cfg *config.ProviderConfig, deps Deps) (Strategy, error) {
	name := config.CanonicalName(provider)

	if cfg == nil {
		return nil, &apperrors.ConfigurationError{
			Code:       apperrors.CodeProviderNotConfigured,
			Message:    fmt.Sprintf("provider %q is not configured", name),
			Suggestion: fmt.Sprintf("run 'modelforge config set-provider %s' to add it", name),
		}
	}

	switch cfg.AuthStrategy {
	case "", config.StrategyNone, config.StrategyLocal:
		return NoAuth{}, nil

	case config.StrategyAPIKey:
		return NewAPIKeyAuth(name, deps), nil

	case config.StrategyDeviceFlow:
		if !cfg.AuthDetails.Complete() {
			return nil, &apperrors.ConfigurationError{
				Code:       apperrors.CodeDeviceFlowMisconfig,
				Message:    fmt.Sprintf("provider %q uses device_flow but auth_details is missing or incomplete", name),
				Suggestion: "set auth_details.client_id, device_code_url, and token_url in the provider configuration",
			}
		}
		return NewDeviceFlowAuth(name, *cfg.AuthDetails, deps), nil

	default:
		return nil, &apperrors.ConfigurationError{
			Code:       apperrors.CodeUnknownAuthStrategy,
			Message:    fmt.Sprintf("provider %q has unknown auth_strategy %q", name, cfg.AuthStrategy),
			Suggestion: "use one of: api_key, device_flow, local, none",
		}
	}
}
