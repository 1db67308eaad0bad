// Package config provides the layered configuration store for modelforge.
//
// Configuration lives in two JSON documents: a global file under the
// user's config directory and an optional local file in the working
// directory. The local layer overrides the global layer per provider
// entry. Provider names are canonicalized to lowercase with hyphens at
// every boundary; underscores are accepted on input and normalized.
package config

import "strings"

// Strategy names accepted in a provider's auth_strategy field.
const (
	StrategyAPIKey     = "api_key"
	StrategyDeviceFlow = "device_flow"
	StrategyLocal      = "local"
	StrategyNone       = "none"
)

// Document is the root of a configuration layer.
type Document struct {
	DefaultProvider string                     `mapstructure:"default_provider" json:"default_provider,omitempty"`
	Providers       map[string]*ProviderConfig `mapstructure:"providers" json:"providers,omitempty"`
}

// ProviderConfig holds everything known about a single provider.
type ProviderConfig struct {
	// AuthStrategy selects the credential mechanism: "api_key",
	// "device_flow", "local", or "none". Absent means no auth needed.
	AuthStrategy string `mapstructure:"auth_strategy" json:"auth_strategy,omitempty"`

	// AuthDetails configures the device flow endpoints. Required when
	// AuthStrategy is "device_flow", ignored otherwise.
	AuthDetails *AuthDetails `mapstructure:"auth_details" json:"auth_details,omitempty"`

	// AuthData is credential material persisted directly in the config
	// document, as an alternative to the OS secret store.
	AuthData map[string]string `mapstructure:"auth_data" json:"auth_data,omitempty"`

	// BaseURL is the provider API endpoint, when not the default.
	BaseURL string `mapstructure:"base_url" json:"base_url,omitempty"`

	// DefaultModel is the model used when a request names none.
	DefaultModel string `mapstructure:"default_model" json:"default_model,omitempty"`
}

// AuthDetails holds the OAuth2 Device Authorization Grant endpoints.
type AuthDetails struct {
	ClientID      string `mapstructure:"client_id" json:"client_id"`
	DeviceCodeURL string `mapstructure:"device_code_url" json:"device_code_url"`
	TokenURL      string `mapstructure:"token_url" json:"token_url"`
	Scope         string `mapstructure:"scope" json:"scope,omitempty"`
}

// Complete reports whether all required device flow endpoints are set.
func (d *AuthDetails) Complete() bool {
	return d != nil && d.ClientID != "" && d.DeviceCodeURL != "" && d.TokenURL != ""
}

// CanonicalName normalizes a provider name to its canonical form:
// lowercase, hyphens as the only word separator. Idempotent.
func CanonicalName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, "_", "-")
}
