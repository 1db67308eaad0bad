package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	apperrors "github.com/modelforge/modelforge/internal/errors"
)

// Scope identifies which configuration layer an operation targets.
type Scope string

const (
	// ScopeGlobal is the per-user configuration layer.
	ScopeGlobal Scope = "global"

	// ScopeLocal is the per-directory layer that overrides global.
	ScopeLocal Scope = "local"
)

const (
	globalConfigDir = "modelforge"
	localConfigDir  = ".modelforge"
	configFileName  = "config.json"
)

// Store reads and writes the layered configuration documents.
type Store struct {
	globalPath string
	localPath  string
}

// NewStore creates a store using the standard file locations:
// $XDG_CONFIG_HOME/modelforge/config.json and ./.modelforge/config.json.
func NewStore() (*Store, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolving user config dir: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working dir: %w", err)
	}
	return NewStoreAt(
		filepath.Join(cfgDir, globalConfigDir, configFileName),
		filepath.Join(cwd, localConfigDir, configFileName),
	), nil
}

// NewStoreAt creates a store with explicit layer file paths.
func NewStoreAt(globalPath, localPath string) *Store {
	return &Store{globalPath: globalPath, localPath: localPath}
}

// GlobalPath returns the path of the global layer file.
func (s *Store) GlobalPath() string { return s.globalPath }

// LocalPath returns the path of the local layer file.
func (s *Store) LocalPath() string { return s.localPath }

// Load returns the merged view of both layers. Provider entries in the
// local layer replace same-named entries from the global layer wholesale;
// there is no field-level merging of a provider across layers.
func (s *Store) Load() (*Document, error) {
	global, err := s.Layer(ScopeGlobal)
	if err != nil {
		return nil, err
	}
	local, err := s.Layer(ScopeLocal)
	if err != nil {
		return nil, err
	}

	merged := &Document{
		DefaultProvider: global.DefaultProvider,
		Providers:       make(map[string]*ProviderConfig, len(global.Providers)+len(local.Providers)),
	}
	for name, cfg := range global.Providers {
		merged.Providers[CanonicalName(name)] = cfg
	}
	for name, cfg := range local.Providers {
		merged.Providers[CanonicalName(name)] = cfg
	}
	if local.DefaultProvider != "" {
		merged.DefaultProvider = local.DefaultProvider
	}
	return merged, nil
}

// Layer reads a single configuration layer. A missing file yields an
// empty document, not an error.
func (s *Store) Layer(scope Scope) (*Document, error) {
	path := s.path(scope)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return emptyDocument(), nil
		}
		return nil, &apperrors.ConfigurationError{
			Code:       apperrors.CodeInvalidResponseFormat,
			Message:    fmt.Sprintf("cannot parse %s", path),
			Suggestion: "validate the file is well-formed JSON",
			Err:        err,
		}
	}

	doc := emptyDocument()
	if err := v.Unmarshal(doc); err != nil {
		return nil, &apperrors.ConfigurationError{
			Code:       apperrors.CodeInvalidResponseFormat,
			Message:    fmt.Sprintf("cannot decode %s", path),
			Suggestion: "check field types against the documented schema",
			Err:        err,
		}
	}
	if doc.Providers == nil {
		doc.Providers = make(map[string]*ProviderConfig)
	}
	return doc, nil
}

// Provider returns the merged configuration for a provider, or nil if
// the provider is not configured in either layer.
func (s *Store) Provider(name string) (*ProviderConfig, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	return doc.Providers[CanonicalName(name)], nil
}

// SetProvider writes a provider entry into the given layer.
func (s *Store) SetProvider(name string, cfg *ProviderConfig, scope Scope) error {
	doc, err := s.Layer(scope)
	if err != nil {
		return err
	}
	doc.Providers[CanonicalName(name)] = cfg
	return s.write(scope, doc)
}

// SetDefaultProvider records the default provider in the given layer.
func (s *Store) SetDefaultProvider(name string, scope Scope) error {
	doc, err := s.Layer(scope)
	if err != nil {
		return err
	}
	doc.DefaultProvider = CanonicalName(name)
	return s.write(scope, doc)
}

// RemoveProvider deletes a provider entry from the given layer.
func (s *Store) RemoveProvider(name string, scope Scope) error {
	doc, err := s.Layer(scope)
	if err != nil {
		return err
	}
	delete(doc.Providers, CanonicalName(name))
	return s.write(scope, doc)
}

// SetAuthData stores credential material under the provider's auth_data.
// The write goes to the layer the provider entry lives in; the local
// layer wins when both define it.
func (s *Store) SetAuthData(provider string, data map[string]string) error {
	scope, cfg, err := s.locate(provider)
	if err != nil {
		return err
	}
	if cfg.AuthData == nil {
		cfg.AuthData = make(map[string]string, len(data))
	}
	for k, v := range data {
		cfg.AuthData[k] = v
	}
	return s.SetProvider(provider, cfg, scope)
}

// ClearAuthData removes all stored credential material for a provider.
// Clearing an unconfigured provider is a no-op.
func (s *Store) ClearAuthData(provider string) error {
	scope, cfg, err := s.locate(provider)
	if err != nil {
		if isNotConfigured(err) {
			return nil
		}
		return err
	}
	cfg.AuthData = nil
	return s.SetProvider(provider, cfg, scope)
}

// locate finds the layer holding a provider entry, preferring local.
func (s *Store) locate(provider string) (Scope, *ProviderConfig, error) {
	name := CanonicalName(provider)
	for _, scope := range []Scope{ScopeLocal, ScopeGlobal} {
		doc, err := s.Layer(scope)
		if err != nil {
			return "", nil, err
		}
		if cfg, ok := doc.Providers[name]; ok {
			return scope, cfg, nil
		}
	}
	return "", nil, &apperrors.ConfigurationError{
		Code:       apperrors.CodeProviderNotConfigured,
		Message:    fmt.Sprintf("provider %q is not configured", name),
		Suggestion: fmt.Sprintf("run 'modelforge config set-provider %s' first", name),
	}
}

func (s *Store) path(scope Scope) string {
	if scope == ScopeLocal {
		return s.localPath
	}
	return s.globalPath
}

func (s *Store) write(scope Scope, doc *Document) error {
	path := s.path(scope)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	data = append(data, '\n')

	// Config can hold auth_data, so keep it owner-readable only.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func emptyDocument() *Document {
	return &Document{Providers: make(map[string]*ProviderConfig)}
}

func isNotConfigured(err error) bool {
	var cfgErr *apperrors.ConfigurationError
	return errors.As(err, &cfgErr) && cfgErr.Code == apperrors.CodeProviderNotConfigured
}
