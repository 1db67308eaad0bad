// Package secrets provides the persistent store for credential material.
//
// Secrets are addressed by (service, account) where service is the
// canonical provider name and account is "<provider>_user". The default
// implementation is backed by the OS credential manager (macOS Keychain,
// Linux Secret Service, Windows Credential Manager); an in-memory
// implementation exists for tests and headless environments.
package secrets

import (
	"errors"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned by Get when no secret exists for the key.
var ErrNotFound = errors.New("secret not found")

// Store is the minimal key/value contract the auth subsystem needs.
type Store interface {
	// Set persists a secret, replacing any previous value.
	Set(service, account, secret string) error

	// Get retrieves a secret. Returns ErrNotFound if absent.
	Get(service, account string) (string, error)

	// Delete removes a secret. Deleting an absent secret is not an error.
	Delete(service, account string) error
}

// Account returns the account name used for a provider's secrets.
func Account(provider string) string {
	return provider + "_user"
}

// Keyring stores secrets in the OS credential manager.
type Keyring struct{}

// NewKeyring creates a keyring-backed store.
func NewKeyring() *Keyring {
	return &Keyring{}
}

func (k *Keyring) Set(service, account, secret string) error {
	return keyring.Set(service, account, secret)
}

func (k *Keyring) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return secret, nil
}

func (k *Keyring) Delete(service, account string) error {
	err := keyring.Delete(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Memory is an in-memory store for tests and environments without a
// usable OS credential manager. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Set(service, account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[service+"\x00"+account] = secret
	return nil
}

func (m *Memory) Get(service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	secret, ok := m.entries[service+"\x00"+account]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

func (m *Memory) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, service+"\x00"+account)
	return nil
}

var (
	_ Store = (*Keyring)(nil)
	_ Store = (*Memory)(nil)
)
