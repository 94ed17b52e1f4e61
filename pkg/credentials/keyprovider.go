package credentials

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name used in the system keyring.
const keyringService = "recents"

// ErrKeyringUnavailable indicates the system keyring is not available.
var ErrKeyringUnavailable = errors.New("system keyring unavailable")

// Provider is a source of named secrets.
type Provider interface {
	// Get returns the secret, or ErrNoCredentials when it is not stored.
	Get(name string) (string, error)

	// Description returns a human-readable description of the storage mechanism.
	Description() string
}

// WritableProvider can also store and remove secrets.
type WritableProvider interface {
	Provider
	Set(name, value string) error
	Delete(name string) error
}

// KeyringProvider stores secrets in the system keyring
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
type KeyringProvider struct {
	mu      sync.Mutex
	service string
}

// NewKeyringProvider creates a new KeyringProvider.
func NewKeyringProvider() *KeyringProvider {
	return &KeyringProvider{service: keyringService}
}

// Get retrieves a secret from the system keyring.
func (p *KeyringProvider) Get(name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	value, err := keyring.Get(p.service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return value, nil
}

// Set stores a secret in the system keyring, replacing any existing value.
func (p *KeyringProvider) Set(name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := keyring.Set(p.service, name, value); err != nil {
		return fmt.Errorf("%w: storing %s: %v", ErrKeyringUnavailable, name, err)
	}
	return nil
}

// Delete removes a secret. Deleting a missing secret is not an error.
func (p *KeyringProvider) Delete(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := keyring.Delete(p.service, name)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("%w: deleting %s: %v", ErrKeyringUnavailable, name, err)
}

// Description returns a description of this provider.
func (p *KeyringProvider) Description() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "System Keyring (Secret Service)"
	}
}

// EnvProvider reads secrets from environment variables named
// <prefix><NAME>, with dashes turned into underscores.
// This is primarily for CI and container deployments.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a new EnvProvider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// EnvVar returns the variable consulted for name.
func (p *EnvProvider) EnvVar(name string) string {
	return p.prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Get returns the secret from the environment.
func (p *EnvProvider) Get(name string) (string, error) {
	if v := os.Getenv(p.EnvVar(name)); v != "" {
		return v, nil
	}
	return "", ErrNoCredentials
}

// Description returns a description of this provider.
func (p *EnvProvider) Description() string {
	return fmt.Sprintf("Environment variables (%s*)", p.prefix)
}
