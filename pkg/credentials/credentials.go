// Package credentials resolves the secrets the recents CLI needs to reach its
// backing stores: the call-log database password and the Redis password.
//
// Secrets are stored in the system keyring:
// - macOS: Keychain
// - Windows: Credential Manager
// - Linux: Secret Service (libsecret)
//
// For CI/testing environments, set RECENTS_DB_PASSWORD or
// RECENTS_REDIS_PASSWORD instead. Environment variables win over the keyring.
package credentials

import (
	"errors"
	"fmt"
	"strings"
)

// Secret names.
const (
	DBPassword    = "db-password"
	RedisPassword = "redis-password"
)

// EnvPrefix is prepended to the upper-cased secret name to form its variable.
const EnvPrefix = "RECENTS_"

// Common errors.
var (
	// ErrNoCredentials is returned when a secret is not stored anywhere.
	ErrNoCredentials = errors.New("no credentials stored")
	// ErrUnknownSecret is returned for names other than the known secrets.
	ErrUnknownSecret = errors.New("unknown secret")
)

// Names lists the secrets the store manages.
func Names() []string {
	return []string{DBPassword, RedisPassword}
}

func validName(name string) error {
	for _, n := range Names() {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (expected one of %s)", ErrUnknownSecret, name, strings.Join(Names(), ", "))
}

// Store resolves secrets from read-only providers first and falls back to a
// writable one.
type Store struct {
	readers  []Provider
	writable WritableProvider
}

// NewStore creates a store backed by the environment and the system keyring.
func NewStore() *Store {
	return NewStoreWithProviders(NewKeyringProvider(), NewEnvProvider(EnvPrefix))
}

// NewStoreWithProviders creates a store with custom providers.
// This is primarily used for testing.
func NewStoreWithProviders(writable WritableProvider, readers ...Provider) *Store {
	return &Store{readers: readers, writable: writable}
}

// Get returns the secret and the description of the provider it came from.
func (s *Store) Get(name string) (string, string, error) {
	if err := validName(name); err != nil {
		return "", "", err
	}

	providers := append([]Provider{}, s.readers...)
	if s.writable != nil {
		providers = append(providers, s.writable)
	}

	var errs []error
	for _, p := range providers {
		v, err := p.Get(name)
		if err == nil {
			return v, p.Description(), nil
		}
		if !errors.Is(err, ErrNoCredentials) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", "", errors.Join(errs...)
	}
	return "", "", ErrNoCredentials
}

// Lookup returns the secret or "" when it is not stored. Provider failures
// are returned as errors.
func (s *Store) Lookup(name string) (string, error) {
	v, _, err := s.Get(name)
	if errors.Is(err, ErrNoCredentials) {
		return "", nil
	}
	return v, err
}

// Set stores a secret in the writable provider.
func (s *Store) Set(name, value string) error {
	if err := validName(name); err != nil {
		return err
	}
	if value == "" {
		return errors.New("secret value must not be empty")
	}
	if s.writable == nil {
		return errors.New("no writable credential provider")
	}
	return s.writable.Set(name, value)
}

// Delete removes a secret from the writable provider.
func (s *Store) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if s.writable == nil {
		return errors.New("no writable credential provider")
	}
	return s.writable.Delete(name)
}

// Description names where secrets are written.
func (s *Store) Description() string {
	if s.writable == nil {
		return "none"
	}
	return s.writable.Description()
}
