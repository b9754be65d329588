package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the keyring service under which API keys are stored.
	ServiceName = "n8nctl"

	indexKey = "__n8nctl_index__"
)

// ErrNotFound is returned when no API key is stored for an instance.
var ErrNotFound = errors.New("api key not found")

// CredentialStore stores secrets by key.
type CredentialStore interface {
	Set(key string, value string) error
	Get(key string) (string, error)
	Delete(key string) error
	List() ([]string, error)
}

// KeyringCredentialStore implements CredentialStore using the system keyring.
// - macOS: Uses Keychain
// - Windows: Uses Credential Manager
// - Linux: Uses Secret Service (GNOME Keyring, KWallet)
//
// Keys are server base URLs, so each instance has its own API key.
type KeyringCredentialStore struct {
	service string
}

// NewKeyringCredentialStore creates a new keyring-based credential store.
func NewKeyringCredentialStore() *KeyringCredentialStore {
	return &KeyringCredentialStore{
		service: ServiceName,
	}
}

// Set stores value under key.
func (s *KeyringCredentialStore) Set(key string, value string) error {
	if key == "" {
		return fmt.Errorf("credential key cannot be empty")
	}
	if value == "" {
		return fmt.Errorf("api key cannot be empty")
	}

	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("failed to store api key: %w", err)
	}
	return s.updateIndex(key, true)
}

// Get returns the value stored under key, or ErrNotFound.
func (s *KeyringCredentialStore) Get(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("credential key cannot be empty")
	}

	value, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w for %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to retrieve api key: %w", err)
	}
	return value, nil
}

// Delete removes the value stored under key.
func (s *KeyringCredentialStore) Delete(key string) error {
	if key == "" {
		return fmt.Errorf("credential key cannot be empty")
	}

	if err := keyring.Delete(s.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w for %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return s.updateIndex(key, false)
}

// List returns the keys that have a stored value, sorted.
// The keyring cannot enumerate entries, so an index entry is kept alongside.
func (s *KeyringCredentialStore) List() ([]string, error) {
	indexJSON, err := keyring.Get(s.service, indexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to retrieve key index: %w", err)
	}

	var keys []string
	if err := json.Unmarshal([]byte(indexJSON), &keys); err != nil {
		return nil, fmt.Errorf("failed to parse key index: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *KeyringCredentialStore) updateIndex(key string, present bool) error {
	keys, err := s.List()
	if err != nil {
		return err
	}

	next := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		if k != key {
			next = append(next, k)
		}
	}
	if present {
		next = append(next, key)
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal key index: %w", err)
	}
	if err := keyring.Set(s.service, indexKey, string(data)); err != nil {
		return fmt.Errorf("failed to save key index: %w", err)
	}
	return nil
}
