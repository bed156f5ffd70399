// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores session slots in the OS keychain/credential store.
//
// On macOS the native `security` command is preferred; everywhere else the
// 99designs/keyring library picks a platform backend (Keychain, Windows
// Credential Manager, Secret Service, KWallet, pass or keyctl). Manager
// implements store.Store and is safe for concurrent use. Items are kept
// under "<namespace>:<key>", so several sessions can share one keychain.
package keychain

import (
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/99designs/keyring"

	"tokenkeeper/cli/internal/store"
)

// Manager provides thread-safe operations for the OS keychain.
type Manager struct {
	mu        sync.RWMutex
	ring      keyring.Keyring
	backend   keychainBackend
	namespace string
}

// keychainBackend defines the interface for native keychain operations.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// ServiceName identifies our keychain/credential store entries. It is also
// the default namespace.
const ServiceName = "tokenkeeper"

// NewManager creates a new keychain manager with the OS keyring initialized.
// An empty namespace becomes ServiceName.
func NewManager(namespace string) (*Manager, error) {
	// Try native security backend first on macOS
	if runtime.GOOS == "darwin" {
		backend, err := newSecurityBackend()
		if err == nil {
			return &Manager{backend: backend, namespace: defaultNamespace(namespace)}, nil
		}
		slog.Debug("keychain: security command unavailable, using keyring", "error", err)
	}

	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return NewWithKeyring(ring, namespace), nil
}

// NewWithKeyring wraps an already opened keyring.
func NewWithKeyring(ring keyring.Keyring, namespace string) *Manager {
	return &Manager{ring: ring, namespace: defaultNamespace(namespace)}
}

func defaultNamespace(ns string) string {
	if ns == "" {
		return ServiceName
	}
	return ns
}

// itemKey is the keychain item name for a store key.
func (m *Manager) itemKey(key string) string { return m.namespace + ":" + key }

// openRing opens the OS keyring using native platform backends only.
// No encrypted-file fallback: the file store covers that case explicitly.
func openRing() (keyring.Keyring, error) {
	var allowedBackends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		// Pass requires 'pass' utility installed: brew install pass
		allowedBackends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowedBackends = []keyring.BackendType{keyring.WinCredBackend}
	case "linux", "freebsd", "openbsd":
		allowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
			keyring.KeyCtlBackend,
		}
	default:
		return nil, errors.New("secure storage not supported on this OS; use --store file")
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowedBackends,
		PassPrefix:      ServiceName,
		KeyCtlScope:     "user",
	}
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = ServiceName
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. On macOS 26.0+, install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}
	return ring, nil
}

// Get returns the value under key, or store.ErrNotFound.
func (m *Manager) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backend != nil {
		v, err := m.backend.Get(m.itemKey(key))
		if err != nil {
			return "", err
		}
		if v == "" {
			return "", store.ErrNotFound
		}
		return v, nil
	}

	it, err := m.ring.Get(m.itemKey(key))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", store.ErrNotFound
	}
	return string(it.Data), nil
}

// Set stores value under key, replacing any previous value.
func (m *Manager) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Set(m.itemKey(key), value)
	}
	return m.ring.Set(keyring.Item{
		Key:         m.itemKey(key),
		Data:        []byte(value),
		Label:       ServiceName + " " + m.itemKey(key),
		Description: "tokenkeeper session slot",
	})
}

// Remove deletes key. Missing keys are ignored.
func (m *Manager) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Delete(m.itemKey(key))
	}
	if err := m.ring.Remove(m.itemKey(key)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
