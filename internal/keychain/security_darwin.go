// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build darwin

package keychain

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"tokenkeeper/cli/internal/store"
)

// securityBackend implements keychain operations using macOS security command.
type securityBackend struct{}

// newSecurityBackend creates a new macOS security command backend.
func newSecurityBackend() (*securityBackend, error) {
	if _, err := exec.LookPath("security"); err != nil {
		return nil, fmt.Errorf("security command not found: %w", err)
	}
	return &securityBackend{}, nil
}

// Set stores a key-value pair in macOS keychain. The command is written to
// `security -i` on stdin so the value stays out of the process list.
func (s *securityBackend) Set(key, value string) error {
	slog.Debug("keychain: set", "key", key, "length", len(value))

	line, err := securityAddCommand(ServiceName, key, value)
	if err != nil {
		return fmt.Errorf("failed to store '%s' in keychain: %w", key, err)
	}
	cmd := exec.Command("security", "-i")
	cmd.Stdin = strings.NewReader(line)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// interactive mode reports command failures on stderr with exit status 0
	if err := cmd.Run(); err != nil || stderr.Len() > 0 {
		if err == nil {
			err = errors.New("add-generic-password failed")
		}
		return fmt.Errorf("failed to store '%s' in keychain: %s: %w", key, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// Get retrieves a value from macOS keychain.
func (s *securityBackend) Get(key string) (string, error) {
	cmd := exec.Command("security", "find-generic-password",
		"-a", ServiceName,
		"-s", key,
		"-w", // output password only
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if strings.Contains(stderr.String(), "could not be found") {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("failed to retrieve '%s' from keychain: %s: %w", key, strings.TrimSpace(stderr.String()), err)
	}

	result := strings.TrimSpace(stdout.String())
	slog.Debug("keychain: get", "key", key, "length", len(result))
	return result, nil
}

// Delete removes a key from macOS keychain.
func (s *securityBackend) Delete(key string) error {
	cmd := exec.Command("security", "delete-generic-password",
		"-a", ServiceName,
		"-s", key,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if strings.Contains(stderr.String(), "could not be found") {
			return nil
		}
		return fmt.Errorf("failed to delete '%s' from keychain: %s: %w", key, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}
