// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package session

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings is the persisted auth policy (auth.yaml in the data directory).
type Settings struct {
	// TimeoutMinutes auto-locks the session after inactivity. 0 = never.
	TimeoutMinutes int `yaml:"timeout_minutes"`
}

// loadSettings reads auth.yaml, returning defaults when the file is absent.
func loadSettings(path string, defaults Settings) (Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("failed to read auth settings: %w", err)
	}

	settings := defaults
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return defaults, fmt.Errorf("failed to parse auth settings: %w", err)
	}
	if settings.TimeoutMinutes < 0 {
		return defaults, fmt.Errorf("timeout_minutes cannot be negative")
	}
	return settings, nil
}

// saveSettings writes auth.yaml via a temp file + rename.
func saveSettings(path string, settings Settings) error {
	data, err := yaml.Marshal(&settings)
	if err != nil {
		return fmt.Errorf("failed to marshal auth settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write auth settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit auth settings: %w", err)
	}
	return nil
}
