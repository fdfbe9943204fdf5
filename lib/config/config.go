// Copyright 2026 The Wraith Authors
// SPDX-License-Identifier: Apache-2.0

// Package config resolves Wraith's on-disk layout (state directory,
// socket path), the ingestion endpoint, the telemetry kill switches,
// and the persisted per-installation identifier.
//
// Two kill switches exist and both are checked once at daemon startup:
// the INFRAIQ_TELEMETRY environment variable ("false" or "0" disables)
// and the persisted settings file (telemetry: false). Neither is
// re-read while the daemon runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	// stateDirName is the directory under the user's home that holds
	// the socket, settings, and installation id.
	stateDirName = ".infraiq"

	socketName         = "wraith.sock"
	settingsName       = "settings.yaml"
	installationIDName = "installation_id"

	// DefaultEndpoint is the ingestion endpoint used when
	// WRAITH_SERVER_URL is not set.
	DefaultEndpoint = "https://telemetry.autonops.io/events"

	// EnvKillSwitch disables telemetry when set to "false" or "0".
	EnvKillSwitch = "INFRAIQ_TELEMETRY"

	// EnvEndpoint overrides the ingestion endpoint.
	EnvEndpoint = "WRAITH_SERVER_URL"
)

// DefaultStateDir returns ~/.infraiq.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, stateDirName), nil
}

// SocketPath returns the intake socket path under the state directory.
func SocketPath(stateDir string) string {
	return filepath.Join(stateDir, socketName)
}

// Endpoint returns the ingestion endpoint, honoring the
// WRAITH_SERVER_URL override.
func Endpoint() string {
	if url := os.Getenv(EnvEndpoint); url != "" {
		return url
	}
	return DefaultEndpoint
}

// Settings is the persisted configuration file
// (<state-dir>/settings.yaml). Telemetry is a pointer so that an
// absent key means "no opinion" rather than false.
type Settings struct {
	Telemetry *bool `yaml:"telemetry"`
}

// LoadSettings reads the settings file. A missing file yields zero
// Settings and no error; a present but unparseable file is an error.
func LoadSettings(stateDir string) (Settings, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, settingsName))
	if err != nil {
		if os.IsNotExist(err) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parsing settings: %w", err)
	}
	return settings, nil
}

// TelemetryDisabled reports whether telemetry collection is switched
// off, and which switch made the decision ("environment" or
// "settings"). An unreadable settings file does not disable telemetry;
// the error is returned so the caller can log it.
func TelemetryDisabled(stateDir string) (bool, string, error) {
	if value, ok := os.LookupEnv(EnvKillSwitch); ok {
		if disabledValue(value) {
			return true, "environment", nil
		}
	}

	settings, err := LoadSettings(stateDir)
	if err != nil {
		return false, "", err
	}
	if settings.Telemetry != nil && !*settings.Telemetry {
		return true, "settings", nil
	}
	return false, "", nil
}

func disabledValue(value string) bool {
	return strings.EqualFold(value, "false") || value == "0"
}

// InstallationID returns the stable per-install identifier, creating
// and persisting a fresh one on first run. When persisting fails, the
// fresh id is still returned alongside the error so that the daemon
// can operate for this run (the id simply won't be stable).
func InstallationID(stateDir string) (string, error) {
	path := filepath.Join(stateDir, installationIDName)

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return id, fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return id, fmt.Errorf("persisting installation id: %w", err)
	}
	return id, nil
}
