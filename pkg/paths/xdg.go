// Package paths provides XDG-compliant path resolution for packreload.
//
// Resolution order:
// 1. PACKRELOAD_HOME (portable root) → $PACKRELOAD_HOME/{config,state}
// 2. XDG env vars → $XDG_*_HOME/packreload
// 3. Platform defaults → ~/.config/packreload, ~/.local/state/packreload
package paths

import (
	"os"
	"path/filepath"
)

const appName = "packreload"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if home := os.Getenv("PACKRELOAD_HOME"); home != "" {
		return filepath.Join(home, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if home := os.Getenv("PACKRELOAD_HOME"); home != "" {
		return filepath.Join(home, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the global configuration directory.
// It holds the toolchain config file and the fallback compiler script.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// StateDir returns the state directory.
// Used for logs and the pid file.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// LogDir returns the directory holding operational logs.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// SettingsPath returns the default host settings file.
func SettingsPath() string {
	return filepath.Join(ConfigDir(), appName+".yml")
}

// PidFilePath returns the path to the standalone host PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), appName+".pid")
}

// SocketPath returns the unix socket the standalone host serves on.
func SocketPath() string {
	return filepath.Join(StateDir(), appName+".sock")
}

// EnsureDirs creates all packreload directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), LogDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
