// Package config resolves the on-disk layout of a voiceboard installation.
package config

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the data directory when set (primarily for tests and
// portable installs).
const HomeEnv = "VOICEBOARD_HOME"

// Paths contains every filesystem location the daemon uses.
type Paths struct {
	Home     string // Data root directory
	ConfigDB string // SQLite configuration store path
	AudioDB  string // SQLite audio object store path
	Logs     string // Logs directory
	TempDir  string // Temporary files (import staging, export scratch)
}

// GetPaths returns the layout under the voiceboard home directory.
func GetPaths() Paths {
	home := Home()
	return Paths{
		Home:     home,
		ConfigDB: filepath.Join(home, "config.db"),
		AudioDB:  filepath.Join(home, "audio.db"),
		Logs:     filepath.Join(home, "logs"),
		TempDir:  filepath.Join(home, "tmp"),
	}
}

// Home returns the voiceboard data directory (~/.voiceboard unless
// overridden via VOICEBOARD_HOME).
func Home() string {
	if override := os.Getenv(HomeEnv); override != "" {
		return ExpandPath(override)
	}
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".voiceboard")
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureDirs creates the directory structure if it does not exist and
// returns the resolved paths.
func EnsureDirs() (Paths, error) {
	paths := GetPaths()

	dirs := []string{
		paths.Home,
		paths.Logs,
		paths.TempDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, err
		}
	}

	return paths, nil
}
