// Package dotdir locates the directory ragtube keeps its files in:
// config.toml, credentials.toml, the default SQLite history database and the
// session state behind "chat --resume".
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the ragtube directory.
	DirName = ".ragtube"

	// HomeEnv names the environment variable that points ragtube at a
	// directory when no override is given.
	HomeEnv = "RAGTUBE_HOME"
)

// Manager resolves and creates the ragtube directory.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the ragtube directory, creating it when
// missing. The first of these wins:
//
//	overrideDir (the --config-dir flag)
//	$RAGTUBE_HOME
//	./.ragtube, only if it already exists
//	~/.ragtube
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, err := m.resolve(overrideDir)
	if err != nil {
		return "", err
	}

	// credentials.toml lives here.
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating ragtube directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// File returns the path of name inside the directory Target resolves.
func (m *Manager) File(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (m *Manager) resolve(overrideDir string) (string, error) {
	if overrideDir != "" {
		return overrideDir, nil
	}

	if env := os.Getenv(HomeEnv); env != "" {
		return env, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, DirName)
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			return local, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}
