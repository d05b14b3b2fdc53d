// Package sqlitepath locates the SQLite history database.
package sqlitepath

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName is the history database created in the .ragtube/ directory.
const DefaultFileName = "ragtube.db"

// ResolveSQLitePath returns the history database path. Order of precedence:
//  1. Provided override (flag or config value)
//  2. RAGTUBE_SQLITE, then RAGTUBE_DB
//  3. An existing database in a well-known location
//  4. ragtube.db inside dotDir
func ResolveSQLitePath(override, dotDir string) string {
	if override != "" {
		return override
	}

	if envPath := strings.TrimSpace(os.Getenv("RAGTUBE_SQLITE")); envPath != "" {
		return envPath
	}
	if envPath := strings.TrimSpace(os.Getenv("RAGTUBE_DB")); envPath != "" {
		return envPath
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return filepath.Join(dotDir, DefaultFileName)
}

func sqliteCandidates() []string {
	candidates := []string{
		filepath.Join(".ragtube", "ragtube.db"),
		filepath.Join(".ragtube", "ragtube.sqlite"),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".ragtube", "ragtube.db"),
			filepath.Join(home, ".ragtube", "ragtube.sqlite"),
		)
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append([]string{
			filepath.Join(xdgHome, "ragtube", "ragtube.db"),
			filepath.Join(xdgHome, "ragtube", "ragtube.sqlite"),
		}, candidates...)
	}

	return candidates
}
