// Package credentials stores HTTP Basic credentials for RAG backends in
// credentials.toml inside the .ragtube/ directory.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/ragtube/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0

	// EnvUsername and EnvPassword override stored credentials for every backend.
	EnvUsername = "RAGTUBE_USERNAME"
	EnvPassword = "RAGTUBE_PASSWORD"
)

// Manager manages reading and writing credentials.toml in the .ragtube/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .ragtube/ directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version:  currentVersion,
				Backends: make(map[string]BasicAuth),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Backends == nil {
		creds.Backends = make(map[string]BasicAuth)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetBasicAuth stores credentials for the backend at target.
func (m *Manager) SetBasicAuth(target, username, password string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Backends[normalizeTarget(target)] = BasicAuth{Username: username, Password: password}

	return m.Save(creds)
}

// GetBasicAuth returns the credentials for target. The RAGTUBE_USERNAME and
// RAGTUBE_PASSWORD environment variables take precedence over the file. A
// zero BasicAuth means none are configured.
func (m *Manager) GetBasicAuth(target string) (BasicAuth, error) {
	if user := os.Getenv(EnvUsername); user != "" {
		return BasicAuth{Username: user, Password: os.Getenv(EnvPassword)}, nil
	}

	creds, err := m.Load()
	if err != nil {
		return BasicAuth{}, err
	}

	return creds.Backends[normalizeTarget(target)], nil
}

// Remove deletes the stored credentials for target.
func (m *Manager) Remove(target string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Backends, normalizeTarget(target))

	return m.Save(creds)
}

// ListTargets returns the backends that have stored credentials.
func (m *Manager) ListTargets() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	targets := make([]string, 0, len(creds.Backends))
	for name := range creds.Backends {
		targets = append(targets, name)
	}

	sort.Strings(targets)

	return targets, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

func normalizeTarget(target string) string {
	return strings.TrimRight(strings.TrimSpace(target), "/")
}
