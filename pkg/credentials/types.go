package credentials

// Credentials represents the stored backend credentials in credentials.toml.
// Entries are keyed by the backend base URL.
type Credentials struct {
	Version  int                  `toml:"version"`
	Backends map[string]BasicAuth `toml:"backends"`
}

// BasicAuth holds HTTP Basic credentials for one backend.
type BasicAuth struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// IsZero reports whether no username is set.
func (b BasicAuth) IsZero() bool {
	return b.Username == ""
}
