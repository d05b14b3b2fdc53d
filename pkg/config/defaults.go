package config

const (
	defaultClientAPITarget = "http://localhost:5000"
	defaultClientTimeout   = "2m"

	defaultStorageProvider     = "sqlite"
	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "ragtube.exchanges"

	defaultServeListen = ":8082"
)

// StorageProviders lists the accepted storage.provider values.
var StorageProviders = []string{"sqlite", "postgres", "memory"}

// EventStreamProviders lists the accepted eventstream.provider values.
var EventStreamProviders = []string{"nop", "kafka"}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
			Timeout:   defaultClientTimeout,
		},
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
		Serve: ServeConfig{
			Listen: defaultServeListen,
		},
	}
}
