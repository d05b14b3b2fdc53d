// Package bootstrap resolves configuration and builds the shared components
// (RAG client, history storage, event publisher) that ragtube commands use.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragtube/cmd/ragtube/sqlitepath"
	"github.com/papercomputeco/ragtube/pkg/config"
	"github.com/papercomputeco/ragtube/pkg/credentials"
	"github.com/papercomputeco/ragtube/pkg/dotdir"
	"github.com/papercomputeco/ragtube/pkg/eventstream"
	"github.com/papercomputeco/ragtube/pkg/eventstream/kafka"
	"github.com/papercomputeco/ragtube/pkg/eventstream/nop"
	"github.com/papercomputeco/ragtube/pkg/logger"
	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/storage"
	"github.com/papercomputeco/ragtube/pkg/storage/inmemory"
	"github.com/papercomputeco/ragtube/pkg/storage/postgres"
	"github.com/papercomputeco/ragtube/pkg/storage/sqlite"
)

// ConfigDir returns the --config-dir override, empty when unset.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config-dir")
	return dir
}

// Debug reports whether --debug was passed.
func Debug(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool("debug")
	return debug
}

// Logger builds the CLI logger honoring --debug.
func Logger(cmd *cobra.Command) *slog.Logger {
	return logger.NewCLI(Debug(cmd))
}

// LoadConfig resolves the configuration for cmd with precedence
// flag > env > config.toml > defaults. flagKeys are the config.Registry keys
// the command registered.
func LoadConfig(cmd *cobra.Command, flagKeys ...string) (*config.Config, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Registry, flagKeys)
	return config.FromViper(v), nil
}

// NewClient builds the RAG client, attaching stored basic auth credentials
// for the target when present.
func NewClient(cfg *config.Config, configDir string, l *slog.Logger) (*rag.Client, error) {
	opts := []rag.Option{
		rag.WithLogger(l),
		rag.WithTimeout(cfg.Client.TimeoutDuration()),
	}

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	auth, err := creds.GetBasicAuth(cfg.Client.APITarget)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	if !auth.IsZero() {
		l.Debug("using stored credentials", "target", cfg.Client.APITarget, "username", auth.Username)
		opts = append(opts, rag.WithBasicAuth(auth.Username, auth.Password))
	}

	return rag.NewClient(cfg.Client.APITarget, opts...), nil
}

// OpenStorage opens the configured history storage driver.
func OpenStorage(ctx context.Context, cfg *config.Config, configDir string, l *slog.Logger) (storage.Driver, error) {
	switch cfg.Storage.Provider {
	case "memory":
		l.Debug("using in-memory history storage")
		return inmemory.NewDriver(), nil

	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("storage.postgres_dsn is required for the postgres provider")
		}
		driver, err := postgres.NewDriver(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		l.Debug("using PostgreSQL history storage")
		return driver, nil

	case "", "sqlite":
		dir, err := dotdir.NewManager().Target(configDir)
		if err != nil {
			return nil, err
		}
		path := sqlitepath.ResolveSQLitePath(cfg.Storage.SQLitePath, dir)

		driver, err := sqlite.NewSQLiteDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		l.Debug("using SQLite history storage", "path", path)
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage provider: %q", cfg.Storage.Provider)
	}
}

// OpenPublisher opens the configured exchange event publisher.
func OpenPublisher(cfg *config.Config, l *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.EventStream.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.EventStream.BrokerList(),
			Topic:   cfg.EventStream.Topic,
			Logger:  l,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		l.Debug("publishing exchanges to Kafka", "topic", cfg.EventStream.Topic)
		return p, nil

	default:
		return nil, fmt.Errorf("unknown eventstream provider: %q", cfg.EventStream.Provider)
	}
}
