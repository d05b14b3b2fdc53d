// Package configcmder provides the config command for managing persistent
// ragtube configuration stored in the .ragtube/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent ragtube configuration.

Configuration is stored as config.toml in the .ragtube/ directory and provides
default values for command flags. CLI flags and RAGTUBE_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.api_target, client.channel_id, client.timeout,
  storage.provider, storage.sqlite_path, storage.postgres_dsn,
  eventstream.provider, eventstream.brokers, eventstream.topic,
  serve.listen

Use subcommands to get, set, or list configuration values:
  ragtube config set <key> <value>    Set a configuration value
  ragtube config get <key>            Get a configuration value
  ragtube config list                 List all configuration values

Examples:
  ragtube config set client.api_target http://rag.internal:5000
  ragtube config set storage.provider postgres
  ragtube config get client.channel_id
  ragtube config list`

const configShortDesc string = "Manage persistent ragtube configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
