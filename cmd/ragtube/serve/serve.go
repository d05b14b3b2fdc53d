// Package servecmder provides the serve command that runs the history API
// and MCP server.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragtube/api"
	"github.com/papercomputeco/ragtube/api/mcp"
	"github.com/papercomputeco/ragtube/cmd/ragtube/bootstrap"
	"github.com/papercomputeco/ragtube/pkg/config"
	"github.com/papercomputeco/ragtube/pkg/logger"
	"github.com/papercomputeco/ragtube/pkg/worker"
)

const serveLongDesc string = `Run the ragtube history server.

Serves stored chat history over HTTP and exposes an MCP endpoint at /mcp so
agents can ask the RAG backend questions. Exchanges produced through MCP are
saved to history and published to the configured event stream.

Endpoints:
  GET  /ping              Liveness check
  GET  /sessions          Stored sessions, most recent first (?limit=&offset=)
  GET  /sessions/:id      Messages of one session
  *    /mcp               Streamable HTTP MCP endpoint`

const serveShortDesc string = "Run the history API and MCP server"

type serveCommander struct {
	listen          string
	apiTarget       string
	storageProvider string
	sqlitePath      string
	postgresDSN     string
	eventStream     string
	kafkaBrokers    string
	kafkaTopic      string

	logFile string
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagAPITarget,
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagEventStream,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Registry, config.FlagEventStream, &cmder.eventStream)
	config.AddStringFlag(cmd, config.Registry, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Registry, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	l := bootstrap.Logger(cmd)

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()

		l = logger.Tee(l, logger.New(
			logger.WithWriter(f),
			logger.WithFormat(logger.FormatJSON),
			logger.WithDebug(bootstrap.Debug(cmd)),
		))
	}

	cfg, err := bootstrap.LoadConfig(cmd, serveFlags...)
	if err != nil {
		return err
	}

	driver, err := bootstrap.OpenStorage(ctx, cfg, bootstrap.ConfigDir(cmd), l)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := bootstrap.OpenPublisher(cfg, l)
	if err != nil {
		return err
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: publisher,
		Logger:    l,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Close()

	client, err := bootstrap.NewClient(cfg, bootstrap.ConfigDir(cmd), l)
	if err != nil {
		return err
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Backend:    client,
		Driver:     driver,
		OnExchange: pool.Hook(),
		Logger:     l,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server, err := api.NewServer(api.Config{ListenAddr: cfg.Serve.Listen}, driver, mcpServer, l)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	l.Info("starting history server",
		"addr", cfg.Serve.Listen,
		"backend", cfg.Client.APITarget,
		"storage", cfg.Storage.Provider,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		l.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		l.Info("context canceled, shutting down")
	}

	return server.Shutdown()
}
