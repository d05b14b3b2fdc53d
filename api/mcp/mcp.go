// Package mcp provides an MCP (Model Context Protocol) server so agents can
// ask the RAG backend questions and read stored ragtube history.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/storage"
	"github.com/papercomputeco/ragtube/pkg/utils"
)

// Backend is the part of the RAG client the tools call. *rag.Client
// implements it.
type Backend interface {
	chat.Streamer
	Channels(ctx context.Context) ([]rag.Channel, error)
}

type Config struct {
	// Backend answers ask and list_channels
	Backend Backend

	// Driver serves get_session
	Driver storage.Driver

	// OnExchange receives every exchange produced by the ask tool (optional)
	OnExchange func(chat.Exchange)

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the ask, list_channels and
// get_session tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "ragtube",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Backend == nil {
			return nil, errors.New("rag backend is required")
		}
		if c.Driver == nil {
			return nil, errors.New("storage driver is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        askToolName,
			Description: askDescription,
		}, s.handleAsk)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        listChannelsToolName,
			Description: listChannelsDescription,
		}, s.handleListChannels)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        getSessionToolName,
			Description: getSessionDescription,
		}, s.handleGetSession)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// toolError builds an error result the calling model can read.
func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
