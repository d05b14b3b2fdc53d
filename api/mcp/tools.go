package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/storage"
	"github.com/papercomputeco/ragtube/pkg/utils"
)

var (
	askToolName    = "ask"
	askDescription = "Ask a question about the indexed YouTube channels. The answer is generated from retrieved video transcripts and returned with the transcripts it was based on."

	listChannelsToolName    = "list_channels"
	listChannelsDescription = "List the YouTube channels whose transcripts are indexed. Use a channel id to restrict the ask tool to one channel."

	getSessionToolName    = "get_session"
	getSessionDescription = "Read a stored ragtube chat session: every question and answer in order, with the sources attached to each answer."
)

// sourceExcerptLength bounds transcript excerpts in tool output.
const sourceExcerptLength = 500

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the question to answer from video transcripts"`
	ChannelID string `json:"channel_id,omitempty" jsonschema:"restrict retrieval to one channel (see list_channels)"`
}

// Source is a retrieved transcript in tool output.
type Source struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	PublishTime string `json:"publish_time,omitempty"`
	Excerpt     string `json:"excerpt"`
}

// AskOutput represents the output of the ask tool.
type AskOutput struct {
	SessionID string   `json:"session_id"`
	Question  string   `json:"question"`
	ChannelID string   `json:"channel_id,omitempty"`
	State     string   `json:"state"`
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
}

// ListChannelsInput has no arguments.
type ListChannelsInput struct{}

// ListChannelsOutput represents the output of the list_channels tool.
type ListChannelsOutput struct {
	Channels []rag.Channel `json:"channels"`
	Count    int           `json:"count"`
}

// GetSessionInput represents the input arguments for the get_session tool.
type GetSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"the id of the stored session"`
}

// Turn is one stored message in tool output.
type Turn struct {
	Role    string   `json:"role"`
	Text    string   `json:"text"`
	IsError bool     `json:"is_error,omitempty"`
	Sources []Source `json:"sources,omitempty"`
}

// GetSessionOutput represents the output of the get_session tool.
type GetSessionOutput struct {
	SessionID string `json:"session_id"`
	Turns     []Turn `json:"turns"`
	Count     int    `json:"count"`
}

// handleAsk runs one question through a fresh chat session.
func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP ask request",
		"question", input.Question,
		"channel_id", input.ChannelID,
	)

	opts := []chat.Option{
		chat.WithLogger(logger),
		chat.WithChannel(input.ChannelID),
	}
	if s.config.OnExchange != nil {
		opts = append(opts, chat.WithCompletionHook(s.config.OnExchange))
	}
	session := chat.NewSession(s.config.Backend, opts...)

	outcome, err := session.Submit(ctx, input.Question)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyQuery) {
			return toolError("question must not be empty"), AskOutput{}, nil
		}
		return toolError(fmt.Sprintf("Failed to ask: %v", err)), AskOutput{}, nil
	}

	if outcome.State == chat.Failed {
		logger.Error("MCP ask failed", "error", outcome.Err)
		return toolError(fmt.Sprintf("Failed to query the RAG backend: %v", outcome.Err)), AskOutput{}, nil
	}

	output := AskOutput{
		SessionID: session.ID(),
		Question:  outcome.Query.Text,
		ChannelID: outcome.Query.ChannelID,
		State:     outcome.State.String(),
		Sources:   []Source{},
	}
	if reply, ok := session.Transcript().At(outcome.AssistantIndex); ok {
		output.Answer = reply.Text
		if sources := toSources(reply.Context); sources != nil {
			output.Sources = sources
		}
	}

	return structured(output)
}

// handleListChannels lists the channels known to the backend.
func (s *Server) handleListChannels(ctx context.Context, _ *mcp.CallToolRequest, _ ListChannelsInput) (*mcp.CallToolResult, ListChannelsOutput, error) {
	channels, err := s.config.Backend.Channels(ctx)
	if err != nil {
		s.config.Logger.Error("failed to load channels", "error", err)
		return toolError(fmt.Sprintf("Failed to load channels: %v", err)), ListChannelsOutput{}, nil
	}
	if channels == nil {
		channels = []rag.Channel{}
	}

	return structured(ListChannelsOutput{
		Channels: channels,
		Count:    len(channels),
	})
}

// handleGetSession reads one stored session.
func (s *Server) handleGetSession(ctx context.Context, _ *mcp.CallToolRequest, input GetSessionInput) (*mcp.CallToolResult, GetSessionOutput, error) {
	if input.SessionID == "" {
		return toolError("session_id is required"), GetSessionOutput{}, nil
	}

	msgs, err := s.config.Driver.GetSession(ctx, input.SessionID)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return toolError(notFound.Error()), GetSessionOutput{}, nil
		}
		s.config.Logger.Error("failed to get session", "session_id", input.SessionID, "error", err)
		return toolError(fmt.Sprintf("Failed to read session: %v", err)), GetSessionOutput{}, nil
	}

	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{
			Role:    m.Role,
			Text:    m.Text,
			IsError: m.IsError,
			Sources: toSources(m.Context),
		})
	}

	return structured(GetSessionOutput{
		SessionID: input.SessionID,
		Turns:     turns,
		Count:     len(turns),
	})
}

// structured returns output both as structured content and as serialized
// JSON text for clients that only read text content.
func structured[T any](output T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		var zero T
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func toSources(docs []rag.SourceDocument) []Source {
	if len(docs) == 0 {
		return nil
	}

	out := make([]Source, 0, len(docs))
	for _, d := range docs {
		out = append(out, Source{
			Title:       d.Title,
			URL:         d.URL(),
			PublishTime: d.PublishTime,
			Excerpt:     utils.TruncateRunes(d.Content, sourceExcerptLength),
		})
	}
	return out
}
