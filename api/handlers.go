package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/ragtube/pkg/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionListResponse is a page of stored sessions.
type SessionListResponse struct {
	Sessions []storage.SessionSummary `json:"sessions"`
	Count    int                      `json:"count"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}

// SessionResponse is one stored session with its messages in order.
type SessionResponse struct {
	ID       string                  `json:"id"`
	Messages []storage.StoredMessage `json:"messages"`
	Count    int                     `json:"count"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListSessions returns stored sessions, most recent first.
// Supports ?limit= and ?offset= paging.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultPageSize)
	offset := c.QueryInt("offset", 0)
	if limit <= 0 || limit > maxPageSize {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be between 1 and 500"})
	}
	if offset < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "offset must be non-negative"})
	}

	sessions, err := s.storer.ListSessions(c.Context(), storage.SessionQuery{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list sessions"})
	}

	return c.JSON(SessionListResponse{
		Sessions: sessions,
		Count:    len(sessions),
		Limit:    limit,
		Offset:   offset,
	})
}

// handleGetSession returns every message of one session.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	msgs, err := s.storer.GetSession(c.Context(), id)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "session not found"})
		}

		s.logger.Error("failed to get session", "session_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to get session"})
	}

	return c.JSON(SessionResponse{
		ID:       id,
		Messages: msgs,
		Count:    len(msgs),
	})
}
