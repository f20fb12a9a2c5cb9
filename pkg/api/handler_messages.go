package api

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/store"
)

const maxMessageLen = 10_000

type postMessageRequest struct {
	Content string     `json:"content"`
	Role    store.Role `json:"role"`
}

func listLimit(c *echo.Context) int {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return limit
}

func validateContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", apperr.New(apperr.CodeEmpty)
	}
	if len(content) > maxMessageLen {
		return "", apperr.New(apperr.CodeTooLong)
	}
	return content, nil
}

func (s *Server) listChatHandler(c *echo.Context) error {
	msgs, err := s.st.ListChatMessages(c.Request().Context(), listLimit(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

func (s *Server) postChatHandler(c *echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	content, err := validateContent(req.Content)
	if err != nil {
		return writeError(c, err)
	}
	role := req.Role
	if role == "" {
		role = store.RoleUser
	}
	msg, err := s.st.AppendChatMessage(c.Request().Context(), role, content)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (s *Server) listInboxHandler(c *echo.Context) error {
	msgs, err := s.st.ListInboxMessages(c.Request().Context(), listLimit(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

// postInboxHandler persists the message first and only then mirrors it
// into the file queue (spec §5: "Inbox message persistence precedes
// file-queue emission"), so a reader that sees the file can trust the
// DB row already exists.
func (s *Server) postInboxHandler(c *echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	content, err := validateContent(req.Content)
	if err != nil {
		return writeError(c, err)
	}

	msg, err := s.st.AppendInboxMessage(c.Request().Context(), content)
	if err != nil {
		return writeError(c, err)
	}

	if s.emitter != nil {
		if err := s.emitter.Emit(content); err != nil {
			return writeError(c, err)
		}
	}

	return c.JSON(http.StatusCreated, msg)
}

func (s *Server) listOutboxHandler(c *echo.Context) error {
	msgs, err := s.st.ListOutboxMessages(c.Request().Context(), listLimit(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

// postOutboxHandler lets the UI append a system-authored outbox entry
// directly (e.g. operator annotations); the pipeline-authored path is
// C8's file ingester, not this endpoint.
func (s *Server) postOutboxHandler(c *echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	content, err := validateContent(req.Content)
	if err != nil {
		return writeError(c, err)
	}
	role := req.Role
	if role == "" {
		role = store.RoleSystem
	}
	msg, err := s.st.AppendOutboxMessage(c.Request().Context(), role, content)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}
