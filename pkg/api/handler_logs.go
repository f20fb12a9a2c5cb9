package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/logtail"
)

// sinceResponse is GET /api/logs' body: a since-id page plus the
// resumable cursor (spec §4.7 / §8 property 7).
type sinceResponse struct {
	Entries []logtail.Entry `json:"entries"`
	Next    int64           `json:"next"`
}

func (s *Server) logsSinceHandler(c *echo.Context) error {
	var since int64
	if v := c.QueryParam("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return writeError(c, apperr.New(apperr.CodeInvalidBody))
		}
		since = n
	}
	limit := 200
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	source := c.QueryParam("source")

	entries, next := s.tailer.Ring().Since(since, source, limit)
	return c.JSON(http.StatusOK, sinceResponse{Entries: entries, Next: next})
}

func (s *Server) logsTailHandler(c *echo.Context) error {
	name := c.QueryParam("name")
	if name != "pipeline" && name != "backend" {
		return writeError(c, apperr.Newf(apperr.CodeInvalidBody, "unknown_log"))
	}
	lines := 100
	if v := c.QueryParam("lines"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lines = n
		}
	}

	entries, _ := s.tailer.Ring().Since(0, name, 1_000_000)
	if len(entries) > lines {
		entries = entries[len(entries)-lines:]
	}
	return c.JSON(http.StatusOK, struct {
		Entries []logtail.Entry `json:"entries"`
	}{Entries: entries})
}
