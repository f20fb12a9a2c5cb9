package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/autoappdev/pkg/version"
)

// healthResponse is GET /api/health's body: store liveness plus the
// outbox ingester's best-effort-failure counter (spec §9 open
// question, implemented per SPEC_FULL.md's supplemented feature).
type healthResponse struct {
	Status             string `json:"status"`
	Version            string `json:"version"`
	StoreOK            bool   `json:"store_ok"`
	StoreError         string `json:"store_error,omitempty"`
	OutboxIngestErrors int64  `json:"outbox_ingest_errors"`
}

func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:  "healthy",
		Version: version.Full(),
	}
	if s.ingester != nil {
		resp.OutboxIngestErrors = s.ingester.ErrorCount()
	}

	if err := s.st.Ping(reqCtx); err != nil {
		resp.Status = "unhealthy"
		resp.StoreOK = false
		resp.StoreError = err.Error()
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	resp.StoreOK = true

	return c.JSON(http.StatusOK, resp)
}

// versionResponse is GET /api/version's body.
type versionResponse struct {
	BuildID   string    `json:"build_id"`
	StartedAt time.Time `json:"started_at"`
}

func (s *Server) versionHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, versionResponse{
		BuildID:   version.BuildID,
		StartedAt: version.StartedAt,
	})
}
