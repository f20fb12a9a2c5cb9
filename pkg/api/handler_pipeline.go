package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/pipeline"
)

func (s *Server) pipelineStatusHandler(c *echo.Context) error {
	state, err := s.controller.Status(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

type startRequest struct {
	Script string   `json:"script"`
	Cwd    string   `json:"cwd"`
	Args   []string `json:"args"`
}

func (s *Server) pipelineStartHandler(c *echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	if req.Script == "" {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	run, err := s.controller.StartRun(c.Request().Context(), pipeline.StartSpec{
		Script: req.Script, Cwd: req.Cwd, Args: req.Args,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) pipelineStopHandler(c *echo.Context) error {
	if err := s.controller.StopRun(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return s.pipelineStatusHandler(c)
}

func (s *Server) pipelinePauseHandler(c *echo.Context) error {
	if err := s.controller.Pause(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return s.pipelineStatusHandler(c)
}

func (s *Server) pipelineResumeHandler(c *echo.Context) error {
	if err := s.controller.Resume(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return s.pipelineStatusHandler(c)
}
