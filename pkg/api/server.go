// Package api is AutoAppDev's HTTP boundary (spec §6): an echo/v5
// router binding every component behind a single cooperative process,
// mapping typed *apperr.Error results onto the JSON {error,detail?,
// line?} shape and the status codes spec §7 assigns each error kind.
// Grounded on the teacher's pkg/api/server.go (echo/v5 construction,
// body-limit middleware, Start/Shutdown over a *http.Server) — see
// DESIGN.md for why the gin generation in the teacher's cmd/tarsy was
// not adopted.
package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/autoappdev/pkg/actions"
	"github.com/codeready-toolchain/autoappdev/pkg/config"
	"github.com/codeready-toolchain/autoappdev/pkg/logtail"
	"github.com/codeready-toolchain/autoappdev/pkg/outbox"
	"github.com/codeready-toolchain/autoappdev/pkg/pipeline"
	"github.com/codeready-toolchain/autoappdev/pkg/store"
)

// Server is the HTTP API server wrapping every component the
// transport layer fronts.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg        config.Config
	st         store.Store
	controller *pipeline.Controller
	tailer     *logtail.Service
	emitter    *outbox.Emitter
	ingester   *outbox.Ingester
	repoRoot   string
}

// NewServer wires every component's API surface onto a fresh echo.Echo
// instance and returns the constructed server. Routes are registered
// immediately so Start can be called right away.
func NewServer(
	cfg config.Config,
	st store.Store,
	controller *pipeline.Controller,
	tailer *logtail.Service,
	emitter *outbox.Emitter,
	ingester *outbox.Ingester,
	repoRoot string,
) *Server {
	e := echo.New()

	s := &Server{
		echo:       e,
		cfg:        cfg,
		st:         st,
		controller: controller,
		tailer:     tailer,
		emitter:    emitter,
		ingester:   ingester,
		repoRoot:   repoRoot,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware installs the body-size cap and permissive-localhost
// CORS the spec's loopback-only binding still wants for a browser UI
// served from a different dev port (spec §6 "permissive CORS for
// localhost").
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.BodyLimit(4 * 1024 * 1024))
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			return isLocalOrigin(origin), nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type"},
	}))
}

func isLocalOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost:", "http://127.0.0.1:", "http://[::1]:"} {
		if len(origin) >= len(prefix) && origin[:len(prefix)] == prefix {
			return true
		}
	}
	return origin == "http://localhost" || origin == "http://127.0.0.1"
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", s.healthHandler)
	api.GET("/version", s.versionHandler)

	api.GET("/config", s.getConfigHandler)
	api.POST("/config", s.setConfigHandler)
	api.GET("/plan", s.getPlanHandler)
	api.POST("/plan", s.setPlanHandler)

	api.GET("/workspaces/:ws/config", s.getWorkspaceConfigHandler)
	api.POST("/workspaces/:ws/config", s.setWorkspaceConfigHandler)

	api.GET("/scripts", s.listScriptsHandler)
	api.POST("/scripts", s.createScriptHandler)
	api.GET("/scripts/:id", s.getScriptHandler)
	api.PUT("/scripts/:id", s.updateScriptHandler)
	api.DELETE("/scripts/:id", s.deleteScriptHandler)
	api.POST("/scripts/parse", s.parseScriptHandler)
	api.POST("/scripts/import-shell", s.importShellHandler)
	api.POST("/scripts/parse-llm", s.parseLLMHandler)

	api.GET("/actions", s.listActionsHandler)
	api.POST("/actions", s.createActionHandler)
	api.GET("/actions/:id", s.getActionHandler)
	api.PUT("/actions/:id", s.updateActionHandler)
	api.DELETE("/actions/:id", s.deleteActionHandler)
	api.POST("/actions/:id/clone", s.cloneActionHandler)
	api.POST("/actions/update-readme", s.updateReadmeHandler)

	api.GET("/chat", s.listChatHandler)
	api.POST("/chat", s.postChatHandler)
	api.GET("/inbox", s.listInboxHandler)
	api.POST("/inbox", s.postInboxHandler)
	api.GET("/outbox", s.listOutboxHandler)
	api.POST("/outbox", s.postOutboxHandler)

	api.GET("/pipeline", s.pipelineStatusHandler)
	api.GET("/pipeline/status", s.pipelineStatusHandler)
	api.POST("/pipeline/start", s.pipelineStartHandler)
	api.POST("/pipeline/stop", s.pipelineStopHandler)
	api.POST("/pipeline/pause", s.pipelinePauseHandler)
	api.POST("/pipeline/resume", s.pipelineResumeHandler)

	api.GET("/logs", s.logsSinceHandler)
	api.GET("/logs/tail", s.logsTailHandler)
}

// Start begins serving on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// actionDefaults resolves the prompt-action fallbacks: agent from the
// "default_agent" config key (C4 falls back to "codex"), model and
// reasoning from the environment-derived Config (which already carries
// the literal defaults). The config store is not consulted for the
// model or the reasoning. This is the only place C4's caller-supplied
// Defaults are assembled, since C4 itself stays free of config/env
// access.
func (s *Server) actionDefaults(ctx context.Context) actions.Defaults {
	d := actions.Defaults{Reasoning: s.cfg.CodexReasoning, Model: s.cfg.CodexModel}
	if v, ok, _ := s.st.GetConfig(ctx, "default_agent"); ok {
		if str, ok := v.(string); ok {
			d.Agent = str
		}
	}
	return d
}
