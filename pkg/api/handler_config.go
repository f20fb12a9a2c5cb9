package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/store"
)

// configRequest is the shared body shape for both GET-key and POST-set
// config requests.
type configRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (s *Server) getConfigHandler(c *echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	value, ok, err := s.st.GetConfig(c.Request().Context(), key)
	if err != nil {
		return writeError(c, err)
	}
	if !ok {
		return writeError(c, apperr.New(apperr.CodeNotFound))
	}
	return c.JSON(http.StatusOK, configRequest{Key: key, Value: value})
}

func (s *Server) setConfigHandler(c *echo.Context) error {
	var req configRequest
	if err := c.Bind(&req); err != nil || req.Key == "" {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	if err := s.st.SetConfig(c.Request().Context(), req.Key, req.Value); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

const planConfigKey = "pipeline_plan"

// planStep is one element of pipeline_plan.steps (spec §3).
type planStep struct {
	ID    int    `json:"id"`
	Block string `json:"block"`
}

// planDoc is the distinguished pipeline_plan config value's shape.
type planDoc struct {
	Kind    string     `json:"kind"`
	Version int        `json:"version"`
	Steps   []planStep `json:"steps"`
}

func (s *Server) getPlanHandler(c *echo.Context) error {
	value, ok, err := s.st.GetConfig(c.Request().Context(), planConfigKey)
	if err != nil {
		return writeError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusOK, planDoc{Kind: "autoappdev_plan", Version: 1, Steps: []planStep{}})
	}
	return c.JSON(http.StatusOK, value)
}

func (s *Server) setPlanHandler(c *echo.Context) error {
	var plan planDoc
	if err := c.Bind(&plan); err != nil {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	if plan.Kind != "autoappdev_plan" {
		return writeError(c, apperr.Newf(apperr.CodeInvalidBody, "invalid_kind: expected autoappdev_plan, got %q", plan.Kind))
	}
	if plan.Version != 1 {
		return writeError(c, apperr.Newf(apperr.CodeInvalidBody, "invalid_version: expected 1, got %d", plan.Version))
	}
	for _, step := range plan.Steps {
		if step.Block == "" {
			return writeError(c, apperr.New(apperr.CodeInvalidBody))
		}
	}
	if err := s.st.SetConfig(c.Request().Context(), planConfigKey, plan); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, plan)
}

// allowedLanguages is the fixed 9-locale set spec §3's "default_language"
// field is drawn from: natural-language output locales, not programming
// languages — AutoAppDev's built-in prompts (§ multilingual built-ins)
// instruct the agent to "write in the same language as the task", and
// default_language is what resolves that language per workspace.
var allowedLanguages = map[string]bool{
	"zh-Hans": true, "zh-Hant": true, "en": true, "ja": true, "ko": true,
	"vi": true, "ar": true, "fr": true, "es": true,
}

const defaultWorkspaceLanguage = "en"

func defaultWorkspaceConfig(ws string) store.WorkspaceConfig {
	return store.WorkspaceConfig{
		Workspace:       ws,
		MaterialsPaths:  []string{"materials"},
		DefaultLanguage: defaultWorkspaceLanguage,
	}
}

func (s *Server) getWorkspaceConfigHandler(c *echo.Context) error {
	ws := c.Param("ws")
	cfg, ok, err := s.st.GetWorkspaceConfig(c.Request().Context(), ws)
	if err != nil {
		return writeError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusOK, defaultWorkspaceConfig(ws))
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) setWorkspaceConfigHandler(c *echo.Context) error {
	ws := c.Param("ws")

	var cfg store.WorkspaceConfig
	if err := c.Bind(&cfg); err != nil {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	cfg.Workspace = ws

	if len(cfg.MaterialsPaths) == 0 || len(cfg.MaterialsPaths) > 20 {
		return writeError(c, apperr.Newf(apperr.CodeInvalidBody, "materials_paths must have 1..20 entries"))
	}
	if len(cfg.SharedContextText) > 200_000 {
		return writeError(c, apperr.New(apperr.CodeTooLong))
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = defaultWorkspaceLanguage
	}
	if !allowedLanguages[cfg.DefaultLanguage] {
		return writeError(c, apperr.Newf(apperr.CodeInvalidBody, "invalid default_language %q", cfg.DefaultLanguage))
	}

	root := s.workspaceRoot(ws)
	if _, err := s.resolveUnderWorkspace(root, cfg.SharedContextPath); err != nil {
		return writeError(c, err)
	}
	for _, p := range cfg.MaterialsPaths {
		if _, err := s.resolveUnderWorkspace(root, p); err != nil {
			return writeError(c, err)
		}
	}

	if err := s.st.UpsertWorkspaceConfig(c.Request().Context(), cfg); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}
