package api

import (
	"errors"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/ir"
	"github.com/codeready-toolchain/autoappdev/pkg/llmparse"
	"github.com/codeready-toolchain/autoappdev/pkg/store"
)

const maxScriptTextLen = 200_000

func (s *Server) listScriptsHandler(c *echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	scripts, err := s.st.ListScripts(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, scripts)
}

type createScriptRequest struct {
	Title      string `json:"title"`
	ScriptText string `json:"script_text"`
}

func (s *Server) createScriptHandler(c *echo.Context) error {
	var req createScriptRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	if len(req.ScriptText) > maxScriptTextLen {
		return writeError(c, apperr.Newf(apperr.CodeTooLong, "script_too_large"))
	}
	created, err := s.st.CreateScript(c.Request().Context(), store.PipelineScript{
		Title:         req.Title,
		ScriptText:    req.ScriptText,
		ScriptVersion: 1,
		ScriptFormat:  "aaps_v1",
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) getScriptHandler(c *echo.Context) error {
	id, err := scriptIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	script, err := s.st.GetScript(c.Request().Context(), id)
	if err != nil {
		return writeError(c, storeErrOrNotFound(err))
	}
	return c.JSON(http.StatusOK, script)
}

type updateScriptRequest struct {
	Title      *string        `json:"title"`
	ScriptText *string        `json:"script_text"`
	IR         map[string]any `json:"ir"`
	ClearIR    bool           `json:"clear_ir"`
}

func (s *Server) updateScriptHandler(c *echo.Context) error {
	id, err := scriptIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	var req updateScriptRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	if req.ScriptText != nil && len(*req.ScriptText) > maxScriptTextLen {
		return writeError(c, apperr.Newf(apperr.CodeTooLong, "script_too_large"))
	}
	updated, err := s.st.UpdateScript(c.Request().Context(), id, store.ScriptPatch{
		Title:      req.Title,
		ScriptText: req.ScriptText,
		IR:         req.IR,
		ClearIR:    req.ClearIR,
	})
	if err != nil {
		return writeError(c, storeErrOrNotFound(err))
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteScriptHandler(c *echo.Context) error {
	id, err := scriptIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := s.st.DeleteScript(c.Request().Context(), id); err != nil {
		return writeError(c, storeErrOrNotFound(err))
	}
	return c.NoContent(http.StatusNoContent)
}

type parseScriptRequest struct {
	ScriptText string `json:"script_text"`
}

// parseResultBody is {ok:true, ir:...} on success or {ok:false,
// error,line?} on failure (spec scenarios S1/S2) — parse endpoints
// answer 200/400 with ok discriminating success, matching the
// "Notable codes: 400 typed" row in §6's endpoint table.
type parseResultBody struct {
	OK    bool   `json:"ok"`
	IR    *ir.IR `json:"ir,omitempty"`
	Error string `json:"error,omitempty"`
	Line  int    `json:"line,omitempty"`
}

func (s *Server) parseScriptHandler(c *echo.Context) error {
	var req parseScriptRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, parseResultBody{OK: false, Error: string(apperr.CodeInvalidBody)})
	}
	doc, err := ir.Parse(req.ScriptText)
	if err != nil {
		return c.JSON(http.StatusBadRequest, parseErrorBody(err))
	}
	return c.JSON(http.StatusOK, parseResultBody{OK: true, IR: doc})
}

type importShellRequest struct {
	ShellText string `json:"shell_text"`
}

func (s *Server) importShellHandler(c *echo.Context) error {
	var req importShellRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, parseResultBody{OK: false, Error: string(apperr.CodeInvalidBody)})
	}
	result, err := ir.ImportShell(req.ShellText)
	if err != nil {
		return c.JSON(http.StatusBadRequest, parseErrorBody(err))
	}
	return c.JSON(http.StatusOK, struct {
		OK       bool   `json:"ok"`
		IR       *ir.IR `json:"ir"`
		AAPSText string `json:"aaps_text"`
	}{OK: true, IR: result.IR, AAPSText: result.AAPSText})
}

type parseLLMRequest struct {
	SourceText   string `json:"source_text"`
	SourceFormat string `json:"source_format"`
	TimeoutSec   int    `json:"timeout_s"`
	Persist      bool   `json:"persist"`
	Title        string `json:"title"`
}

func (s *Server) parseLLMHandler(c *echo.Context) error {
	if !s.cfg.EnableLLMParse {
		return c.JSON(http.StatusServiceUnavailable, parseResultBody{OK: false, Error: string(apperr.CodeAgentNotFound)})
	}

	var req parseLLMRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, parseResultBody{OK: false, Error: string(apperr.CodeInvalidBody)})
	}

	result := llmparse.Run(c.Request().Context(), s.cfg.RuntimeDir, llmparse.Request{
		SourceText:   req.SourceText,
		SourceFormat: req.SourceFormat,
		TimeoutSec:   req.TimeoutSec,
		Model:        s.cfg.CodexModel,
		Reasoning:    s.cfg.CodexReasoning,
	})

	if result.Err != nil {
		status := http.StatusBadRequest
		if ae, ok := result.Err.(*apperr.Error); ok {
			status = statusForCode(ae.Code)
		}
		return c.JSON(status, parseErrorBody(result.Err))
	}

	if req.Persist {
		if _, err := s.st.CreateScript(c.Request().Context(), store.PipelineScript{
			Title:         req.Title,
			ScriptText:    result.AAPSText,
			ScriptVersion: 1,
			ScriptFormat:  "aaps_v1",
		}); err != nil {
			return writeError(c, err)
		}
	}

	return c.JSON(http.StatusOK, struct {
		OK           bool     `json:"ok"`
		IR           *ir.IR   `json:"ir"`
		Warnings     []string `json:"warnings,omitempty"`
		RequestID    string   `json:"request_id"`
		ArtifactsDir string   `json:"artifacts_dir"`
	}{OK: true, IR: result.IR, Warnings: result.Warnings, RequestID: result.RequestID, ArtifactsDir: result.ArtifactsDir})
}

func parseErrorBody(err error) parseResultBody {
	if ae, ok := err.(*apperr.Error); ok {
		return parseResultBody{OK: false, Error: string(ae.Code), Line: ae.Line}
	}
	return parseResultBody{OK: false, Error: err.Error()}
}

func scriptIDParam(c *echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.CodeScriptNotFound)
	}
	return id, nil
}

func storeErrOrNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.CodeScriptNotFound)
	}
	return err
}
