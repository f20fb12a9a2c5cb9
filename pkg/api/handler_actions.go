package api

import (
	"errors"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/autoappdev/pkg/actions"
	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/store"
)

// promptPreamble nudges multilingual output without requiring any new
// schema or config wiring: every built-in prompt action carries it
// verbatim, matching builtin_actions.py's _prompt_preamble.
const promptPreamble = "Language:\n" +
	"- Write in the same language as the task/context.\n" +
	"- If a language is explicitly required, follow it.\n" +
	"- Default to English if unclear.\n"

// promptPlaceholdersNote documents the context placeholders a pipeline
// template may splice into a built-in prompt (builtin_actions.py's
// _prompt_placeholders_note).
const promptPlaceholdersNote = "Context placeholders (if present):\n" +
	"- {{task.title}}, {{task.acceptance}}, {{runtime_dir}}\n"

func builtinPrompt(id int64, title, reasoning, body string) actions.Definition {
	return actions.Definition{
		ID:      id,
		Title:   title,
		Kind:    actions.KindPrompt,
		Enabled: true,
		Spec: map[string]any{
			"reasoning": reasoning,
			"prompt":    promptPreamble + promptPlaceholdersNote + "\n" + body,
		},
	}
}

// builtinActions are the always-listed-first, never-persisted,
// read-only definitions spec §3 requires in the reserved ID range: the
// six block-aligned, multilingual prompt actions of the original Python
// implementation's built-in registry (Plan, Work, Debug/Verify, Fix,
// Summary, Release Note), adapted to this tree's Definition shape.
var builtinActions = []actions.Definition{
	builtinPrompt(actions.BuiltinIDFloor+1, "Plan (builtin, multilingual)", "medium",
		"You are implementing one small, incremental task in a larger system.\n"+
			"Write a step-specific plan and explicit acceptance checks.\n"+
			"\n"+
			"Output:\n"+
			"- Plan steps (small, incremental)\n"+
			"- Commands to run (use timeouts for anything that could hang)\n"+
			"- Acceptance checklist\n"),
	builtinPrompt(actions.BuiltinIDFloor+2, "Work (builtin, multilingual)", "medium",
		"Implement the smallest set of changes needed to satisfy acceptance.\n"+
			"Keep the architecture consistent with the repo.\n"+
			"Avoid unrelated refactors.\n"),
	builtinPrompt(actions.BuiltinIDFloor+3, "Debug/Verify (builtin, multilingual)", "low",
		"Run the smallest possible verification (build/run/smoke).\n"+
			"- Use timeouts for anything that could hang.\n"+
			"- Record exact commands and results.\n"+
			"- If issues are found, implement minimal fixes and re-run verification.\n"),
	builtinPrompt(actions.BuiltinIDFloor+4, "Fix (builtin, multilingual)", "medium",
		"Implement minimal fixes required to make verification pass.\n"+
			"Do not broaden scope.\n"),
	builtinPrompt(actions.BuiltinIDFloor+5, "Summary (builtin, multilingual)", "low",
		"Write a concise summary:\n"+
			"- What changed\n"+
			"- Why\n"+
			"- How to verify\n"+
			"\n"+
			"If target languages are specified elsewhere, add a short 'Translations' section.\n"),
	{
		ID:      actions.BuiltinIDFloor + 6,
		Title:   "Release Note (builtin, multilingual)",
		Kind:    actions.KindPrompt,
		Enabled: true,
		Spec: map[string]any{
			"reasoning": "low",
			"prompt": promptPreamble + "\n" +
				"Write a short release/log note for the operator UI.\n" +
				"- Mention any manual follow-ups.\n" +
				"- If git commit/push is policy-driven, state that it is handled externally.\n",
		},
	},
}

func (s *Server) listActionsHandler(c *echo.Context) error {
	stored, err := s.st.ListStoredActions(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	out := make([]actions.Definition, 0, len(builtinActions)+len(stored))
	out = append(out, builtinActions...)
	out = append(out, stored...)
	return c.JSON(http.StatusOK, out)
}

type createActionRequest struct {
	Title string         `json:"title"`
	Kind  actions.Kind   `json:"kind"`
	Spec  map[string]any `json:"spec"`
}

func (s *Server) createActionHandler(c *echo.Context) error {
	var req createActionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}
	title, spec, err := actions.ValidateCreate(req.Title, req.Kind, req.Spec, s.repoRoot, s.actionDefaults(c.Request().Context()))
	if err != nil {
		return writeError(c, err)
	}
	created, err := s.st.CreateAction(c.Request().Context(), actions.Definition{
		Title: title, Kind: req.Kind, Spec: spec, Enabled: true,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) getActionHandler(c *echo.Context) error {
	id, err := actionIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	if def, ok := builtinByID(id); ok {
		return c.JSON(http.StatusOK, def)
	}
	def, err := s.st.GetStoredAction(c.Request().Context(), id)
	if err != nil {
		return writeError(c, actionStoreErr(err))
	}
	return c.JSON(http.StatusOK, def)
}

type updateActionRequest struct {
	Title *string        `json:"title"`
	Kind  *actions.Kind  `json:"kind"`
	Spec  map[string]any `json:"spec"`
}

func (s *Server) updateActionHandler(c *echo.Context) error {
	id, err := actionIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	if actions.IsBuiltin(id) {
		return writeError(c, apperr.New(apperr.CodeReadonly))
	}

	existing, err := s.st.GetStoredAction(c.Request().Context(), id)
	if err != nil {
		return writeError(c, actionStoreErr(err))
	}

	var req updateActionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}

	title, spec, err := actions.ValidateUpdate(existing, req.Title, req.Kind, req.Spec, s.repoRoot, s.actionDefaults(c.Request().Context()))
	if err != nil {
		return writeError(c, err)
	}

	updated, err := s.st.UpdateAction(c.Request().Context(), id, title, spec)
	if err != nil {
		return writeError(c, actionStoreErr(err))
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteActionHandler(c *echo.Context) error {
	id, err := actionIDParam(c)
	if err != nil {
		return writeError(c, err)
	}
	if actions.IsBuiltin(id) {
		return writeError(c, apperr.New(apperr.CodeReadonly))
	}
	if err := s.st.DeleteAction(c.Request().Context(), id); err != nil {
		return writeError(c, actionStoreErr(err))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) cloneActionHandler(c *echo.Context) error {
	id, err := actionIDParam(c)
	if err != nil {
		return writeError(c, err)
	}

	var existing actions.Definition
	if def, ok := builtinByID(id); ok {
		existing = def
	} else {
		existing, err = s.st.GetStoredAction(c.Request().Context(), id)
		if err != nil {
			return writeError(c, actionStoreErr(err))
		}
	}

	title, kind, spec := actions.Clone(existing)
	created, err := s.st.CreateAction(c.Request().Context(), actions.Definition{
		Title: title, Kind: kind, Spec: spec, Enabled: true,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func actionIDParam(c *echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.CodeNotFound)
	}
	return id, nil
}

func builtinByID(id int64) (actions.Definition, bool) {
	for _, def := range builtinActions {
		if def.ID == id {
			return def, true
		}
	}
	return actions.Definition{}, false
}

func actionStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.CodeNotFound)
	}
	return err
}
