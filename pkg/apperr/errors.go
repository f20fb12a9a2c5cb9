// Package apperr defines the typed error shape shared across AutoAppDev's
// components and the HTTP boundary that surfaces them as JSON.
package apperr

import "fmt"

// Code enumerates the error kinds named in spec §7. Components raise
// *Error instead of ad-hoc fmt.Errorf so the API layer can map every
// failure to a stable JSON {error,detail?,line?} body without guessing.
type Code string

// Error codes, grouped roughly by the component that raises them.
const (
	CodeInvalidBody    Code = "invalid_body"
	CodeInvalidJSON    Code = "invalid_json"
	CodeNotFound       Code = "not_found"
	CodeAlreadyRunning Code = "already_running"
	CodeNotRunning     Code = "not_running"

	CodeInvalidTransition Code = "invalid_transition"
	CodeScriptOutsideRepo Code = "script_outside_repo"
	CodeScriptNotFound    Code = "script_not_found"

	CodeEmpty               Code = "empty"
	CodeTooLong             Code = "too_long"
	CodeKindChangeForbidden Code = "kind_change_not_allowed"
	CodeReadonly            Code = "readonly"

	CodeMissingHeader    Code = "missing_header"
	CodeInvalidHeader    Code = "invalid_header"
	CodeDuplicateID      Code = "duplicate_id"
	CodeStepBeforeTask   Code = "step_before_task"
	CodeActionBeforeStep Code = "action_before_step"
	CodeInvalidBlock     Code = "invalid_block"
	CodeUnknownKeyword   Code = "unknown_keyword"
	CodeMissingAnnots    Code = "missing_annotations"
	CodeInvalidTasks     Code = "invalid_tasks"

	CodeMissingAAPSHeader    Code = "missing_aaps_header"
	CodeMissingAssistantText Code = "missing_assistant_text"
	CodeTimeout              Code = "timeout"
	CodeAgentNotFound        Code = "codex_not_found"

	CodePathOutsideRepo      Code = "path_outside_repo"
	CodePathOutsideAutoApps  Code = "path_outside_auto_apps"
	CodeMarkerMismatch       Code = "marker_mismatch"
	CodeMissingPhilosophy    Code = "missing_philosophy"
	CodeArtifactWriteFailed  Code = "artifact_write_failed"
	CodeUnsupportedActionKnd Code = "unsupported_action_kind"
	CodeInvalidMetaRound     Code = "invalid_meta_round"
	CodeMissingPlaceholder   Code = "missing_placeholder"
)

// Error is the sum-type result carried across component boundaries in
// place of exceptions: a stable machine-readable Code plus optional
// human context (Detail) and source position (Line, 1-based, 0 = n/a).
type Error struct {
	Code   Code
	Detail string
	Line   int
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// New constructs a plain code-only error.
func New(code Code) *Error {
	return &Error{Code: code}
}

// Newf constructs an error with a formatted detail message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// AtLine constructs an error carrying a 1-based source line number.
func AtLine(code Code, line int, format string, args ...any) *Error {
	return &Error{Code: code, Line: line, Detail: fmt.Sprintf(format, args...)}
}

// Is allows errors.Is(err, apperr.New(CodeX)) to match on Code alone,
// ignoring Detail/Line.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
