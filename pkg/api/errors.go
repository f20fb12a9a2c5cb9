package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/pathsafe"
	"github.com/codeready-toolchain/autoappdev/pkg/pipeline"
)

// errorBody is the {error,detail?,line?} JSON shape spec §7 requires
// of every surfaced error.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// transitionBody is the extended shape invalid_transition carries:
// the observed state and the action that was rejected (spec §7,
// scenario S3).
type transitionBody struct {
	Error  string `json:"error"`
	From   string `json:"from"`
	Action string `json:"action"`
}

// writeError maps err onto the correct HTTP status and JSON body,
// centralizing the mapping the way the teacher's mapServiceError does
// for service-layer errors (spec's "Error handling" ambient-stack
// section).
func writeError(c *echo.Context, err error) error {
	var te *pipeline.TransitionError
	if errors.As(err, &te) {
		return c.JSON(http.StatusBadRequest, transitionBody{
			Error:  string(apperr.CodeInvalidTransition),
			From:   string(te.From),
			Action: te.Action,
		})
	}

	var outside *pathsafe.ErrOutsideRoot
	if errors.As(err, &outside) {
		return c.JSON(http.StatusForbidden, errorBody{Error: string(apperr.CodePathOutsideRepo), Detail: outside.Error()})
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		return c.JSON(statusForCode(ae.Code), errorBody{Error: string(ae.Code), Detail: ae.Detail, Line: ae.Line})
	}

	slog.Error("unexpected store/component error", "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]any{
		"error": "internal_error",
		"type":  fmt.Sprintf("%T", err),
		"msg":   err.Error(),
	})
}

// statusForCode implements spec §7's "Propagation" table.
func statusForCode(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound, apperr.CodeScriptNotFound:
		return http.StatusNotFound
	case apperr.CodeReadonly, apperr.CodePathOutsideRepo, apperr.CodePathOutsideAutoApps:
		return http.StatusForbidden
	case apperr.CodeTimeout:
		return http.StatusGatewayTimeout
	case apperr.CodeAgentNotFound:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

