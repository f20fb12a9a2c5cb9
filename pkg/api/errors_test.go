package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/pathsafe"
	"github.com/codeready-toolchain/autoappdev/pkg/pipeline"
)

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code apperr.Code
		want int
	}{
		{apperr.CodeNotFound, http.StatusNotFound},
		{apperr.CodeScriptNotFound, http.StatusNotFound},
		{apperr.CodeReadonly, http.StatusForbidden},
		{apperr.CodePathOutsideRepo, http.StatusForbidden},
		{apperr.CodePathOutsideAutoApps, http.StatusForbidden},
		{apperr.CodeTimeout, http.StatusGatewayTimeout},
		{apperr.CodeAgentNotFound, http.StatusServiceUnavailable},
		{apperr.CodeInvalidBody, http.StatusBadRequest},
		{apperr.CodeEmpty, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, statusForCode(tt.code))
		})
	}
}

func serve(t *testing.T, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.GET("/x", h)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWriteError_TransitionError(t *testing.T) {
	rec := serve(t, func(c *echo.Context) error {
		return writeError(c, &pipeline.TransitionError{From: "stopped", Action: "pause"})
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"from":"stopped"`)
	assert.Contains(t, rec.Body.String(), `"action":"pause"`)
}

func TestWriteError_OutsideRoot(t *testing.T) {
	rec := serve(t, func(c *echo.Context) error {
		return writeError(c, &pathsafe.ErrOutsideRoot{Root: "/repo", Resolved: "/etc"})
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), string(apperr.CodePathOutsideRepo))
}

func TestWriteError_AppErr(t *testing.T) {
	rec := serve(t, func(c *echo.Context) error {
		return writeError(c, apperr.Newf(apperr.CodeEmpty, "content required"))
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(apperr.CodeEmpty))
	assert.Contains(t, rec.Body.String(), "content required")
}

func TestWriteError_Unexpected(t *testing.T) {
	rec := serve(t, func(c *echo.Context) error {
		return writeError(c, fmt.Errorf("boom"))
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
	assert.Contains(t, rec.Body.String(), "internal_error")
}
