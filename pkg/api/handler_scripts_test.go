package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/store"
)

func TestStoreErrOrNotFound(t *testing.T) {
	t.Run("maps ErrNotFound to script_not_found", func(t *testing.T) {
		err := storeErrOrNotFound(store.ErrNotFound)
		ae, ok := err.(*apperr.Error)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeScriptNotFound, ae.Code)
	})

	t.Run("other errors pass through unchanged", func(t *testing.T) {
		original := fmt.Errorf("disk full")
		assert.Equal(t, original, storeErrOrNotFound(original))
	})
}

func TestParseErrorBody(t *testing.T) {
	t.Run("apperr carries code and line", func(t *testing.T) {
		body := parseErrorBody(apperr.AtLine(apperr.CodeUnknownKeyword, 7, "unknown keyword %q", "FOO"))
		assert.False(t, body.OK)
		assert.Equal(t, string(apperr.CodeUnknownKeyword), body.Error)
		assert.Equal(t, 7, body.Line)
	})

	t.Run("plain error falls back to message", func(t *testing.T) {
		body := parseErrorBody(fmt.Errorf("syntax error"))
		assert.False(t, body.OK)
		assert.Equal(t, "syntax error", body.Error)
	})
}
