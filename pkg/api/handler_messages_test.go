package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
)

func TestValidateContent(t *testing.T) {
	t.Run("trims whitespace", func(t *testing.T) {
		out, err := validateContent("  hello  ")
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("empty after trim rejected", func(t *testing.T) {
		_, err := validateContent("   ")
		require.Error(t, err)
		ae, ok := err.(*apperr.Error)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeEmpty, ae.Code)
	})

	t.Run("over max length rejected", func(t *testing.T) {
		_, err := validateContent(strings.Repeat("x", maxMessageLen+1))
		require.Error(t, err)
		ae, ok := err.(*apperr.Error)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeTooLong, ae.Code)
	})
}
