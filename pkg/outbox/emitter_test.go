package outbox_test

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/codeready-toolchain/autoappdev/pkg/outbox"
	"github.com/stretchr/testify/require"
)

var inboxFileRe = regexp.MustCompile(`^\d+_user\.md$`)

func TestEmitter_WritesOneFilePerMessage(t *testing.T) {
	dir := t.TempDir()
	e, err := outbox.NewEmitter(dir)
	require.NoError(t, err)

	require.NoError(t, e.Emit("  hello there  "))

	entries, err := os.ReadDir(filepath.Join(dir, "inbox"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Regexp(t, inboxFileRe, entries[0].Name())

	body, err := os.ReadFile(filepath.Join(dir, "inbox", entries[0].Name()))
	require.NoError(t, err)
	require.Equal(t, "hello there", string(body))
}

func TestEmitter_SuccessiveEmitsGetDistinctFilenames(t *testing.T) {
	dir := t.TempDir()
	e, err := outbox.NewEmitter(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, e.Emit("msg"))
	}

	entries, err := os.ReadDir(filepath.Join(dir, "inbox"))
	require.NoError(t, err)
	require.Len(t, entries, 5)

	seen := map[string]bool{}
	for _, e := range entries {
		require.False(t, seen[e.Name()], "duplicate filename %s", e.Name())
		seen[e.Name()] = true
	}
}
