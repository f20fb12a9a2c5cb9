package ir

import (
	"strings"
	"testing"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportShell_RoundTrip(t *testing.T) {
	shell := "#!/usr/bin/env bash\n" +
		"# regular comment, not an annotation\n" +
		"# AAPS: AUTOAPPDEV_PIPELINE 1\n" +
		`# AAPS: TASK {"id":"t1","title":"T"}` + "\n" +
		"echo hello\n" +
		`# AAPS: STEP {"id":"s1","title":"S","block":"plan"}` + "\n" +
		`# AAPS: ACTION {"id":"a1","kind":"note","params":{"text":"hi"}}` + "\n"

	res, err := ImportShell(shell)
	require.NoError(t, err)
	require.Len(t, res.IR.Tasks, 1)

	wantAAPS := strings.Join([]string{
		"AUTOAPPDEV_PIPELINE 1",
		`TASK {"id":"t1","title":"T"}`,
		`STEP {"id":"s1","title":"S","block":"plan"}`,
		`ACTION {"id":"a1","kind":"note","params":{"text":"hi"}}`,
	}, "\n")
	assert.Equal(t, wantAAPS, res.AAPSText)
}

func TestImportShell_MissingAnnotations(t *testing.T) {
	_, err := ImportShell("#!/usr/bin/env bash\necho hi\n")
	require.Error(t, err)
	ae := err.(*apperr.Error)
	assert.Equal(t, apperr.CodeMissingAnnots, ae.Code)
	assert.Equal(t, 1, ae.Line)
}

func TestImportShell_MapsParseErrorBackToShellLine(t *testing.T) {
	shell := "echo one\n" +
		"# AAPS: AUTOAPPDEV_PIPELINE 1\n" +
		"echo two\n" +
		`# AAPS: TASK {"id":"t1","title":"T"}` + "\n" +
		"echo three\n" +
		`# AAPS: STEP {"id":"s1","title":"S","block":"nope"}` + "\n"

	_, err := ImportShell(shell)
	require.Error(t, err)
	ae := err.(*apperr.Error)
	assert.Equal(t, apperr.CodeInvalidBlock, ae.Code)
	// The offending STEP annotation is on original shell line 6.
	assert.Equal(t, 6, ae.Line)
}
