package ir

import (
	"testing"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Minimal(t *testing.T) {
	script := "AUTOAPPDEV_PIPELINE 1\n" +
		`TASK {"id":"t1","title":"T"}` + "\n" +
		`STEP {"id":"s1","title":"S","block":"plan"}` + "\n" +
		`ACTION {"id":"a1","kind":"note","params":{"text":"hi"}}` + "\n"

	doc, err := Parse(script)
	require.NoError(t, err)
	require.Len(t, doc.Tasks, 1)
	require.Len(t, doc.Tasks[0].Steps, 1)
	require.Len(t, doc.Tasks[0].Steps[0].Actions, 1)
	assert.Equal(t, BlockPlan, doc.Tasks[0].Steps[0].Block)
	assert.Equal(t, "note", doc.Tasks[0].Steps[0].Actions[0].Kind)
	assert.Equal(t, "hi", doc.Tasks[0].Steps[0].Actions[0].Params["text"])
}

func TestParse_CommentsAndBlankLinesCountTowardLineNumbers(t *testing.T) {
	script := "# leading comment\n" +
		"\n" +
		"AUTOAPPDEV_PIPELINE 1\n" +
		`TASK {"id":"t1","title":"T"}` + "\n" +
		`STEP {"id":"s1","title":"S","block":"plan"}` + "\n" +
		`STEP {"id":"s1","title":"dup","block":"plan"}` + "\n"

	_, err := Parse(script)
	require.Error(t, err)
	ae, ok := err.(*apperr.Error)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeDuplicateID, ae.Code)
	assert.Equal(t, 6, ae.Line)
}

func TestParse_MissingHeader(t *testing.T) {
	_, err := Parse(`TASK {"id":"t1","title":"T"}` + "\n")
	require.Error(t, err)
	ae := err.(*apperr.Error)
	assert.Equal(t, apperr.CodeMissingHeader, ae.Code)
}

func TestParse_InvalidHeader(t *testing.T) {
	_, err := Parse("AUTOAPPDEV_PIPELINE 2\n")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidHeader, err.(*apperr.Error).Code)
}

func TestParse_StepBeforeTask(t *testing.T) {
	script := "AUTOAPPDEV_PIPELINE 1\n" + `STEP {"id":"s1","title":"S","block":"plan"}` + "\n"
	_, err := Parse(script)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeStepBeforeTask, err.(*apperr.Error).Code)
}

func TestParse_ActionBeforeStep(t *testing.T) {
	script := "AUTOAPPDEV_PIPELINE 1\n" +
		`TASK {"id":"t1","title":"T"}` + "\n" +
		`ACTION {"id":"a1","kind":"note"}` + "\n"
	_, err := Parse(script)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeActionBeforeStep, err.(*apperr.Error).Code)
}

func TestParse_InvalidBlock(t *testing.T) {
	script := "AUTOAPPDEV_PIPELINE 1\n" +
		`TASK {"id":"t1","title":"T"}` + "\n" +
		`STEP {"id":"s1","title":"S","block":"bogus"}` + "\n"
	_, err := Parse(script)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidBlock, err.(*apperr.Error).Code)
}

func TestParse_UnknownKeyword(t *testing.T) {
	script := "AUTOAPPDEV_PIPELINE 1\n" + `FROB {"id":"x"}` + "\n"
	_, err := Parse(script)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeUnknownKeyword, err.(*apperr.Error).Code)
}

func TestParse_DuplicateTaskID(t *testing.T) {
	script := "AUTOAPPDEV_PIPELINE 1\n" +
		`TASK {"id":"t1","title":"A"}` + "\n" +
		`TASK {"id":"t1","title":"B"}` + "\n"
	_, err := Parse(script)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDuplicateID, err.(*apperr.Error).Code)
}

func TestParse_DuplicateActionIDWithinStep(t *testing.T) {
	script := "AUTOAPPDEV_PIPELINE 1\n" +
		`TASK {"id":"t1","title":"A"}` + "\n" +
		`STEP {"id":"s1","title":"S","block":"work"}` + "\n" +
		`ACTION {"id":"a1","kind":"note"}` + "\n" +
		`ACTION {"id":"a1","kind":"run"}` + "\n"
	_, err := Parse(script)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDuplicateID, err.(*apperr.Error).Code)
}

func TestParse_DuplicateActionIDAcrossStepsIsAllowed(t *testing.T) {
	script := "AUTOAPPDEV_PIPELINE 1\n" +
		`TASK {"id":"t1","title":"A"}` + "\n" +
		`STEP {"id":"s1","title":"S1","block":"work"}` + "\n" +
		`ACTION {"id":"a1","kind":"note"}` + "\n" +
		`STEP {"id":"s2","title":"S2","block":"work"}` + "\n" +
		`ACTION {"id":"a1","kind":"note"}` + "\n"
	doc, err := Parse(script)
	require.NoError(t, err)
	require.Len(t, doc.Tasks[0].Steps, 2)
}

func TestParse_NoTasks(t *testing.T) {
	_, err := Parse("AUTOAPPDEV_PIPELINE 1\n# nothing else\n")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidTasks, err.(*apperr.Error).Code)
}

func TestParse_InvalidJSON(t *testing.T) {
	script := "AUTOAPPDEV_PIPELINE 1\n" + `TASK {not json}` + "\n"
	_, err := Parse(script)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidJSON, err.(*apperr.Error).Code)
}

func TestSerialize_RoundTrip(t *testing.T) {
	script := "AUTOAPPDEV_PIPELINE 1\n" +
		`TASK {"id":"t1","title":"T","meta":{"k":"v"}}` + "\n" +
		`STEP {"id":"s1","title":"S","block":"debug","meta":{"conditional":"x"}}` + "\n" +
		`ACTION {"id":"a1","kind":"run","params":{"cmd":"go test ./..."}}` + "\n" +
		`ACTION {"id":"a2","kind":"codex_exec","params":{"prompt":"fix it"}}` + "\n"

	doc, err := Parse(script)
	require.NoError(t, err)

	serialized, err := Serialize(doc)
	require.NoError(t, err)

	reparsed, err := Parse(serialized)
	require.NoError(t, err)
	assert.Equal(t, doc, reparsed)
}
