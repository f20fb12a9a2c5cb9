package codegen

import (
	"strings"
	"testing"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplate = "#!/usr/bin/env bash\nset -euo pipefail\n__PIPELINE_BODY__\necho done\n"

func mustParse(t *testing.T, script string) *ir.IR {
	t.Helper()
	doc, err := ir.Parse(script)
	require.NoError(t, err)
	return doc
}

func TestRender_SplicesIntoTemplate(t *testing.T) {
	doc := mustParse(t, "AUTOAPPDEV_PIPELINE 1\n"+
		`TASK {"id":"t1","title":"T"}`+"\n"+
		`STEP {"id":"s1","title":"S","block":"plan"}`+"\n"+
		`ACTION {"id":"a1","kind":"note","params":{"text":"hi"}}`+"\n")

	out, err := Render(doc, testTemplate)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "#!/usr/bin/env bash\nset -euo pipefail\n"))
	assert.True(t, strings.HasSuffix(out, "\necho done\n"))
	assert.Contains(t, out, "# TASK t1: T")
	assert.Contains(t, out, "action_note 'hi'")
}

func TestRender_MissingPlaceholder(t *testing.T) {
	doc := mustParse(t, "AUTOAPPDEV_PIPELINE 1\n"+`TASK {"id":"t1","title":"T"}`+"\n")
	_, err := Render(doc, "#!/usr/bin/env bash\necho no placeholder\n")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeMissingPlaceholder, err.(*apperr.Error).Code)
}

func TestRender_DebugStepWrapsActionsAndTracksFailure(t *testing.T) {
	doc := mustParse(t, "AUTOAPPDEV_PIPELINE 1\n"+
		`TASK {"id":"t1","title":"T"}`+"\n"+
		`STEP {"id":"s1","title":"Debug","block":"debug"}`+"\n"+
		`ACTION {"id":"a1","kind":"run","params":{"cmd":"go test ./..."}}`+"\n"+
		`ACTION {"id":"a2","kind":"run","params":{"cmd":"go vet ./..."}}`+"\n")

	out, err := Render(doc, testTemplate)
	require.NoError(t, err)
	assert.Contains(t, out, "step_failed=0")
	assert.Contains(t, out, "if ! action_run 'go test ./...'; then step_failed=1; fi")
	assert.Contains(t, out, "if ! action_run 'go vet ./...'; then step_failed=1; fi")
	assert.Contains(t, out, `AUTOAPPDEV_TASK_LAST_DEBUG_FAILED="$step_failed"`)
}

func TestRender_ConditionalStepWrapsIfElse(t *testing.T) {
	doc := mustParse(t, "AUTOAPPDEV_PIPELINE 1\n"+
		`TASK {"id":"t1","title":"T"}`+"\n"+
		`STEP {"id":"s1","title":"S","block":"work","meta":{"conditional":"has_changes"}}`+"\n"+
		`ACTION {"id":"a1","kind":"note","params":{"text":"hi"}}`+"\n")

	out, err := Render(doc, testTemplate)
	require.NoError(t, err)
	assert.Contains(t, out, "if step_should_run 'has_changes'; then")
	assert.Contains(t, out, "else")
	assert.Contains(t, out, "log 'SKIP s1: S'")
	assert.Contains(t, out, "fi")
}

func TestRender_CodexExecArgumentPositions(t *testing.T) {
	cases := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{"prompt only", map[string]any{"prompt": "do it"}, "action_codex_exec 'do it'"},
		{"prompt+model", map[string]any{"prompt": "do it", "model": "gpt-5.3-codex"}, "action_codex_exec 'do it' 'gpt-5.3-codex'"},
		{"prompt+reasoning keeps model slot", map[string]any{"prompt": "do it", "reasoning": "high"}, "action_codex_exec 'do it' '' 'high'"},
		{"prompt+model+reasoning", map[string]any{"prompt": "do it", "model": "m", "reasoning": "low"}, "action_codex_exec 'do it' 'm' 'low'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := ir.New()
			doc.Tasks = []ir.Task{{
				ID: "t1", Title: "T",
				Steps: []ir.Step{{ID: "s1", Title: "S", Block: ir.BlockWork, Actions: []ir.Action{
					{ID: "a1", Kind: "codex_exec", Params: tc.params},
				}}},
			}}
			out, err := Render(doc, testTemplate)
			require.NoError(t, err)
			assert.Contains(t, out, tc.want)
		})
	}
}

func TestRender_UnsupportedActionKind(t *testing.T) {
	doc := ir.New()
	doc.Tasks = []ir.Task{{
		ID: "t1", Title: "T",
		Steps: []ir.Step{{ID: "s1", Title: "S", Block: ir.BlockWork, Actions: []ir.Action{
			{ID: "a1", Kind: "teleport"},
		}}},
	}}
	_, err := Render(doc, testTemplate)
	require.Error(t, err)
	ae := err.(*apperr.Error)
	assert.Equal(t, apperr.CodeUnsupportedActionKnd, ae.Code)
	assert.Contains(t, ae.Detail, "t1/s1/a1")
}

func TestRender_Deterministic(t *testing.T) {
	doc := mustParse(t, "AUTOAPPDEV_PIPELINE 1\n"+
		`TASK {"id":"t1","title":"T"}`+"\n"+
		`STEP {"id":"s1","title":"S","block":"plan"}`+"\n"+
		`ACTION {"id":"a1","kind":"note","params":{"text":"hi"}}`+"\n")

	out1, err := Render(doc, testTemplate)
	require.NoError(t, err)
	out2, err := Render(doc, testTemplate)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}

func TestRender_MetaRound(t *testing.T) {
	doc := ir.New()
	doc.Tasks = []ir.Task{
		{
			ID: "controller", Title: "Controller",
			Meta: map[string]any{"meta_round_v0": map[string]any{"task_list_path": "/tmp/tasks.json"}},
			Steps: []ir.Step{
				{ID: "cs1", Title: "Setup", Block: ir.BlockPlan, Actions: []ir.Action{{ID: "a1", Kind: "note", Params: map[string]any{"text": "setup"}}}},
			},
		},
		{
			ID: "template", Title: "Template",
			Meta: map[string]any{"task_template_v0": true},
			Steps: []ir.Step{
				{ID: "ts1", Title: "Work", Block: ir.BlockWork, Actions: []ir.Action{{ID: "a1", Kind: "note", Params: map[string]any{"text": "working"}}}},
			},
		},
	}

	out, err := Render(doc, testTemplate)
	require.NoError(t, err)
	assert.Contains(t, out, "# TASK controller: Controller")
	assert.Contains(t, out, "run_task_template_v0() {")
	assert.Contains(t, out, `meta_round_run_template_tasks '/tmp/tasks.json'`)
	assert.Contains(t, out, "action_note 'working'")
}

func TestRender_MetaRoundMissingTemplate(t *testing.T) {
	doc := ir.New()
	doc.Tasks = []ir.Task{
		{ID: "controller", Title: "C", Meta: map[string]any{"meta_round_v0": map[string]any{"task_list_path": "x"}}},
		{ID: "other", Title: "O"},
	}
	_, err := Render(doc, testTemplate)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidMetaRound, err.(*apperr.Error).Code)
}

func TestRender_MetaRoundTooManyTasks(t *testing.T) {
	doc := ir.New()
	doc.Tasks = []ir.Task{
		{ID: "controller", Title: "C", Meta: map[string]any{"meta_round_v0": map[string]any{"task_list_path": "x"}}},
		{ID: "template", Title: "T", Meta: map[string]any{"task_template_v0": true}},
		{ID: "extra", Title: "E"},
	}
	_, err := Render(doc, testTemplate)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidMetaRound, err.(*apperr.Error).Code)
}
