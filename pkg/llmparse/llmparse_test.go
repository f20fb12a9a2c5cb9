package llmparse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt_ContainsHeaderAndBlocks(t *testing.T) {
	prompt := buildPrompt("do the thing", "freeform")
	assert.Contains(t, prompt, "AUTOAPPDEV_PIPELINE 1")
	assert.Contains(t, prompt, "plan, work, debug, fix, summary, commit_push")
	assert.Contains(t, prompt, "do the thing")
}

func TestStripCodeFences(t *testing.T) {
	in := "```\nAUTOAPPDEV_PIPELINE 1\nTASK {}\n```"
	out, stripped := stripCodeFences(in)
	require.True(t, stripped)
	assert.Equal(t, "AUTOAPPDEV_PIPELINE 1\nTASK {}", out)

	out2, stripped2 := stripCodeFences("no fences here")
	assert.False(t, stripped2)
	assert.Equal(t, "no fences here", out2)
}

func TestLastAssistantMessage_PicksLastMatchingRecord(t *testing.T) {
	stdout := `{"type":"other","text":"ignored"}
{"type":"agent_message","message":"first"}
{"type":"assistant_message","message":"second"}
`
	text, found := lastAssistantMessage(stdout)
	require.True(t, found)
	assert.Equal(t, "second", text)
}

func TestLastAssistantMessage_NoneFound(t *testing.T) {
	_, found := lastAssistantMessage(`{"type":"other","text":"x"}`)
	assert.False(t, found)
}

func TestRun_AgentNotFound(t *testing.T) {
	dir := t.TempDir()
	res := Run(t.Context(), dir, Request{
		SourceText:   "build me a pipeline",
		SourceFormat: "freeform",
		TimeoutSec:   5,
		Model:        "gpt-5.3-codex",
		Reasoning:    "medium",
		AgentBinary:  "definitely-not-a-real-binary-on-path",
	})
	require.Error(t, res.Err)
	assert.FileExists(t, filepath.Join(res.ArtifactsDir, "source.txt"))
	assert.FileExists(t, filepath.Join(res.ArtifactsDir, "provenance.json"))
	data, err := os.ReadFile(filepath.Join(res.ArtifactsDir, "provenance.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"success": false`)
}

func TestClampTimeout(t *testing.T) {
	assert.Equal(t, minTimeoutSec, clampTimeout(1))
	assert.Equal(t, maxTimeoutSec, clampTimeout(999))
	assert.Equal(t, 30, clampTimeout(30))
}
