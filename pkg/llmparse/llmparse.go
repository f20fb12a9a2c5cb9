// Package llmparse implements the agent-assisted parse path (spec
// §4.5, C5): a fixed deterministic prompt is sent to an external agent
// binary over stdin, its JSONL transcript is decoded for the last
// assistant message, an embedded AAPS script is isolated from that
// message and parsed through pkg/ir, and every intermediate artifact is
// persisted regardless of outcome. Grounded on the process-spawn idiom
// in pkg/pipeline/spawn.go and haricheung-agentic-shell's
// internal/tools/shell.go (os/exec.CommandContext over stdin/stdout).
package llmparse

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/ir"
)

const (
	maxSourceLen  = 100_000
	minTimeoutSec = 5
	maxTimeoutSec = 120
)

// allowedBlocks is echoed into the fixed prompt so the agent knows the
// exact STEP.block vocabulary the AAPS grammar accepts.
var allowedBlocks = []string{"plan", "work", "debug", "fix", "summary", "commit_push"}

// Request is the caller-supplied input to Run.
type Request struct {
	SourceText   string
	SourceFormat string
	TimeoutSec   int
	Model        string
	Reasoning    string
	AgentBinary  string // defaults to "codex" on PATH
}

// Result is the outcome of a parse attempt, always returned alongside
// the artifacts written under ArtifactsDir — even on error, per spec
// §4.5 step 7 ("Always write...").
type Result struct {
	RequestID    string
	ArtifactsDir string
	IR           *ir.IR
	AAPSText     string
	Warnings     []string
	Err          error
}

// provenance is persisted as provenance.json regardless of outcome.
type provenance struct {
	ID           string   `json:"id"`
	Model        string   `json:"model"`
	Reasoning    string   `json:"reasoning"`
	TimeoutSec   int      `json:"timeout_s"`
	SourceSHA256 string   `json:"source_sha256"`
	PromptSHA256 string   `json:"prompt_sha256"`
	ExitCode     int      `json:"exit_code"`
	Warnings     []string `json:"warnings,omitempty"`
	Success      bool     `json:"success"`
	Error        string   `json:"error,omitempty"`
}

// jsonlRecord is the minimal shape Run decodes from each line of the
// agent's stdout transcript (spec §4.5 step 4).
type jsonlRecord struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Text    string `json:"text"`
}

func (r jsonlRecord) assistantText() (string, bool) {
	switch r.Type {
	case "agent_message", "assistant_message":
	default:
		return "", false
	}
	if r.Message != "" {
		return r.Message, true
	}
	return r.Text, true
}

// Run executes the full C5 workflow described in spec §4.5 and always
// returns a non-nil *Result with ArtifactsDir populated, so a caller
// can surface the error while still pointing a user at the persisted
// trace.
func Run(ctx context.Context, runtimeDir string, req Request) *Result {
	id := requestID(req.SourceText)
	artifactsDir := filepath.Join(runtimeDir, "logs", "llm_parse", id)

	res := &Result{RequestID: id, ArtifactsDir: artifactsDir}

	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		res.Err = fmt.Errorf("create artifacts dir: %w", err)
		return res
	}
	writeArtifact(artifactsDir, "source.txt", req.SourceText)

	if len(req.SourceText) > maxSourceLen {
		res.Err = apperr.Newf(apperr.CodeTooLong, "source_text exceeds %d bytes", maxSourceLen)
		persistProvenance(artifactsDir, id, req, 0, res.Warnings, res.Err)
		return res
	}

	timeout := clampTimeout(req.TimeoutSec)
	prompt := buildPrompt(req.SourceText, req.SourceFormat)
	writeArtifact(artifactsDir, "prompt.txt", prompt)

	agentBinary := req.AgentBinary
	if agentBinary == "" {
		agentBinary = "codex"
	}
	if _, err := exec.LookPath(agentBinary); err != nil {
		res.Err = apperr.Newf(apperr.CodeAgentNotFound, "%s not found on PATH", agentBinary)
		persistProvenance(artifactsDir, id, req, 0, res.Warnings, res.Err)
		return res
	}

	stdout, stderr, exitCode, runErr := spawnAgent(ctx, agentBinary, req.Model, req.Reasoning, prompt, timeout)
	writeArtifact(artifactsDir, "codex.jsonl", stdout)
	writeArtifact(artifactsDir, "codex.stderr.log", stderr)

	if errors.Is(runErr, context.DeadlineExceeded) {
		res.Err = apperr.New(apperr.CodeTimeout)
		persistProvenance(artifactsDir, id, req, exitCode, res.Warnings, res.Err)
		return res
	}

	assistantText, found := lastAssistantMessage(stdout)
	if !found {
		res.Err = apperr.Newf(apperr.CodeMissingAssistantText, "no assistant message found; stderr tail: %s", tailLines(stderr, 5))
		persistProvenance(artifactsDir, id, req, exitCode, res.Warnings, res.Err)
		return res
	}
	writeArtifact(artifactsDir, "assistant.txt", assistantText)

	stripped, didStrip := stripCodeFences(assistantText)
	if didStrip {
		res.Warnings = append(res.Warnings, "stripped_code_fences")
	}

	const header = "AUTOAPPDEV_PIPELINE 1"
	idx := strings.Index(stripped, header)
	if idx < 0 {
		res.Err = apperr.New(apperr.CodeMissingAAPSHeader)
		persistProvenance(artifactsDir, id, req, exitCode, res.Warnings, res.Err)
		return res
	}
	aapsText := stripped[idx:]
	writeArtifact(artifactsDir, "result.aaps", aapsText)
	res.AAPSText = aapsText

	doc, parseErr := ir.Parse(aapsText)
	if parseErr != nil {
		res.Err = parseErr
		persistProvenance(artifactsDir, id, req, exitCode, res.Warnings, res.Err)
		return res
	}

	res.IR = doc
	persistProvenance(artifactsDir, id, req, exitCode, res.Warnings, nil)
	return res
}

// requestID builds the `<UTC-timestamp>_<sha256(source)[:8]>` stable id
// spec §4.5 step 2 specifies.
func requestID(source string) string {
	sum := sha256.Sum256([]byte(source))
	return fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102T150405Z"), hex.EncodeToString(sum[:])[:8])
}

func clampTimeout(sec int) int {
	if sec < minTimeoutSec {
		return minTimeoutSec
	}
	if sec > maxTimeoutSec {
		return maxTimeoutSec
	}
	return sec
}

// buildPrompt assembles the fixed deterministic prompt (spec §4.5 step
// 1): forbids tool use, demands AAPS-only output, lists allowed blocks,
// and embeds the input verbatim.
func buildPrompt(sourceText, sourceFormat string) string {
	var b strings.Builder
	b.WriteString("You are converting pipeline instructions into an AutoAppDev Pipeline Script (AAPS v1).\n")
	b.WriteString("Do not call any tools. Do not execute commands. Output AAPS only, nothing else.\n")
	b.WriteString("Begin your output with the line: AUTOAPPDEV_PIPELINE 1\n")
	b.WriteString("Allowed STEP.block values: " + strings.Join(allowedBlocks, ", ") + "\n")
	b.WriteString("Source format hint: " + sourceFormat + "\n")
	b.WriteString("--- BEGIN INPUT ---\n")
	b.WriteString(sourceText)
	b.WriteString("\n--- END INPUT ---\n")
	return b.String()
}

// spawnAgent runs the agent binary with fixed model/reasoning
// arguments and prompt on stdin, enforcing timeoutSec as a hard
// deadline that kills the child on expiry.
func spawnAgent(ctx context.Context, binary, model, reasoning, prompt string, timeoutSec int) (stdout, stderr string, exitCode int, err error) {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, binary, "exec", "--model", model, "--reasoning-effort", reasoning, "--json")
	cmd.Stdin = strings.NewReader(prompt)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()

	if runCtx.Err() == context.DeadlineExceeded {
		return stdout, stderr, -1, context.DeadlineExceeded
	}
	if runErr == nil {
		return stdout, stderr, 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return stdout, stderr, exitErr.ExitCode(), nil
	}
	return stdout, stderr, -1, runErr
}

// lastAssistantMessage decodes stdout as JSONL and returns the text of
// the last record whose type is agent_message or assistant_message
// (spec §4.5 step 4).
func lastAssistantMessage(stdout string) (string, bool) {
	var last string
	var found bool
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if text, ok := rec.assistantText(); ok {
			last = text
			found = true
		}
	}
	return last, found
}

var codeFenceOpen = "```"

// stripCodeFences removes a single leading/trailing ``` fenced block
// wrapper, if present, recording whether anything was stripped.
func stripCodeFences(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, codeFenceOpen) {
		return s, false
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s, false
	}
	// Drop the opening fence line (possibly carrying a language tag).
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == codeFenceOpen {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n"), true
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func writeArtifact(dir, name, content string) {
	_ = os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}

func persistProvenance(dir, id string, req Request, exitCode int, warnings []string, resultErr error) {
	p := provenance{
		ID:           id,
		Model:        req.Model,
		Reasoning:    req.Reasoning,
		TimeoutSec:   clampTimeout(req.TimeoutSec),
		SourceSHA256: sha256Hex(req.SourceText),
		PromptSHA256: sha256Hex(buildPrompt(req.SourceText, req.SourceFormat)),
		ExitCode:     exitCode,
		Warnings:     warnings,
		Success:      resultErr == nil,
	}
	if resultErr != nil {
		p.Error = resultErr.Error()
	}
	buf, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return
	}
	writeArtifact(dir, "provenance.json", string(buf))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
