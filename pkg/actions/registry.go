package actions

import (
	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/pathsafe"
)

const (
	maxTitleLen  = 200
	maxPromptLen = 200_000
	maxCmdLen    = 20_000
)

var promptKeys = map[string]bool{"agent": true, "model": true, "reasoning": true, "timeout_s": true, "prompt": true}
var commandKeys = map[string]bool{"shell": true, "cwd": true, "timeout_s": true, "cmd": true}

// ValidateTitle enforces the ≤200, non-empty-when-provided rule shared
// by create and update.
func ValidateTitle(title string, required bool) error {
	if title == "" {
		if required {
			return apperr.New(apperr.CodeEmpty)
		}
		return nil
	}
	if len(title) > maxTitleLen {
		return apperr.New(apperr.CodeTooLong)
	}
	return nil
}

// NormalizeSpec merges patch onto base restricted to the keys the given
// kind allows, applies field-level validation, and fills in defaults
// for prompt actions. base is nil on create. repoRoot is the directory
// command actions' cwd must resolve under.
func NormalizeSpec(kind Kind, base, patch map[string]any, repoRoot string, defaults Defaults) (map[string]any, error) {
	switch kind {
	case KindPrompt:
		return normalizePrompt(base, patch, defaults)
	case KindCommand:
		return normalizeCommand(base, patch, repoRoot)
	default:
		return nil, apperr.Newf(apperr.CodeInvalidBody, "invalid kind %q", kind)
	}
}

func merged(base, patch map[string]any, allowed map[string]bool) map[string]any {
	out := map[string]any{}
	for k, v := range base {
		if allowed[k] {
			out[k] = v
		}
	}
	for k, v := range patch {
		if allowed[k] {
			out[k] = v
		}
	}
	return out
}

func normalizePrompt(base, patch map[string]any, defaults Defaults) (map[string]any, error) {
	m := merged(base, patch, promptKeys)

	prompt, _ := m["prompt"].(string)
	if prompt == "" {
		return nil, apperr.Newf(apperr.CodeInvalidBody, "spec.prompt is required")
	}
	if len(prompt) > maxPromptLen {
		return nil, apperr.New(apperr.CodeTooLong)
	}

	agent, _ := m["agent"].(string)
	if agent == "" {
		agent = defaults.agentOrDefault()
	}
	m["agent"] = agent

	model, _ := m["model"].(string)
	if model == "" {
		model = defaults.modelOrDefault()
	}
	m["model"] = model

	reasoning, _ := m["reasoning"].(string)
	if reasoning == "" {
		reasoning = defaults.reasoningOrDefault()
	}
	switch reasoning {
	case "low", "medium", "high", "xhigh":
	default:
		return nil, apperr.Newf(apperr.CodeInvalidBody, "invalid reasoning %q", reasoning)
	}
	m["reasoning"] = reasoning

	timeout := clampTimeout(m["timeout_s"], 45, 5, 300)
	m["timeout_s"] = timeout
	m["prompt"] = prompt

	return m, nil
}

func normalizeCommand(base, patch map[string]any, repoRoot string) (map[string]any, error) {
	m := merged(base, patch, commandKeys)

	cmd, _ := m["cmd"].(string)
	if cmd == "" {
		return nil, apperr.Newf(apperr.CodeInvalidBody, "spec.cmd is required")
	}
	if len(cmd) > maxCmdLen {
		return nil, apperr.New(apperr.CodeTooLong)
	}
	m["cmd"] = cmd

	shell, _ := m["shell"].(string)
	if shell == "" {
		shell = "bash"
	}
	if shell != "bash" {
		return nil, apperr.Newf(apperr.CodeInvalidBody, "unsupported shell %q (only bash is supported)", shell)
	}
	m["shell"] = shell

	cwd, _ := m["cwd"].(string)
	if cwd == "" {
		cwd = "."
	}
	if _, err := pathsafe.JoinContained(repoRoot, cwd); err != nil {
		return nil, apperr.Newf(apperr.CodePathOutsideRepo, "cwd %q escapes repo root", cwd)
	}
	m["cwd"] = cwd

	m["timeout_s"] = clampTimeout(m["timeout_s"], 60, 1, 3600)

	return m, nil
}

// clampTimeout extracts a numeric timeout from raw JSON (float64, since
// encoding/json decodes numbers that way into map[string]any), defaults
// it when absent, and clamps to [min,max].
func clampTimeout(raw any, def, min, max int) int {
	v := def
	switch x := raw.(type) {
	case float64:
		v = int(x)
	case int:
		v = x
	}
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v
}
