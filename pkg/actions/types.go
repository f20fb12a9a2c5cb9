// Package actions normalizes and validates user-authored action
// definitions (spec §4.4): prompt actions that invoke an LLM agent and
// command actions that run a shell command, plus the built-in/user ID
// split and the base+patch spec merge rule.
package actions

import "time"

// Kind enumerates the two action definition kinds.
type Kind string

// Action kinds.
const (
	KindPrompt  Kind = "prompt"
	KindCommand Kind = "command"
)

// BuiltinIDFloor is the lowest ID in the reserved built-in range (spec
// §3): built-ins are virtual, never persisted, and read-only.
const BuiltinIDFloor int64 = 9_000_000_000

// IsBuiltin reports whether id falls in the reserved built-in range.
func IsBuiltin(id int64) bool {
	return id >= BuiltinIDFloor
}

// Definition is a stored (or virtual built-in) action definition.
type Definition struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Kind      Kind           `json:"kind"`
	Spec      map[string]any `json:"spec"`
	Enabled   bool           `json:"enabled"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Defaults carries the fallback values Normalize applies when a prompt
// spec omits agent/model/reasoning. Callers resolve the "from config or
// env or literal" fallback chains spec §4.4 describes (config store and
// environment access are both ambient concerns outside C4's scope) and
// pass the already-resolved values in.
type Defaults struct {
	Agent     string // falls back to "codex" if empty
	Model     string // falls back to "gpt-5.3-codex" if empty
	Reasoning string // falls back to "medium" if empty
}

func (d Defaults) agentOrDefault() string {
	if d.Agent != "" {
		return d.Agent
	}
	return "codex"
}

func (d Defaults) modelOrDefault() string {
	if d.Model != "" {
		return d.Model
	}
	return "gpt-5.3-codex"
}

func (d Defaults) reasoningOrDefault() string {
	if d.Reasoning != "" {
		return d.Reasoning
	}
	return "medium"
}
