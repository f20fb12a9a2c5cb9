// Package store is the durable state store (spec's state-store
// component): config key/value pairs, workspace config, pipeline
// scripts, action definitions, the three message queues, the run
// journal, and the singleton pipeline-state row. Two backends
// implement the same [Store] interface — an SQL backend grounded on
// the teacher's pkg/database (pgx + golang-migrate) and a JSON-file
// fallback for environments with no database configured.
package store

import (
	"time"

	"github.com/codeready-toolchain/autoappdev/pkg/actions"
)

// WorkspaceConfig holds the per-workspace settings keyed by a single
// segment slug.
type WorkspaceConfig struct {
	Workspace         string   `json:"workspace"`
	MaterialsPaths    []string `json:"materials_paths"`
	SharedContextText string   `json:"shared_context_text"`
	SharedContextPath string   `json:"shared_context_path,omitempty"`
	DefaultLanguage   string   `json:"default_language"`
}

// PipelineScript is a stored pipeline script with its most recent IR
// (when it has been parsed).
type PipelineScript struct {
	ID            int64          `json:"id"`
	Title         string         `json:"title"`
	ScriptText    string         `json:"script_text"`
	ScriptVersion int            `json:"script_version"`
	ScriptFormat  string         `json:"script_format"`
	IR            map[string]any `json:"ir,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Role enumerates message-queue sender roles.
type Role string

// Message-queue roles, scoped by queue (chat allows user/assistant,
// inbox allows user only, outbox allows system/pipeline).
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RolePipeline  Role = "pipeline"
)

// Message is one entry in the chat, inbox, or outbox queue.
type Message struct {
	ID        int64     `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RunStatus enumerates a pipeline run journal row's lifecycle status.
type RunStatus string

// Run statuses; stopped/failed/completed are terminal.
const (
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunStopped   RunStatus = "stopped"
	RunFailed    RunStatus = "failed"
	RunCompleted RunStatus = "completed"
)

// Run is one append-only pipeline run journal row.
type Run struct {
	ID        int64      `json:"id"`
	Status    RunStatus  `json:"status"`
	PID       int        `json:"pid"`
	Script    string     `json:"script"`
	Cwd       string     `json:"cwd"`
	Args      []string   `json:"args"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
}

// IsTerminal reports whether status is one a run can no longer leave.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStopped, RunFailed, RunCompleted:
		return true
	default:
		return false
	}
}

// FSMState enumerates the singleton pipeline-state row's state column.
type FSMState string

// Pipeline FSM states.
const (
	StateStopped FSMState = "stopped"
	StateRunning FSMState = "running"
	StatePaused  FSMState = "paused"
)

// TSKind selects which timestamp column a SetPipelineState call
// updates, per spec §4.1's "ts_kind" directive.
type TSKind string

// Timestamp-column directives for SetPipelineState.
const (
	TSStart  TSKind = "start"
	TSPause  TSKind = "pause"
	TSResume TSKind = "resume"
	TSStop   TSKind = "stop"
)

// PipelineState is the singleton (row id=1) authoritative FSM record.
type PipelineState struct {
	State     FSMState   `json:"state"`
	PID       int        `json:"pid"`
	RunID     int64      `json:"run_id"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	PausedAt  *time.Time `json:"paused_at,omitempty"`
	ResumedAt *time.Time `json:"resumed_at,omitempty"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// actionRow is the persisted form of an actions.Definition; kept as an
// alias so storage code reads naturally without importing two names
// for the same shape.
type actionRow = actions.Definition

const maxListCap = 200
