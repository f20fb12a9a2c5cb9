package store

import (
	"context"

	"github.com/codeready-toolchain/autoappdev/pkg/actions"
)

// Store is the operation set both backends implement (spec §4.1's
// "contracted operations"). Callers construct one concrete backend —
// [NewSQL] when a database URL is configured, [NewFile] otherwise —
// and depend only on this interface.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	GetConfig(ctx context.Context, key string) (value any, ok bool, err error)
	SetConfig(ctx context.Context, key string, value any) error

	GetWorkspaceConfig(ctx context.Context, workspace string) (WorkspaceConfig, bool, error)
	UpsertWorkspaceConfig(ctx context.Context, cfg WorkspaceConfig) error

	CreateScript(ctx context.Context, s PipelineScript) (PipelineScript, error)
	ListScripts(ctx context.Context, limit int) ([]PipelineScript, error)
	GetScript(ctx context.Context, id int64) (PipelineScript, error)
	UpdateScript(ctx context.Context, id int64, patch ScriptPatch) (PipelineScript, error)
	DeleteScript(ctx context.Context, id int64) error

	CreateAction(ctx context.Context, a actions.Definition) (actions.Definition, error)
	ListStoredActions(ctx context.Context) ([]actions.Definition, error)
	GetStoredAction(ctx context.Context, id int64) (actions.Definition, error)
	UpdateAction(ctx context.Context, id int64, title string, spec map[string]any) (actions.Definition, error)
	DeleteAction(ctx context.Context, id int64) error

	AppendChatMessage(ctx context.Context, role Role, content string) (Message, error)
	ListChatMessages(ctx context.Context, limit int) ([]Message, error)
	AppendInboxMessage(ctx context.Context, content string) (Message, error)
	ListInboxMessages(ctx context.Context, limit int) ([]Message, error)
	AppendOutboxMessage(ctx context.Context, role Role, content string) (Message, error)
	ListOutboxMessages(ctx context.Context, limit int) ([]Message, error)

	CreateRun(ctx context.Context, r Run) (Run, error)
	SetRunStatus(ctx context.Context, id int64, status RunStatus) error
	GetLatestRun(ctx context.Context) (Run, bool, error)

	GetPipelineState(ctx context.Context) (PipelineState, error)
	SetPipelineState(ctx context.Context, state FSMState, patch StatePatch, tsKind TSKind) (PipelineState, error)
}

// ScriptPatch carries the fields an UpdateScript call may change; a
// nil field leaves the stored value untouched.
type ScriptPatch struct {
	Title      *string
	ScriptText *string
	IR         map[string]any
	ClearIR    bool
}

// StatePatch carries the fields a SetPipelineState transition sets
// alongside the state and timestamp directive.
type StatePatch struct {
	PID   *int
	RunID *int64
}

// ErrNotFound is returned by Get/Update/Delete calls that address a
// row that does not exist. Callers map it at the boundary to
// apperr.CodeNotFound (actions) or apperr.CodeScriptNotFound (scripts).
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "not found" }

// clip truncates s to at most n bytes, used for the message-queue
// content cap. The cut is not aligned to rune boundaries.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// reverseMessages returns entries oldest-first; backends fetch
// newest-first-limit-N from storage and this restores presentation
// order per spec §4.1's ordering guarantee.
func reverseMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[len(in)-1-i] = m
	}
	return out
}

