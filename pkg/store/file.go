package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codeready-toolchain/autoappdev/pkg/actions"
)

// FileStore is the JSON-file-backed fallback (spec §4.1 "File
// backend"): a single document at <runtime>/state.json, read whole on
// each accessor and written whole via a temp file + atomic rename. It
// is used only when no database URL is configured.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFile opens (or prepares to create) the JSON state file at
// <runtimeDir>/state.json.
func NewFile(runtimeDir string) *FileStore {
	return &FileStore{path: filepath.Join(runtimeDir, "state.json")}
}

type fileDoc struct {
	Config     map[string]any             `json:"config"`
	Workspaces map[string]WorkspaceConfig `json:"workspaces"`

	Scripts      []PipelineScript `json:"scripts"`
	NextScriptID int64            `json:"next_script_id"`

	Actions      []actions.Definition `json:"actions"`
	NextActionID int64                `json:"next_action_id"`

	Chat       []Message `json:"chat"`
	NextChat   int64     `json:"next_chat_id"`
	Inbox      []Message `json:"inbox"`
	NextInbox  int64     `json:"next_inbox_id"`
	Outbox     []Message `json:"outbox"`
	NextOutbox int64     `json:"next_outbox_id"`

	Runs      []Run `json:"runs"`
	NextRunID int64 `json:"next_run_id"`

	State PipelineState `json:"state"`
}

func emptyDoc() fileDoc {
	return fileDoc{
		Config:       map[string]any{},
		Workspaces:   map[string]WorkspaceConfig{},
		NextScriptID: 1,
		NextActionID: 1,
		NextChat:     1,
		NextInbox:    1,
		NextOutbox:   1,
		NextRunID:    1,
		State:        PipelineState{State: StateStopped, UpdatedAt: time.Now()},
	}
}

func (f *FileStore) load() (fileDoc, error) {
	b, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return emptyDoc(), nil
	}
	if err != nil {
		return fileDoc{}, err
	}
	var doc fileDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return fileDoc{}, err
	}
	if doc.Config == nil {
		doc.Config = map[string]any{}
	}
	if doc.Workspaces == nil {
		doc.Workspaces = map[string]WorkspaceConfig{}
	}
	return doc, nil
}

func (f *FileStore) save(doc fileDoc) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.load()
	return err
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) GetConfig(ctx context.Context, key string) (any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc.Config[key]
	return v, ok, nil
}

func (f *FileStore) SetConfig(ctx context.Context, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	doc.Config[key] = value
	return f.save(doc)
}

func (f *FileStore) GetWorkspaceConfig(ctx context.Context, workspace string) (WorkspaceConfig, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return WorkspaceConfig{}, false, err
	}
	cfg, ok := doc.Workspaces[workspace]
	return cfg, ok, nil
}

func (f *FileStore) UpsertWorkspaceConfig(ctx context.Context, cfg WorkspaceConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	doc.Workspaces[cfg.Workspace] = cfg
	return f.save(doc)
}

func (f *FileStore) CreateScript(ctx context.Context, s PipelineScript) (PipelineScript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return PipelineScript{}, err
	}
	now := time.Now()
	s.ID = doc.NextScriptID
	doc.NextScriptID++
	s.ScriptVersion = 1
	s.CreatedAt = now
	s.UpdatedAt = now
	doc.Scripts = append(doc.Scripts, s)
	doc.Scripts = capScripts(doc.Scripts)
	if err := f.save(doc); err != nil {
		return PipelineScript{}, err
	}
	return s, nil
}

func (f *FileStore) ListScripts(ctx context.Context, limit int) ([]PipelineScript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]PipelineScript, len(doc.Scripts))
	for i, s := range doc.Scripts {
		out[len(doc.Scripts)-1-i] = s
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FileStore) GetScript(ctx context.Context, id int64) (PipelineScript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return PipelineScript{}, err
	}
	for _, s := range doc.Scripts {
		if s.ID == id {
			return s, nil
		}
	}
	return PipelineScript{}, ErrNotFound
}

func (f *FileStore) UpdateScript(ctx context.Context, id int64, patch ScriptPatch) (PipelineScript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return PipelineScript{}, err
	}
	for i := range doc.Scripts {
		if doc.Scripts[i].ID != id {
			continue
		}
		s := &doc.Scripts[i]
		if patch.Title != nil {
			s.Title = *patch.Title
		}
		if patch.ScriptText != nil {
			s.ScriptText = *patch.ScriptText
			s.ScriptVersion++
		}
		if patch.ClearIR {
			s.IR = nil
		} else if patch.IR != nil {
			s.IR = patch.IR
		}
		s.UpdatedAt = time.Now()
		if err := f.save(doc); err != nil {
			return PipelineScript{}, err
		}
		return *s, nil
	}
	return PipelineScript{}, ErrNotFound
}

func (f *FileStore) DeleteScript(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	for i, s := range doc.Scripts {
		if s.ID == id {
			doc.Scripts = append(doc.Scripts[:i], doc.Scripts[i+1:]...)
			return f.save(doc)
		}
	}
	return ErrNotFound
}

func (f *FileStore) CreateAction(ctx context.Context, a actions.Definition) (actions.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return actions.Definition{}, err
	}
	now := time.Now()
	a.ID = doc.NextActionID
	doc.NextActionID++
	a.Enabled = true
	a.CreatedAt = now
	a.UpdatedAt = now
	doc.Actions = append(doc.Actions, a)
	if err := f.save(doc); err != nil {
		return actions.Definition{}, err
	}
	return a, nil
}

func (f *FileStore) ListStoredActions(ctx context.Context) ([]actions.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]actions.Definition, len(doc.Actions))
	for i, a := range doc.Actions {
		out[len(doc.Actions)-1-i] = a
	}
	return out, nil
}

func (f *FileStore) GetStoredAction(ctx context.Context, id int64) (actions.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return actions.Definition{}, err
	}
	for _, a := range doc.Actions {
		if a.ID == id {
			return a, nil
		}
	}
	return actions.Definition{}, ErrNotFound
}

func (f *FileStore) UpdateAction(ctx context.Context, id int64, title string, spec map[string]any) (actions.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return actions.Definition{}, err
	}
	for i := range doc.Actions {
		if doc.Actions[i].ID != id {
			continue
		}
		doc.Actions[i].Title = title
		doc.Actions[i].Spec = spec
		doc.Actions[i].UpdatedAt = time.Now()
		if err := f.save(doc); err != nil {
			return actions.Definition{}, err
		}
		return doc.Actions[i], nil
	}
	return actions.Definition{}, ErrNotFound
}

func (f *FileStore) DeleteAction(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	for i, a := range doc.Actions {
		if a.ID == id {
			doc.Actions = append(doc.Actions[:i], doc.Actions[i+1:]...)
			return f.save(doc)
		}
	}
	return ErrNotFound
}

func (f *FileStore) AppendChatMessage(ctx context.Context, role Role, content string) (Message, error) {
	return f.appendMessage(queueChat, role, content)
}

func (f *FileStore) ListChatMessages(ctx context.Context, limit int) ([]Message, error) {
	return f.listMessages(queueChat, limit)
}

func (f *FileStore) AppendInboxMessage(ctx context.Context, content string) (Message, error) {
	return f.appendMessage(queueInbox, RoleUser, content)
}

func (f *FileStore) ListInboxMessages(ctx context.Context, limit int) ([]Message, error) {
	return f.listMessages(queueInbox, limit)
}

func (f *FileStore) AppendOutboxMessage(ctx context.Context, role Role, content string) (Message, error) {
	return f.appendMessage(queueOutbox, role, content)
}

func (f *FileStore) ListOutboxMessages(ctx context.Context, limit int) ([]Message, error) {
	return f.listMessages(queueOutbox, limit)
}

type queueName string

const (
	queueChat   queueName = "chat"
	queueInbox  queueName = "inbox"
	queueOutbox queueName = "outbox"
)

func (f *FileStore) appendMessage(q queueName, role Role, content string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return Message{}, err
	}
	m := Message{Role: role, Content: clip(content, 10_000), CreatedAt: time.Now()}
	switch q {
	case queueChat:
		m.ID = doc.NextChat
		doc.NextChat++
		doc.Chat = append(doc.Chat, m)
		doc.Chat = capMessages(doc.Chat)
	case queueInbox:
		m.ID = doc.NextInbox
		doc.NextInbox++
		doc.Inbox = append(doc.Inbox, m)
		doc.Inbox = capMessages(doc.Inbox)
	case queueOutbox:
		m.ID = doc.NextOutbox
		doc.NextOutbox++
		doc.Outbox = append(doc.Outbox, m)
		doc.Outbox = capMessages(doc.Outbox)
	}
	if err := f.save(doc); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (f *FileStore) listMessages(q queueName, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	var src []Message
	switch q {
	case queueChat:
		src = doc.Chat
	case queueInbox:
		src = doc.Inbox
	case queueOutbox:
		src = doc.Outbox
	}
	newestFirst := make([]Message, len(src))
	for i, m := range src {
		newestFirst[len(src)-1-i] = m
	}
	if limit > 0 && len(newestFirst) > limit {
		newestFirst = newestFirst[:limit]
	}
	return reverseMessages(newestFirst), nil
}

func (f *FileStore) CreateRun(ctx context.Context, r Run) (Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return Run{}, err
	}
	r.ID = doc.NextRunID
	doc.NextRunID++
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	doc.Runs = append(doc.Runs, r)
	if err := f.save(doc); err != nil {
		return Run{}, err
	}
	return r, nil
}

func (f *FileStore) SetRunStatus(ctx context.Context, id int64, status RunStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return err
	}
	for i := range doc.Runs {
		if doc.Runs[i].ID != id {
			continue
		}
		doc.Runs[i].Status = status
		if status.IsTerminal() {
			now := time.Now()
			doc.Runs[i].StoppedAt = &now
		}
		return f.save(doc)
	}
	return ErrNotFound
}

func (f *FileStore) GetLatestRun(ctx context.Context) (Run, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return Run{}, false, err
	}
	if len(doc.Runs) == 0 {
		return Run{}, false, nil
	}
	latest := doc.Runs[0]
	for _, r := range doc.Runs[1:] {
		if r.ID > latest.ID {
			latest = r
		}
	}
	return latest, true, nil
}

func (f *FileStore) GetPipelineState(ctx context.Context) (PipelineState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return PipelineState{}, err
	}
	return doc.State, nil
}

func (f *FileStore) SetPipelineState(ctx context.Context, state FSMState, patch StatePatch, tsKind TSKind) (PipelineState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return PipelineState{}, err
	}
	applyStatePatch(&doc.State, state, patch, tsKind)
	if err := f.save(doc); err != nil {
		return PipelineState{}, err
	}
	return doc.State, nil
}

func applyStatePatch(s *PipelineState, state FSMState, patch StatePatch, tsKind TSKind) {
	now := time.Now()
	s.State = state
	if patch.PID != nil {
		s.PID = *patch.PID
	}
	if patch.RunID != nil {
		s.RunID = *patch.RunID
	}
	switch tsKind {
	case TSStart:
		s.StartedAt = &now
	case TSPause:
		s.PausedAt = &now
	case TSResume:
		s.ResumedAt = &now
	case TSStop:
		s.StoppedAt = &now
	}
	s.UpdatedAt = now
}

func capScripts(in []PipelineScript) []PipelineScript {
	if len(in) <= maxListCap {
		return in
	}
	return in[len(in)-maxListCap:]
}

func capMessages(in []Message) []Message {
	if len(in) <= maxListCap {
		return in
	}
	return in[len(in)-maxListCap:]
}
