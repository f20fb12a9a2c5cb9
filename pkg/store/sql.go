package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/autoappdev/pkg/actions"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// SQLStore is the Postgres-backed [Store] implementation, grounded on
// the teacher's pkg/database connection and migration pattern: pgx
// over database/sql, schema applied once at startup via an embedded
// golang-migrate source.
type SQLStore struct {
	db *sql.DB
}

// NewSQL opens a pooled connection to databaseURL, verifies it with a
// short-timeout ping, and applies the embedded schema. Any failure here
// is fatal to startup — spec §9 forbids silently falling back to the
// file backend when a URL was configured.
func NewSQL(ctx context.Context, databaseURL string) (*SQLStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &SQLStore{db: db}, nil
}

func applyMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migration source: %w", err)
	}
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "autoappdev", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return sourceDriver.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) GetConfig(ctx context.Context, key string) (any, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = $1`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *SQLStore) SetConfig(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, raw)
	return err
}

func (s *SQLStore) GetWorkspaceConfig(ctx context.Context, workspace string) (WorkspaceConfig, bool, error) {
	var cfg WorkspaceConfig
	var paths []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT workspace, materials_paths, shared_context_text, shared_context_path, default_language
		FROM workspace_config WHERE workspace = $1`, workspace).
		Scan(&cfg.Workspace, &paths, &cfg.SharedContextText, &cfg.SharedContextPath, &cfg.DefaultLanguage)
	if err == sql.ErrNoRows {
		return WorkspaceConfig{}, false, nil
	}
	if err != nil {
		return WorkspaceConfig{}, false, err
	}
	if err := json.Unmarshal(paths, &cfg.MaterialsPaths); err != nil {
		return WorkspaceConfig{}, false, err
	}
	return cfg, true, nil
}

func (s *SQLStore) UpsertWorkspaceConfig(ctx context.Context, cfg WorkspaceConfig) error {
	paths, err := json.Marshal(cfg.MaterialsPaths)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workspace_config (workspace, materials_paths, shared_context_text, shared_context_path, default_language)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workspace) DO UPDATE SET
			materials_paths = EXCLUDED.materials_paths,
			shared_context_text = EXCLUDED.shared_context_text,
			shared_context_path = EXCLUDED.shared_context_path,
			default_language = EXCLUDED.default_language`,
		cfg.Workspace, paths, cfg.SharedContextText, cfg.SharedContextPath, cfg.DefaultLanguage)
	return err
}

func (s *SQLStore) CreateScript(ctx context.Context, sc PipelineScript) (PipelineScript, error) {
	var ir []byte
	var err error
	if sc.IR != nil {
		ir, err = json.Marshal(sc.IR)
		if err != nil {
			return PipelineScript{}, err
		}
	}
	if sc.ScriptFormat == "" {
		sc.ScriptFormat = "aaps_v1"
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO pipeline_scripts (title, script_text, script_version, script_format, ir)
		VALUES ($1, $2, 1, $3, $4)
		RETURNING id, script_version, created_at, updated_at`,
		sc.Title, sc.ScriptText, sc.ScriptFormat, nullable(ir))
	if err := row.Scan(&sc.ID, &sc.ScriptVersion, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return PipelineScript{}, err
	}
	return sc, nil
}

func (s *SQLStore) ListScripts(ctx context.Context, limit int) ([]PipelineScript, error) {
	if limit <= 0 || limit > maxListCap {
		limit = maxListCap
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, script_text, script_version, script_format, ir, created_at, updated_at
		FROM pipeline_scripts ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PipelineScript
	for rows.Next() {
		sc, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetScript(ctx context.Context, id int64) (PipelineScript, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, script_text, script_version, script_format, ir, created_at, updated_at
		FROM pipeline_scripts WHERE id = $1`, id)
	sc, err := scanScript(row)
	if err == sql.ErrNoRows {
		return PipelineScript{}, ErrNotFound
	}
	return sc, err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanScript(row scannable) (PipelineScript, error) {
	var sc PipelineScript
	var ir []byte
	if err := row.Scan(&sc.ID, &sc.Title, &sc.ScriptText, &sc.ScriptVersion, &sc.ScriptFormat, &ir, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return PipelineScript{}, err
	}
	if len(ir) > 0 {
		if err := json.Unmarshal(ir, &sc.IR); err != nil {
			return PipelineScript{}, err
		}
	}
	return sc, nil
}

func (s *SQLStore) UpdateScript(ctx context.Context, id int64, patch ScriptPatch) (PipelineScript, error) {
	existing, err := s.GetScript(ctx, id)
	if err != nil {
		return PipelineScript{}, err
	}
	if patch.Title != nil {
		existing.Title = *patch.Title
	}
	if patch.ScriptText != nil {
		existing.ScriptText = *patch.ScriptText
		existing.ScriptVersion++
	}
	if patch.ClearIR {
		existing.IR = nil
	} else if patch.IR != nil {
		existing.IR = patch.IR
	}
	var ir []byte
	if existing.IR != nil {
		ir, err = json.Marshal(existing.IR)
		if err != nil {
			return PipelineScript{}, err
		}
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE pipeline_scripts
		SET title = $1, script_text = $2, script_version = $3, ir = $4, updated_at = now()
		WHERE id = $5
		RETURNING updated_at`,
		existing.Title, existing.ScriptText, existing.ScriptVersion, nullable(ir), id)
	if err := row.Scan(&existing.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return PipelineScript{}, ErrNotFound
		}
		return PipelineScript{}, err
	}
	return existing, nil
}

func (s *SQLStore) DeleteScript(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pipeline_scripts WHERE id = $1`, id)
	return deletedOrNotFound(res, err)
}

func deletedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (s *SQLStore) CreateAction(ctx context.Context, a actions.Definition) (actions.Definition, error) {
	spec, err := json.Marshal(a.Spec)
	if err != nil {
		return actions.Definition{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO action_definitions (title, kind, spec, enabled)
		VALUES ($1, $2, $3, true)
		RETURNING id, enabled, created_at, updated_at`, a.Title, a.Kind, spec)
	if err := row.Scan(&a.ID, &a.Enabled, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return actions.Definition{}, err
	}
	return a, nil
}

func (s *SQLStore) ListStoredActions(ctx context.Context) ([]actions.Definition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, kind, spec, enabled, created_at, updated_at
		FROM action_definitions ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []actions.Definition
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetStoredAction(ctx context.Context, id int64) (actions.Definition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, kind, spec, enabled, created_at, updated_at
		FROM action_definitions WHERE id = $1`, id)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return actions.Definition{}, ErrNotFound
	}
	return a, err
}

func scanAction(row scannable) (actions.Definition, error) {
	var a actions.Definition
	var spec []byte
	var kind string
	if err := row.Scan(&a.ID, &a.Title, &kind, &spec, &a.Enabled, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return actions.Definition{}, err
	}
	a.Kind = actions.Kind(kind)
	if err := json.Unmarshal(spec, &a.Spec); err != nil {
		return actions.Definition{}, err
	}
	return a, nil
}

func (s *SQLStore) UpdateAction(ctx context.Context, id int64, title string, spec map[string]any) (actions.Definition, error) {
	raw, err := json.Marshal(spec)
	if err != nil {
		return actions.Definition{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE action_definitions SET title = $1, spec = $2, updated_at = now()
		WHERE id = $3
		RETURNING id, title, kind, spec, enabled, created_at, updated_at`, title, raw, id)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return actions.Definition{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) DeleteAction(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM action_definitions WHERE id = $1`, id)
	return deletedOrNotFound(res, err)
}

func (s *SQLStore) AppendChatMessage(ctx context.Context, role Role, content string) (Message, error) {
	return s.appendMessage(ctx, "chat", role, content)
}

func (s *SQLStore) ListChatMessages(ctx context.Context, limit int) ([]Message, error) {
	return s.listMessages(ctx, "chat", limit)
}

func (s *SQLStore) AppendInboxMessage(ctx context.Context, content string) (Message, error) {
	return s.appendMessage(ctx, "inbox", RoleUser, content)
}

func (s *SQLStore) ListInboxMessages(ctx context.Context, limit int) ([]Message, error) {
	return s.listMessages(ctx, "inbox", limit)
}

func (s *SQLStore) AppendOutboxMessage(ctx context.Context, role Role, content string) (Message, error) {
	return s.appendMessage(ctx, "outbox", role, content)
}

func (s *SQLStore) ListOutboxMessages(ctx context.Context, limit int) ([]Message, error) {
	return s.listMessages(ctx, "outbox", limit)
}

func (s *SQLStore) appendMessage(ctx context.Context, queue string, role Role, content string) (Message, error) {
	m := Message{Role: role, Content: clip(content, 10_000)}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (queue, role, content) VALUES ($1, $2, $3)
		RETURNING id, created_at`, queue, role, m.Content)
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (s *SQLStore) listMessages(ctx context.Context, queue string, limit int) ([]Message, error) {
	if limit <= 0 || limit > maxListCap {
		limit = maxListCap
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, created_at FROM messages
		WHERE queue = $1 ORDER BY id DESC LIMIT $2`, queue, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var newestFirst []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reverseMessages(newestFirst), nil
}

func (s *SQLStore) CreateRun(ctx context.Context, r Run) (Run, error) {
	args, err := json.Marshal(r.Args)
	if err != nil {
		return Run{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO pipeline_runs (status, pid, script, cwd, args)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, started_at`, r.Status, r.PID, r.Script, r.Cwd, args)
	if err := row.Scan(&r.ID, &r.StartedAt); err != nil {
		return Run{}, err
	}
	return r, nil
}

func (s *SQLStore) SetRunStatus(ctx context.Context, id int64, status RunStatus) error {
	var res sql.Result
	var err error
	if status.IsTerminal() {
		res, err = s.db.ExecContext(ctx, `
			UPDATE pipeline_runs SET status = $1, stopped_at = now() WHERE id = $2`, status, id)
	} else {
		res, err = s.db.ExecContext(ctx, `UPDATE pipeline_runs SET status = $1 WHERE id = $2`, status, id)
	}
	return deletedOrNotFound(res, err)
}

func (s *SQLStore) GetLatestRun(ctx context.Context) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, pid, script, cwd, args, started_at, stopped_at
		FROM pipeline_runs ORDER BY id DESC LIMIT 1`)
	var r Run
	var status string
	var args []byte
	var stoppedAt sql.NullTime
	err := row.Scan(&r.ID, &status, &r.PID, &r.Script, &r.Cwd, &args, &r.StartedAt, &stoppedAt)
	if err == sql.ErrNoRows {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	r.Status = RunStatus(status)
	if stoppedAt.Valid {
		r.StoppedAt = &stoppedAt.Time
	}
	if err := json.Unmarshal(args, &r.Args); err != nil {
		return Run{}, false, err
	}
	return r, true, nil
}

func (s *SQLStore) GetPipelineState(ctx context.Context) (PipelineState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT state, pid, run_id, started_at, paused_at, resumed_at, stopped_at, updated_at
		FROM pipeline_state WHERE id = 1`)
	return scanState(row)
}

func scanState(row scannable) (PipelineState, error) {
	var st PipelineState
	var state string
	var started, paused, resumed, stopped sql.NullTime
	if err := row.Scan(&state, &st.PID, &st.RunID, &started, &paused, &resumed, &stopped, &st.UpdatedAt); err != nil {
		return PipelineState{}, err
	}
	st.State = FSMState(state)
	if started.Valid {
		st.StartedAt = &started.Time
	}
	if paused.Valid {
		st.PausedAt = &paused.Time
	}
	if resumed.Valid {
		st.ResumedAt = &resumed.Time
	}
	if stopped.Valid {
		st.StoppedAt = &stopped.Time
	}
	return st, nil
}

func (s *SQLStore) SetPipelineState(ctx context.Context, state FSMState, patch StatePatch, tsKind TSKind) (PipelineState, error) {
	current, err := s.GetPipelineState(ctx)
	if err != nil {
		return PipelineState{}, err
	}
	applyStatePatch(&current, state, patch, tsKind)

	row := s.db.QueryRowContext(ctx, `
		UPDATE pipeline_state
		SET state = $1, pid = $2, run_id = $3,
			started_at = $4, paused_at = $5, resumed_at = $6, stopped_at = $7, updated_at = now()
		WHERE id = 1
		RETURNING state, pid, run_id, started_at, paused_at, resumed_at, stopped_at, updated_at`,
		current.State, current.PID, current.RunID,
		nullTimePtr(current.StartedAt), nullTimePtr(current.PausedAt), nullTimePtr(current.ResumedAt), nullTimePtr(current.StoppedAt))
	return scanState(row)
}

func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
