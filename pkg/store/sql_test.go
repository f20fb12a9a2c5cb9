package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/autoappdev/pkg/actions"
	"github.com/codeready-toolchain/autoappdev/pkg/store"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestSQLStore spins up a disposable PostgreSQL container, grounded
// on the teacher's test/database helper, and applies the embedded
// schema through store.NewSQL exactly as production startup does.
func newTestSQLStore(t *testing.T) *store.SQLStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("autoappdev"),
		postgres.WithUsername("autoappdev"),
		postgres.WithPassword("autoappdev"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(pgContainer)
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewSQL(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStore_ConfigRoundTrip(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	_, ok, err := s.GetConfig(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetConfig(ctx, "pipeline_plan", map[string]any{"kind": "autoappdev_plan", "version": float64(1)}))
	v, ok, err := s.GetConfig(ctx, "pipeline_plan")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "autoappdev_plan", v.(map[string]any)["kind"])

	require.NoError(t, s.SetConfig(ctx, "pipeline_plan", map[string]any{"kind": "autoappdev_plan", "version": float64(2)}))
	v, _, err = s.GetConfig(ctx, "pipeline_plan")
	require.NoError(t, err)
	require.Equal(t, float64(2), v.(map[string]any)["version"])
}

func TestSQLStore_WorkspaceConfigUpsert(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	_, ok, err := s.GetWorkspaceConfig(ctx, "demo")
	require.NoError(t, err)
	require.False(t, ok)

	cfg := store.WorkspaceConfig{
		Workspace:         "demo",
		MaterialsPaths:    []string{"docs/spec.md"},
		SharedContextText: "context",
		DefaultLanguage:   "go",
	}
	require.NoError(t, s.UpsertWorkspaceConfig(ctx, cfg))

	got, ok, err := s.GetWorkspaceConfig(ctx, "demo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"docs/spec.md"}, got.MaterialsPaths)
	require.Equal(t, "go", got.DefaultLanguage)
}

func TestSQLStore_ScriptCRUD(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	created, err := s.CreateScript(ctx, store.PipelineScript{Title: "First", ScriptText: "AUTOAPPDEV_PIPELINE 1\n"})
	require.NoError(t, err)
	require.Equal(t, 1, created.ScriptVersion)
	require.NotZero(t, created.ID)

	got, err := s.GetScript(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "First", got.Title)

	newText := "AUTOAPPDEV_PIPELINE 1\n# updated\n"
	updated, err := s.UpdateScript(ctx, created.ID, store.ScriptPatch{ScriptText: &newText})
	require.NoError(t, err)
	require.Equal(t, 2, updated.ScriptVersion)
	require.Equal(t, newText, updated.ScriptText)

	list, err := s.ListScripts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteScript(ctx, created.ID))
	_, err = s.GetScript(ctx, created.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLStore_ActionCRUD(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	created, err := s.CreateAction(ctx, actions.Definition{
		Title: "Build", Kind: actions.KindCommand,
		Spec: map[string]any{"cmd": "go build ./...", "shell": "bash", "cwd": ".", "timeout_s": 60},
	})
	require.NoError(t, err)
	require.True(t, created.Enabled)

	updated, err := s.UpdateAction(ctx, created.ID, "Build all", map[string]any{"cmd": "go build ./...", "shell": "bash", "cwd": ".", "timeout_s": 120})
	require.NoError(t, err)
	require.Equal(t, "Build all", updated.Title)
	require.Equal(t, float64(120), updated.Spec["timeout_s"])

	list, err := s.ListStoredActions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteAction(ctx, created.ID))
	_, err = s.GetStoredAction(ctx, created.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLStore_MessageQueuesOrderOldestFirst(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three"} {
		_, err := s.AppendInboxMessage(ctx, c)
		require.NoError(t, err)
	}

	msgs, err := s.ListInboxMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "one", msgs[0].Content)
	require.Equal(t, "three", msgs[2].Content)
	require.Less(t, msgs[0].ID, msgs[1].ID)
	require.Less(t, msgs[1].ID, msgs[2].ID)
}

func TestSQLStore_RunJournalAndPipelineState(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()

	_, ok, err := s.GetLatestRun(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	run, err := s.CreateRun(ctx, store.Run{Status: store.RunRunning, PID: 1234, Script: "run.sh", Cwd: ".", Args: []string{"--fast"}})
	require.NoError(t, err)
	require.NotZero(t, run.ID)

	pid := 1234
	runID := run.ID
	state, err := s.SetPipelineState(ctx, store.StateRunning, store.StatePatch{PID: &pid, RunID: &runID}, store.TSStart)
	require.NoError(t, err)
	require.Equal(t, store.StateRunning, state.State)
	require.NotNil(t, state.StartedAt)

	require.NoError(t, s.SetRunStatus(ctx, run.ID, store.RunCompleted))

	latest, ok, err := s.GetLatestRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.RunCompleted, latest.Status)
	require.NotNil(t, latest.StoppedAt)

	state, err = s.SetPipelineState(ctx, store.StateStopped, store.StatePatch{}, store.TSStop)
	require.NoError(t, err)
	require.Equal(t, store.StateStopped, state.State)
	require.NotNil(t, state.StoppedAt)
}
