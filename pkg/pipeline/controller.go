package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/pathsafe"
	"github.com/codeready-toolchain/autoappdev/pkg/store"
)

const reaperInterval = 500 * time.Millisecond

// Controller is the pipeline finite-state machine. The store is always
// consulted for the current state immediately before a transition
// check (spec §4.6: "the store is authoritative"); the in-memory
// [child] handle exists only for runs this process itself spawned —
// after a restart it is nil even if the store still reads running,
// which is exactly how orphan detection (spec §9 open question) falls
// out of the design without extra bookkeeping.
type Controller struct {
	st         store.Store
	runtimeDir string
	repoRoot   string

	mu    sync.Mutex
	child *child
	runID int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewController builds a controller bound to st for state and to
// runtimeDir/repoRoot for the log file, sentinel file, and script
// path-containment guardrail.
func NewController(st store.Store, runtimeDir, repoRoot string) *Controller {
	return &Controller{
		st:         st,
		runtimeDir: runtimeDir,
		repoRoot:   repoRoot,
		stopCh:     make(chan struct{}),
	}
}

func (c *Controller) logPath() string   { return filepath.Join(c.runtimeDir, "logs", "pipeline.log") }
func (c *Controller) pausePath() string { return filepath.Join(c.runtimeDir, "PAUSE") }

// Launch starts the background reaper loop. Call once at process
// startup.
func (c *Controller) Launch(ctx context.Context) {
	c.wg.Add(1)
	go c.reaperLoop(ctx)
}

// Shutdown stops the reaper loop and waits for it to exit. It does not
// touch a running child — the spec has no "reattach" story, so a child
// left running across a graceful shutdown is deliberately orphaned for
// the next process to reconcile via StopRun.
func (c *Controller) Shutdown() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// StartRun handles the `start` event (spec §4.6 table).
func (c *Controller) StartRun(ctx context.Context, spec StartSpec) (store.Run, error) {
	cur, err := c.st.GetPipelineState(ctx)
	if err != nil {
		return store.Run{}, err
	}
	if cur.State != store.StateStopped {
		return store.Run{}, invalidTransition(cur.State, "start")
	}

	scriptPath, err := pathsafe.ResolveScriptPath(c.repoRoot, spec.Cwd, spec.Script)
	if err != nil {
		return store.Run{}, apperr.Newf(apperr.CodeScriptOutsideRepo, "%s", err.Error())
	}
	if _, err := os.Stat(scriptPath); err != nil {
		return store.Run{}, apperr.Newf(apperr.CodeScriptNotFound, "script %q not found", scriptPath)
	}

	cwd := spec.Cwd
	if cwd == "" {
		cwd = c.repoRoot
	} else if !filepath.IsAbs(cwd) {
		cwd = filepath.Join(c.repoRoot, cwd)
	}

	if err := truncateLog(c.logPath()); err != nil {
		return store.Run{}, err
	}

	ch, err := spawnChild(scriptPath, cwd, spec.Args, c.logPath())
	if err != nil {
		return store.Run{}, err
	}

	run, err := c.st.CreateRun(ctx, store.Run{
		Status: store.RunRunning,
		PID:    ch.cmd.Process.Pid,
		Script: scriptPath,
		Cwd:    cwd,
		Args:   spec.Args,
	})
	if err != nil {
		stopProcessGroup(ctx, ch.cmd.Process.Pid, ch.exited)
		return store.Run{}, err
	}

	pid := ch.cmd.Process.Pid
	runID := run.ID
	if _, err := c.st.SetPipelineState(ctx, store.StateRunning, store.StatePatch{PID: &pid, RunID: &runID}, store.TSStart); err != nil {
		stopProcessGroup(ctx, pid, ch.exited)
		return store.Run{}, err
	}

	c.mu.Lock()
	c.child = ch
	c.runID = run.ID
	c.mu.Unlock()

	return run, nil
}

// StopRun handles the `stop` event from either running or paused.
func (c *Controller) StopRun(ctx context.Context) error {
	cur, err := c.st.GetPipelineState(ctx)
	if err != nil {
		return err
	}
	if cur.State == store.StateStopped {
		return invalidTransition(cur.State, "stop")
	}

	c.mu.Lock()
	ch := c.child
	c.mu.Unlock()

	_ = os.Remove(c.pausePath()) // best-effort per spec §9; never throw

	if ch != nil {
		stopProcessGroup(ctx, ch.cmd.Process.Pid, ch.exited)
	}

	if cur.RunID != 0 {
		if err := c.st.SetRunStatus(ctx, cur.RunID, store.RunStopped); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	if _, err := c.st.SetPipelineState(ctx, store.StateStopped, store.StatePatch{}, store.TSStop); err != nil {
		return err
	}

	c.mu.Lock()
	c.child = nil
	c.runID = 0
	c.mu.Unlock()

	return nil
}

// Pause handles the `pause` event: it only creates the sentinel file —
// delivering no signal — the child script is responsible for checking
// it at safe points (spec §4.6 "Pause/resume").
func (c *Controller) Pause(ctx context.Context) error {
	cur, err := c.st.GetPipelineState(ctx)
	if err != nil {
		return err
	}
	if cur.State != store.StateRunning {
		return invalidTransition(cur.State, "pause")
	}

	if err := touchFile(c.pausePath()); err != nil {
		return err
	}
	if cur.RunID != 0 {
		if err := c.st.SetRunStatus(ctx, cur.RunID, store.RunPaused); err != nil {
			return err
		}
	}
	_, err = c.st.SetPipelineState(ctx, store.StatePaused, store.StatePatch{}, store.TSPause)
	return err
}

// Resume handles the `resume` event: removes the sentinel file.
func (c *Controller) Resume(ctx context.Context) error {
	cur, err := c.st.GetPipelineState(ctx)
	if err != nil {
		return err
	}
	if cur.State != store.StatePaused {
		return invalidTransition(cur.State, "resume")
	}

	_ = os.Remove(c.pausePath()) // best-effort per spec §9
	if cur.RunID != 0 {
		if err := c.st.SetRunStatus(ctx, cur.RunID, store.RunRunning); err != nil {
			return err
		}
	}
	_, err = c.st.SetPipelineState(ctx, store.StateRunning, store.StatePatch{}, store.TSResume)
	return err
}

// Status returns the authoritative FSM view.
func (c *Controller) Status(ctx context.Context) (store.PipelineState, error) {
	return c.st.GetPipelineState(ctx)
}

func touchFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
