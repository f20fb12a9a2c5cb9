package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/codeready-toolchain/autoappdev/pkg/store"
)

// reaperLoop polls the in-process child handle every reaperInterval
// (spec §4.6 "Reaper"), grounded on the teacher's worker-pool run loop
// shape (stopCh/ctx select, slog.With contextual logging).
func (c *Controller) reaperLoop(ctx context.Context) {
	defer c.wg.Done()

	log := slog.With("component", "pipeline.reaper")
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reapOnce(ctx, log)
		}
	}
}

func (c *Controller) reapOnce(ctx context.Context, log *slog.Logger) {
	c.mu.Lock()
	ch := c.child
	runID := c.runID
	c.mu.Unlock()

	if ch == nil {
		return
	}

	select {
	case <-ch.exited:
	default:
		return
	}

	status := store.RunCompleted
	if ch.exitCode != 0 {
		status = store.RunFailed
	}

	if err := c.st.SetRunStatus(ctx, runID, status); err != nil {
		log.Error("failed to record run exit status", "run_id", runID, "error", err)
	}
	_ = os.Remove(c.pausePath())
	if _, err := c.st.SetPipelineState(ctx, store.StateStopped, store.StatePatch{}, store.TSStop); err != nil {
		log.Error("failed to update pipeline state after exit", "run_id", runID, "error", err)
	}

	c.mu.Lock()
	c.child = nil
	c.runID = 0
	c.mu.Unlock()

	log.Info("pipeline run exited", "run_id", runID, "status", status)
}
