// Package outbox bridges the file-queue boundary between the API and the
// supervised pipeline child: inbox messages are mirrored out to files the
// child reads, and files the child drops in its outbox directory are
// ingested back into the message store (spec §4.8).
package outbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// Emitter writes one file per accepted inbox message under
// <runtime>/inbox/<ms>_user.md. The monotonic millisecond counter in the
// filename is collision-resistant within a single process without any
// cross-file locking (spec §4.8 "Inbox emission").
type Emitter struct {
	dir     string
	counter atomic.Int64
}

// NewEmitter builds an emitter rooted at <runtime>/inbox, creating the
// directory if needed.
func NewEmitter(runtimeDir string) (*Emitter, error) {
	dir := filepath.Join(runtimeDir, "inbox")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox dir: %w", err)
	}
	return &Emitter{dir: dir}, nil
}

// Emit writes content (already persisted to the store by the caller, per
// spec §5's "persistence precedes file-queue emission" ordering
// guarantee) to a fresh <ms>_user.md file.
func (e *Emitter) Emit(content string) error {
	ms := time.Now().UnixMilli()
	if prev := e.counter.Load(); ms <= prev {
		ms = prev + 1
	}
	e.counter.Store(ms)

	name := fmt.Sprintf("%d_user.md", ms)
	path := filepath.Join(e.dir, name)
	return os.WriteFile(path, []byte(strings.TrimSpace(content)), 0o644)
}
