package outbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/codeready-toolchain/autoappdev/pkg/store"
)

const (
	pollInterval  = 750 * time.Millisecond
	maxPerTick    = 50
	processedName = "processed"
)

var roleFilenameRe = regexp.MustCompile(`^\d+_([A-Za-z0-9-]+)\.`)

// Ingester periodically scans <runtime>/outbox for files written by the
// pipeline child, appends their content to the outbox message queue, and
// moves them to outbox/processed (spec §4.8 "Outbox ingestion").
type Ingester struct {
	st  store.Store
	dir string

	running  atomic.Bool
	errCount atomic.Int64
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ErrorCount reports how many failures the ingester has hit since
// startup: one per failed outbox-directory listing and one per file
// whose read or store append failed. A failed move to processed/
// (which falls back to deleting the file) is not counted. Spec §9's
// open question floats surfacing this via /api/health "if stricter
// guarantees are needed" — the health handler exposes it directly.
func (in *Ingester) ErrorCount() int64 {
	return in.errCount.Load()
}

// NewIngester builds an ingester rooted at <runtime>/outbox, creating both
// it and its processed/ subdirectory if needed.
func NewIngester(st store.Store, runtimeDir string) (*Ingester, error) {
	dir := filepath.Join(runtimeDir, "outbox")
	if err := os.MkdirAll(filepath.Join(dir, processedName), 0o755); err != nil {
		return nil, err
	}
	return &Ingester{st: st, dir: dir, stopCh: make(chan struct{})}, nil
}

// Launch starts the polling loop in a goroutine.
func (in *Ingester) Launch(ctx context.Context) {
	in.wg.Add(1)
	go in.run(ctx)
}

// Shutdown stops the polling loop and waits for it to exit.
func (in *Ingester) Shutdown() {
	in.stopOnce.Do(func() { close(in.stopCh) })
	in.wg.Wait()
}

func (in *Ingester) run(ctx context.Context) {
	defer in.wg.Done()

	log := slog.With("component", "outbox.ingester")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-in.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			in.tick(ctx, log)
		}
	}
}

// tick is single-flight: a prior invocation still running means this tick
// is skipped entirely, so a slow filesystem cannot stack overlapping scans
// (spec §5 "Outbox ingester ... single-flight").
func (in *Ingester) tick(ctx context.Context, log *slog.Logger) {
	if !in.running.CompareAndSwap(false, true) {
		return
	}
	defer in.running.Store(false)

	names, err := in.listCandidates()
	if err != nil {
		in.errCount.Add(1)
		log.Warn("listing outbox dir failed", "error", err)
		return
	}

	for _, name := range names {
		if err := in.ingestOne(ctx, name); err != nil {
			in.errCount.Add(1)
			log.Warn("ingest failed", "file", name, "error", err)
		}
	}
}

// listCandidates returns up to maxPerTick regular .md/.txt filenames
// (dotfiles excluded) from the outbox directory, sorted for FIFO order.
func (in *Ingester) listCandidates() ([]string, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == processedName {
			continue
		}
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		names = append(names, e.Name())
	}

	sort.Strings(names)
	if len(names) > maxPerTick {
		names = names[:maxPerTick]
	}
	return names, nil
}

func (in *Ingester) ingestOne(ctx context.Context, name string) error {
	path := filepath.Join(in.dir, name)

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content := strings.TrimSpace(toValidUTF8(raw))

	if content != "" {
		role := roleFromFilename(name)
		if _, err := in.st.AppendOutboxMessage(ctx, role, content); err != nil {
			return err
		}
	}

	in.moveToProcessed(path, name)
	return nil
}

// moveToProcessed relocates path to outbox/processed, appending a
// millisecond suffix on name collision, and falls back to deleting the
// source if the move itself fails — never throws (spec §9 "best-effort
// fallback, never throw").
func (in *Ingester) moveToProcessed(path, name string) {
	dest := filepath.Join(in.dir, processedName, name)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		dest = filepath.Join(in.dir, processedName, base+"_"+strconv.FormatInt(time.Now().UnixMilli(), 10)+ext)
	}

	if err := os.Rename(path, dest); err != nil {
		_ = os.Remove(path)
	}
}

func roleFromFilename(name string) store.Role {
	m := roleFilenameRe.FindStringSubmatch(name)
	if len(m) == 2 && m[1] == "system" {
		return store.RoleSystem
	}
	return store.RolePipeline
}

func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
