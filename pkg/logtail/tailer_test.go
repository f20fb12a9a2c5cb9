package logtail_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codeready-toolchain/autoappdev/pkg/logtail"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*logtail.Service, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	ring := logtail.NewRing(logtail.MinCapacity)
	svc := logtail.NewService(ring)
	svc.AddSource("pipeline", path)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Launch(ctx)
	t.Cleanup(func() {
		svc.Shutdown()
		cancel()
	})
	return svc, path
}

func waitForEntries(t *testing.T, svc *logtail.Service, n int) []logtail.Entry {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		entries, _ := svc.Ring().Since(0, "", 100)
		if len(entries) >= n {
			return entries
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d entries", n)
	return nil
}

func TestService_TailsGrowingFile(t *testing.T) {
	svc, path := newService(t)

	require.NoError(t, os.WriteFile(path, []byte("line one\nline two\n"), 0o644))
	entries := waitForEntries(t, svc, 2)
	require.Equal(t, "line one", entries[0].Line)
	require.Equal(t, "line two", entries[1].Line)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("line three\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries = waitForEntries(t, svc, 3)
	require.Equal(t, "line three", entries[2].Line)
}

func TestService_HoldsPartialLineUntilTerminated(t *testing.T) {
	svc, path := newService(t)

	require.NoError(t, os.WriteFile(path, []byte("complete\nincomplete"), 0o644))
	entries := waitForEntries(t, svc, 1)
	require.Len(t, entries, 1)
	require.Equal(t, "complete", entries[0].Line)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(" now done\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries = waitForEntries(t, svc, 2)
	require.Equal(t, "incomplete now done", entries[1].Line)
}

func TestService_DetectsTruncationAndResetsOffset(t *testing.T) {
	svc, path := newService(t)

	require.NoError(t, os.WriteFile(path, []byte("before truncate\n"), 0o644))
	waitForEntries(t, svc, 1)

	require.NoError(t, os.WriteFile(path, []byte("after truncate\n"), 0o644))
	entries := waitForEntries(t, svc, 2)
	require.Equal(t, "before truncate", entries[0].Line)
	require.Equal(t, "after truncate", entries[1].Line)
}

func TestService_MissingFileIsSkippedNotError(t *testing.T) {
	ring := logtail.NewRing(logtail.MinCapacity)
	svc := logtail.NewService(ring)
	svc.AddSource("pipeline", filepath.Join(t.TempDir(), "does-not-exist.log"))

	ctx, cancel := context.WithCancel(context.Background())
	svc.Launch(ctx)
	time.Sleep(200 * time.Millisecond)
	svc.Shutdown()
	cancel()

	entries, _ := ring.Since(0, "", 10)
	require.Empty(t, entries)
}
