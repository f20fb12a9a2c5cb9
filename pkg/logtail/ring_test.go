package logtail_test

import (
	"testing"
	"time"

	"github.com/codeready-toolchain/autoappdev/pkg/logtail"
	"github.com/stretchr/testify/require"
)

func TestRing_SinceReturnsAscendingAfterCursor(t *testing.T) {
	r := logtail.NewRing(logtail.MinCapacity)
	now := time.Now()
	r.Append("pipeline", "one", now)
	r.Append("pipeline", "two", now)
	r.Append("backend", "three", now)

	entries, next := r.Since(0, "", 10)
	require.Len(t, entries, 3)
	require.Equal(t, "one", entries[0].Line)
	require.Equal(t, int64(3), next)

	entries, next = r.Since(1, "", 10)
	require.Len(t, entries, 2)
	require.Equal(t, "two", entries[0].Line)
	require.Equal(t, int64(3), next)
}

func TestRing_SinceFiltersBySource(t *testing.T) {
	r := logtail.NewRing(logtail.MinCapacity)
	now := time.Now()
	r.Append("pipeline", "p1", now)
	r.Append("backend", "b1", now)
	r.Append("pipeline", "p2", now)

	entries, next := r.Since(0, "pipeline", 10)
	require.Len(t, entries, 2)
	require.Equal(t, "p1", entries[0].Line)
	require.Equal(t, "p2", entries[1].Line)
	require.Equal(t, int64(3), next)
}

func TestRing_SinceNoMatchKeepsCursor(t *testing.T) {
	r := logtail.NewRing(logtail.MinCapacity)
	r.Append("pipeline", "p1", time.Now())

	entries, next := r.Since(99, "", 10)
	require.Empty(t, entries)
	require.Equal(t, int64(99), next)
}

func TestRing_SinceLimitClampedAndRespected(t *testing.T) {
	r := logtail.NewRing(logtail.MinCapacity)
	for i := 0; i < 5; i++ {
		r.Append("pipeline", "line", time.Now())
	}
	entries, _ := r.Since(0, "", 2)
	require.Len(t, entries, 2)

	entries, _ = r.Since(0, "", 0)
	require.Len(t, entries, 1)
}

func TestRing_EvictsOldestAtCapacity(t *testing.T) {
	r := logtail.NewRing(logtail.MinCapacity)
	for i := 0; i < logtail.MinCapacity+10; i++ {
		r.Append("pipeline", "line", time.Now())
	}
	entries, _ := r.Since(0, "", logtail.MinCapacity+10)
	require.Len(t, entries, logtail.MinCapacity)
	require.Equal(t, int64(11), entries[0].ID)
}

func TestNewRing_ClampsBelowMinimum(t *testing.T) {
	r := logtail.NewRing(1)
	for i := 0; i < logtail.MinCapacity+1; i++ {
		r.Append("pipeline", "line", time.Now())
	}
	entries, _ := r.Since(0, "", logtail.MinCapacity+1)
	require.Len(t, entries, logtail.MinCapacity)
}
