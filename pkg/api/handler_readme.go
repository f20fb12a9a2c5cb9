package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
)

const (
	readmeBeginMarker = "<!-- AUTOAPPDEV:README:BEGIN -->"
	readmeEndMarker   = "<!-- AUTOAPPDEV:README:END -->"
	philosophyHeading = "## Philosophy"
)

type updateReadmeRequest struct {
	Workspace string `json:"workspace"`
	Block     string `json:"block"`
}

type updateReadmeResponse struct {
	OK                bool   `json:"ok"`
	Updated           bool   `json:"updated"`
	MarkersPreexisted bool   `json:"markers_preexisted"`
	Path              string `json:"path"`
	RequestID         string `json:"request_id"`
}

// updateReadmeHandler implements spec §6's update-readme endpoint:
// upserts a marked block of a workspace README between begin/end
// comment markers, requiring a Philosophy section and exactly one
// marker pair. After the README is written it archives a
// before/after/diff/meta trace under <runtime>/logs/update_readme/<id>/
// (spec's filesystem layout table); requests rejected earlier leave no
// trace.
func (s *Server) updateReadmeHandler(c *echo.Context) error {
	var req updateReadmeRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperr.New(apperr.CodeInvalidBody))
	}

	if req.Workspace == "" || strings.ContainsAny(req.Workspace, "/\\") || req.Workspace == ".." {
		return writeError(c, apperr.New(apperr.CodePathOutsideAutoApps))
	}
	if !strings.Contains(req.Block, philosophyHeading) {
		return writeError(c, apperr.New(apperr.CodeMissingPhilosophy))
	}

	wsRoot := s.workspaceRoot(req.Workspace)
	readmePath := filepath.Join(wsRoot, "README.md")
	if !strings.HasPrefix(filepath.Clean(readmePath), filepath.Clean(s.repoRoot)) {
		return writeError(c, apperr.New(apperr.CodePathOutsideRepo))
	}

	before, existed := readFileOrEmpty(readmePath)

	after, markersPreexisted, err := upsertMarkedBlock(before, existed, req.Workspace, req.Block)
	if err != nil {
		return writeError(c, err)
	}

	if err := os.MkdirAll(wsRoot, 0o755); err != nil {
		return writeError(c, err)
	}
	if err := os.WriteFile(readmePath, []byte(after), 0o644); err != nil {
		return writeError(c, err)
	}

	id := uuid.NewString()
	s.writeReadmeArtifacts(c.Request().Context(), id, before, after, req)

	return c.JSON(http.StatusOK, updateReadmeResponse{
		OK:                true,
		Updated:           true,
		MarkersPreexisted: markersPreexisted,
		Path:              readmePath,
		RequestID:         id,
	})
}

func readFileOrEmpty(path string) (content string, existed bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// upsertMarkedBlock replaces the content strictly between the begin/end
// markers with block, creating a fresh `# <ws>\n\n<markers>\n` skeleton
// when the file doesn't exist yet, appending a new marker pair after
// the existing content when the file carries no markers, and rejecting
// any other marker count as marker_mismatch (spec §6/§8 property —
// scenario S7's "one begin+one end marker only").
func upsertMarkedBlock(existing string, existed bool, workspace, block string) (string, bool, error) {
	beginCount := strings.Count(existing, readmeBeginMarker)
	endCount := strings.Count(existing, readmeEndMarker)

	if beginCount == 0 && endCount == 0 {
		var b strings.Builder
		if !existed {
			fmt.Fprintf(&b, "# %s\n\n", workspace)
		} else {
			b.WriteString(existing)
			if !strings.HasSuffix(existing, "\n\n") {
				b.WriteString("\n")
			}
		}
		b.WriteString(readmeBeginMarker + "\n")
		b.WriteString(block)
		if !strings.HasSuffix(block, "\n") {
			b.WriteString("\n")
		}
		b.WriteString(readmeEndMarker + "\n")
		return b.String(), false, nil
	}

	if beginCount != 1 || endCount != 1 {
		return "", false, apperr.New(apperr.CodeMarkerMismatch)
	}

	beginIdx := strings.Index(existing, readmeBeginMarker)
	endIdx := strings.Index(existing, readmeEndMarker)
	if endIdx < beginIdx {
		return "", false, apperr.New(apperr.CodeMarkerMismatch)
	}

	head := existing[:beginIdx+len(readmeBeginMarker)]
	tail := existing[endIdx:]

	var b strings.Builder
	b.WriteString(head)
	b.WriteString("\n")
	b.WriteString(block)
	if !strings.HasSuffix(block, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(tail)
	return b.String(), true, nil
}

func (s *Server) writeReadmeArtifacts(ctx context.Context, id, before, after string, req updateReadmeRequest) {
	dir := filepath.Join(s.cfg.RuntimeDir, "logs", "update_readme", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dir, "before.md"), []byte(before), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "after.md"), []byte(after), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "diff.txt"), []byte(lineDiff(before, after)), 0o644)

	meta := fmt.Sprintf(`{"id":%q,"workspace":%q}`, id, req.Workspace)
	_ = os.WriteFile(filepath.Join(dir, "meta.json"), []byte(meta), 0o644)
}

// lineDiff produces a minimal unified-style diff: lines present only in
// before are prefixed "-", lines present only in after are prefixed
// "+", in original order. It is an audit artifact, not a merge input,
// so an LCS-quality diff is unnecessary.
func lineDiff(before, after string) string {
	beforeLines := strings.Split(before, "\n")
	afterLines := strings.Split(after, "\n")

	afterSet := make(map[string]int, len(afterLines))
	for _, l := range afterLines {
		afterSet[l]++
	}
	beforeSet := make(map[string]int, len(beforeLines))
	for _, l := range beforeLines {
		beforeSet[l]++
	}

	var b strings.Builder
	b.WriteString("--- before\n+++ after\n")
	for _, l := range beforeLines {
		if afterSet[l] > 0 {
			afterSet[l]--
			continue
		}
		fmt.Fprintf(&b, "-%s\n", l)
	}
	for _, l := range afterLines {
		if beforeSet[l] > 0 {
			beforeSet[l]--
			continue
		}
		fmt.Fprintf(&b, "+%s\n", l)
	}
	return b.String()
}
