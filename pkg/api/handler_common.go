package api

import (
	"path/filepath"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/pathsafe"
)

// workspaceRoot returns `<repo>/auto-apps/<ws>` (spec §3: workspace
// paths "must resolve under <repo>/auto-apps/<workspace>/").
func (s *Server) workspaceRoot(ws string) string {
	return filepath.Join(s.repoRoot, "auto-apps", ws)
}

// resolveUnderWorkspace validates a workspace-relative path (when
// non-empty) resolves inside root, mapping a containment escape onto
// apperr.CodePathOutsideAutoApps per spec §4's workspace config field
// rules.
func (s *Server) resolveUnderWorkspace(root, rel string) (string, error) {
	if rel == "" {
		return "", nil
	}
	resolved, err := pathsafe.JoinContained(root, rel)
	if err != nil {
		return "", apperr.Newf(apperr.CodePathOutsideAutoApps, "%s", err.Error())
	}
	return resolved, nil
}
