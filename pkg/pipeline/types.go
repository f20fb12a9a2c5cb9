// Package pipeline implements the pipeline controller (spec's
// finite-state-machine component): spawn/stop/pause/resume of the
// supervised child process, a background reaper that observes exit
// status, and the authoritative-state-from-store transition check.
// Grounded on the teacher's pkg/queue worker-pool background-loop
// idiom (stopCh + sync.Once + sync.WaitGroup + slog.With), generalized
// from "poll claimable DB rows" to "poll a single child process".
package pipeline

import (
	"fmt"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/store"
)

// TransitionError reports a rejected FSM event: the observed state the
// check read from the store plus the action that was attempted. It
// wraps apperr.CodeInvalidTransition so callers can still match it with
// errors.Is against that code alone.
type TransitionError struct {
	From   store.FSMState
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: cannot %s from %s", e.Action, e.From)
}

// Is lets errors.Is(err, apperr.New(apperr.CodeInvalidTransition)) match.
func (e *TransitionError) Is(target error) bool {
	t, ok := target.(*apperr.Error)
	return ok && t.Code == apperr.CodeInvalidTransition
}

func invalidTransition(from store.FSMState, action string) error {
	return &TransitionError{From: from, Action: action}
}

// StartSpec is the caller-supplied payload for a start event.
type StartSpec struct {
	Script string
	Cwd    string
	Args   []string
}
