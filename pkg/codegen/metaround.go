package codegen

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/ir"
)

const templateFuncName = "run_task_template_v0"

// detectMetaRound inspects doc for the meta-round markers (spec §4.3):
// exactly one task carrying meta.meta_round_v0 (the controller) and
// exactly one carrying a truthy meta.task_template_v0 (the template).
// Returns metaRound=false when neither marker is present anywhere — the
// ordinary, non-meta-round path. Any other combination (one marker but
// not the other, duplicates, or more than two tasks once any marker is
// present) is a violation.
func detectMetaRound(doc *ir.IR) (controllerIdx, templateIdx int, metaRound bool, err error) {
	controllerIdx, templateIdx = -1, -1

	for i, t := range doc.Tasks {
		if t.Meta == nil {
			continue
		}
		if _, ok := t.Meta["meta_round_v0"]; ok {
			if controllerIdx != -1 {
				return 0, 0, false, apperr.Newf(apperr.CodeInvalidMetaRound,
					"more than one task carries meta.meta_round_v0 (tasks %s and %s)", doc.Tasks[controllerIdx].ID, t.ID)
			}
			controllerIdx = i
		}
		if truthy(t.Meta["task_template_v0"]) {
			if templateIdx != -1 {
				return 0, 0, false, apperr.Newf(apperr.CodeInvalidMetaRound,
					"more than one task carries a truthy meta.task_template_v0 (tasks %s and %s)", doc.Tasks[templateIdx].ID, t.ID)
			}
			templateIdx = i
		}
	}

	if controllerIdx == -1 && templateIdx == -1 {
		return -1, -1, false, nil
	}
	if controllerIdx == -1 {
		return 0, 0, false, apperr.Newf(apperr.CodeInvalidMetaRound,
			"meta-round mode requires a controller task (meta.meta_round_v0) alongside the template task")
	}
	if templateIdx == -1 {
		return 0, 0, false, apperr.Newf(apperr.CodeInvalidMetaRound,
			"meta-round mode requires a template task (truthy meta.task_template_v0) alongside the controller task")
	}
	if controllerIdx == templateIdx {
		return 0, 0, false, apperr.Newf(apperr.CodeInvalidMetaRound,
			"a single task cannot carry both meta_round_v0 and task_template_v0")
	}
	if len(doc.Tasks) != 2 {
		return 0, 0, false, apperr.Newf(apperr.CodeInvalidMetaRound,
			"meta-round mode requires exactly two tasks, found %d", len(doc.Tasks))
	}

	return controllerIdx, templateIdx, true, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	default:
		return true
	}
}

// renderMetaRound emits the controller's steps as top-level code, the
// template's steps wrapped into a shell function taking
// (task_id, task_title, task_acceptance), and a trailing call that
// drives the function over the controller-supplied task list.
func renderMetaRound(doc *ir.IR, controllerIdx, templateIdx int) (string, error) {
	controller := &doc.Tasks[controllerIdx]
	tmpl := &doc.Tasks[templateIdx]

	taskListPath, err := taskListPath(controller)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := writeTask(&b, controller); err != nil {
		return "", err
	}

	fmt.Fprintf(&b, "%s() {\n", templateFuncName)
	b.WriteString("  local task_id=\"$1\"\n")
	b.WriteString("  local task_title=\"$2\"\n")
	b.WriteString("  local task_acceptance=\"$3\"\n")
	b.WriteString("  export AUTOAPPDEV_CTX_TASK_ID=\"$task_id\"\n")
	b.WriteString("  export AUTOAPPDEV_CTX_TASK_TITLE=\"$task_title\"\n")
	b.WriteString("  log \"TASK $task_id: $task_title\"\n")

	var inner strings.Builder
	for i := range tmpl.Steps {
		if err := writeStep(&inner, tmpl.ID, &tmpl.Steps[i]); err != nil {
			return "", err
		}
	}
	for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	b.WriteString("}\n")

	fmt.Fprintf(&b, "meta_round_run_template_tasks %s\n", bashQuote(taskListPath))

	return b.String(), nil
}

func taskListPath(controller *ir.Task) (string, error) {
	raw, _ := controller.Meta["meta_round_v0"].(map[string]any)
	if raw == nil {
		return "", apperr.Newf(apperr.CodeInvalidMetaRound,
			"task %s: meta.meta_round_v0 must be an object with task_list_path", controller.ID)
	}
	path, ok := raw["task_list_path"].(string)
	if !ok || path == "" {
		return "", apperr.Newf(apperr.CodeInvalidMetaRound,
			"task %s: meta.meta_round_v0.task_list_path must be a non-empty string", controller.ID)
	}
	return path, nil
}
