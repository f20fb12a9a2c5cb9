// Package codegen deterministically renders an IR document into the bash
// body a pipeline child process executes (spec §4.3). It deliberately
// does not use text/template for the body itself: the body is assembled
// by straight string concatenation in a fixed emission order, because
// determinism (spec §8 property 5: render is a pure, byte-stable
// function of its inputs) is easier to reason about without a template
// engine's own internal iteration-order surprises (e.g. map ranging).
// The outer splice into the template (see Render below) does not use
// text/template either: it is a single literal substring replacement
// done with strings.Replace.
package codegen

import (
	"fmt"
	"strings"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
	"github.com/codeready-toolchain/autoappdev/pkg/ir"
)

// Placeholder is the token the template must contain; its first
// occurrence is replaced with the generated bash body. Further
// occurrences are neither rejected nor replaced.
const Placeholder = "__PIPELINE_BODY__"

// Render splices the bash body generated from doc into template's
// Placeholder and returns the complete runner script. All other
// template content passes through untouched.
func Render(doc *ir.IR, template string) (string, error) {
	if !strings.Contains(template, Placeholder) {
		return "", apperr.Newf(apperr.CodeMissingPlaceholder, "template does not contain %s", Placeholder)
	}

	body, err := renderBody(doc)
	if err != nil {
		return "", err
	}

	return strings.Replace(template, Placeholder, body, 1), nil
}

// renderBody dispatches to the meta-round emitter when the IR carries
// meta-round markers, otherwise emits every task as a top-level block in
// declaration order.
func renderBody(doc *ir.IR) (string, error) {
	controllerIdx, templateIdx, metaRound, err := detectMetaRound(doc)
	if err != nil {
		return "", err
	}
	if metaRound {
		return renderMetaRound(doc, controllerIdx, templateIdx)
	}

	var b strings.Builder
	for i := range doc.Tasks {
		if err := writeTask(&b, &doc.Tasks[i]); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func writeTask(b *strings.Builder, t *ir.Task) error {
	fmt.Fprintf(b, "# TASK %s: %s\n", sanitizeComment(t.ID), sanitizeComment(t.Title))
	fmt.Fprintf(b, "export AUTOAPPDEV_CTX_TASK_ID=%s\n", bashQuote(t.ID))
	fmt.Fprintf(b, "export AUTOAPPDEV_CTX_TASK_TITLE=%s\n", bashQuote(t.Title))
	fmt.Fprintf(b, "log %s\n", bashQuote(fmt.Sprintf("TASK %s: %s", t.ID, t.Title)))

	for i := range t.Steps {
		if err := writeStep(b, t.ID, &t.Steps[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeStep(b *strings.Builder, taskID string, s *ir.Step) error {
	fmt.Fprintf(b, "# STEP %s: %s\n", sanitizeComment(s.ID), sanitizeComment(s.Title))
	fmt.Fprintf(b, "export AUTOAPPDEV_CTX_STEP_ID=%s\n", bashQuote(s.ID))
	fmt.Fprintf(b, "export AUTOAPPDEV_CTX_STEP_TITLE=%s\n", bashQuote(s.Title))
	fmt.Fprintf(b, "export AUTOAPPDEV_CTX_STEP_BLOCK=%s\n", bashQuote(string(s.Block)))
	fmt.Fprintf(b, "log %s\n", bashQuote(fmt.Sprintf("STEP %s: %s", s.ID, s.Title)))

	var body strings.Builder
	if err := writeStepBody(&body, taskID, s); err != nil {
		return err
	}

	cond, conditional := conditionalOf(s)
	if !conditional {
		b.WriteString(body.String())
		return nil
	}

	fmt.Fprintf(b, "if step_should_run %s; then\n", bashQuote(cond))
	for _, line := range strings.Split(strings.TrimRight(body.String(), "\n"), "\n") {
		fmt.Fprintf(b, "  %s\n", line)
	}
	b.WriteString("else\n")
	fmt.Fprintf(b, "  log %s\n", bashQuote(fmt.Sprintf("SKIP %s: %s", s.ID, s.Title)))
	b.WriteString("fi\n")
	return nil
}

func writeStepBody(b *strings.Builder, taskID string, s *ir.Step) error {
	if s.Block == ir.BlockDebug {
		b.WriteString("step_failed=0\n")
		for _, a := range s.Actions {
			call, err := actionCall(taskID, s.ID, a)
			if err != nil {
				return err
			}
			fmt.Fprintf(b, "if ! %s; then step_failed=1; fi\n", call)
		}
		b.WriteString(`AUTOAPPDEV_TASK_LAST_DEBUG_FAILED="$step_failed"` + "\n")
		return nil
	}

	for _, a := range s.Actions {
		call, err := actionCall(taskID, s.ID, a)
		if err != nil {
			return err
		}
		b.WriteString(call)
		b.WriteString("\n")
	}
	return nil
}

func actionCall(taskID, stepID string, a ir.Action) (string, error) {
	switch a.Kind {
	case "note":
		return fmt.Sprintf("action_note %s", bashQuote(stringParam(a.Params, "text"))), nil

	case "run":
		return fmt.Sprintf("action_run %s", bashQuote(stringParam(a.Params, "cmd"))), nil

	case "codex_exec":
		prompt := bashQuote(stringParam(a.Params, "prompt"))
		model, hasModel := a.Params["model"]
		reasoning, hasReasoning := a.Params["reasoning"]
		switch {
		case !hasModel && !hasReasoning:
			return fmt.Sprintf("action_codex_exec %s", prompt), nil
		case hasModel && !hasReasoning:
			return fmt.Sprintf("action_codex_exec %s %s", prompt, bashQuote(fmt.Sprint(model))), nil
		case !hasModel && hasReasoning:
			return fmt.Sprintf("action_codex_exec %s %s %s", prompt, bashQuote(""), bashQuote(fmt.Sprint(reasoning))), nil
		default:
			return fmt.Sprintf("action_codex_exec %s %s %s", prompt, bashQuote(fmt.Sprint(model)), bashQuote(fmt.Sprint(reasoning))), nil
		}

	default:
		return "", apperr.Newf(apperr.CodeUnsupportedActionKnd,
			"%s/%s/%s: unsupported action kind %q", taskID, stepID, a.ID, a.Kind)
	}
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if v, ok := params[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

func conditionalOf(s *ir.Step) (string, bool) {
	if s.Meta == nil {
		return "", false
	}
	v, ok := s.Meta["conditional"]
	if !ok {
		return "", false
	}
	return fmt.Sprint(v), true
}

// bashQuote wraps s in single quotes, escaping any embedded single quote
// with the standard '"'"' technique so the result is always safe to
// interpolate literally into a bash command line.
func bashQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// sanitizeComment collapses embedded newlines to spaces so a multi-line
// title can never break out of a `#` comment.
func sanitizeComment(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", " "), "\n", " ")
}
