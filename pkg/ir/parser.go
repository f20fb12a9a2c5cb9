package ir

import (
	"bufio"
	"encoding/json"
	"strings"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
)

const pipelineHeader = "AUTOAPPDEV_PIPELINE 1"

// Parse parses an AAPS v1 script into an IR document. Line numbers in any
// returned *apperr.Error are 1-based over the original input, counting
// blank and comment lines — the grammar in spec §4.2.
func Parse(script string) (*IR, error) {
	scanner := bufio.NewScanner(strings.NewReader(script))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	sawHeader := false

	doc := New()
	var curTask *Task
	var curStep *Step

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if !sawHeader {
			if !strings.HasPrefix(trimmed, "AUTOAPPDEV_PIPELINE") {
				return nil, apperr.AtLine(apperr.CodeMissingHeader, lineNo,
					"expected %q as the first non-comment line, got %q", pipelineHeader, trimmed)
			}
			if trimmed != pipelineHeader {
				return nil, apperr.AtLine(apperr.CodeInvalidHeader, lineNo,
					"expected %q, got %q", pipelineHeader, trimmed)
			}
			sawHeader = true
			continue
		}

		keyword, rest := splitKeyword(trimmed)

		switch keyword {
		case "TASK":
			var t Task
			if err := json.Unmarshal([]byte(rest), &t); err != nil {
				return nil, apperr.AtLine(apperr.CodeInvalidJSON, lineNo, "TASK: %v", err)
			}
			if t.ID == "" {
				return nil, apperr.AtLine(apperr.CodeInvalidJSON, lineNo, "TASK.id must be non-empty")
			}
			for _, existing := range doc.Tasks {
				if existing.ID == t.ID {
					return nil, apperr.AtLine(apperr.CodeDuplicateID, lineNo, "duplicate task id %q", t.ID)
				}
			}
			t.Steps = nil
			doc.Tasks = append(doc.Tasks, t)
			curTask = &doc.Tasks[len(doc.Tasks)-1]
			curStep = nil

		case "STEP":
			if curTask == nil {
				return nil, apperr.AtLine(apperr.CodeStepBeforeTask, lineNo, "STEP outside of any TASK")
			}
			var s Step
			if err := json.Unmarshal([]byte(rest), &s); err != nil {
				return nil, apperr.AtLine(apperr.CodeInvalidJSON, lineNo, "STEP: %v", err)
			}
			if s.ID == "" {
				return nil, apperr.AtLine(apperr.CodeInvalidJSON, lineNo, "STEP.id must be non-empty")
			}
			if !s.Block.valid() {
				return nil, apperr.AtLine(apperr.CodeInvalidBlock, lineNo, "invalid block %q", s.Block)
			}
			for _, existing := range curTask.Steps {
				if existing.ID == s.ID {
					return nil, apperr.AtLine(apperr.CodeDuplicateID, lineNo, "duplicate step id %q", s.ID)
				}
			}
			s.Actions = nil
			curTask.Steps = append(curTask.Steps, s)
			curStep = &curTask.Steps[len(curTask.Steps)-1]

		case "ACTION":
			if curStep == nil {
				return nil, apperr.AtLine(apperr.CodeActionBeforeStep, lineNo, "ACTION outside of any STEP")
			}
			var a Action
			if err := json.Unmarshal([]byte(rest), &a); err != nil {
				return nil, apperr.AtLine(apperr.CodeInvalidJSON, lineNo, "ACTION: %v", err)
			}
			if a.ID == "" {
				return nil, apperr.AtLine(apperr.CodeInvalidJSON, lineNo, "ACTION.id must be non-empty")
			}
			for _, existing := range curStep.Actions {
				if existing.ID == a.ID {
					return nil, apperr.AtLine(apperr.CodeDuplicateID, lineNo, "duplicate action id %q", a.ID)
				}
			}
			curStep.Actions = append(curStep.Actions, a)

		default:
			return nil, apperr.AtLine(apperr.CodeUnknownKeyword, lineNo, "unknown keyword %q", keyword)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !sawHeader {
		return nil, apperr.AtLine(apperr.CodeMissingHeader, 1, "missing %q header line", pipelineHeader)
	}
	if len(doc.Tasks) == 0 {
		return nil, apperr.AtLine(apperr.CodeInvalidTasks, lineNo, "at least one TASK is required")
	}

	return doc, nil
}

// splitKeyword splits "KEYWORD <json>" into its keyword and the
// remaining (trimmed) JSON text. rest is "" when the line carries no
// payload at all; callers attempting to json.Unmarshal("") get a
// invalid_json error, which is the right diagnosis for a keyword with a
// missing body.
func splitKeyword(line string) (keyword, rest string) {
	idx := strings.IndexFunc(line, func(r rune) bool { return r == ' ' || r == '\t' })
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx+1:])
}
