package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// taskLine, stepLine and actionLine are the JSON payload shapes for
// their respective AAPS keywords — a Task/Step carries its children
// inline in the Go struct, but the wire line only ever carries the
// header fields, with children following as their own KEYWORD lines.
type taskLine struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Meta  map[string]any `json:"meta,omitempty"`
}

type stepLine struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Block Block          `json:"block"`
	Meta  map[string]any `json:"meta,omitempty"`
}

type actionLine struct {
	ID     string         `json:"id"`
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Serialize renders an IR document back to canonical AAPS v1 text, in
// declaration order. This is the inverse of Parse: Parse(Serialize(ir))
// reproduces ir for any IR built by Parse, which is the idempotency
// property spec §8 (property 4) asks for. It exists alongside C3's bash
// codegen (which also "renders" an IR, but to bash, not AAPS) to let
// pipeline scripts be normalized after an in-place IR edit without a
// round trip through bash.
func Serialize(doc *IR) (string, error) {
	var b strings.Builder
	b.WriteString(pipelineHeader)
	b.WriteString("\n")

	for _, t := range doc.Tasks {
		line, err := json.Marshal(taskLine{ID: t.ID, Title: t.Title, Meta: t.Meta})
		if err != nil {
			return "", fmt.Errorf("marshal task %s: %w", t.ID, err)
		}
		fmt.Fprintf(&b, "TASK %s\n", line)

		for _, s := range t.Steps {
			sline, err := json.Marshal(stepLine{ID: s.ID, Title: s.Title, Block: s.Block, Meta: s.Meta})
			if err != nil {
				return "", fmt.Errorf("marshal step %s: %w", s.ID, err)
			}
			fmt.Fprintf(&b, "STEP %s\n", sline)

			for _, a := range s.Actions {
				aline, err := json.Marshal(actionLine{ID: a.ID, Kind: a.Kind, Params: a.Params, Meta: a.Meta})
				if err != nil {
					return "", fmt.Errorf("marshal action %s: %w", a.ID, err)
				}
				fmt.Fprintf(&b, "ACTION %s\n", aline)
			}
		}
	}

	return b.String(), nil
}
