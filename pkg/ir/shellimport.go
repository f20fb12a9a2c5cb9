package ir

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/autoappdev/pkg/apperr"
)

var aapsCommentRe = regexp.MustCompile(`^\s*#\s*AAPS:\s*(.*)$`)

// ImportShellResult is the outcome of extracting IR from a `# AAPS:`
// annotated shell file.
type ImportShellResult struct {
	AAPSText string
	IR       *IR
}

// ImportShell scans shellSrc line by line for `# AAPS:` annotations,
// concatenates the captured tails with newlines, and parses the result
// as an AAPS v1 script (spec §4.2). Parse error line numbers are mapped
// back from the synthesized AAPS text to the original shell file's line
// numbers so callers can point a user at the offending shell line.
func ImportShell(shellSrc string) (*ImportShellResult, error) {
	scanner := bufio.NewScanner(strings.NewReader(shellSrc))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var captures []string
	var shellLineOf []int // shellLineOf[i] = original shell line number of captures[i]

	shellLineNo := 0
	for scanner.Scan() {
		shellLineNo++
		if m := aapsCommentRe.FindStringSubmatch(scanner.Text()); m != nil {
			captures = append(captures, m[1])
			shellLineOf = append(shellLineOf, shellLineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(captures) == 0 {
		return nil, apperr.AtLine(apperr.CodeMissingAnnots, 1, "no \"# AAPS:\" annotations found")
	}

	aapsText := strings.Join(captures, "\n")

	doc, err := Parse(aapsText)
	if err != nil {
		if ae, ok := err.(*apperr.Error); ok && ae.Line >= 1 && ae.Line <= len(shellLineOf) {
			return nil, &apperr.Error{Code: ae.Code, Detail: ae.Detail, Line: shellLineOf[ae.Line-1]}
		}
		return nil, err
	}

	return &ImportShellResult{AAPSText: aapsText, IR: doc}, nil
}
