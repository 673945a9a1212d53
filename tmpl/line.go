package tmpl

import (
	"regexp"
	"strings"
)

// SourceLine pairs one physical line of preprocessed template text with its
// original 1-based line number. SourceLines are produced once by the
// preprocessor and consumed by a single parse pass.
type SourceLine struct {
	Text   string
	Number int
}

// exprRegex matches one embedded ${...} expression. The (?s) flag lets an
// expression span physical lines; the preprocessor collapses such matches
// back onto one logical line.
var exprRegex = regexp.MustCompile(`(?s)\$\{(.*?)\}`)

// padMarker is the text of a placeholder line inserted by the preprocessor
// for each newline removed from a multi-line expression. The NUL bytes make
// the marker impossible to collide with template text.
const padMarker = "\x00pyt:pad\x00"

// Preprocess normalizes raw template text into a stream of SourceLines.
//
// Every multi-line ${...} occurrence is collapsed onto a single logical line
// (inner newlines become spaces) and one pad line is appended per removed
// newline, so the preprocessed physical line count always equals the
// original. Each original line number appears exactly once in the result,
// either as real content or as a pad line.
func Preprocess(text string) []SourceLine {
	norm := exprRegex.ReplaceAllStringFunc(text, func(match string) string {
		removed := strings.Count(match, "\n")
		if removed == 0 {
			return match
		}

		collapsed := strings.ReplaceAll(match, "\n", " ")

		return collapsed + strings.Repeat("\n"+padMarker, removed)
	})

	parts := strings.Split(norm, "\n")
	lines := make([]SourceLine, len(parts))

	for i, p := range parts {
		lines[i] = SourceLine{Text: p, Number: i + 1}
	}

	return lines
}

// isPadLine reports whether a preprocessed line is a placeholder inserted
// for a removed newline. Pad lines are skipped by the parser and never
// receive a LineMap entry.
func isPadLine(line string) bool {
	return strings.TrimRight(line, " \t") == padMarker
}

// stripPadMarkers removes embedded pad markers from a line. A marker can end
// up mid-line when the remainder of a collapsed expression shares a physical
// line with following text.
func stripPadMarkers(line string) string {
	return strings.ReplaceAll(line, padMarker, "")
}

// splitSourceLines splits raw text into physical lines for diagnostics.
// Unlike Preprocess, it performs no normalization.
func splitSourceLines(text string) []string {
	return strings.Split(text, "\n")
}
