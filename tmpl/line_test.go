package tmpl

import (
	"strings"
	"testing"
)

func TestPreprocess_LineCountPreserved(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "plain text",
			input: "one\ntwo\nthree",
		},
		{
			name:  "single line expression",
			input: "value: ${x + 1}",
		},
		{
			name:  "multi-line expression",
			input: "value: ${x +\n  y +\n  z}\ndone",
		},
		{
			name:  "two multi-line expressions",
			input: "${a +\nb}\nmid\n${c +\nd}",
		},
		{
			name:  "trailing newline",
			input: "one\ntwo\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := strings.Count(tt.input, "\n") + 1

			lines := Preprocess(tt.input)
			if len(lines) != want {
				t.Fatalf("expected %d lines, got %d", want, len(lines))
			}

			for i, sl := range lines {
				if sl.Number != i+1 {
					t.Errorf("line %d numbered %d", i, sl.Number)
				}
			}
		})
	}
}

func TestPreprocess_CollapsesExpression(t *testing.T) {
	lines := Preprocess("value: ${x +\n  1}\ndone")

	if got := lines[0].Text; got != "value: ${x +   1}" {
		t.Errorf("collapsed line = %q", got)
	}

	if !isPadLine(lines[1].Text) {
		t.Errorf("expected pad line, got %q", lines[1].Text)
	}

	if lines[2].Text != "done" {
		t.Errorf("trailing line = %q", lines[2].Text)
	}
}

func TestPreprocess_PadSharesLineWithTrailingText(t *testing.T) {
	// Text following a collapsed expression lands on the same physical line
	// as the pad marker, which must be stripped before parsing.
	lines := Preprocess("${a +\nb} tail")

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	got := stripPadMarkers(lines[1].Text)
	if got != " tail" {
		t.Errorf("stripped remainder = %q", got)
	}
}

func TestIsPadLine(t *testing.T) {
	if !isPadLine(padMarker) {
		t.Error("bare marker not recognized")
	}

	if !isPadLine(padMarker + "  \t") {
		t.Error("marker with trailing whitespace not recognized")
	}

	if isPadLine("text " + padMarker) {
		t.Error("marker with leading text should not be a pad line")
	}

	if isPadLine("ordinary text") {
		t.Error("ordinary text misclassified")
	}
}

func TestSplitSourceLines(t *testing.T) {
	got := splitSourceLines("a\nb\nc")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("splitSourceLines = %v", got)
	}
}
