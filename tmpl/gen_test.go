package tmpl

import (
	"context"
	"strings"
	"testing"
)

func generateSource(t *testing.T, input string) string {
	t.Helper()

	tp, err := ParseString(context.Background(), "test", input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	return tp.Generate()
}

func TestGenerate_LiteralLine(t *testing.T) {
	got := generateSource(t, "Hello ${name}!")

	want := "_PRINT('Hello %s!' % ((name),))"
	if got != want {
		t.Errorf("generated %q, want %q", got, want)
	}
}

func TestGenerate_PlainLiteral(t *testing.T) {
	got := generateSource(t, "just text")

	want := "_PRINT(('just text'))"
	if got != want {
		t.Errorf("generated %q, want %q", got, want)
	}
}

func TestGenerate_Indentation(t *testing.T) {
	input := strings.Join([]string{
		"%if x:",
		"inner",
		"%if y:",
		"deeper",
		"%endif",
		"%endif",
		"outer",
	}, "\n")

	got := generateSource(t, input)

	want := strings.Join([]string{
		"if x:",
		"    _PRINT(('inner'))",
		"    if y:",
		"        _PRINT(('deeper'))",
		"_PRINT(('outer'))",
	}, "\n")

	if got != want {
		t.Errorf("generated:\n%s\nwant:\n%s", got, want)
	}
}

func TestGenerate_PypdefAccumulator(t *testing.T) {
	input := strings.Join([]string{
		"%pypdef greet(name):",
		"Hello, ${name}!",
		"%endpypdef",
	}, "\n")

	got := generateSource(t, input)

	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 generated lines, got %d:\n%s", len(lines), got)
	}

	if lines[0] != "def greet(name):" {
		t.Errorf("header = %q", lines[0])
	}

	if lines[1] != "    _OUTPUT=[]" {
		t.Errorf("init = %q", lines[1])
	}

	if !strings.Contains(lines[2], "_OUTPUT.append") {
		t.Errorf("body = %q", lines[2])
	}

	if lines[3] != `    return '\n'.join(_OUTPUT)` {
		t.Errorf("return = %q", lines[3])
	}
}

func TestGenerate_VerbatimKeepsIndent(t *testing.T) {
	input := strings.Join([]string{
		"%if x:",
		"<%",
		`    doc = """`,
		"      raw text",
		`    """`,
		"%>",
		"%endif",
	}, "\n")

	got := generateSource(t, input)

	// Lines inside the string literal ignore the ambient block indent.
	if !strings.Contains(got, "\n      raw text\n") {
		t.Errorf("verbatim line reindented:\n%s", got)
	}
}

func TestGenerate_MatchesLineMap(t *testing.T) {
	input := strings.Join([]string{
		"first",
		"%for i in range(2):",
		"${i}",
		"%endfor",
		"last",
	}, "\n")

	tp, err := ParseString(context.Background(), "test", input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	lines := strings.Split(tp.Generate(), "\n")
	lm := tp.LineMap()

	// Every generated line of this template originates from source.
	for i := range lines {
		src, ok := lm.Lookup(i + 1)
		if !ok {
			t.Errorf("generated line %d unmapped", i+1)

			continue
		}

		if src < 1 || src > 5 {
			t.Errorf("generated line %d maps outside source: %d", i+1, src)
		}
	}

	if len(lines) != lm.Len() {
		t.Errorf("generated %d lines, map has %d entries", len(lines), lm.Len())
	}
}
