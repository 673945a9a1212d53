package tmpl

import (
	"strings"
	"testing"
)

func parseSource(t *testing.T, input string) (*Sequence, LineMap) {
	t.Helper()

	root, lineMap, err := parseTemplate(Preprocess(input))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	return root, lineMap
}

func TestParse_LiteralEmission(t *testing.T) {
	root, lineMap := parseSource(t, "Hello ${name}!")

	if len(root.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(root.Nodes))
	}

	st, ok := root.Nodes[0].(*StatementLine)
	if !ok {
		t.Fatalf("expected statement, got %T", root.Nodes[0])
	}

	if st.emit == nil {
		t.Fatal("expected emission payload")
	}

	if len(st.emit.exprs) != 1 || st.emit.exprs[0] != "name" {
		t.Errorf("exprs = %v", st.emit.exprs)
	}

	if len(st.emit.parts) != 2 || st.emit.parts[0] != "Hello " || st.emit.parts[1] != "!" {
		t.Errorf("parts = %v", st.emit.parts)
	}

	if src, ok := lineMap.Lookup(1); !ok || src != 1 {
		t.Errorf("gen line 1 maps to %d (%v)", src, ok)
	}
}

func TestParse_CommentsSkipped(t *testing.T) {
	root, lineMap := parseSource(t, "## comment\ntext\n  ## indented comment")

	if len(root.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(root.Nodes))
	}

	// The surviving line keeps its original source number.
	if src, ok := lineMap.Lookup(1); !ok || src != 2 {
		t.Errorf("gen line 1 maps to %d (%v)", src, ok)
	}
}

func TestParse_ControlTree(t *testing.T) {
	input := strings.Join([]string{
		"%if x > 0:",
		"positive",
		"%elif x < 0:",
		"negative",
		"%else:",
		"zero",
		"%endif",
	}, "\n")

	root, _ := parseSource(t, input)

	if len(root.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(root.Nodes))
	}

	cs, ok := root.Nodes[0].(*ControlSequence)
	if !ok {
		t.Fatalf("expected control sequence, got %T", root.Nodes[0])
	}

	if cs.Keyword != KeywordIf {
		t.Errorf("keyword = %v", cs.Keyword)
	}

	if len(cs.Blocks) != 3 {
		t.Fatalf("expected 3 clauses, got %d", len(cs.Blocks))
	}

	words := []string{"if", "elif", "else"}
	for i, block := range cs.Blocks {
		if block.Word != words[i] {
			t.Errorf("clause %d word = %q", i, block.Word)
		}

		if len(block.Nodes) != 1 {
			t.Errorf("clause %d has %d nodes", i, len(block.Nodes))
		}
	}
}

func TestParse_NestedControl(t *testing.T) {
	input := strings.Join([]string{
		"%for i in range(3):",
		"%if i > 0:",
		"${i}",
		"%endif",
		"%endfor",
	}, "\n")

	root, _ := parseSource(t, input)

	outer := root.Nodes[0].(*ControlSequence)
	if outer.Keyword != KeywordFor {
		t.Fatalf("outer keyword = %v", outer.Keyword)
	}

	inner, ok := outer.Blocks[0].Nodes[0].(*ControlSequence)
	if !ok {
		t.Fatalf("expected nested control, got %T", outer.Blocks[0].Nodes[0])
	}

	if inner.Keyword != KeywordIf {
		t.Errorf("inner keyword = %v", inner.Keyword)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
		wantLn  int
	}{
		{
			name:    "end without start",
			input:   "text\n%endif",
			wantMsg: "Found end control word (endif) without starting word",
			wantLn:  2,
		},
		{
			name:    "middle without start",
			input:   "%else:",
			wantMsg: "Found middle control word (else) without starting word",
			wantLn:  1,
		},
		{
			name:    "mismatched end",
			input:   "%for i in range(3):\n%endif",
			wantMsg: "End control word (endif) doesn't match current block",
			wantLn:  2,
		},
		{
			name:    "mismatched middle",
			input:   "%for i in range(3):\n%else:",
			wantMsg: "Middle control word (else) doesn't match current block",
			wantLn:  2,
		},
		{
			name:    "unclosed block",
			input:   "%if x:\ntext",
			wantMsg: "Control block (if) not closed before end of input",
			wantLn:  1,
		},
		{
			name:    "unclosed verbatim",
			input:   "<%\nx = 1",
			wantMsg: "Verbatim block not closed before end of input",
			wantLn:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseTemplate(Preprocess(tt.input))
			if err == nil {
				t.Fatal("expected parse error")
			}

			pe, ok := err.(*ParseError)
			if !ok {
				t.Fatalf("expected *ParseError, got %T", err)
			}

			if !strings.Contains(pe.Msg, tt.wantMsg) {
				t.Errorf("msg = %q, want substring %q", pe.Msg, tt.wantMsg)
			}

			if pe.LineNum != tt.wantLn {
				t.Errorf("line = %d, want %d", pe.LineNum, tt.wantLn)
			}
		})
	}
}

func TestParse_PypdefSyntheticLines(t *testing.T) {
	input := strings.Join([]string{
		"%pypdef greet(name):",
		"Hello, ${name}!",
		"%endpypdef",
	}, "\n")

	root, lineMap := parseSource(t, input)

	cs := root.Nodes[0].(*ControlSequence)
	if cs.Keyword != KeywordPypdef {
		t.Fatalf("keyword = %v", cs.Keyword)
	}

	// Header declares an ordinary function in the generated text.
	if !strings.HasPrefix(cs.Blocks[0].Header.Text, "def ") {
		t.Errorf("header = %q", cs.Blocks[0].Header.Text)
	}

	body := cs.Blocks[0].Nodes
	if len(body) != 3 {
		t.Fatalf("expected 3 body nodes, got %d", len(body))
	}

	first := body[0].(*StatementLine)
	if first.Text != "_OUTPUT=[]" || first.SrcLine != 0 {
		t.Errorf("accumulator init = %q src %d", first.Text, first.SrcLine)
	}

	last := body[2].(*StatementLine)
	if !strings.Contains(last.Text, "_OUTPUT") || last.SrcLine != 0 {
		t.Errorf("accumulator return = %q src %d", last.Text, last.SrcLine)
	}

	// Synthetic lines consume generated numbers without map entries:
	// gen 1 header, gen 2 init (unmapped), gen 3 body, gen 4 return (unmapped).
	if src, ok := lineMap.Lookup(2); ok {
		t.Errorf("synthetic init mapped to %d", src)
	}

	if src, ok := lineMap.Lookup(3); !ok || src != 2 {
		t.Errorf("body maps to %d (%v)", src, ok)
	}

	if _, ok := lineMap.Lookup(4); ok {
		t.Error("synthetic return should not be mapped")
	}
}

func TestParse_VerbatimIndent(t *testing.T) {
	input := strings.Join([]string{
		"<%",
		"  x = 1",
		"  y = 2",
		"%>",
	}, "\n")

	root, _ := parseSource(t, input)

	if len(root.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(root.Nodes))
	}

	for i, want := range []string{"x = 1", "y = 2"} {
		st := root.Nodes[i].(*StatementLine)
		if st.Text != want {
			t.Errorf("node %d text = %q, want %q", i, st.Text, want)
		}
	}
}

func TestParse_VerbatimTripleQuote(t *testing.T) {
	input := strings.Join([]string{
		"<%",
		`  doc = """`,
		"    kept as written",
		`  """`,
		"%>",
	}, "\n")

	root, _ := parseSource(t, input)

	// The line inside the unterminated string keeps its full indentation
	// and is flagged to ignore ambient indent at generation time.
	inner := root.Nodes[1].(*StatementLine)
	if inner.Text != "    kept as written" {
		t.Errorf("inner text = %q", inner.Text)
	}

	if !inner.Verbatim {
		t.Error("inner line should be verbatim")
	}
}

func TestMatchDirective(t *testing.T) {
	tests := []struct {
		name string
		line string
		word string
		form directiveForm
	}{
		{"start keyword", "%if x > 0:", "if", formStart},
		{"middle keyword", "%elif y:", "elif", formMiddle},
		{"end keyword", "%endfor", "for", formEnd},
		{"keyword prefix is raw", "%format: value", "", formRaw},
		{"assignment is raw", "%x = 5", "", formRaw},
		{"bare statement is raw", "% import_something()", "", formRaw},
		{"literal line", "no marker here", "", formNone},
		{"start without colon is raw", "%if x", "", formRaw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word, _, form := matchDirective(tt.line)
			if form != tt.form {
				t.Errorf("form = %v, want %v", form, tt.form)
			}

			if word != tt.word {
				t.Errorf("word = %q, want %q", word, tt.word)
			}
		})
	}
}
