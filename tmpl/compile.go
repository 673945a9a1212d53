package tmpl

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Header and statement shapes recognized by the compile phase.
var (
	defHeaderRegex   = regexp.MustCompile(`^def\s+([A-Za-z_]\w*)\s*\(([^)]*)\)\s*$`)
	classHeaderRegex = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\s*(?:\([^)]*\))?\s*$`)
	assignRegex      = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(\+=|-=|\*=|/=|=)\s*(.*)$`)
)

// compile walks the parsed tree compiling every embedded expression,
// statement, and block header with expr-lang. Failures in ${...} emissions
// and block headers are returned as KindSyntax ExecErrors attributed to
// the generated line of the offending node. Failures in raw statements are
// deferred to execution so verbatim content the expression engine cannot
// parse never blocks generation.
//
// Template variables are dynamically scoped, so programs are compiled
// without a typed environment and names resolve against the runtime map.
func (t *Template) compile() error {
	if t.compiled {
		return t.compileErr
	}

	t.compiled = true
	t.compileErr = compileNodes(t.root.Nodes)

	return t.compileErr
}

func compileNodes(nodes []Node) error {
	for _, n := range nodes {
		switch node := n.(type) {
		case *StatementLine:
			if err := compileStatement(node); err != nil {
				return err
			}

		case *ControlSequence:
			for _, block := range node.Blocks {
				if err := compileHeader(node, block); err != nil {
					return err
				}

				if err := compileNodes(block.Nodes); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// compileStatement fills the interpreter payload of one statement line.
func compileStatement(st *StatementLine) error {
	switch {
	case st.emit != nil:
		st.emit.programs = make([]*vm.Program, len(st.emit.exprs))

		for i, src := range st.emit.exprs {
			prog, err := compileSource(src, st.GenLine)
			if err != nil {
				return err
			}

			st.emit.programs[i] = prog
		}

	case st.raw != nil && st.raw.kind == stmtUnresolved:
		classifyStatement(st)
	}

	return nil
}

// classifyStatement resolves the kind of a raw statement-escape or
// verbatim line and compiles its expression, if any. A compile failure is
// not an error here: verbatim blocks may hold host-language constructs the
// expression engine cannot parse, and those surface as runtime failures on
// the lines that execute, not as parse failures for the whole template.
func classifyStatement(st *StatementLine) {
	raw := st.raw
	text := strings.TrimSpace(raw.source)

	switch {
	case text == "" || text == "pass" || strings.HasPrefix(text, "#"):
		raw.kind = stmtPass

		return

	case text == "break":
		raw.kind = stmtBreak

		return

	case text == "continue":
		raw.kind = stmtContinue

		return

	case text == "return":
		raw.kind = stmtReturn

		return

	case strings.HasPrefix(text, "return") && !isIdentByte(text[6]):
		raw.kind = stmtReturn
		raw.source = strings.TrimSpace(text[6:])

		compileRaw(st)

		return
	}

	if m := assignRegex.FindStringSubmatch(text); m != nil {
		// "x == y" is a comparison, not an assignment to x.
		if m[2] != "=" || !strings.HasPrefix(m[3], "=") {
			raw.kind = stmtAssign
			raw.target = m[1]
			raw.op = m[2]
			raw.source = strings.TrimSpace(m[3])

			compileRaw(st)

			return
		}
	}

	raw.kind = stmtExpr
	raw.source = text

	compileRaw(st)
}

// compileRaw compiles the statement expression, deferring any failure to
// execution time.
func compileRaw(st *StatementLine) {
	prog, err := expr.Compile(st.raw.source)
	if err != nil {
		st.raw.compileErr = ErrExprCompile.Wrap(err).
			With(slog.String("statement", st.raw.source))

		return
	}

	st.raw.program = prog
}

// compileHeader parses and compiles the clause payload of one block header.
// The header text always ends with the colon captured at parse time.
func compileHeader(cs *ControlSequence, block *ControlBlock) error {
	header := block.Header
	inner := strings.TrimSpace(strings.TrimSuffix(header.Text, ":"))

	switch block.Word {
	case "for":
		return compileForHeader(block, inner, header.GenLine)

	case "if", "elif", "while":
		cond := strings.TrimSpace(trimKeyword(inner, block.Word))
		if cond == "" {
			return headerError(block.Word+" requires a condition", header)
		}

		prog, err := compileSource(cond, header.GenLine)
		if err != nil {
			return err
		}

		block.clause.cond = prog

		return nil

	case "else", "try", "finally", "except":
		// No expression payload. An "except SomeError" filter is accepted
		// and catches everything.
		return nil

	case "def", "pypdef":
		m := defHeaderRegex.FindStringSubmatch(inner)
		if m == nil {
			return headerError("malformed function header", header)
		}

		block.clause.name = m[1]
		block.clause.params = splitParams(m[2])

		return nil

	case "class":
		m := classHeaderRegex.FindStringSubmatch(inner)
		if m == nil {
			return headerError("malformed class header", header)
		}

		block.clause.name = m[1]

		return nil

	case "with":
		return compileWithHeader(block, inner, header.GenLine)

	default:
		return headerError("unknown control word "+block.Word, header)
	}
}

func compileForHeader(block *ControlBlock, inner string, genLine int) error {
	body := strings.TrimSpace(trimKeyword(inner, "for"))

	targets, iterSrc, ok := strings.Cut(body, " in ")
	if !ok {
		return headerError("for requires 'in'", block.Header)
	}

	for _, name := range strings.Split(targets, ",") {
		name = strings.TrimSpace(name)
		if !identRegex.MatchString(name) || len(identRegex.FindString(name)) != len(name) {
			return headerError("invalid loop target "+name, block.Header)
		}

		block.clause.targets = append(block.clause.targets, name)
	}

	prog, err := compileSource(strings.TrimSpace(iterSrc), genLine)
	if err != nil {
		return err
	}

	block.clause.iter = prog

	return nil
}

func compileWithHeader(block *ControlBlock, inner string, genLine int) error {
	body := strings.TrimSpace(trimKeyword(inner, "with"))

	src := body
	if exprSrc, name, ok := cutLast(body, " as "); ok {
		src = strings.TrimSpace(exprSrc)
		block.clause.withAs = strings.TrimSpace(name)
	}

	prog, err := compileSource(src, genLine)
	if err != nil {
		return err
	}

	block.clause.withExpr = prog

	return nil
}

// compileSource compiles one expression source, attributing failure to the
// generated line of the node that carries it.
func compileSource(source string, genLine int) (*vm.Program, error) {
	prog, err := expr.Compile(source)
	if err != nil {
		return nil, &ExecError{
			Kind:    KindSyntax,
			GenLine: genLine,
			Err: ErrExprCompile.Wrap(err).
				With(slog.String("source", source)),
		}
	}

	return prog, nil
}

func headerError(msg string, header *StatementLine) error {
	return &ExecError{
		Kind:    KindSyntax,
		GenLine: header.GenLine,
		Err: ErrBadHeader.
			With(
				slog.String("issue", msg),
				slog.String("header", header.Text),
			),
	}
}

// trimKeyword strips the leading clause keyword from header text.
func trimKeyword(s, word string) string {
	return strings.TrimPrefix(s, word)
}

// splitParams splits a comma-separated parameter list, dropping blanks.
func splitParams(s string) []string {
	var params []string

	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			params = append(params, p)
		}
	}

	return params
}

// cutLast splits s around the last occurrence of sep.
func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}

	return s[:i], s[i+len(sep):], true
}
