package tmpl

import "strings"

// escapeQuotes escapes characters that would terminate the generated
// single-quoted string literal: backslashes first, then both quote styles.
func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)

	return strings.ReplaceAll(s, `"`, `\"`)
}

// escapePercent doubles format markers so literal percent signs survive the
// generated formatting expression.
func escapePercent(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

// literalStatement converts one literal text line, possibly containing
// embedded ${...} expressions, into a single emission statement.
//
// The generated text formats the escaped literal with each expression
// source, in marker order, exactly as written. Inside a named template
// function the emission appends to the hidden accumulator instead of
// writing output. The interpreter payload keeps the unescaped literal
// segments and expression sources so execution never re-parses the
// generated text.
func literalStatement(line string, pypdef bool) *StatementLine {
	printFunc := "_PRINT"
	if pypdef {
		printFunc = "_OUTPUT.append"
	}

	matches := exprRegex.FindAllStringSubmatchIndex(line, -1)

	if len(matches) == 0 {
		text := printFunc + "(('" + escapeQuotes(line) + "'))"

		return &StatementLine{
			Text: text,
			emit: &emitStmt{parts: []string{line}},
		}
	}

	// Literal segments between markers, and expression sources in order.
	parts := make([]string, 0, len(matches)+1)
	exprs := make([]string, 0, len(matches))
	prev := 0

	for _, m := range matches {
		parts = append(parts, line[prev:m[0]])
		exprs = append(exprs, line[m[2]:m[3]])
		prev = m[1]
	}

	parts = append(parts, line[prev:])

	// Build the format string the way the original pipeline does: double
	// percents, substitute markers, then escape quotes.
	format := exprRegex.ReplaceAllString(escapePercent(line), "%s")
	format = escapeQuotes(format)

	args := make([]string, len(exprs))
	for i, e := range exprs {
		args[i] = "(" + e + ")"
	}

	text := printFunc + "('" + format + "' % (" + strings.Join(args, ",") + ",))"

	return &StatementLine{
		Text: text,
		emit: &emitStmt{parts: parts, exprs: exprs},
	}
}
