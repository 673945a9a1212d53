package tmpl

import "strings"

// genIndent is the indentation unit of the generated script.
const genIndent = "    "

// generate serializes the parsed tree into indented script text. It is a
// pure tree-to-text projection: no semantic validation happens here, and
// for a structurally valid tree it cannot fail.
//
// Each StatementLine occupies exactly one generated line and each
// ControlBlock header occupies one, so the serialized text lines up with
// the generated line numbers assigned during parsing.
func generate(root *Sequence) string {
	var out []string

	appendNodes(&out, root.Nodes, 0)

	return strings.Join(out, "\n")
}

// appendNodes emits nodes at the given indentation depth.
func appendNodes(out *[]string, nodes []Node, depth int) {
	for _, n := range nodes {
		switch node := n.(type) {
		case *StatementLine:
			appendStatement(out, node, depth)

		case *ControlSequence:
			// Clauses in declaration order: start first, then middles in
			// the order they were opened, children one level deeper.
			for _, block := range node.Blocks {
				appendStatement(out, block.Header, depth)
				appendNodes(out, block.Nodes, depth+1)
			}
		}
	}
}

// appendStatement emits one statement line. Verbatim statements keep their
// stored text unchanged, ignoring the ambient depth.
func appendStatement(out *[]string, st *StatementLine, depth int) {
	if st.Verbatim {
		*out = append(*out, st.Text)

		return
	}

	*out = append(*out, strings.Repeat(genIndent, depth)+st.Text)
}
