package tmpl

import "github.com/expr-lang/expr/vm"

// Keyword identifies the control-keyword family of a ControlSequence.
// The set is closed: every switch over Keyword in this package is
// exhaustive, replacing the runtime keyword lookup table of a dynamic
// implementation.
type Keyword int

const (
	// KeywordNone marks the root sequence, which has no control keyword.
	KeywordNone Keyword = iota

	KeywordFor
	KeywordIf
	KeywordTry
	KeywordWhile
	KeywordDef
	KeywordPypdef
	KeywordClass
	KeywordWith
)

// String returns the template-source spelling of the keyword.
func (k Keyword) String() string {
	switch k {
	case KeywordFor:
		return "for"
	case KeywordIf:
		return "if"
	case KeywordTry:
		return "try"
	case KeywordWhile:
		return "while"
	case KeywordDef:
		return "def"
	case KeywordPypdef:
		return "pypdef"
	case KeywordClass:
		return "class"
	case KeywordWith:
		return "with"
	case KeywordNone:
		return ""
	default:
		return "unknown"
	}
}

// startKeyword maps a control-start word to its Keyword, reporting whether
// the word opens a block.
func startKeyword(word string) (Keyword, bool) {
	switch word {
	case "for":
		return KeywordFor, true
	case "if":
		return KeywordIf, true
	case "try":
		return KeywordTry, true
	case "while":
		return KeywordWhile, true
	case "def":
		return KeywordDef, true
	case "pypdef":
		return KeywordPypdef, true
	case "class":
		return KeywordClass, true
	case "with":
		return KeywordWith, true
	default:
		return KeywordNone, false
	}
}

// middleStart maps a control-middle word to the start keyword whose family
// it continues.
func middleStart(word string) (Keyword, bool) {
	switch word {
	case "elif", "else":
		return KeywordIf, true
	case "except", "finally":
		return KeywordTry, true
	default:
		return KeywordNone, false
	}
}

// Node is one element of a Sequence: either a single generated statement
// line or a nested control sequence.
type Node interface {
	node()
}

// stmtKind classifies a raw statement for the interpreter. Classification
// happens during the compile phase; parse time only distinguishes synthetic
// statements, which generate text but are never interpreted directly.
type stmtKind int

const (
	stmtUnresolved stmtKind = iota
	stmtSynthetic
	stmtPass
	stmtBreak
	stmtContinue
	stmtReturn
	stmtAssign
	stmtExpr
)

// emitStmt is the interpreter payload of a literal-line emission: the
// literal text segments surrounding each embedded expression, and the
// expression sources in marker order. programs is populated by the compile
// phase, one entry per expression.
type emitStmt struct {
	parts    []string
	exprs    []string
	programs []*vm.Program
}

// rawStmt is the interpreter payload of a raw statement-escape line or a
// verbatim-block line.
type rawStmt struct {
	kind    stmtKind
	target  string // assignment target identifier
	op      string // "=", "+=", "-=", "*=", "/="
	source  string // expression source (assignment RHS, return value, or bare expression)
	program *vm.Program

	// compileErr holds a deferred expression-compile failure. Verbatim
	// blocks may carry host-language constructs the expression engine
	// cannot parse; those fail only if the line is actually executed.
	compileErr error
}

// StatementLine is one generated line of script text. Exactly one of emit
// and raw is non-nil except for control-block headers, which carry neither
// (their payload lives on the enclosing ControlBlock clause).
type StatementLine struct {
	Text     string
	Verbatim bool // emit stored text unchanged, ignoring ambient indent
	GenLine  int  // 1-based generated line number
	SrcLine  int  // original line number; 0 for synthetic lines

	emit *emitStmt
	raw  *rawStmt
}

func (*StatementLine) node() {}

// Sequence is an ordered list of nodes. The root of a parsed template is a
// plain Sequence with no control keyword.
type Sequence struct {
	Nodes []Node
}

// ControlSequence is a compound block opened by a control-start keyword.
// It owns one ControlBlock per clause: the start clause first, then middle
// clauses in the order they were opened.
type ControlSequence struct {
	Keyword       Keyword
	HeaderSrcLine int
	Blocks        []*ControlBlock

	// pypdef reports whether this sequence generates inside a named
	// template function, redirecting literal emissions to the accumulator.
	pypdef bool
}

func (*ControlSequence) node() {}

// ControlBlock pairs one clause header (the "if x:" or "elif y:" statement)
// with the nodes of its body. All clauses of a sequence share one
// indentation level.
type ControlBlock struct {
	Word   string // clause keyword as written: "if", "elif", "except", ...
	Header *StatementLine
	Nodes  []Node

	clause clause
}

// clause is the compiled header payload of a ControlBlock. Which fields are
// set depends on the keyword; the compile phase fills it.
type clause struct {
	cond     *vm.Program // if, elif, while
	iter     *vm.Program // for
	targets  []string    // for loop variables
	withExpr *vm.Program // with
	withAs   string
	name     string   // def, pypdef, class
	params   []string // def, pypdef
}
