package tmpl

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
)

// Predefined errors (sentinel values).
var (
	ErrReadInput     = NewError("failed to read input")
	ErrExprCompile   = NewError("expression compilation failed")
	ErrExprEvaluate  = NewError("expression evaluation failed")
	ErrBadStatement  = NewError("unsupported statement")
	ErrBadHeader     = NewError("malformed block header")
	ErrNotIterable   = NewError("value is not iterable")
	ErrNotCallable   = NewError("value is not callable")
	ErrArgCount      = NewError("argument count mismatch")
	ErrLoopControl   = NewError("loop control outside loop")
	ErrWriteOutput   = NewError("failed to write output")
	ErrUndefinedName = NewError("name is not defined")
)

// Error represents an error with optional structured logging attributes.
// It implements both error and slog.LogValuer.
type Error struct {
	msg   string
	err   error
	attrs []slog.Attr
}

// NewError creates a new Error with a message.
func NewError(msg string) *Error {
	return &Error{msg: msg}
}

// WrapError wraps a standard error into an Error.
func WrapError(err error) *Error {
	ee := &Error{}
	if errors.As(err, &ee) {
		return ee
	}

	return &Error{err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	part := make([]string, 0, 2)

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is matches errors derived from the same sentinel. Wrap and With return
// new instances, so identity lives in the message rather than the pointer.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && t.msg == e.msg
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		msg:   e.msg,
		err:   err,
		attrs: e.attrs,
	}
}

// With adds attributes to the error for structured logging.
// A new Error instance is returned to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)

	return &Error{
		msg:   e.msg,
		err:   e.err,
		attrs: newAttrs,
	}
}

// ParseError reports a structural violation found while parsing: a keyword
// mismatch, an unmatched block, or an unterminated verbatim block. Parsing
// aborts on the first ParseError; generation and execution are never
// attempted.
type ParseError struct {
	Msg     string // diagnostic message
	Line    string // offending source line text
	LineNum int    // original 1-based line number
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var buf strings.Builder

	buf.WriteString("parse error at line ")
	buf.WriteString(strconv.Itoa(e.LineNum))
	buf.WriteString(":\n")
	buf.WriteString("  ")
	buf.WriteString(strconv.Itoa(e.LineNum))
	buf.WriteString(" | ")
	buf.WriteString(e.Line)
	buf.WriteString("\n")
	buf.WriteString(e.Msg)

	return buf.String()
}

// newParseError builds a ParseError for the given source line.
func newParseError(msg string, line SourceLine) *ParseError {
	return &ParseError{
		Msg:     msg,
		Line:    line.Text,
		LineNum: line.Number,
	}
}

// FailureKind distinguishes the two classes of bridge failures.
type FailureKind int

const (
	// KindSyntax marks a structural failure: an embedded expression,
	// statement, or block header that could not be compiled.
	KindSyntax FailureKind = iota

	// KindRuntime marks a failure raised while the template executes.
	KindRuntime
)

// String returns the display name of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindRuntime:
		return "runtime error"
	default:
		return "error"
	}
}

// ExecError is a bridge failure attributed to one generated line. The
// caller resolves GenLine through the template's LineMap; an unmapped line
// is reported as indeterminate, never attributed to a neighbor.
type ExecError struct {
	Kind    FailureKind
	GenLine int
	Err     error
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	var buf strings.Builder

	buf.WriteString(e.Kind.String())
	buf.WriteString(" at generated line ")
	buf.WriteString(strconv.Itoa(e.GenLine))

	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}

	return buf.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ExecError) Unwrap() error { return e.Err }

// asExecError extracts an ExecError from err, or wraps err as a runtime
// failure at the given generated line. Errors crossing expr-lang call
// boundaries keep their original attribution this way.
func asExecError(err error, genLine int) *ExecError {
	ee := &ExecError{}
	if errors.As(err, &ee) {
		return ee
	}

	return &ExecError{
		Kind:    KindRuntime,
		GenLine: genLine,
		Err:     ErrExprEvaluate.Wrap(err),
	}
}
