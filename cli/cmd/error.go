package cmd

import (
	"log/slog"
	"slices"
)

// Error is a command failure sentinel carrying structured logging
// attributes. The sentinel value names the failing operation; Wrap and
// With derive enriched copies so the sentinel itself stays comparable.
type Error struct {
	msg   string
	cause error
	attrs []slog.Attr
}

func NewError(msg string) *Error {
	return &Error{msg: msg}
}

func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.cause != nil:
		return e.msg + ": " + e.cause.Error()
	case e.msg != "":
		return e.msg
	case e.cause != nil:
		return e.cause.Error()
	}

	return ""
}

func (e *Error) Unwrap() error { return e.cause }

// LogValue implements slog.LogValuer so wrapped causes and attached
// attributes appear as a single group in log output.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+2)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap returns a copy of the sentinel with err recorded as its cause.
func (e *Error) Wrap(err error) *Error {
	derived := *e
	derived.cause = err

	return &derived
}

// With returns a copy of the sentinel with additional logging attributes.
func (e *Error) With(attrs ...slog.Attr) *Error {
	derived := *e
	derived.attrs = slices.Concat(e.attrs, attrs)

	return &derived
}

var (
	ErrReadTemplate = NewError("read template")
	ErrRenderFailed = NewError("render template")
	ErrWriteOutput  = NewError("write output")
)
