package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
)

// ANSI color codes for pretty printing.
const (
	colorReset   = "\033[0m"
	colorGray    = "\033[90m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
)

// prettyHandler is a colorized slog.Handler. Text mode writes one
// space-separated key=value record per line; JSON mode writes an indented
// multiline object. Both modes share the mutex guarding the writer.
type prettyHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	w      io.Writer
	format Format
	attrs  []slog.Attr
}

func newPrettyHandler(
	w io.Writer,
	format Format,
	opts *slog.HandlerOptions,
) *prettyHandler {
	return &prettyHandler{
		opts:   *opts,
		mu:     &sync.Mutex{},
		w:      w,
		format: format,
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)

	return &clone
}

func (h *prettyHandler) WithGroup(string) slog.Handler {
	// Groups are flattened; pretty output is for human consumption.
	return h
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := new(bytes.Buffer)

	if h.format == FormatJSON {
		h.renderJSON(buf, r)
	} else {
		h.renderText(buf, r)
	}

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())

	return err
}

// fields yields the record's standard fields followed by handler and
// record attributes, in output order.
func (h *prettyHandler) fields(r slog.Record, yield func(slog.Attr)) {
	if !r.Time.IsZero() {
		yield(slog.Time(slog.TimeKey, r.Time))
	}

	yield(slog.Any(slog.LevelKey, r.Level))

	if h.opts.AddSource {
		if src := r.Source(); src != nil {
			yield(slog.String(
				slog.SourceKey,
				fmt.Sprintf("%s:%d", src.File, src.Line),
			))
		}
	}

	yield(slog.String(slog.MessageKey, r.Message))

	for _, a := range h.attrs {
		yield(a)
	}

	r.Attrs(func(a slog.Attr) bool {
		yield(a)

		return true
	})
}

func (h *prettyHandler) renderText(buf *bytes.Buffer, r slog.Record) {
	h.fields(r, func(a slog.Attr) {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}

		buf.WriteString(colorGray)
		buf.WriteString(a.Key)
		buf.WriteString(colorReset)
		buf.WriteByte('=')
		writeColorValue(buf, a.Value)
	})
}

func (h *prettyHandler) renderJSON(buf *bytes.Buffer, r slog.Record) {
	buf.WriteString("{\n")

	first := true

	h.fields(r, func(a slog.Attr) {
		if !first {
			buf.WriteString(",\n")
		}

		first = false

		buf.WriteString("  ")
		buf.WriteString(colorGray)
		buf.WriteString(a.Key)
		buf.WriteString(colorReset)
		buf.WriteString(": ")
		writeColorValue(buf, a.Value)
	})

	buf.WriteString("\n}")
}

// writeColorValue writes a value colored by kind: strings cyan, numbers
// yellow, booleans green or red, durations magenta, times blue.
func writeColorValue(buf *bytes.Buffer, v slog.Value) {
	switch v.Kind() {
	case slog.KindString:
		buf.WriteString(colorCyan)
		buf.WriteString(v.String())
		buf.WriteString(colorReset)

	case slog.KindInt64:
		buf.WriteString(colorYellow)
		buf.WriteString(strconv.FormatInt(v.Int64(), 10))
		buf.WriteString(colorReset)

	case slog.KindUint64:
		buf.WriteString(colorYellow)
		buf.WriteString(strconv.FormatUint(v.Uint64(), 10))
		buf.WriteString(colorReset)

	case slog.KindFloat64:
		buf.WriteString(colorYellow)
		buf.WriteString(strconv.FormatFloat(v.Float64(), 'g', -1, 64))
		buf.WriteString(colorReset)

	case slog.KindBool:
		if v.Bool() {
			buf.WriteString(colorGreen)
			buf.WriteString("true")
		} else {
			buf.WriteString(colorRed)
			buf.WriteString("false")
		}

		buf.WriteString(colorReset)

	case slog.KindDuration:
		buf.WriteString(colorMagenta)
		buf.WriteString(v.Duration().String())
		buf.WriteString(colorReset)

	case slog.KindTime:
		buf.WriteString(colorBlue)
		buf.WriteString(v.Time().String())
		buf.WriteString(colorReset)

	case slog.KindAny:
		if level, ok := v.Any().(slog.Level); ok {
			switch {
			case level >= slog.LevelError:
				buf.WriteString(colorRed)
			case level >= slog.LevelWarn:
				buf.WriteString(colorYellow)
			case level >= slog.LevelInfo:
				buf.WriteString(colorGreen)
			default:
				buf.WriteString(colorBlue)
			}

			buf.WriteString(Level(level).String())
			buf.WriteString(colorReset)

			return
		}

		buf.WriteString(colorCyan)
		buf.WriteString(v.String())
		buf.WriteString(colorReset)

	default:
		buf.WriteString(colorCyan)
		buf.WriteString(v.String())
		buf.WriteString(colorReset)
	}
}
