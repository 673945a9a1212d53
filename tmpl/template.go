package tmpl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ardnew/pyt/log"
)

// Template is a parsed and compiled template, ready for repeated execution.
type Template struct {
	name     string
	source   string
	srcLines []SourceLine
	root     *Sequence
	lineMap  LineMap

	opts   optionsKey
	logger log.Logger

	compiled   bool
	compileErr error
}

// optionsKey holds template configuration options. Its fields feed the
// parse-cache key hash.
type optionsKey struct {
	processEnv map[string]string
	argv       []string
	seed       uint64
	seeded     bool
}

// Option configures template parsing or execution behavior.
type Option func(*Template)

// WithProcessEnv sets the environment variables visible through the env()
// built-in. The format is []string{"KEY=VALUE", ...}. If nil, os.Environ()
// is used.
func WithProcessEnv(env []string) Option {
	return func(t *Template) {
		t.opts.processEnv = buildProcessEnvMap(env)
	}
}

// WithArgv sets the argument list bound to the argv built-in.
func WithArgv(argv []string) Option {
	return func(t *Template) {
		t.opts.argv = argv
	}
}

// WithSeed seeds the rand built-in namespace for reproducible output.
// Any value is a valid seed, zero included.
func WithSeed(seed uint64) Option {
	return func(t *Template) {
		t.opts.seed = seed
		t.opts.seeded = true
	}
}

// WithLogger sets the structured logger for trace-level debugging.
// If not provided, the logger is zero-valued and all logging is a no-op.
func WithLogger(logger log.Logger) Option {
	return func(t *Template) {
		t.logger = logger
	}
}

// applyDefaults sets default option values on a Template.
func applyDefaults(t *Template) {
	t.opts.processEnv = buildProcessEnvMap(nil)
	t.opts.argv = []string{}
}

// applyOptions applies functional options to a Template.
func applyOptions(t *Template, opts ...Option) {
	for _, opt := range opts {
		opt(t)
	}
}

// ParseString parses and compiles template source. The returned Template
// holds the node tree, the generated-to-source line map, and one compiled
// expr program per embedded expression.
//
// The result is cached for efficient repeated parsing: the cache key
// covers both the content and the execution options, so option-bearing
// parses still cache without cross-contaminating each other.
func ParseString(
	ctx context.Context,
	name, input string,
	opts ...Option,
) (*Template, error) {
	return parseStringCached(ctx, name, input, opts...)
}

// parseString is the internal parsing implementation.
func parseString(
	ctx context.Context,
	name, input string,
	opts ...Option,
) (*Template, error) {
	t := &Template{name: name, source: input}

	applyDefaults(t)
	applyOptions(t, opts...)

	t.logger.TraceContext(
		ctx,
		"parse start",
		slog.String("template", name),
		slog.Int("source_length", len(input)),
	)

	t.srcLines = Preprocess(input)

	root, lineMap, err := parseTemplate(t.srcLines)
	if err != nil {
		return nil, err
	}

	t.root = root
	t.lineMap = lineMap

	t.logger.TraceContext(
		ctx,
		"parse complete",
		slog.Int("generated_lines", lineMap.Len()),
	)

	if err := t.compile(); err != nil {
		return nil, err
	}

	t.logger.TraceContext(ctx, "expressions compiled")

	return t, nil
}

// Name returns the template name given at parse time.
func (t *Template) Name() string { return t.name }

// LineMap returns the generated-to-source line mapping.
func (t *Template) LineMap() LineMap { return t.lineMap }

// Generate returns the generated script text. The text is an inspection
// and debugging artifact; execution walks the compiled node tree directly.
func (t *Template) Generate() string {
	return generate(t.root)
}

// Execute renders the template to w.
func (t *Template) Execute(ctx context.Context, w io.Writer) error {
	t.logger.TraceContext(ctx, "execute start", slog.String("template", t.name))

	if err := t.run(w); err != nil {
		return err
	}

	t.logger.TraceContext(ctx, "execute complete")

	return nil
}

// ExecuteFile renders the template to path. Output is written to a
// temporary sibling first and renamed into place only on success, so a
// failed execution never leaves partial output behind.
func (t *Template) ExecuteFile(ctx context.Context, path string) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return ErrWriteOutput.Wrap(err)
	}

	tmpPath := tmp.Name()

	if err := t.Execute(ctx, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return ErrWriteOutput.Wrap(err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return ErrWriteOutput.Wrap(err)
	}

	return nil
}

// Diagnose renders an execution failure as a source-attributed message.
// The generated line carried by the error is resolved through the line
// map; a line with no mapping reports the failure against the generated
// script instead of guessing at a nearby source line.
func (t *Template) Diagnose(err error) string {
	ee := &ExecError{}
	if !errors.As(err, &ee) {
		return err.Error()
	}

	var buf strings.Builder

	switch ee.Kind {
	case KindSyntax:
		buf.WriteString("syntax error")
	case KindRuntime:
		buf.WriteString("runtime error")
	}

	srcLine, ok := t.lineMap.Lookup(ee.GenLine)
	if !ok {
		fmt.Fprintf(
			&buf,
			" at generated line %d (source line indeterminate):\n",
			ee.GenLine,
		)
		buf.WriteString("  " + ee.Err.Error())

		return buf.String()
	}

	fmt.Fprintf(&buf, "\n  File \"%s\", line %d\n", t.name, srcLine)

	if srcLine >= 1 && srcLine <= len(t.srcLines) {
		text := stripPadMarkers(t.srcLines[srcLine-1].Text)
		fmt.Fprintf(&buf, "    %s\n", text)
	}

	buf.WriteString("  " + ee.Err.Error())

	return buf.String()
}
