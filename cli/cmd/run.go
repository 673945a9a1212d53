package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ardnew/pyt/log"
	"github.com/ardnew/pyt/tmpl"
)

// Run renders a template and writes its text output.
//
// The template's positional arguments after FILE are exposed to
// expressions as the argv list.
type Run struct {
	Output string  `short:"o" default:"-" placeholder:"PATH" help:"Write rendered output to PATH instead of stdout."`
	Py     string  `placeholder:"PATH" help:"Also write the generated script to PATH."`
	Seed   *uint64 `placeholder:"N" help:"Seed the rand namespace for reproducible output."`
	Debug  bool    `help:"Dump the generated script to stderr and raise log verbosity."`

	File string   `arg:"" placeholder:"FILE" help:"Template file to render (\"-\" reads stdin)."`
	Args []string `arg:"" optional:"" placeholder:"ARGS" help:"Arguments exposed to the template as argv."`
}

func (c *Run) Run(ctx context.Context) error {
	if c.Debug {
		log.Config(log.WithLevel(log.LevelDebug))
	}

	opts := []tmpl.Option{tmpl.WithArgv(c.Args)}
	if c.Seed != nil {
		opts = append(opts, tmpl.WithSeed(*c.Seed))
	}

	t, err := parseTemplate(ctx, c.File, opts...)
	if err != nil {
		return diagnose(t, ErrReadTemplate, err)
	}

	log.DebugContext(ctx, "render template",
		slog.String("template", t.Name()),
		slog.Int("argv", len(c.Args)),
	)

	if c.Debug {
		fmt.Fprint(os.Stderr, t.Generate())
	}

	if c.Py != "" {
		if err := os.WriteFile(c.Py, []byte(t.Generate()), 0o644); err != nil {
			return ErrWriteOutput.Wrap(err).
				With(slog.String("path", c.Py))
		}
	}

	if c.Output != stdinSource && c.Output != "" {
		if err := t.ExecuteFile(ctx, c.Output); err != nil {
			return diagnose(t, ErrRenderFailed, err)
		}

		return nil
	}

	if err := t.Execute(ctx, os.Stdout); err != nil {
		return diagnose(t, ErrRenderFailed, err)
	}

	return nil
}

// diagnose maps template errors to their line-mapped report when one is
// available, falling back to the given sentinel otherwise.
func diagnose(t *tmpl.Template, sentinel *Error, err error) error {
	var ee *tmpl.ExecError
	if t != nil && errors.As(err, &ee) {
		fmt.Fprintln(os.Stderr, t.Diagnose(err))

		return sentinel
	}

	var pe *tmpl.ParseError
	if errors.As(err, &pe) {
		fmt.Fprintln(os.Stderr, pe.Error())

		return sentinel
	}

	return sentinel.Wrap(err)
}
