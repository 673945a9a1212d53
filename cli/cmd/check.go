package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ardnew/pyt/log"
)

// Check parses and compiles a template without executing it.
//
// Parse and compile failures are reported with their source line; a
// template that checks clean produces no output.
type Check struct {
	Quiet bool `short:"q" help:"Suppress the confirmation message on success."`

	Files []string `arg:"" placeholder:"FILE" help:"Template files to validate (\"-\" reads stdin)."`
}

func (c *Check) Run(ctx context.Context) error {
	var failed bool

	for _, path := range c.Files {
		t, err := parseTemplate(ctx, path)
		if err != nil {
			failed = true

			log.DebugContext(ctx, "check failed", slog.String("template", path))

			if derr := diagnose(t, ErrReadTemplate, err); derr != ErrReadTemplate {
				fmt.Fprintln(os.Stderr, derr.Error())
			}

			continue
		}

		if !c.Quiet {
			fmt.Fprintf(os.Stdout, "%s: ok\n", t.Name())
		}
	}

	if failed {
		return ErrReadTemplate
	}

	return nil
}
