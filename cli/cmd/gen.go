package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ardnew/pyt/log"
)

// Gen writes the generated script for a template without executing it.
//
// Each generated line is numbered by the template's line map, which is
// the same mapping used to attribute execution failures to source lines.
type Gen struct {
	Output string `short:"o" default:"-" placeholder:"PATH" help:"Write the generated script to PATH instead of stdout."`
	Map    bool   `short:"m" help:"Annotate each line with its source line number."`

	File string `arg:"" placeholder:"FILE" help:"Template file to translate (\"-\" reads stdin)."`
}

func (c *Gen) Run(ctx context.Context) error {
	t, err := parseTemplate(ctx, c.File)
	if err != nil {
		return diagnose(t, ErrReadTemplate, err)
	}

	w, done, err := openOutput(c.Output)
	if err != nil {
		return err
	}
	defer done() //nolint:errcheck

	script := t.Generate()

	if !c.Map {
		if _, err := fmt.Fprint(w, script); err != nil {
			return ErrWriteOutput.Wrap(err)
		}

		return nil
	}

	log.DebugContext(ctx, "annotate generated script",
		slog.String("template", t.Name()),
	)

	lm := t.LineMap()

	for i, line := range strings.Split(strings.TrimSuffix(script, "\n"), "\n") {
		src, ok := lm.Lookup(i + 1)

		mark := "    ."
		if ok {
			mark = fmt.Sprintf("%5d", src)
		}

		if _, err := fmt.Fprintf(w, "%s | %s\n", mark, line); err != nil {
			return ErrWriteOutput.Wrap(err)
		}
	}

	return nil
}
