package cmd

import (
	"context"
	"os"

	"github.com/ardnew/pyt/cli/cmd/repl"
	"github.com/ardnew/pyt/log"
	"github.com/ardnew/pyt/tmpl"
)

// Repl starts the interactive expression session.
type Repl struct {
	Seed *uint64 `placeholder:"N" help:"Seed the rand namespace for reproducible output."`

	Args []string `arg:"" optional:"" placeholder:"ARGS" help:"Arguments exposed to expressions as argv."`
}

func (c *Repl) Run(ctx context.Context) error {
	cacheDir := os.TempDir()

	if ktx := kongContextFrom(ctx); ktx != nil {
		if dir, ok := ktx.Model.Vars()[CacheIdentifier]; ok {
			cacheDir = dir
		}
	}

	opts := []tmpl.Option{tmpl.WithArgv(c.Args)}
	if c.Seed != nil {
		opts = append(opts, tmpl.WithSeed(*c.Seed))
	}

	return repl.Run(ctx, cacheDir, log.Default(), opts...)
}
