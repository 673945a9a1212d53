package cmd

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/ardnew/pyt/log"
	"github.com/ardnew/pyt/tmpl"
)

// contextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// parseTemplate reads and parses a template from path, mapping "-" to
// stdin. The returned template is named by its path for diagnostics.
func parseTemplate(
	ctx context.Context,
	path string,
	opts ...tmpl.Option,
) (*tmpl.Template, error) {
	opts = append(opts, tmpl.WithLogger(log.Default()))

	if path == stdinSource {
		return tmpl.ParseReader(ctx, "<stdin>", os.Stdin, opts...)
	}

	return tmpl.ParseFile(ctx, path, opts...)
}

// openOutput returns the destination writer for path, mapping "-" to
// stdout. The returned close function is a no-op for stdout.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == stdinSource || path == "" {
		return os.Stdout, func() error { return nil }, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, ErrWriteOutput.Wrap(err)
	}

	return f, f.Close, nil
}
