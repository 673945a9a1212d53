package cli

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/pyt/log"
)

// logFormat reconfigures the logger output format as a side effect of flag
// parsing, via encoding.TextUnmarshaler.
type logFormat string

// UnmarshalText implements encoding.TextUnmarshaler. Applying the format
// the moment Kong parses --log-format lets parse-time error messages use it.
func (f *logFormat) UnmarshalText(text []byte) error {
	*f = logFormat(text)
	log.Config(log.WithFormat(log.ParseFormat(string(*f))))

	return nil
}

// logLevel reconfigures the logger threshold as a side effect of flag
// parsing, via encoding.TextUnmarshaler.
type logLevel string

// UnmarshalText implements encoding.TextUnmarshaler. Applying the level
// the moment Kong parses --log-level lets parse-time messages honor it.
func (l *logLevel) UnmarshalText(text []byte) error {
	*l = logLevel(text)
	log.Config(log.WithLevel(log.ParseLevel(string(*l))))

	return nil
}

type logConfig struct {
	Level      logLevel  `default:"info"    enum:"trace,debug,info,warn,error" help:"Minimum level to log."`
	Format     logFormat `default:"text"    enum:"text,json"                   help:"Log record encoding."`
	TimeLayout string    `default:"RFC3339"                                    help:"Timestamp layout name."`
	Caller     bool      `default:"false"                                      help:"Annotate records with the call site." negatable:""`
	Pretty     bool      `default:"true"                                       help:"Colorize text output."                negatable:""`
}

func (*logConfig) vars() kong.Vars {
	return kong.Vars{}
}

func (*logConfig) group() kong.Group {
	var group kong.Group

	group.Key = "log"
	group.Title = "Logging options"

	return group
}

// start finalizes logger configuration with all parsed values and returns
// a function that logs command completion.
func (f *logConfig) start(ctx context.Context) (done func()) {
	log.Config(
		log.WithLevel(log.ParseLevel(string(f.Level))),
		log.WithFormat(log.ParseFormat(string(f.Format))),
		log.WithTimeLayout(f.TimeLayout),
		log.WithCaller(f.Caller),
		log.WithPretty(f.Pretty),
	)

	log.DebugContext(ctx, "logger initialized",
		slog.String("level", string(f.Level)),
		slog.String("format", string(f.Format)),
		slog.String("time", f.TimeLayout),
		slog.Bool("caller", f.Caller),
		slog.Bool("pretty", f.Pretty),
	)

	return func() {
		log.TraceContext(ctx, "done")
	}
}

// scan applies logger flags from the raw argument list before Kong begins
// parsing, so diagnostics emitted during parsing already honor them.
//
// Level and format configure themselves through encoding.TextUnmarshaler as
// Kong encounters them; boolean flags never pass through that interface, so
// this pre-pass covers both kinds regardless of position.
func (f *logConfig) scan(args []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]

		negated := strings.HasPrefix(arg, "--no-log-")
		if !negated && !strings.HasPrefix(arg, "--log-") {
			continue
		}

		name, value, assigned := strings.Cut(arg, "=")

		// Resolve a boolean flag value: "--log-x", "--no-log-x", or either
		// with an explicit "=bool". A malformed value leaves the flag alone.
		setBool := func(apply func(bool)) {
			on := !negated

			if assigned {
				v, err := strconv.ParseBool(value)
				if err != nil {
					return
				}

				on = v != negated
			}

			apply(on)
		}

		switch name {
		case "--log-level", "--log-format":
			// Value flags consume the following argument when not assigned
			// with "=".
			if !assigned && i+1 < len(args) && len(args[i+1]) > 0 &&
				args[i+1][0] != '-' {
				value = args[i+1]
				i++
			}

			if name == "--log-level" {
				_ = f.Level.UnmarshalText([]byte(value))
			} else {
				_ = f.Format.UnmarshalText([]byte(value))
			}

		case "--log-pretty", "--no-log-pretty":
			setBool(func(v bool) {
				f.Pretty = v
				log.Config(log.WithPretty(v))
			})

		case "--log-caller", "--no-log-caller":
			setBool(func(v bool) {
				f.Caller = v
				log.Config(log.WithCaller(v))
			})
		}
	}
}
