// Package cli contains the command line interface for pyt.
//
// # Usage
//
// The default command renders a template to stdout:
//
//	pyt template.pyt arg1 arg2
//
// Subcommands expose the other phases of the pipeline:
//
//	pyt gen template.pyt      # write the generated script
//	pyt check template.pyt    # validate without executing
//	pyt repl                  # interactive expression session
//
// # Configuration
//
// Flags may be set in a YAML config file under the user configuration
// directory (default: ~/.config/pyt/config.yaml). Command-line flags
// override config file values.
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (text, json)
//   - --log-time-layout: Set timestamp format (RFC3339, RFC3339Nano, etc.)
//   - --log-caller: Include caller information in log output
//
// Log output goes to stderr so rendered template output on stdout stays
// clean for piping.
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof .
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory (default: ~/.cache/pyt/pprof)
//
// # Examples
//
//	# Debug logging while rendering
//	pyt --log-level=debug template.pyt
//
//	# Inspect the generated script with source line annotations
//	pyt gen --map template.pyt
//
//	# Render with a fixed random seed
//	pyt --seed 42 template.pyt
//
//	# Render and keep a copy of the generated script
//	pyt --py out.py template.pyt
package cli
