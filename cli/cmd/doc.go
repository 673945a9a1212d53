// Package cmd implements the pyt subcommands: run renders a template,
// gen writes the generated script, check validates without executing, and
// repl starts an interactive expression session.
package cmd

var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path to
	// the default configuration file.
	ConfigIdentifier = "config"
)
