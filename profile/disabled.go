//go:build !pprof

package profile

// Modes returns the profiling modes available in this build. Without the
// pprof build tag, none are.
func Modes() []string { return nil }

// start is a no-op without the pprof build tag.
func start(string, string, bool) interface{ Stop() } {
	return ignore{}
}
