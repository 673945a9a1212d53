package profile

// Config selects a profiler mode and output directory.
//
// Mode names one of the profilers reported by [Modes], and Path sets the
// directory where profiling data is written. Quiet suppresses the
// profiler's own stderr chatter.
type Config struct {
	Mode  string
	Path  string
	Quiet bool
}

// Start initializes the profiler and returns an interface for stopping it.
//
// Without the pprof build tag, or with an empty or unknown mode, Start
// returns a no-op implementation. Both Start and Stop are always safely
// callable.
func (c Config) Start() interface{ Stop() } {
	if c.Mode == "" {
		return ignore{}
	}

	return start(c.Mode, c.Path, c.Quiet)
}

type ignore struct{}

func (ignore) Stop() {}
