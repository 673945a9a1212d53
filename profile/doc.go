// Package profile provides optional runtime profiling for the pyt
// command.
//
// # Overview
//
// This package integrates [github.com/pkg/profile] to provide runtime
// profiling with conditional compilation support. Profiling is optional and
// must be enabled at build time using the "pprof" build tag.
//
// When built with profiling disabled (default), all operations are no-ops
// with zero runtime overhead.
//
// # Available Profiling Modes
//
// The following profiling modes are supported when built with the pprof tag:
//
//   - allocs:    Memory allocation profiling (all allocations)
//   - block:     Block (synchronization) profiling
//   - clock:     Wall-clock profiling
//   - cpu:       CPU profiling
//   - goroutine: Goroutine profiling
//   - heap:      Heap memory profiling (live allocations)
//   - mem:       General memory profiling
//   - mutex:     Mutex contention profiling
//   - thread:    Thread creation profiling
//   - trace:     Execution trace profiling
//
// Use [Modes] to retrieve the list of supported modes programmatically.
//
// # Usage
//
// The profiler is configured through a [Config] and started with
// [Config.Start]:
//
//	stop := profile.Config{Mode: "cpu", Path: "/tmp/profiles"}.Start()
//	defer stop.Stop()
//
// Profile files are written to the configured directory with names matching
// the profiling mode (e.g., cpu.pprof, mem.pprof).
//
// The pyt command exposes the configuration through command-line flags when
// built with the pprof tag:
//
//	# Enable CPU profiling (writes to default cache directory)
//	pyt --pprof-mode cpu template.pyt
//
//	# Enable heap profiling with custom output directory
//	pyt --pprof-mode heap --pprof-dir ./profiles template.pyt
//
// The default output directory is:
//
//	$XDG_CACHE_HOME/pyt/pprof   (Linux/Unix)
//	~/Library/Caches/pyt/pprof  (macOS)
//	%LocalAppData%\pyt\pprof    (Windows)
//
// # Analyzing Profile Data
//
// Use the go tool pprof command to analyze profile data:
//
//	go tool pprof ./pyt /tmp/profiles/cpu.pprof
//	go tool pprof -http=: /tmp/profiles/cpu.pprof
//
// When built with the pprof tag, this package also imports
// [net/http/pprof], which registers HTTP handlers for runtime profiling at
// /debug/pprof/ for applications that start an HTTP server.
package profile

// Tag is the build tag required to enable pprof profiling.
const Tag = `pprof`
