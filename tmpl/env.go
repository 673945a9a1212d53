package tmpl

// This file defines the built-in evaluation environment available to all
// template expressions. The process-scoped portion is lazily initialized
// once via envCache and cloned on every access so each execution may layer
// its own bindings on top without affecting the shared cache.
//
// Built-in names can be shadowed by template-defined variables.

import (
	"bufio"
	"maps"
	"math/rand/v2"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ardnew/mung"
)

// Private singleton cache.
//
//nolint:gochecknoglobals
var (
	envCacheOnce sync.Once
	envCache     map[string]any
)

// makeEnvCache returns a clone of the lazily-initialized, process-scoped
// environment containing built-in variables and functions. The returned map
// can be safely mutated by the caller without affecting the shared cache.
func makeEnvCache() map[string]any {
	envCacheOnce.Do(func() {
		envCache = map[string]any{
			// System information (struct/string values).
			"platform": getPlatform(),
			"hostname": getHostname(),
			"user":     getUser(),
			"shell":    getShell(),

			// Working directory.
			"cwd": getCwd,

			// Filesystem functions.
			"file": map[string]any{
				"exists":    fileExists,
				"isDir":     fileIsDir,
				"isRegular": fileIsRegular,
				"read":      fileRead,
				"lines":     fileLines,
			},

			// Path manipulation functions.
			"path": map[string]any{
				"abs":  pathAbs,
				"base": filepath.Base,
				"cat":  pathCat,
				"dir":  filepath.Dir,
				"rel":  pathRel,
			},

			// PATH-like string manipulation via mung.
			"mung": map[string]any{
				"prefix":   mungPrefix,
				"prefixif": mungPrefixIf,
			},

			// General helpers.
			"range": rangeFunc,
			"str":   formatValue,
		}
	})

	return maps.Clone(envCache)
}

// builtinEnv assembles the full environment for one execution: the shared
// process-scoped cache plus the per-template env() accessor, argv, and the
// seeded random namespace.
func (t *Template) builtinEnv() map[string]any {
	env := makeEnvCache()

	env["env"] = envFunc(t.opts.processEnv)
	env["argv"] = t.opts.argv
	env["rand"] = randNamespace(t.opts.seed, t.opts.seeded)

	return env
}

// BuiltinEnv assembles a standalone evaluation environment from the given
// options, identical to what a template execution would start with. It is
// intended for hosts that evaluate expressions outside a template, such as
// an interactive session.
func BuiltinEnv(opts ...Option) map[string]any {
	t := &Template{}

	applyDefaults(t)
	applyOptions(t, opts...)

	return t.builtinEnv()
}

// BuiltinEnvKeys returns the top-level names available to template
// expressions before any template-defined bindings.
func BuiltinEnvKeys() []string {
	env := makeEnvCache()
	keys := make([]string, 0, len(env)+3)

	for k := range env {
		keys = append(keys, k)
	}

	// Bound per execution rather than cached.
	keys = append(keys, "env", "argv", "rand")

	return keys
}

// BuiltinEnvLookup returns the member names nested under a dot-separated
// built-in path, such as "file" or "path". Unknown or scalar paths return
// nil.
func BuiltinEnvLookup(path string) []string {
	var node any = makeEnvCache()

	node.(map[string]any)["rand"] = randNamespace(0, false)

	for _, seg := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}

		node, ok = m[seg]
		if !ok {
			return nil
		}
	}

	m, ok := node.(map[string]any)
	if !ok {
		return nil
	}

	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}

	return names
}

// ---------------------------------------------------------------------------
// System information helpers
// ---------------------------------------------------------------------------

// target contains string identifiers for a target operating system and
// instruction set architecture.
type target struct {
	OS   string
	Arch string
}

// getPlatform returns the host target using Go conventions.
func getPlatform() target {
	var (
		o, a string
		ok   bool
	)

	if o, ok = os.LookupEnv("GOHOSTOS"); !ok {
		if o, ok = os.LookupEnv("GOOS"); !ok {
			o = runtime.GOOS
		}
	}

	if a, ok = os.LookupEnv("GOHOSTARCH"); !ok {
		if a, ok = os.LookupEnv("GOARCH"); !ok {
			a = runtime.GOARCH
		}
	}

	return target{
		OS:   o,
		Arch: a,
	}
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}

	return hostname
}

func getUser() *user.User {
	u, err := user.Current()
	if err != nil {
		return nil
	}

	return u
}

func getShell() string {
	shell, ok := os.LookupEnv("SHELL")
	if ok {
		return shell
	}

	u := getUser()
	if u == nil || u.Username == "" {
		return ""
	}

	f, err := os.Open("/etc/passwd")
	if err != nil {
		return ""
	}

	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		l := s.Text()

		e := strings.Split(l, ":")
		if len(e) > 6 && e[0] == u.Username {
			return e[6]
		}
	}

	return ""
}

// ---------------------------------------------------------------------------
// Working directory
// ---------------------------------------------------------------------------

func getCwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return pathAbs(".")
	}

	return cwd
}

// ---------------------------------------------------------------------------
// Filesystem functions
// ---------------------------------------------------------------------------

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return !os.IsNotExist(err)
}

func fileIsDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.IsDir()
}

func fileIsRegular(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}

// fileRead returns file contents as a string, or an error the template can
// intercept with a try clause.
func fileRead(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ErrReadInput.Wrap(err)
	}

	return string(data), nil
}

// fileLines returns file contents split into lines without terminators.
func fileLines(path string) ([]string, error) {
	data, err := fileRead(path)
	if err != nil {
		return nil, err
	}

	return splitSourceLines(data), nil
}

// ---------------------------------------------------------------------------
// Path manipulation functions
// ---------------------------------------------------------------------------

func pathAbs(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	return p
}

func pathCat(elem ...string) string {
	return filepath.Join(elem...)
}

func pathRel(from, to string) string {
	p, err := filepath.Rel(pathAbs(from), pathAbs(to))
	if err != nil {
		return pathCat(from, to)
	}

	return p
}

// ---------------------------------------------------------------------------
// PATH-like string manipulation (mung)
// ---------------------------------------------------------------------------

func mungPrefix(key string, prefix ...string) string {
	return mung.Make(
		mung.WithSubjectItems(key),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(prefix...),
	).String()
}

func mungPrefixIf(
	key string,
	predicate func(string) bool,
	prefix ...string,
) string {
	return mung.Make(
		mung.WithSubjectItems(key),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(prefix...),
		mung.WithFilter(predicate),
	).String()
}

// ---------------------------------------------------------------------------
// General helpers
// ---------------------------------------------------------------------------

// rangeFunc mirrors the one- and two-argument integer range forms.
func rangeFunc(args ...int) []any {
	start, stop := 0, 0

	switch len(args) {
	case 1:
		stop = args[0]
	case 2:
		start, stop = args[0], args[1]
	default:
		return nil
	}

	if stop <= start {
		return []any{}
	}

	out := make([]any, 0, stop-start)
	for i := start; i < stop; i++ {
		out = append(out, i)
	}

	return out
}

// randNamespace returns the random helpers. An unseeded namespace derives
// state from the global source so repeated runs differ; any explicit seed,
// zero included, is reproducible.
func randNamespace(seed uint64, seeded bool) map[string]any {
	var rng *rand.Rand
	if seeded {
		rng = rand.New(rand.NewPCG(seed, seed))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return map[string]any{
		"float": rng.Float64,
		"int":   func(n int) int { return rng.IntN(n) },
		"choice": func(items []any) any {
			if len(items) == 0 {
				return nil
			}

			return items[rng.IntN(len(items))]
		},
	}
}

// ---------------------------------------------------------------------------
// Environment variable function
// ---------------------------------------------------------------------------

// buildProcessEnvMap converts a "KEY=VALUE" string slice to a map.
// If envList is nil, os.Environ() is used.
func buildProcessEnvMap(envList []string, keyVal ...string) map[string]string {
	envList = append(envList, keyVal...)
	if len(envList) == 0 {
		envList = os.Environ()
	}

	result := make(map[string]string, len(envList))

	for _, entry := range envList {
		key, value, ok := strings.Cut(entry, "=")
		if ok {
			result[key] = value
		}
	}

	return result
}

// envFunc returns the built-in env() function that provides
// process environment access to expressions.
func envFunc(processEnv map[string]string) func(string) string {
	return func(key string) string {
		return processEnv[key]
	}
}
