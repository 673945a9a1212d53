package tmpl

import (
	"bytes"
	"context"
	"encoding/gob"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"sync"

	"github.com/klauspost/readahead"
	"github.com/zeebo/xxh3"
)

// globalCache stores parsed templates keyed by source hash plus execution
// options. Entries hold the immutable parse products (node tree, line map,
// compiled programs).
//
//nolint:gochecknoglobals
var globalCache sync.Map

// cacheState guards one-time parsing of a cached source.
type cacheState struct {
	once sync.Once
	tmpl *Template
	err  error
}

// ParseReader parses template input from an io.Reader.
// The reader content is cached after first parse for efficiency.
func ParseReader(
	ctx context.Context,
	name string,
	r io.Reader,
	opts ...Option,
) (*Template, error) {
	// Wrap reader with async read-ahead for concurrent I/O.
	// This allows data to be pre-fetched while we process previous chunks.
	ra := readahead.NewReader(r)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return nil, ErrReadInput.Wrap(err).
			With(slog.String("source", "reader"))
	}

	return ParseString(ctx, name, string(data), opts...)
}

// ParseFile parses the template at path, naming it after the path.
func ParseFile(ctx context.Context, path string, opts ...Option) (*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrReadInput.Wrap(err).
			With(slog.String("path", path))
	}
	defer f.Close()

	return ParseReader(ctx, path, f, opts...)
}

// hashOptions encodes the execution options using gob and hashes with
// xxh3. The logger never enters the key: it has no effect on parse
// products. Environment entries are sorted first so map iteration order
// cannot perturb the hash.
func hashOptions(opts optionsKey) uint64 {
	var buf bytes.Buffer

	enc := gob.NewEncoder(&buf)

	_ = enc.Encode(opts.argv)
	_ = enc.Encode(opts.seed)
	_ = enc.Encode(opts.seeded)

	env := make([]string, 0, len(opts.processEnv))
	for k, v := range opts.processEnv {
		env = append(env, k+"="+v)
	}

	slices.Sort(env)

	_ = enc.Encode(env)

	return xxh3.Hash(buf.Bytes())
}

// parseStringCached parses a string with caching. Parses sharing both
// content and execution options share one cache entry.
func parseStringCached(
	ctx context.Context,
	name, source string,
	opts ...Option,
) (*Template, error) {
	var tmp Template

	applyDefaults(&tmp)
	applyOptions(&tmp, opts...)

	sourceHash := xxh3.Hash([]byte(source))
	cacheKey := strconv.FormatUint(sourceHash, 36) + ":" +
		strconv.FormatUint(hashOptions(tmp.opts), 36)

	entry := new(cacheState)
	value, cacheHit := globalCache.LoadOrStore(cacheKey, entry)

	state, ok := value.(*cacheState)
	if !ok {
		return nil, ErrReadInput.
			With(slog.String("issue", "invalid state type in cache"))
	}

	tmp.logger.TraceContext(
		ctx,
		"cache lookup",
		slog.String("source_hash", strconv.FormatUint(sourceHash, 16)),
		slog.Bool("cache_hit", cacheHit),
	)

	state.once.Do(func() {
		state.tmpl, state.err = parseString(ctx, name, source, opts...)
	})

	if state.err != nil {
		return nil, state.err
	}

	// Rebind the name so a cache hit under a different path reports
	// diagnostics against the caller's name.
	if state.tmpl.name != name {
		clone := *state.tmpl
		clone.name = name

		return &clone, nil
	}

	return state.tmpl, nil
}

// ClearCache removes all cached parse results.
// This is primarily useful for testing or when memory needs to be reclaimed.
func ClearCache() {
	globalCache = sync.Map{}
}
