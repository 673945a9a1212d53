package tmpl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseString_CachesByContent(t *testing.T) {
	ClearCache()

	ctx := context.Background()
	source := "cached ${1 + 1}\n"

	first, err := ParseString(ctx, "same.pyt", source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	second, err := ParseString(ctx, "same.pyt", source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if first != second {
		t.Errorf("expected identical cached template for same name and source")
	}
}

func TestParseString_CacheRebindsName(t *testing.T) {
	ClearCache()

	ctx := context.Background()
	source := "${1 % 0}\n"

	first, err := ParseString(ctx, "first.pyt", source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	second, err := ParseString(ctx, "second.pyt", source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if first == second {
		t.Fatalf("cache hit under a new name must clone the template")
	}

	var buf strings.Builder

	execErr := second.Execute(ctx, &buf)
	if execErr == nil {
		t.Fatalf("expected runtime failure")
	}

	msg := second.Diagnose(execErr)
	if !strings.Contains(msg, "second.pyt") {
		t.Errorf("Diagnose = %q, want caller's name second.pyt", msg)
	}

	if strings.Contains(msg, "first.pyt") {
		t.Errorf("Diagnose = %q, leaked original cache name", msg)
	}
}

func TestParseString_OptionsKeyCache(t *testing.T) {
	ClearCache()

	ctx := context.Background()
	source := "args: ${argv}\n"

	first, err := ParseString(ctx, "opt.pyt", source, WithArgv([]string{"a"}))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	second, err := ParseString(ctx, "opt.pyt", source, WithArgv([]string{"b"}))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if first == second {
		t.Fatalf("differing options must not share a cache entry")
	}

	// A repeat parse with the same options is a cache hit.
	again, err := ParseString(ctx, "opt.pyt", source, WithArgv([]string{"b"}))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if again != second {
		t.Errorf("identical options must share one cache entry")
	}

	var buf strings.Builder
	if err := second.Execute(ctx, &buf); err != nil {
		t.Fatalf("execute error: %v", err)
	}

	if want := "args: ['b']\n"; buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestParseString_SeedZeroKeysDistinctly(t *testing.T) {
	ClearCache()

	ctx := context.Background()
	source := "${rand.int(10)}\n"

	seeded, err := ParseString(ctx, "seed.pyt", source, WithSeed(0))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	unseeded, err := ParseString(ctx, "seed.pyt", source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if seeded == unseeded {
		t.Errorf("an explicit zero seed must not collide with the unseeded default")
	}
}

func TestClearCache(t *testing.T) {
	ClearCache()

	ctx := context.Background()
	source := "stable\n"

	first, err := ParseString(ctx, "clear.pyt", source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	ClearCache()

	second, err := ParseString(ctx, "clear.pyt", source)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if first == second {
		t.Errorf("expected a fresh parse after ClearCache")
	}
}

func TestParseReader(t *testing.T) {
	ctx := context.Background()

	tp, err := ParseReader(ctx, "<stdin>", strings.NewReader("from reader\n"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	var buf strings.Builder
	if err := tp.Execute(ctx, &buf); err != nil {
		t.Fatalf("execute error: %v", err)
	}

	if want := "from reader\n"; buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestParseFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hello.pyt")

	if err := os.WriteFile(path, []byte("hello ${21 * 2}\n"), 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}

	tp, err := ParseFile(ctx, path)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	var buf strings.Builder
	if err := tp.Execute(ctx, &buf); err != nil {
		t.Fatalf("execute error: %v", err)
	}

	if want := "hello 42\n"; buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(context.Background(), filepath.Join(t.TempDir(), "absent.pyt"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
