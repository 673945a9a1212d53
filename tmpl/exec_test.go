package tmpl

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func render(t *testing.T, input string, opts ...Option) string {
	t.Helper()

	tp, err := ParseString(context.Background(), "test", input, opts...)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	var buf strings.Builder
	if err := tp.Execute(context.Background(), &buf); err != nil {
		t.Fatalf("execute error: %v", err)
	}

	return buf.String()
}

func TestExecute_Interpolation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text",
			input: "hello",
			want:  "hello\n",
		},
		{
			name:  "expression",
			input: "1 + 2 = ${1 + 2}",
			want:  "1 + 2 = 3\n",
		},
		{
			name:  "multiple expressions",
			input: "${1}${2}${3}",
			want:  "123\n",
		},
		{
			name:  "string expression",
			input: `${"a" + "b"}`,
			want:  "ab\n",
		},
		{
			name:  "boolean renders capitalized",
			input: "${1 > 0}",
			want:  "True\n",
		},
		{
			name:  "nil renders as None",
			input: "${nil}",
			want:  "None\n",
		},
		{
			name:  "literal percent survives",
			input: "100% of ${2}",
			want:  "100% of 2\n",
		},
		{
			name:  "multi-line expression",
			input: "${1 +\n  2}",
			want:  "3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(t, tt.input); got != tt.want {
				t.Errorf("rendered %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecute_Assignment(t *testing.T) {
	input := strings.Join([]string{
		"%x = 40",
		"%x += 2",
		"${x}",
	}, "\n")

	if got := render(t, input); got != "42\n" {
		t.Errorf("rendered %q", got)
	}
}

func TestExecute_AugmentedOps(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "subtract",
			input: "%x = 10\n%x -= 3\n${x}",
			want:  "7\n",
		},
		{
			name:  "multiply",
			input: "%x = 6\n%x *= 7\n${x}",
			want:  "42\n",
		},
		{
			name:  "divide always floats",
			input: "%x = 5\n%x /= 2\n${x}",
			want:  "2.5\n",
		},
		{
			name:  "string append",
			input: "%s = \"ab\"\n%s += \"cd\"\n${s}",
			want:  "abcd\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(t, tt.input); got != tt.want {
				t.Errorf("rendered %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecute_AugmentedUndefined(t *testing.T) {
	tp, err := ParseString(context.Background(), "test", "%x += 1")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	var buf strings.Builder

	err = tp.Execute(context.Background(), &buf)
	if err == nil {
		t.Fatal("expected execution error")
	}

	if !errors.Is(err, ErrUndefinedName) {
		t.Errorf("error = %v", err)
	}
}

func TestExecute_IfElse(t *testing.T) {
	input := strings.Join([]string{
		"%x = 0",
		"%if x > 0:",
		"positive",
		"%elif x < 0:",
		"negative",
		"%else:",
		"zero",
		"%endif",
	}, "\n")

	if got := render(t, input); got != "zero\n" {
		t.Errorf("rendered %q", got)
	}
}

func TestExecute_ForRange(t *testing.T) {
	input := strings.Join([]string{
		"%for i in range(3):",
		"item ${i}",
		"%endfor",
	}, "\n")

	want := "item 0\nitem 1\nitem 2\n"
	if got := render(t, input); got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestExecute_ForList(t *testing.T) {
	input := strings.Join([]string{
		`%for name in ["ada", "grace"]:`,
		"hi ${name}",
		"%endfor",
	}, "\n")

	want := "hi ada\nhi grace\n"
	if got := render(t, input); got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestExecute_ForMapSorted(t *testing.T) {
	input := strings.Join([]string{
		`%for k, v in {"b": 2, "a": 1, "c": 3}:`,
		"${k}=${v}",
		"%endfor",
	}, "\n")

	want := "a=1\nb=2\nc=3\n"
	if got := render(t, input); got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestExecute_ForString(t *testing.T) {
	input := strings.Join([]string{
		`%for c in "abc":`,
		"${c}",
		"%endfor",
	}, "\n")

	want := "a\nb\nc\n"
	if got := render(t, input); got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestExecute_ForUnpack(t *testing.T) {
	input := strings.Join([]string{
		`%for k, v in [["x", 1], ["y", 2]]:`,
		"${k}:${v}",
		"%endfor",
	}, "\n")

	want := "x:1\ny:2\n"
	if got := render(t, input); got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestExecute_WhileBreakContinue(t *testing.T) {
	input := strings.Join([]string{
		"%i = 0",
		"%while true:",
		"%i += 1",
		"%if i == 2:",
		"%continue",
		"%endif",
		"%if i > 3:",
		"%break",
		"%endif",
		"${i}",
		"%endwhile",
		"done",
	}, "\n")

	want := "1\n3\ndone\n"
	if got := render(t, input); got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestExecute_ForBreak(t *testing.T) {
	input := strings.Join([]string{
		"%for i in range(10):",
		"%if i == 2:",
		"%break",
		"%endif",
		"${i}",
		"%endfor",
	}, "\n")

	want := "0\n1\n"
	if got := render(t, input); got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestExecute_StrayBreak(t *testing.T) {
	tp, err := ParseString(context.Background(), "test", "%break")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	var buf strings.Builder

	err = tp.Execute(context.Background(), &buf)
	if err == nil {
		t.Fatal("expected execution error")
	}

	if !errors.Is(err, ErrLoopControl) {
		t.Errorf("error = %v", err)
	}
}

func TestExecute_Def(t *testing.T) {
	input := strings.Join([]string{
		"%def double(x):",
		"%return x * 2",
		"%enddef",
		"${double(21)}",
	}, "\n")

	if got := render(t, input); got != "42\n" {
		t.Errorf("rendered %q", got)
	}
}

func TestExecute_DefArgCount(t *testing.T) {
	input := strings.Join([]string{
		"%def double(x):",
		"%return x * 2",
		"%enddef",
		"${double(1, 2)}",
	}, "\n")

	tp, err := ParseString(context.Background(), "test", input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	var buf strings.Builder

	err = tp.Execute(context.Background(), &buf)
	if err == nil {
		t.Fatal("expected execution error")
	}

	if !strings.Contains(err.Error(), "argument count") {
		t.Errorf("error = %v", err)
	}
}

func TestExecute_Pypdef(t *testing.T) {
	input := strings.Join([]string{
		"%pypdef banner(title):",
		"== ${title} ==",
		"body",
		"%endpypdef",
		"${banner('hi')}",
	}, "\n")

	want := "== hi ==\nbody\n"
	if got := render(t, input); got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestExecute_PypdefDoesNotLeakOutput(t *testing.T) {
	// Defining a named template function emits nothing by itself.
	input := strings.Join([]string{
		"%pypdef hidden():",
		"never printed",
		"%endpypdef",
		"visible",
	}, "\n")

	if got := render(t, input); got != "visible\n" {
		t.Errorf("rendered %q", got)
	}
}

func TestExecute_TryExcept(t *testing.T) {
	input := strings.Join([]string{
		"%try:",
		"${1 % 0}",
		"%except:",
		"caught",
		"%endtry",
	}, "\n")

	if got := render(t, input); got != "caught\n" {
		t.Errorf("rendered %q", got)
	}
}

func TestExecute_TryFinally(t *testing.T) {
	input := strings.Join([]string{
		"%try:",
		"body",
		"%finally:",
		"cleanup",
		"%endtry",
	}, "\n")

	want := "body\ncleanup\n"
	if got := render(t, input); got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestExecute_TryExceptFinally(t *testing.T) {
	input := strings.Join([]string{
		"%try:",
		"${1 % 0}",
		"%except:",
		"caught",
		"%finally:",
		"cleanup",
		"%endtry",
	}, "\n")

	want := "caught\ncleanup\n"
	if got := render(t, input); got != want {
		t.Errorf("rendered %q, want %q", got, want)
	}
}

func TestExecute_With(t *testing.T) {
	input := strings.Join([]string{
		"%with 6 * 7 as answer:",
		"${answer}",
		"%endwith",
	}, "\n")

	if got := render(t, input); got != "42\n" {
		t.Errorf("rendered %q", got)
	}
}

func TestExecute_Class(t *testing.T) {
	input := strings.Join([]string{
		"%class config:",
		"%host = \"localhost\"",
		"%port = 8080",
		"%endclass",
		"${config.host}:${config.port}",
	}, "\n")

	if got := render(t, input); got != "localhost:8080\n" {
		t.Errorf("rendered %q", got)
	}
}

func TestExecute_Verbatim(t *testing.T) {
	input := strings.Join([]string{
		"<%",
		"  x = 2",
		"  y = x * 3",
		"%>",
		"${y}",
	}, "\n")

	if got := render(t, input); got != "6\n" {
		t.Errorf("rendered %q", got)
	}
}

func TestExecute_VerbatimHostConstructs(t *testing.T) {
	input := strings.Join([]string{
		"<%",
		`s = """`,
		"  raw line",
		`"""`,
		"t = 1",
		"%>",
		"done",
	}, "\n")

	tp, err := ParseString(context.Background(), "test", input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	// Generation never fails on a parsed tree, even when verbatim lines
	// hold constructs the expression engine cannot evaluate.
	if gen := tp.Generate(); !strings.Contains(gen, `s = """`) {
		t.Errorf("generated script missing verbatim text:\n%s", gen)
	}

	var buf strings.Builder

	execErr := tp.Execute(context.Background(), &buf)
	if execErr == nil {
		t.Fatal("expected runtime failure")
	}

	ee := &ExecError{}
	if !errors.As(execErr, &ee) {
		t.Fatalf("expected *ExecError, got %T", execErr)
	}

	if ee.Kind != KindRuntime {
		t.Errorf("kind = %v", ee.Kind)
	}

	msg := tp.Diagnose(execErr)
	if !strings.Contains(msg, `"test", line 2`) {
		t.Errorf("diagnosis = %q, want source line 2", msg)
	}

	if !strings.Contains(msg, `s = """`) {
		t.Errorf("diagnosis = %q, want offending source text", msg)
	}
}

func TestExecute_VerbatimUnreachedBranch(t *testing.T) {
	input := strings.Join([]string{
		"%if false:",
		"<%",
		`doc = """`,
		"unreachable",
		`"""`,
		"%>",
		"%endif",
		"ok ${1 + 1}",
	}, "\n")

	if got := render(t, input); got != "ok 2\n" {
		t.Errorf("rendered %q", got)
	}
}

func TestExecute_Argv(t *testing.T) {
	input := "${argv[0]}-${argv[1]}"

	got := render(t, input, WithArgv([]string{"a", "b"}))
	if got != "a-b\n" {
		t.Errorf("rendered %q", got)
	}
}

func TestExecute_SeedReproducible(t *testing.T) {
	input := "${rand.int(1000000)}"

	first := render(t, input, WithSeed(7))
	second := render(t, input, WithSeed(7))

	if first != second {
		t.Errorf("seeded runs differ: %q vs %q", first, second)
	}
}

func TestExecute_SeedZeroReproducible(t *testing.T) {
	input := "${rand.int(1000000)}"

	first := render(t, input, WithSeed(0))
	second := render(t, input, WithSeed(0))

	if first != second {
		t.Errorf("zero-seeded runs differ: %q vs %q", first, second)
	}
}

func TestExecute_ProcessEnv(t *testing.T) {
	input := `${env("GREETING")}`

	got := render(t, input, WithProcessEnv([]string{"GREETING=salve"}))
	if got != "salve\n" {
		t.Errorf("rendered %q", got)
	}
}

func TestDiagnose_MappedFailure(t *testing.T) {
	input := "ok\n${1 % 0}"

	tp, err := ParseString(context.Background(), "mapped.pyt", input)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	var buf strings.Builder

	execErr := tp.Execute(context.Background(), &buf)
	if execErr == nil {
		t.Fatal("expected execution error")
	}

	msg := tp.Diagnose(execErr)

	if !strings.Contains(msg, "runtime error") {
		t.Errorf("missing kind: %q", msg)
	}

	if !strings.Contains(msg, `File "mapped.pyt", line 2`) {
		t.Errorf("missing source attribution: %q", msg)
	}

	if !strings.Contains(msg, "${1 % 0}") {
		t.Errorf("missing source line text: %q", msg)
	}
}

func TestDiagnose_UnmappedFailure(t *testing.T) {
	tp, err := ParseString(context.Background(), "test", "ok")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	msg := tp.Diagnose(&ExecError{
		Kind:    KindRuntime,
		GenLine: 999,
		Err:     ErrExprEvaluate,
	})

	if !strings.Contains(msg, "generated line 999") {
		t.Errorf("missing generated line: %q", msg)
	}

	if !strings.Contains(msg, "source line indeterminate") {
		t.Errorf("missing indeterminate note: %q", msg)
	}
}

func TestDiagnose_SyntaxFailure(t *testing.T) {
	_, err := ParseString(context.Background(), "test", "${1 +}")
	if err == nil {
		t.Fatal("expected compile error")
	}

	ee := &ExecError{}
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExecError, got %T", err)
	}

	if ee.Kind != KindSyntax {
		t.Errorf("kind = %v", ee.Kind)
	}

	if ee.GenLine != 1 {
		t.Errorf("gen line = %d", ee.GenLine)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"zero int", 0, false},
		{"nonzero int", 3, true},
		{"empty string", "", false},
		{"string", "x", true},
		{"empty slice", []any{}, false},
		{"slice", []any{1}, true},
		{"empty map", map[string]any{}, false},
		{"map", map[string]any{"k": 1}, true},
		{"zero float", 0.0, false},
		{"struct", struct{}{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truthy(tt.v); got != tt.want {
				t.Errorf("truthy(%v) = %v", tt.v, got)
			}
		})
	}
}
