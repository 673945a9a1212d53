package tmpl

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"reflect"
	"sort"
	"strings"

	"github.com/expr-lang/expr/vm"
)

// sink is the single host capability exposed to executing templates: write
// one line of output. The base sink writes to the caller's destination;
// named template functions push accumulator sinks on top.
type sink interface {
	writeLine(string) error
}

// writerSink writes emission lines to an io.Writer.
type writerSink struct {
	w io.Writer
}

func (s *writerSink) writeLine(line string) error {
	_, err := io.WriteString(s.w, line+"\n")
	if err != nil {
		return ErrWriteOutput.Wrap(err)
	}

	return nil
}

// accSink collects emission lines for a named template function.
type accSink struct {
	lines []string
}

func (s *accSink) writeLine(line string) error {
	s.lines = append(s.lines, line)

	return nil
}

// ctrlKind is a non-error control-flow signal propagated up the node walk.
type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
)

// ctrl carries a control-flow signal with the generated line that raised
// it, so a signal escaping its legal context is still reported against the
// right source line.
type ctrl struct {
	kind    ctrlKind
	value   any
	genLine int
}

// execState is the runtime of one template execution: a scope chain for
// bound variables, a sink stack for output redirection, and the builtin
// environment shared by every expression evaluation.
type execState struct {
	t        *Template
	scopes   []map[string]any
	sinks    []sink
	builtins map[string]any
}

// run executes the compiled tree against w. Failures are returned as
// *ExecError attributed to a generated line.
func (t *Template) run(w io.Writer) error {
	es := &execState{
		t:        t,
		scopes:   []map[string]any{make(map[string]any)},
		sinks:    []sink{&writerSink{w: w}},
		builtins: t.builtinEnv(),
	}

	c, err := es.runNodes(t.root.Nodes)
	if err != nil {
		return err
	}

	if c.kind != ctrlNone {
		return &ExecError{
			Kind:    KindRuntime,
			GenLine: c.genLine,
			Err:     ErrLoopControl,
		}
	}

	return nil
}

func (es *execState) sink() sink { return es.sinks[len(es.sinks)-1] }

func (es *execState) pushScope() {
	es.scopes = append(es.scopes, make(map[string]any))
}

func (es *execState) popScope() {
	es.scopes = es.scopes[:len(es.scopes)-1]
}

// lookup resolves a name through the scope chain, innermost first.
func (es *execState) lookup(name string) (any, bool) {
	for i := len(es.scopes) - 1; i >= 0; i-- {
		if v, ok := es.scopes[i][name]; ok {
			return v, true
		}
	}

	return nil, false
}

// assign binds a name. An existing binding anywhere in the chain is
// updated in place; otherwise the name is created in the innermost scope.
func (es *execState) assign(name string, value any) {
	for i := len(es.scopes) - 1; i >= 0; i-- {
		if _, ok := es.scopes[i][name]; ok {
			es.scopes[i][name] = value

			return
		}
	}

	es.scopes[len(es.scopes)-1][name] = value
}

// env flattens builtins and the scope chain into the evaluation map passed
// to vm.Run, inner scopes shadowing outer ones.
func (es *execState) env() map[string]any {
	env := maps.Clone(es.builtins)

	for _, scope := range es.scopes {
		maps.Copy(env, scope)
	}

	return env
}

// eval runs a compiled program, attributing failure to genLine.
func (es *execState) eval(prog *vm.Program, genLine int) (any, error) {
	out, err := vm.Run(prog, es.env())
	if err != nil {
		return nil, asExecError(err, genLine)
	}

	return out, nil
}

// runNodes executes a node list in order, stopping at the first error or
// control-flow signal.
func (es *execState) runNodes(nodes []Node) (ctrl, error) {
	for _, n := range nodes {
		switch node := n.(type) {
		case *StatementLine:
			c, err := es.runStatement(node)
			if err != nil || c.kind != ctrlNone {
				return c, err
			}

		case *ControlSequence:
			c, err := es.runControl(node)
			if err != nil || c.kind != ctrlNone {
				return c, err
			}
		}
	}

	return ctrl{}, nil
}

// runStatement executes one statement line.
func (es *execState) runStatement(st *StatementLine) (ctrl, error) {
	switch {
	case st.emit != nil:
		return ctrl{}, es.runEmit(st)

	case st.raw != nil:
		return es.runRaw(st)
	}

	return ctrl{}, nil
}

// runEmit evaluates each embedded expression in marker order and writes the
// interpolated line to the current sink.
func (es *execState) runEmit(st *StatementLine) error {
	var buf strings.Builder

	for i, part := range st.emit.parts {
		buf.WriteString(part)

		if i < len(st.emit.programs) {
			v, err := es.eval(st.emit.programs[i], st.GenLine)
			if err != nil {
				return err
			}

			buf.WriteString(formatValue(v))
		}
	}

	if err := es.sink().writeLine(buf.String()); err != nil {
		return &ExecError{Kind: KindRuntime, GenLine: st.GenLine, Err: err}
	}

	return nil
}

func (es *execState) runRaw(st *StatementLine) (ctrl, error) {
	raw := st.raw

	if raw.compileErr != nil {
		return ctrl{}, &ExecError{
			Kind:    KindRuntime,
			GenLine: st.GenLine,
			Err:     raw.compileErr,
		}
	}

	switch raw.kind {
	case stmtPass, stmtSynthetic:
		return ctrl{}, nil

	case stmtBreak:
		return ctrl{kind: ctrlBreak, genLine: st.GenLine}, nil

	case stmtContinue:
		return ctrl{kind: ctrlContinue, genLine: st.GenLine}, nil

	case stmtReturn:
		var value any

		if raw.program != nil {
			v, err := es.eval(raw.program, st.GenLine)
			if err != nil {
				return ctrl{}, err
			}

			value = v
		}

		return ctrl{kind: ctrlReturn, value: value, genLine: st.GenLine}, nil

	case stmtAssign:
		return ctrl{}, es.runAssign(st)

	case stmtExpr:
		_, err := es.eval(raw.program, st.GenLine)

		return ctrl{}, err

	case stmtUnresolved:
		// Unreachable after a successful compile phase.
		return ctrl{}, &ExecError{
			Kind:    KindRuntime,
			GenLine: st.GenLine,
			Err:     ErrBadStatement.With(slog.String("statement", raw.source)),
		}

	default:
		return ctrl{}, &ExecError{
			Kind:    KindRuntime,
			GenLine: st.GenLine,
			Err:     ErrBadStatement.With(slog.String("statement", raw.source)),
		}
	}
}

func (es *execState) runAssign(st *StatementLine) error {
	raw := st.raw

	value, err := es.eval(raw.program, st.GenLine)
	if err != nil {
		return err
	}

	if raw.op != "=" {
		current, ok := es.lookup(raw.target)
		if !ok {
			return &ExecError{
				Kind:    KindRuntime,
				GenLine: st.GenLine,
				Err:     ErrUndefinedName.With(slog.String("name", raw.target)),
			}
		}

		combined, err := applyAugOp(current, raw.op, value)
		if err != nil {
			return &ExecError{Kind: KindRuntime, GenLine: st.GenLine, Err: err}
		}

		value = combined
	}

	es.assign(raw.target, value)

	return nil
}

// runControl dispatches on the closed keyword set.
func (es *execState) runControl(cs *ControlSequence) (ctrl, error) {
	switch cs.Keyword {
	case KeywordIf:
		return es.runIf(cs)

	case KeywordWhile:
		return es.runWhile(cs)

	case KeywordFor:
		return es.runFor(cs)

	case KeywordTry:
		return es.runTry(cs)

	case KeywordDef, KeywordPypdef:
		es.defineFunc(cs)

		return ctrl{}, nil

	case KeywordClass:
		return es.runClass(cs)

	case KeywordWith:
		return es.runWith(cs)

	case KeywordNone:
		return es.runNodes(cs.Blocks[0].Nodes)

	default:
		return ctrl{}, &ExecError{
			Kind:    KindRuntime,
			GenLine: cs.Blocks[0].Header.GenLine,
			Err:     ErrBadHeader.With(slog.String("keyword", cs.Keyword.String())),
		}
	}
}

func (es *execState) runIf(cs *ControlSequence) (ctrl, error) {
	for _, block := range cs.Blocks {
		if block.Word == "else" {
			return es.runNodes(block.Nodes)
		}

		cond, err := es.eval(block.clause.cond, block.Header.GenLine)
		if err != nil {
			return ctrl{}, err
		}

		if truthy(cond) {
			return es.runNodes(block.Nodes)
		}
	}

	return ctrl{}, nil
}

func (es *execState) runWhile(cs *ControlSequence) (ctrl, error) {
	block := cs.Blocks[0]

	for {
		cond, err := es.eval(block.clause.cond, block.Header.GenLine)
		if err != nil {
			return ctrl{}, err
		}

		if !truthy(cond) {
			return ctrl{}, nil
		}

		c, err := es.runNodes(block.Nodes)
		if err != nil {
			return ctrl{}, err
		}

		switch c.kind {
		case ctrlBreak:
			return ctrl{}, nil
		case ctrlReturn:
			return c, nil
		case ctrlNone, ctrlContinue:
		}
	}
}

func (es *execState) runFor(cs *ControlSequence) (ctrl, error) {
	block := cs.Blocks[0]

	iter, err := es.eval(block.clause.iter, block.Header.GenLine)
	if err != nil {
		return ctrl{}, err
	}

	items, err := iterItems(iter, len(block.clause.targets))
	if err != nil {
		return ctrl{}, &ExecError{
			Kind:    KindRuntime,
			GenLine: block.Header.GenLine,
			Err:     err,
		}
	}

	for _, item := range items {
		for i, target := range block.clause.targets {
			es.assign(target, item[i])
		}

		c, err := es.runNodes(block.Nodes)
		if err != nil {
			return ctrl{}, err
		}

		switch c.kind {
		case ctrlBreak:
			return ctrl{}, nil
		case ctrlReturn:
			return c, nil
		case ctrlNone, ctrlContinue:
		}
	}

	return ctrl{}, nil
}

// runTry executes the try clause, redirecting runtime failures to the
// except clause. The finally clause always runs; its error or signal wins
// only when the earlier clauses completed.
func (es *execState) runTry(cs *ControlSequence) (ctrl, error) {
	var except, finally *ControlBlock

	for _, block := range cs.Blocks[1:] {
		switch block.Word {
		case "except":
			if except == nil {
				except = block
			}

		case "finally":
			finally = block
		}
	}

	c, err := es.runNodes(cs.Blocks[0].Nodes)

	ee := &ExecError{}
	if err != nil && except != nil && errors.As(err, &ee) && ee.Kind == KindRuntime {
		c, err = es.runNodes(except.Nodes)
	}

	if finally != nil {
		fc, ferr := es.runNodes(finally.Nodes)
		if err == nil && c.kind == ctrlNone {
			c, err = fc, ferr
		}
	}

	return c, err
}

// defineFunc binds a def or pypdef block as a callable in the current
// scope. The callable is invoked from expressions; a pypdef call collects
// its emissions and returns them joined by newlines.
func (es *execState) defineFunc(cs *ControlSequence) {
	block := cs.Blocks[0]
	clause := block.clause
	accumulate := cs.Keyword == KeywordPypdef

	fn := func(args ...any) (any, error) {
		if len(args) != len(clause.params) {
			return nil, &ExecError{
				Kind:    KindRuntime,
				GenLine: block.Header.GenLine,
				Err: ErrArgCount.With(
					slog.String("function", clause.name),
					slog.Int("expected", len(clause.params)),
					slog.Int("got", len(args)),
				),
			}
		}

		es.pushScope()
		defer es.popScope()

		for i, param := range clause.params {
			es.scopes[len(es.scopes)-1][param] = args[i]
		}

		var acc *accSink

		if accumulate {
			acc = &accSink{}
			es.sinks = append(es.sinks, acc)

			defer func() { es.sinks = es.sinks[:len(es.sinks)-1] }()
		}

		c, err := es.runNodes(block.Nodes)
		if err != nil {
			return nil, err
		}

		if accumulate {
			return strings.Join(acc.lines, "\n"), nil
		}

		if c.kind == ctrlReturn {
			return c.value, nil
		}

		return nil, nil
	}

	es.assign(clause.name, fn)
}

// runClass executes the class body in a child scope and binds the class
// name to the resulting namespace.
func (es *execState) runClass(cs *ControlSequence) (ctrl, error) {
	block := cs.Blocks[0]

	es.pushScope()

	c, err := es.runNodes(block.Nodes)

	namespace := maps.Clone(es.scopes[len(es.scopes)-1])
	es.popScope()

	if err != nil || c.kind != ctrlNone {
		return c, err
	}

	es.assign(block.clause.name, namespace)

	return ctrl{}, nil
}

func (es *execState) runWith(cs *ControlSequence) (ctrl, error) {
	block := cs.Blocks[0]

	value, err := es.eval(block.clause.withExpr, block.Header.GenLine)
	if err != nil {
		return ctrl{}, err
	}

	if block.clause.withAs != "" {
		es.assign(block.clause.withAs, value)
	}

	return es.runNodes(block.Nodes)
}

// truthy implements Python-like truthiness for condition evaluation.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case uint64:
		return val != 0
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	default:
		return true
	}
}

// iterItems expands an iterable into per-iteration target bindings. Maps
// iterate keys in sorted order for determinism; two loop targets bind key
// and value. Strings iterate runes.
func iterItems(v any, targets int) ([][]any, error) {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([][]any, rv.Len())

		for i := range rv.Len() {
			item, err := bindTargets(rv.Index(i).Interface(), targets)
			if err != nil {
				return nil, err
			}

			items[i] = item
		}

		return items, nil

	case reflect.String:
		runes := []rune(rv.String())
		items := make([][]any, 0, len(runes))

		for _, r := range runes {
			item, err := bindTargets(string(r), targets)
			if err != nil {
				return nil, err
			}

			items = append(items, item)
		}

		return items, nil

	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return formatValue(keys[i].Interface()) < formatValue(keys[j].Interface())
		})

		items := make([][]any, 0, len(keys))

		for _, k := range keys {
			switch targets {
			case 2:
				items = append(items, []any{
					k.Interface(),
					rv.MapIndex(k).Interface(),
				})

			case 1:
				items = append(items, []any{k.Interface()})

			default:
				return nil, ErrNotIterable.With(
					slog.Int("targets", targets),
				)
			}
		}

		return items, nil

	default:
		return nil, ErrNotIterable.With(
			slog.String("type", fmt.Sprintf("%T", v)),
		)
	}
}

// bindTargets adapts one iteration element to the loop target count,
// unpacking pairs from nested sequences when two targets are declared.
func bindTargets(elem any, targets int) ([]any, error) {
	if targets == 1 {
		return []any{elem}, nil
	}

	rv := reflect.ValueOf(elem)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, ErrNotIterable.With(
			slog.String("issue", "cannot unpack element"),
			slog.String("type", fmt.Sprintf("%T", elem)),
		)
	}

	if rv.Len() != targets {
		return nil, ErrNotIterable.With(
			slog.String("issue", "unpack length mismatch"),
			slog.Int("targets", targets),
			slog.Int("elements", rv.Len()),
		)
	}

	item := make([]any, targets)
	for i := range targets {
		item[i] = rv.Index(i).Interface()
	}

	return item, nil
}

// applyAugOp evaluates an augmented assignment for the value types the
// runtime produces: integers, floats, strings, and slices.
func applyAugOp(current any, op string, value any) (any, error) {
	if op == "+=" {
		if s, ok := current.(string); ok {
			return s + formatValue(value), nil
		}

		if list, ok := current.([]any); ok {
			return append(list, value), nil
		}
	}

	lf, lok := toFloat(current)
	rf, rok := toFloat(value)

	if !lok || !rok {
		return nil, ErrBadStatement.With(
			slog.String("issue", "operands do not support "+op),
			slog.String("left", fmt.Sprintf("%T", current)),
			slog.String("right", fmt.Sprintf("%T", value)),
		)
	}

	var out float64

	switch op {
	case "+=":
		out = lf + rf
	case "-=":
		out = lf - rf
	case "*=":
		out = lf * rf
	case "/=":
		out = lf / rf
	default:
		return nil, ErrBadStatement.With(slog.String("op", op))
	}

	// Integer operands stay integers except under division.
	if op != "/=" && isIntKind(current) && isIntKind(value) {
		return int64(out), nil
	}

	return out, nil
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func isIntKind(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}
