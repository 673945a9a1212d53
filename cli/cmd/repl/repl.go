// Package repl implements the interactive expression session. The session
// evaluates expressions against the same built-in environment templates
// see, and assignments persist as session variables for later expressions.
package repl

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/expr-lang/expr"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/pyt/log"
	"github.com/ardnew/pyt/tmpl"
)

const evalPrompt = "➜ "

func helpMessage() string {
	return `
: Commands:

  :help     Print this cruft
  :vars     List session variables
  :clear    Clear screen
  :quit     Exit session

Usage:
  Type an expression to evaluate it
  Assignments (name = expr) persist for later expressions
  Completions appear automatically as you type
  Press Tab / Shift-Tab to cycle through candidates
  Press Space to accept the current candidate
  Use Up/Down arrows for history navigation
  Press Ctrl+C on empty line or Ctrl+D to exit
`
}

// Styles.
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	inputStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	resultStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	selectedStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4"))
)

// assignRegex matches a single-target session assignment. A leading "=" in
// the value position means the input was a comparison, not an assignment.
var assignRegex = regexp.MustCompile(`^([A-Za-z_]\w*)\s*=\s*([^=].*)$`)

// formatCommand formats the echo line with prompt and input styled.
func formatCommand(input string) string {
	return promptStyle.Render(evalPrompt) + inputStyle.Render(input)
}

// model is the Bubble Tea model for the session.
type model struct {
	ctxFunc      func() context.Context
	input        textinput.Model
	base         map[string]any // built-in environment, shared by every eval
	vars         map[string]any // session variables layered over base
	logger       log.Logger
	history      *History
	historyIdx   int
	matches      fuzzy.Matches
	wordStart    int
	wordEnd      int
	suggIdx      int
	tabActive    bool
	preTabText   string
	preTabCursor int
	width        int
	quitting     bool
}

// Run starts the interactive session. Session history persists under
// cacheDir across invocations.
func Run(
	ctx context.Context,
	cacheDir string,
	logger log.Logger,
	opts ...tmpl.Option,
) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	logger.TraceContext(
		ctx,
		"repl start",
		slog.String("cache_dir", cacheDir),
	)

	history := NewHistory(filepath.Join(cacheDir, baseHistory))
	if err := history.Load(); err != nil {
		fmt.Printf("Warning: could not load history: %v\n", err)
	}

	logger.TraceContext(
		ctx,
		"repl history loaded",
		slog.Int("entry_count", history.Len()),
	)

	m := newModel(ctx, history, logger, opts...)

	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err = p.Run()

	return err
}

const defaultWidth = 80

func newModel(
	ctx context.Context,
	history *History,
	logger log.Logger,
	opts ...tmpl.Option,
) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(evalPrompt)
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = defaultWidth

	return model{
		ctxFunc:    func() context.Context { return ctx },
		input:      ti,
		base:       tmpl.BuiltinEnv(opts...),
		vars:       map[string]any{},
		logger:     logger,
		history:    history,
		historyIdx: history.Len(),
		width:      defaultWidth,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - len(evalPrompt) - 2

		return m, nil
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.input.View())
	b.WriteString("\n")

	input := m.input.Value()

	switch {
	case m.historyIdx < m.history.Len():
		// Show history position indicator.
		pos := m.historyIdx + 1
		hint := fmt.Sprintf("%s/%d",
			lipgloss.NewStyle().Bold(true).Render(strconv.Itoa(pos)),
			m.history.Len())
		b.WriteString(hintStyle.Render(hint))
		b.WriteString("\n")

	case strings.TrimSpace(input) == "":
		b.WriteString(hintStyle.Render(
			"Type an expression, or :help for commands"))
		b.WriteString("\n")

	case len(m.matches) > 0:
		b.WriteString(renderCandidateBar(
			m.matches, m.suggIdx, m.tabActive, m.width,
		))
		b.WriteString("\n")

	default:
		b.WriteString("\n")
	}

	return b.String()
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	m.logger.TraceContext(
		m.ctxFunc(),
		"repl keypress",
		slog.String("key", msg.String()),
	)

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		m.input.SetValue("")
		m.tabActive = false
		m.historyIdx = m.history.Len()
		refreshMatches(&m, false)

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		if !m.tabActive || len(m.matches) == 0 {
			return m.executeInput()
		}
		// Lock in the current tab candidate without executing.
		m.tabActive = false
		refreshMatches(&m, true)

		return m, nil

	case tea.KeyTab:
		return m.handleTab(1)

	case tea.KeyShiftTab:
		return m.handleTab(-1)

	case tea.KeyUp:
		return m.historyPrev()

	case tea.KeyDown:
		return m.historyNext()

	case tea.KeyEsc:
		if m.tabActive {
			m.tabActive = false
			m.input.SetValue(m.preTabText)
			m.input.SetCursor(m.preTabCursor)
			refreshMatches(&m, false)
		}

		return m, nil

	case tea.KeyRunes:
		// Space is a "breaking" key while tab-cycling.
		if m.tabActive && msg.String() == " " {
			m.tabActive = false
		}

		var cmd tea.Cmd

		m.historyIdx = m.history.Len()
		m.input, cmd = m.input.Update(msg)
		refreshMatches(&m, true)

		return m, cmd
	}

	// Backspace, delete, cursor movement. Recompute matches without
	// auto-confirm so the user can freely edit.
	var cmd tea.Cmd

	m.tabActive = false
	m.historyIdx = m.history.Len()
	m.input, cmd = m.input.Update(msg)
	refreshMatches(&m, false)

	return m, cmd
}

// handleTab cycles through completion candidates in the given direction.
func (m model) handleTab(dir int) (model, tea.Cmd) {
	if len(m.matches) == 0 {
		return m, nil
	}

	// Single candidate: complete and confirm immediately.
	if len(m.matches) == 1 {
		replaceCurrentWord(&m, m.matches[0].Str)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil

		return m, nil
	}

	if m.tabActive {
		m.suggIdx += dir
		if m.suggIdx >= len(m.matches) {
			m.suggIdx = 0
		} else if m.suggIdx < 0 {
			m.suggIdx = len(m.matches) - 1
		}
	} else {
		m.tabActive = true
		m.preTabText = m.input.Value()
		m.preTabCursor = m.input.Position()

		m.suggIdx = 0
		if dir < 0 {
			m.suggIdx = len(m.matches) - 1
		}
	}

	replaceCurrentWord(&m, m.matches[m.suggIdx].Str)

	return m, nil
}

// replaceCurrentWord replaces the current word boundaries in the input with
// the given replacement text and repositions the cursor.
func replaceCurrentWord(m *model, replacement string) {
	input := m.input.Value()
	newInput := input[:m.wordStart] + replacement + input[m.wordEnd:]
	newCursor := m.wordStart + len(replacement)

	m.input.SetValue(newInput)
	m.input.SetCursor(newCursor)

	m.wordEnd = newCursor
}

// refreshMatches recomputes fuzzy matches for the current input state.
// When autoConfirm is true and the typed word already equals the sole
// candidate, the completion is confirmed in place.
func refreshMatches(m *model, autoConfirm bool) {
	m.matches, m.wordStart, m.wordEnd = m.computeMatches()

	if !m.tabActive {
		m.suggIdx = -1
	}

	if !autoConfirm || len(m.matches) != 1 {
		return
	}

	candidate := m.matches[0].Str
	word := m.input.Value()[m.wordStart:m.wordEnd]

	if word == candidate {
		replaceCurrentWord(m, candidate)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil
	}
}

func (m model) executeInput() (model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	if input == "" {
		return m, nil
	}

	m.input.SetValue("")

	_, _ = m.history.Write(input)
	m.historyIdx = m.history.Len()

	if strings.HasPrefix(input, ":") {
		return m.executeCommand(input)
	}

	m.logger.TraceContext(
		m.ctxFunc(),
		"repl eval",
		slog.String("input", input),
	)

	echoCmd := tea.Println(formatCommand(input))

	name, result, err := m.evaluate(input)
	if err != nil {
		return m, tea.Sequence(
			echoCmd,
			tea.Println(errorStyle.Render("error: "+err.Error())),
		)
	}

	rendered := tmpl.FormatValue(result)
	if name != "" {
		rendered = name + " = " + rendered
	}

	return m, tea.Sequence(echoCmd, tea.Println(resultStyle.Render(rendered)))
}

// evaluate runs one line of input. An assignment binds its result as a
// session variable and returns the bound name; a bare expression returns
// an empty name.
func (m model) evaluate(input string) (name string, result any, err error) {
	src := input

	if match := assignRegex.FindStringSubmatch(input); match != nil {
		name = match[1]
		src = strings.TrimSpace(match[2])
	}

	env := maps.Clone(m.base)
	maps.Copy(env, m.vars)

	result, err = expr.Eval(src, env)
	if err != nil {
		return "", nil, err
	}

	if name != "" {
		m.vars[name] = result
	}

	return name, result, nil
}

func (m model) executeCommand(input string) (model, tea.Cmd) {
	echoCmd := tea.Println(formatCommand(input))

	m.logger.TraceContext(
		m.ctxFunc(),
		"repl command",
		slog.String("input", input),
	)

	switch strings.TrimPrefix(input, ":") {
	case "q", "quit", "exit":
		m.quitting = true

		return m, tea.Sequence(echoCmd, tea.Quit)

	case "h", "help":
		return m, tea.Sequence(echoCmd, tea.Println(helpMessage()))

	case "v", "vars":
		return m, tea.Sequence(echoCmd, tea.Println(m.listVars()))

	case "c", "clear":
		return m, tea.ClearScreen

	default:
		return m, tea.Println(
			errorStyle.Render("Unknown command: " + input + " (try :help)"),
		)
	}
}

// listVars renders the session variables, sorted by name.
func (m model) listVars() string {
	if len(m.vars) == 0 {
		return hintStyle.Render("no session variables")
	}

	names := make([]string, 0, len(m.vars))
	for name := range m.vars {
		names = append(names, name)
	}

	sort.Strings(names)

	var b strings.Builder

	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}

		b.WriteString(resultStyle.Render(name))
		b.WriteString(hintStyle.Render(" = "))
		b.WriteString(tmpl.FormatValue(m.vars[name]))
	}

	return b.String()
}

func (m model) historyPrev() (model, tea.Cmd) {
	if m.historyIdx > 0 {
		m.historyIdx--

		if line, err := m.history.GetLine(m.historyIdx); err == nil {
			m.input.SetValue(line)
			m.input.SetCursor(len(line))
			refreshMatches(&m, false)
		}
	}

	return m, nil
}

func (m model) historyNext() (model, tea.Cmd) {
	if m.historyIdx < m.history.Len()-1 {
		m.historyIdx++

		if line, err := m.history.GetLine(m.historyIdx); err == nil {
			m.input.SetValue(line)
			m.input.SetCursor(len(line))
			refreshMatches(&m, false)
		}
	} else {
		m.historyIdx = m.history.Len()
		m.input.SetValue("")
		refreshMatches(&m, false)
	}

	return m, nil
}
