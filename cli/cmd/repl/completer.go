package repl

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/expr-lang/expr/builtin"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/pyt/tmpl"
)

// replCommands are the available colon-prefixed session commands.
var replCommands = []string{":help", ":vars", ":clear", ":quit"}

// isWordBoundary returns true if the rune is a word delimiter for completion
// purposes. This includes whitespace, the member-access dot, and expr-lang
// operator/punctuation characters.
func isWordBoundary(r rune) bool {
	switch r {
	case '.', ' ', '\t',
		'(', ')', '[', ']',
		'+', '-', '*', '/', '%',
		'<', '>', '=', '!',
		'&', '|', ',', '?', ';':
		return true
	}

	return false
}

// wordBounds returns the current word at the cursor position and its byte
// boundaries within input. The word is empty when the cursor sits on a
// boundary (after a space, between dots, start of line).
func wordBounds(input string, cursor int) (word string, start, end int) {
	if cursor > len(input) {
		cursor = len(input)
	}

	start = cursor

	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	end = cursor

	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// parentPath returns the dot-separated member-access chain leading up to
// the current word. For "x + path.b" with the word "b", the parent is
// "path". Returns "" for top-level words.
func parentPath(input string, wordStart int) string {
	prefix := strings.TrimRight(input[:wordStart], ".")
	if prefix == "" {
		return ""
	}

	end := len(prefix)
	pos := end

	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(prefix[:pos])
		if r == '.' {
			pos -= size

			continue
		}

		if isWordBoundary(r) {
			break
		}

		pos -= size
	}

	return strings.TrimSpace(prefix[pos:end])
}

// candidatesFor returns the valid completions for the given parent path.
// An empty parent yields the built-in names, session variables, and
// expr-lang builtins. A non-empty parent yields its member names.
func candidatesFor(vars map[string]any, parent string) []string {
	if parent != "" {
		// Session namespaces first, then the shared built-ins.
		if names := memberNames(vars, parent); names != nil {
			sort.Strings(names)

			return names
		}

		names := tmpl.BuiltinEnvLookup(parent)
		sort.Strings(names)

		return names
	}

	names := tmpl.BuiltinEnvKeys()

	for name := range vars {
		names = append(names, name)
	}

	for name := range builtin.Index {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// memberNames resolves a dotted path through session variables, returning
// the keys of the map it lands on, or nil when the path does not resolve
// to a map.
func memberNames(vars map[string]any, path string) []string {
	var node any = vars

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

// computeMatches calculates the fuzzy match results for the word at the
// cursor. When the word is empty at the top level it returns nil matches so
// the hint text stays visible; after a dot it returns all members so the
// user can browse.
func (m model) computeMatches() (
	matches fuzzy.Matches,
	wordStart, wordEnd int,
) {
	input := m.input.Value()
	cursor := m.input.Position()

	word, ws, we := wordBounds(input, cursor)
	wordStart, wordEnd = ws, we

	var candidates []string

	if strings.HasPrefix(strings.TrimSpace(input), ":") {
		word = strings.TrimSpace(input)
		wordStart, wordEnd = 0, len(input)
		candidates = replCommands
	} else {
		parent := parentPath(input, wordStart)
		candidates = candidatesFor(m.vars, parent)

		if word == "" {
			if parent == "" || len(candidates) == 0 {
				return nil, wordStart, wordEnd
			}

			matches = make(fuzzy.Matches, len(candidates))
			for i, c := range candidates {
				matches[i] = fuzzy.Match{Str: c, Index: i}
			}

			return matches, wordStart, wordEnd
		}
	}

	if len(candidates) == 0 {
		return nil, wordStart, wordEnd
	}

	return fuzzy.Find(word, candidates), wordStart, wordEnd
}

// renderCandidateBar builds the single-line completion bar, ellipsized to
// fit within the given terminal width. The selected candidate (when
// tabbing) uses the selected style.
func renderCandidateBar(
	matches fuzzy.Matches,
	suggIdx int,
	tabActive bool,
	width int,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	sepWidth := lipgloss.Width(sep)
	ellipsis := hintStyle.Render("...")
	ellipsisWidth := lipgloss.Width(ellipsis)

	var b strings.Builder

	used := 0

	for i, match := range matches {
		selected := tabActive && i == suggIdx
		rendered := renderCandidate(match, selected)
		entryWidth := lipgloss.Width(rendered)

		if i > 0 {
			entryWidth += sepWidth
		}

		if used+entryWidth+ellipsisWidth > width && i > 0 {
			b.WriteString(sep)
			b.WriteString(ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(rendered)

		used += entryWidth

		if i == len(matches)-1 {
			break
		}
	}

	return b.String()
}

// renderCandidate renders a single candidate with matched characters
// highlighted.
func renderCandidate(match fuzzy.Match, selected bool) string {
	baseStyle := suggestionStyle
	highlightStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("4")).
		Bold(true)

	if selected {
		baseStyle = selectedStyle
		highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4")).
			Bold(true)
	}

	matchSet := make(map[int]bool, len(match.MatchedIndexes))
	for _, idx := range match.MatchedIndexes {
		matchSet[idx] = true
	}

	var b strings.Builder

	for i, r := range match.Str {
		ch := string(r)
		if matchSet[i] {
			b.WriteString(highlightStyle.Render(ch))
		} else {
			b.WriteString(baseStyle.Render(ch))
		}
	}

	if _, ok := builtin.Index[match.Str]; ok {
		b.WriteString(baseStyle.Render("()"))
	}

	return b.String()
}
