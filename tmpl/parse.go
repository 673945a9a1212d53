package tmpl

import (
	"regexp"
	"strconv"
	"strings"
)

// Line-form patterns tested in priority order by the parser.
var (
	commentRegex       = regexp.MustCompile(`^\s*##`)
	verbatimStartRegex = regexp.MustCompile(`^\s*<%`)
	verbatimEndRegex   = regexp.MustCompile(`^\s*%>`)
	directiveRegex     = regexp.MustCompile(`^\s*%\s*(.*)$`)

	// Verbatim indentation helpers.
	leadSpaceRegex    = regexp.MustCompile(`^\s*`)
	blankCommentRegex = regexp.MustCompile(`^\s*$|^\s*#`)
	tripleQuoteRegex  = regexp.MustCompile(`"""|'''`)

	identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)
)

// parser is the single mutable state of one parse pass: an explicit cursor
// into the preprocessed line array, the next generated line number, and the
// line map under construction. Exactly one recursion frame advances the
// cursor at any time.
type parser struct {
	lines   []SourceLine
	pos     int
	genLine int
	lineMap LineMap
}

// parseTemplate runs one non-backtracking top-to-bottom parse over the
// preprocessed lines, returning the root sequence and the completed line
// map. Recursion depth equals control-nesting depth.
func parseTemplate(lines []SourceLine) (*Sequence, LineMap, error) {
	p := &parser{
		lines:   lines,
		genLine: 1,
		lineMap: LineMap{},
	}

	root := &Sequence{}

	if err := p.parseNodes(&root.Nodes, nil, false); err != nil {
		return nil, nil, err
	}

	return root, p.lineMap, nil
}

// next consumes and returns the line under the cursor.
func (p *parser) next() (SourceLine, bool) {
	if p.pos >= len(p.lines) {
		return SourceLine{}, false
	}

	sl := p.lines[p.pos]
	p.pos++

	return sl, true
}

// append adds one statement to cur, assigning its generated line number and
// recording a line-map entry when the statement originates from source.
// Synthetic statements (src == 0) still consume a generated line.
func (p *parser) append(cur *[]Node, st *StatementLine, src int) {
	st.GenLine = p.genLine
	st.SrcLine = src

	if src > 0 {
		p.lineMap.Add(p.genLine, src)
	}

	p.genLine++
	*cur = append(*cur, st)
}

// parseNodes parses the body of the open control sequence cs, or the root
// sequence when cs is nil, appending nodes to *cur. It returns after
// consuming the matching end keyword, or at end of input for the root.
func (p *parser) parseNodes(
	cur *[]Node,
	cs *ControlSequence,
	pypdef bool,
) error {
	for {
		sl, ok := p.next()
		if !ok {
			if cs != nil {
				return &ParseError{
					Msg: "Control block (" + cs.Keyword.String() +
						") not closed before end of input",
					Line:    cs.Blocks[0].Header.Text,
					LineNum: cs.HeaderSrcLine,
				}
			}

			return nil
		}

		if commentRegex.MatchString(sl.Text) || isPadLine(sl.Text) {
			continue
		}

		line := stripPadMarkers(sl.Text)

		// Verbatim block: consume until the end delimiter.
		if verbatimStartRegex.MatchString(line) {
			block, err := p.parseVerbatim(sl)
			if err != nil {
				return err
			}

			for _, v := range block {
				p.append(cur, v.stmt, v.src)
			}

			continue
		}

		word, stmt, form := matchDirective(line)

		switch form {
		case formStart:
			if err := p.parseControl(cur, sl, word, stmt, pypdef); err != nil {
				return err
			}

		case formMiddle:
			start, _ := middleStart(word)

			if cs == nil {
				return newParseError(
					"Found middle control word ("+word+") without starting word",
					sl,
				)
			}

			if start != cs.Keyword {
				return newParseError(
					"Middle control word ("+word+") doesn't match current block ('"+
						cs.Blocks[0].Header.Text+"', line "+
						strconv.Itoa(cs.HeaderSrcLine)+")",
					sl,
				)
			}

			block := &ControlBlock{Word: word}
			block.Header = &StatementLine{Text: stmt}
			block.Header.GenLine = p.genLine
			block.Header.SrcLine = sl.Number
			p.lineMap.Add(p.genLine, sl.Number)
			p.genLine++

			cs.Blocks = append(cs.Blocks, block)
			cur = &block.Nodes

		case formEnd:
			if cs == nil {
				return newParseError(
					"Found end control word (end"+word+") without starting word",
					sl,
				)
			}

			if word != cs.Keyword.String() {
				return newParseError(
					"End control word (end"+word+") doesn't match current block ('"+
						cs.Blocks[0].Header.Text+"', line "+
						strconv.Itoa(cs.HeaderSrcLine)+")",
					sl,
				)
			}

			// The end keyword generates no line of its own, but ending a
			// named template function emits the accumulator return.
			if cs.Keyword == KeywordPypdef {
				p.append(cur, &StatementLine{
					Text: `return '\n'.join(_OUTPUT)`,
					raw:  &rawStmt{kind: stmtSynthetic},
				}, 0)
			}

			return nil

		case formRaw:
			p.append(cur, &StatementLine{
				Text: stmt,
				raw:  &rawStmt{source: stmt},
			}, sl.Number)

		case formNone:
			p.append(cur, literalStatement(line, pypdef), sl.Number)
		}
	}
}

// parseControl opens a new control sequence for a start keyword, recurses
// to parse its body until the matching end keyword, and splices the
// completed sequence into cur as one node.
func (p *parser) parseControl(
	cur *[]Node,
	sl SourceLine,
	word, stmt string,
	pypdef bool,
) error {
	kw, _ := startKeyword(word)

	childPypdef := pypdef
	if kw == KeywordPypdef {
		childPypdef = true
		// The generated header declares an ordinary function.
		stmt = strings.Replace(stmt, "pypdef", "def", 1)
	}

	cs := &ControlSequence{
		Keyword:       kw,
		HeaderSrcLine: sl.Number,
		pypdef:        childPypdef,
	}

	block := &ControlBlock{Word: word}
	block.Header = &StatementLine{Text: stmt}
	block.Header.GenLine = p.genLine
	block.Header.SrcLine = sl.Number
	p.lineMap.Add(p.genLine, sl.Number)
	p.genLine++

	cs.Blocks = append(cs.Blocks, block)

	// A named template function initializes its accumulator before any
	// body statement runs.
	if kw == KeywordPypdef {
		p.append(&block.Nodes, &StatementLine{
			Text: "_OUTPUT=[]",
			raw:  &rawStmt{kind: stmtSynthetic},
		}, 0)
	}

	if err := p.parseNodes(&block.Nodes, cs, childPypdef); err != nil {
		return err
	}

	*cur = append(*cur, cs)

	return nil
}

// verbatimLine pairs a processed verbatim statement with its source line.
type verbatimLine struct {
	stmt *StatementLine
	src  int
}

// parseVerbatim consumes lines following a verbatim-start delimiter until
// the matching end delimiter, applying the common-indentation rules:
//
// The stripped prefix length comes from the first non-blank, non-comment
// line of the block. Lines inside an unterminated triple-quoted string
// literal (odd running parity of triple-quote markers) are kept verbatim:
// no prefix strip and no ambient indentation at generation time.
func (p *parser) parseVerbatim(start SourceLine) ([]verbatimLine, error) {
	type pending struct {
		text     string
		src      int
		noindent bool
	}

	var (
		block        []pending
		minSpaces    = -1
		inTriple     bool
		inTripleNext bool
	)

	for {
		sl, ok := p.next()
		if !ok {
			return nil, newParseError("Verbatim block not closed before end of input", start)
		}

		if verbatimEndRegex.MatchString(sl.Text) {
			break
		}

		line := stripPadMarkers(sl.Text)

		if len(tripleQuoteRegex.FindAllString(line, -1))%2 != 0 {
			inTripleNext = !inTripleNext
		}

		block = append(block, pending{
			text:     line,
			src:      sl.Number,
			noindent: inTriple,
		})

		if minSpaces < 0 && !blankCommentRegex.MatchString(line) {
			minSpaces = len(leadSpaceRegex.FindString(line))
		}

		inTriple = inTripleNext
	}

	out := make([]verbatimLine, 0, len(block))

	for _, pl := range block {
		text := pl.text
		if !pl.noindent && minSpaces > 0 {
			text = stripIndentPrefix(text, minSpaces)
		}

		out = append(out, verbatimLine{
			stmt: &StatementLine{
				Text:     text,
				Verbatim: pl.noindent,
				raw:      &rawStmt{source: text},
			},
			src: pl.src,
		})
	}

	return out, nil
}

// stripIndentPrefix removes up to n leading whitespace characters.
func stripIndentPrefix(s string, n int) string {
	i := 0
	for i < len(s) && i < n && (s[i] == ' ' || s[i] == '\t') {
		i++
	}

	return s[i:]
}

// directive forms returned by matchDirective.
type directiveForm int

const (
	formNone directiveForm = iota // literal text line
	formStart
	formMiddle
	formEnd
	formRaw
)

// matchDirective classifies a %-prefixed line. For start and middle forms,
// stmt is the header statement up to and including its final colon; for the
// raw form it is the remainder after the marker; for end forms, word is the
// keyword following "end".
func matchDirective(line string) (word, stmt string, form directiveForm) {
	m := directiveRegex.FindStringSubmatch(line)
	if m == nil {
		return "", "", formNone
	}

	rest := m[1]

	ident := identRegex.FindString(rest)
	if ident == "" {
		return "", rest, formRaw
	}

	// A keyword must stand alone as a token: "%format:" is a raw statement,
	// not a "for" block.
	boundary := len(ident) == len(rest) || !isIdentByte(rest[len(ident)])

	if boundary {
		if after, ok := strings.CutPrefix(ident, "end"); ok {
			if _, isStart := startKeyword(after); isStart {
				return after, "", formEnd
			}
		}

		if colon := strings.LastIndexByte(rest, ':'); colon >= 0 {
			header := rest[:colon+1]

			if _, ok := startKeyword(ident); ok {
				return ident, header, formStart
			}

			if _, ok := middleStart(ident); ok {
				return ident, header, formMiddle
			}
		}
	}

	return "", rest, formRaw
}

func isIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

