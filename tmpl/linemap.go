package tmpl

// LineMap records the correspondence from generated-line number to
// original-source-line number. It is built incrementally during parsing and
// consumed by the diagnostics bridge after execution. A generated line with
// no entry is synthetic: introduced by generation, not by literal source.
type LineMap map[int]int

// Add records that generated line gen was produced from source line src.
func (m LineMap) Add(gen, src int) {
	m[gen] = src
}

// Lookup resolves a generated line number to its original source line.
func (m LineMap) Lookup(gen int) (src int, ok bool) {
	src, ok = m[gen]

	return src, ok
}

// Len returns the number of mapped generated lines.
func (m LineMap) Len() int { return len(m) }
