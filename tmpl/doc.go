// Package tmpl implements the pyt template pipeline: preprocessing of
// embedded ${...} expressions, recursive-descent parsing of %-directive
// control blocks into a typed tree, projection of that tree to a
// Python-flavored script dump, and direct tree-walking execution with
// diagnostics mapped back to original source lines.
//
// The package is single-threaded: parsing is synchronous recursion over an
// explicit line cursor, and generation and execution are strictly
// sequential phases.
package tmpl
