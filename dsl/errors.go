package dsl

import (
	"fmt"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
)

// SyntaxError reports the first grammar violation found in a source text.
// Parsing stops at this error; no partial declaration list is returned.
type SyntaxError struct {
	// Rule is the grammar rule that was being matched, e.g. "relation".
	Rule string
	// Offset is the byte offset of the offending token.
	Offset int
	// Length is the byte length of the offending token (0 at end of input).
	Length int
	// Line and Column are 1-based and derived from Offset.
	Line   int
	Column int
	// EndLine and EndColumn locate Offset+Length the same way.
	EndLine   int
	EndColumn int
	// Found describes the offending token.
	Found string
	// Expected describes what the rule accepts at this point.
	Expected string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in %s at %d:%d: expected %s, found %s",
		e.Rule, e.Line, e.Column, e.Expected, e.Found)
}

// Range returns the offending token as an hcl.Range.
func (e *SyntaxError) Range(filename string) hcl.Range {
	start := hcl.Pos{Line: e.Line, Column: e.Column, Byte: e.Offset}
	end := hcl.Pos{Line: e.EndLine, Column: e.EndColumn, Byte: e.Offset + e.Length}
	if e.EndLine == 0 {
		end = start
	}
	return hcl.Range{Filename: filename, Start: start, End: end}
}

func newSyntaxError(src, rule string, offset, length int, found, expected string) *SyntaxError {
	start, end := Pos(src, offset), Pos(src, offset+length)
	return &SyntaxError{
		Rule:      rule,
		Offset:    offset,
		Length:    length,
		Line:      start.Line,
		Column:    start.Column,
		EndLine:   end.Line,
		EndColumn: end.Column,
		Found:     found,
		Expected:  expected,
	}
}

// Diagnostic converts the error for rendering with an hcl.DiagnosticWriter.
func (e *SyntaxError) Diagnostic(filename string) *hcl.Diagnostic {
	rng := e.Range(filename)
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  fmt.Sprintf("Invalid %s", e.Rule),
		Detail:   fmt.Sprintf("Expected %s, found %s.", e.Expected, e.Found),
		Subject:  &rng,
	}
}

// Pos converts a byte offset into a 1-based line/column position.
// Columns count characters, not bytes.
func Pos(src string, offset int) hcl.Pos {
	if offset > len(src) {
		offset = len(src)
	}
	line, col := 1, 1
	for i := 0; i < offset; {
		r, size := utf8.DecodeRuneInString(src[i:])
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		i += size
	}
	return hcl.Pos{Line: line, Column: col, Byte: offset}
}

// Range converts a Loc into an hcl.Range over src.
func Range(filename, src string, loc Loc) hcl.Range {
	return hcl.Range{
		Filename: filename,
		Start:    Pos(src, loc.Start),
		End:      Pos(src, loc.End),
	}
}
