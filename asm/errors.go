package asm

import "fmt"

// ParseError reports a malformed assembly statement, with the source
// line it was found on.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Reason) }

// ResolveError reports a symbol the two-pass resolver could not settle:
// an undefined label, or a label defined more than once.
type ResolveError struct {
	Name   string
	Reason string
}

func (e *ResolveError) Error() string { return fmt.Sprintf("symbol %q: %s", e.Name, e.Reason) }

// EmitError reports an instruction the emitter has no encoding for, or
// whose operands don't fit the one encoding it has (design §4.15: the
// subset is fixed and anything outside it is refused, not guessed at).
type EmitError struct {
	Line   int
	Reason string
}

func (e *EmitError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Reason) }
