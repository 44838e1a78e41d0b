package asm

import (
	"golang.org/x/xerrors"

	"github.com/Hdev-Group/eynos/eynexe"
)

// MaxOutputSize bounds the whole packaged EYN file, header included
// (design §4.16: "Total output size is capped at 16 KiB for safety").
const MaxOutputSize = 16 * 1024

// EntryLabel is the label the packager looks up for the program's entry
// point. Its absence is not an error: design §4.16 says "or zero if
// absent".
const EntryLabel = "_start"

// Package builds the entry point from syms, then wraps code and data
// into an EYN executable image via package eynexe (design §4.16, §6.2).
func Package(code, data []byte, syms SymbolTable) ([]byte, error) {
	var entry uint32
	if sym, ok := syms[EntryLabel]; ok && sym.Section == SectionText {
		entry = sym.Address - CodeBase
	}

	out, err := eynexe.Build(code, data, entry)
	if err != nil {
		return nil, xerrors.Errorf("packaging EYN executable: %w", err)
	}
	if len(out) > MaxOutputSize {
		return nil, xerrors.Errorf("packaged output %d bytes exceeds %d byte cap", len(out), MaxOutputSize)
	}
	return out, nil
}

// Result is everything Assemble produces: the packaged file (nil if
// emission failed fatally), any per-line errors the emitter collected
// along the way, and the sizes the caller may want to report.
type Result struct {
	File      []byte
	CodeSize  int
	DataSize  int
	EntryAddr uint32
	Errors    []error
}

// Assemble runs the full pipeline — lex, parse, resolve, emit, package —
// over src, matching design §6.4's `assemble` CLI contract: errors
// collect per line during emission and do not abort the run, but a
// lexical/parse/resolve failure or a fatal packaging failure does
// (design §7: "the assembler collects errors per line and proceeds...
// the final output file is still written only if emission completed
// without fatal I/O error").
func Assemble(src string) (*Result, error) {
	prog, err := NewParser(src).Parse()
	if err != nil {
		return nil, xerrors.Errorf("parsing source: %w", err)
	}

	syms, codeSize, dataSize, err := Resolve(prog)
	if err != nil {
		return nil, xerrors.Errorf("resolving symbols: %w", err)
	}

	code, data, emitErrs := Emit(prog, syms)

	file, err := Package(code, data, syms)
	if err != nil {
		return &Result{Errors: emitErrs}, xerrors.Errorf("packaging: %w", err)
	}

	var entry uint32
	if sym, ok := syms[EntryLabel]; ok && sym.Section == SectionText {
		entry = sym.Address - CodeBase
	}

	return &Result{
		File:      file,
		CodeSize:  codeSize,
		DataSize:  dataSize,
		EntryAddr: entry,
		Errors:    emitErrs,
	}, nil
}
