package asm

import (
	"strings"

	"github.com/Hdev-Group/eynos/x86"
)

// isRegisterName reports whether name (case-insensitive) is any register
// the lexer recognises: the eight 32-bit GPRs, the eight 8-bit GPR
// aliases, or a segment register.
func isRegisterName(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := x86.RegByName(lower); ok {
		return true
	}
	for _, n := range x86.Reg8Names {
		if n == lower {
			return true
		}
	}
	for _, n := range x86.SegNames {
		if n == lower {
			return true
		}
	}
	return false
}
