package eynexe

import "github.com/Hdev-Group/eynos/x86"

// intSyscallOperand is the only byte allowed to follow CD once CD itself
// has been let through the screen (design §4.10 step 3: "CD 80 only").
const intSyscallOperand = 0x80

// Screen scans every byte of code in turn and refuses it if any byte is
// in x86.DisallowedOpcodes, with CD special-cased: CD is rejected unless
// the byte immediately following it is 0x80. Nothing is decoded — there
// is no instruction boundary tracking, no operand-length table, no
// notion of "this byte is part of an immediate so skip it". Decoding
// would let an immediate's low byte that happens to equal a disallowed
// opcode (e.g. F4 inside `mov eax, 0xF4`'s B8 F4 00 00 00 encoding) slip
// through unseen; design §4.10 step 3, its design note, and the glossary
// all require the raw byte stream itself be inspected (grounded on
// contains_dangerous_opcode in the original shell's run_command.c, a
// plain per-byte loop with the same CD special case).
func Screen(code []byte) error {
	for i := 0; i < len(code); i++ {
		b := code[i]
		if b != x86.OpInt && !x86.DisallowedOpcodes[b] {
			continue
		}
		if b == x86.OpInt {
			if i+1 >= len(code) || code[i+1] != intSyscallOperand {
				return &SafetyError{Reason: "int opcode with disallowed operand", Offset: i}
			}
			continue
		}
		return &SafetyError{Reason: "disallowed opcode", Offset: i}
	}
	return nil
}
