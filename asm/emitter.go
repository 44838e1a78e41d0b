package asm

import (
	"encoding/binary"

	"github.com/Hdev-Group/eynos/x86"
)

// MaxCodeSize bounds the emitted code buffer (design §4.15: "capped at
// 16 KiB").
const MaxCodeSize = 16 * 1024

// Emit walks prog's text-section instructions in order, encoding each
// into the returned code buffer per the table in design §4.15, and
// walks the data-section definitions into the returned data buffer.
// Labels are resolved through syms. An instruction whose mnemonic or
// operand shape has no encoding emits a single NOP and appends an
// EmitError naming the input line (design §4.15, §7: "the assembler
// collects errors per line and proceeds").
func Emit(prog *Program, syms SymbolTable) (code, data []byte, errs []error) {
	for _, instr := range prog.Instructions {
		if instr.Section != SectionText {
			continue
		}
		before := len(code)
		enc, err := encodeInstr(instr, syms, uint32(before))
		if err != nil {
			errs = append(errs, err)
			code = append(code, x86.OpNop)
			continue
		}
		code = append(code, enc...)
		if len(code) > MaxCodeSize {
			errs = append(errs, &EmitError{Line: instr.Line, Reason: "code buffer overflow"})
			code = code[:MaxCodeSize]
			break
		}
	}

	for _, d := range prog.Data {
		v, err := parseNumber(d.Value)
		if err != nil {
			errs = append(errs, &EmitError{Line: d.Line, Reason: "bad data value: " + err.Error()})
			v = 0
		}
		switch d.Directive {
		case DB:
			data = append(data, byte(v))
		case DW:
			buf := make([]byte, 2)
			binary.LittleEndian.PutUint16(buf, uint16(v))
			data = append(data, buf...)
		case DD:
			buf := make([]byte, 4)
			binary.LittleEndian.PutUint32(buf, uint32(v))
			data = append(data, buf...)
		default:
			errs = append(errs, &EmitError{Line: d.Line, Reason: "unknown data directive"})
		}
	}

	return code, data, errs
}

// resolveOperand returns the absolute address a label operand names.
func resolveOperand(op Operand, syms SymbolTable) (uint32, error) {
	sym, ok := syms[op.Text]
	if !ok {
		return 0, &ResolveError{Name: op.Text, Reason: "undefined label"}
	}
	return sym.Address, nil
}

func le32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

// encodeInstr produces the byte encoding for one instruction, or an
// EmitError if its mnemonic/operand shape is outside design §4.15's
// subset. pc is the address, relative to the start of the code buffer,
// the instruction begins at: needed to compute PC-relative rel32/rel32
// offsets for jmp/jg/call (design §4.15: "target_absolute −
// pc_after_instruction").
func encodeInstr(instr *Instruction, syms SymbolTable, pc uint32) ([]byte, error) {
	ops := instr.Operands
	reg := func(op Operand) (x86.Reg32, bool) { return x86.RegByName(op.Text) }

	switch instr.Mnemonic {
	case "mov":
		if len(ops) == 2 && ops[0].Kind == OperandReg {
			r, ok := reg(ops[0])
			if !ok {
				break
			}
			switch ops[1].Kind {
			case OperandImm:
				return append([]byte{x86.MovRegImm32(r)}, le32(uint32(ops[1].Imm))...), nil
			case OperandLabel:
				addr, err := resolveOperand(ops[1], syms)
				if err != nil {
					return nil, err
				}
				return append([]byte{x86.MovRegImm32(r)}, le32(addr)...), nil
			case OperandReg:
				src, ok := reg(ops[1])
				if !ok {
					break
				}
				return []byte{x86.OpMovRegRegByte, byte(r), byte(src)}, nil
			}
		}

	case "add", "sub", "and", "or", "xor", "cmp":
		if len(ops) == 2 && ops[0].Kind == OperandReg && ops[1].Kind == OperandImm {
			r, ok := reg(ops[0])
			if !ok {
				break
			}
			ext := group1Ext(instr.Mnemonic)
			header := byte(ext<<4) | byte(r)
			return append([]byte{x86.OpGroup1Imm32, header}, le32(uint32(ops[1].Imm))...), nil
		}

	case "shl", "shr":
		if len(ops) == 2 && ops[0].Kind == OperandReg && ops[1].Kind == OperandImm {
			r, ok := reg(ops[0])
			if !ok {
				break
			}
			ext := x86.ExtShl
			if instr.Mnemonic == "shr" {
				ext = x86.ExtShr
			}
			header := byte(ext<<4) | byte(r)
			return []byte{x86.OpGroup2Imm8, header, byte(ops[1].Imm)}, nil
		}

	case "jmp", "call":
		if len(ops) == 1 && ops[0].Kind == OperandLabel {
			target, err := resolveOperand(ops[0], syms)
			if err != nil {
				return nil, err
			}
			op := byte(x86.OpJmpRel32)
			if instr.Mnemonic == "call" {
				op = x86.OpCallRel32
			}
			pcAfter := CodeBase + pc + 5
			rel := int32(target) - int32(pcAfter)
			return append([]byte{op}, le32(uint32(rel))...), nil
		}

	case "jg":
		if len(ops) == 1 && ops[0].Kind == OperandLabel {
			target, err := resolveOperand(ops[0], syms)
			if err != nil {
				return nil, err
			}
			pcAfter := CodeBase + pc + 6
			rel := int32(target) - int32(pcAfter)
			return append([]byte{x86.OpJgRel32[0], x86.OpJgRel32[1]}, le32(uint32(rel))...), nil
		}

	case "ret":
		if len(ops) == 0 {
			return []byte{x86.OpRet}, nil
		}

	case "int":
		if len(ops) == 1 && ops[0].Kind == OperandImm {
			return []byte{x86.OpInt, byte(ops[0].Imm)}, nil
		}

	case "push":
		if len(ops) == 1 {
			if ops[0].Kind == OperandReg {
				r, ok := reg(ops[0])
				if ok {
					return []byte{x86.PushReg(r)}, nil
				}
			}
			if ops[0].Kind == OperandImm {
				return append([]byte{x86.OpPushImm32}, le32(uint32(ops[0].Imm))...), nil
			}
		}

	case "pop":
		if len(ops) == 1 && ops[0].Kind == OperandReg {
			r, ok := reg(ops[0])
			if ok {
				return []byte{x86.PopReg(r)}, nil
			}
		}

	case "inc":
		if len(ops) == 1 && ops[0].Kind == OperandReg {
			r, ok := reg(ops[0])
			if ok {
				return []byte{x86.IncReg(r)}, nil
			}
		}

	case "dec":
		if len(ops) == 1 && ops[0].Kind == OperandReg {
			r, ok := reg(ops[0])
			if ok {
				return []byte{x86.DecReg(r)}, nil
			}
		}

	case "nop":
		if len(ops) == 0 {
			return []byte{x86.OpNop}, nil
		}
	case "hlt":
		if len(ops) == 0 {
			return []byte{x86.OpHlt}, nil
		}
	case "cli":
		if len(ops) == 0 {
			return []byte{x86.OpCli}, nil
		}
	case "sti":
		if len(ops) == 0 {
			return []byte{x86.OpSti}, nil
		}
	}

	return nil, &EmitError{Line: instr.Line, Reason: "unsupported instruction or operand shape: " + instr.Mnemonic}
}

func group1Ext(mnemonic string) int {
	switch mnemonic {
	case "add":
		return x86.ExtAdd
	case "or":
		return x86.ExtOr
	case "and":
		return x86.ExtAnd
	case "sub":
		return x86.ExtSub
	case "xor":
		return x86.ExtXor
	case "cmp":
		return x86.ExtCmp
	}
	return 0
}
