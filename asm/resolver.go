package asm

// CodeBase and DataBase are the fixed runtime load addresses design
// §4.14/§4.16 requires the emitter to use: labels resolve against them,
// so absolute-address forms (`mov r32, label`) need no relocation, while
// jmp/jg/call encode PC-relative offsets. The eynexe CPU runs code from
// offset 0 of the process memory, places data in its heap region, and
// never dereferences these absolute addresses.
const (
	CodeBase = 0x200000
	DataBase = CodeBase + 0x1000
)

// Symbol is one resolved label: the section it was defined in and its
// absolute address.
type Symbol struct {
	Section Section
	Address uint32
}

// SymbolTable maps label names to their resolved addresses (design
// §3.12: "linked list of {name, section, resolved address}" — modelled
// here as a map since resolution only ever needs lookup by name, never
// ordered traversal).
type SymbolTable map[string]Symbol

// instrLen estimates the encoded byte length of instr by mnemonic and
// operand shape, matching the encoding table in design §4.15 exactly so
// the two-pass resolver's running byte counts agree with what the
// emitter will actually produce.
func instrLen(instr *Instruction) (int, bool) {
	ops := instr.Operands
	switch instr.Mnemonic {
	case "mov":
		if len(ops) == 2 && ops[0].Kind == OperandReg {
			switch ops[1].Kind {
			case OperandImm, OperandLabel:
				return 5, true // B8+r imm32 / B8+r abs32
			case OperandReg:
				return 3, true // custom reg-reg form: opcode + dst + src
			}
		}
	case "add", "sub", "and", "or", "xor", "cmp":
		if len(ops) == 2 && ops[0].Kind == OperandReg && ops[1].Kind == OperandImm {
			return 6, true // 81 /digit imm32
		}
	case "shl", "shr":
		if len(ops) == 2 && ops[0].Kind == OperandReg && ops[1].Kind == OperandImm {
			return 3, true // C1 /digit imm8
		}
	case "jmp", "call":
		if len(ops) == 1 && ops[0].Kind == OperandLabel {
			return 5, true // E9/E8 rel32
		}
	case "jg":
		if len(ops) == 1 && ops[0].Kind == OperandLabel {
			return 6, true // 0F 8F rel32
		}
	case "ret":
		if len(ops) == 0 {
			return 1, true
		}
	case "int":
		if len(ops) == 1 && ops[0].Kind == OperandImm {
			return 2, true // CD ib
		}
	case "push":
		if len(ops) == 1 {
			if ops[0].Kind == OperandReg {
				return 1, true // 50+r
			}
			if ops[0].Kind == OperandImm {
				return 5, true // 68 imm32
			}
		}
	case "pop":
		if len(ops) == 1 && ops[0].Kind == OperandReg {
			return 1, true // 58+r
		}
	case "inc", "dec":
		if len(ops) == 1 && ops[0].Kind == OperandReg {
			return 1, true // 40+r / 48+r
		}
	case "nop", "hlt", "cli", "sti":
		if len(ops) == 0 {
			return 1, true
		}
	}
	return 1, false // unsupported shape: the emitter will fall back to a single NOP
}

func dataDefLen(d *DataDef) int {
	switch d.Directive {
	case DW:
		return 2
	case DD:
		return 4
	default: // DB
		return 1
	}
}

// Resolve walks prog once, assigning each label its absolute address
// (design §4.14, "two-pass"): text labels at CodeBase plus the running
// text-byte count measured at the label's positional index, data labels
// at DataBase plus the running data-byte count. It returns the symbol
// table together with the total code and data sizes the emitter will
// produce. A label defined more than once is a ResolveError.
func Resolve(prog *Program) (SymbolTable, int, int, error) {
	syms := make(SymbolTable)

	assign := func(section Section, index int, addr uint32) error {
		for _, l := range prog.Labels {
			if l.Section != section || l.Index != index {
				continue
			}
			if _, dup := syms[l.Name]; dup {
				return &ResolveError{Name: l.Name, Reason: "label defined more than once"}
			}
			syms[l.Name] = Symbol{Section: section, Address: addr}
		}
		return nil
	}

	textBytes := 0
	textIndex := 0
	for _, instr := range prog.Instructions {
		if instr.Section != SectionText {
			continue
		}
		if err := assign(SectionText, textIndex, CodeBase+uint32(textBytes)); err != nil {
			return nil, 0, 0, err
		}
		n, _ := instrLen(instr)
		textBytes += n
		textIndex++
	}
	if err := assign(SectionText, textIndex, CodeBase+uint32(textBytes)); err != nil {
		return nil, 0, 0, err
	}

	dataBytes := 0
	dataIndex := 0
	for _, d := range prog.Data {
		if err := assign(SectionData, dataIndex, DataBase+uint32(dataBytes)); err != nil {
			return nil, 0, 0, err
		}
		dataBytes += dataDefLen(d)
		dataIndex++
	}
	if err := assign(SectionData, dataIndex, DataBase+uint32(dataBytes)); err != nil {
		return nil, 0, 0, err
	}

	return syms, textBytes, dataBytes, nil
}
