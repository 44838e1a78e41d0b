package asm

// OperandKind enumerates what an Operand holds (design §3.12: "register,
// immediate, label, memory").
type OperandKind int

const (
	OperandReg OperandKind = iota
	OperandImm
	OperandLabel
	OperandMem
)

// Operand is one instruction operand. Text carries the operand's
// original source text (a register name, a label name, or a raw memory
// expression); Imm carries the parsed value when Kind == OperandImm.
type Operand struct {
	Kind OperandKind
	Text string
	Imm  int64
}

// Section names the two sections a statement may fall under (design
// §4.13: "section directives switch the active section").
type Section int

const (
	SectionText Section = iota
	SectionData
)

// Instruction is one parsed assembly statement: a mnemonic, up to two
// operands, the section it was found in, and its source line (design
// §3.12).
type Instruction struct {
	Mnemonic string
	Operands []Operand
	Section  Section
	Line     int
}

// LabelDef names a label and the positional index it was found at
// within its section: the instruction index in .text, the data-def
// index in .data (design §3.12, §4.14).
type LabelDef struct {
	Name    string
	Section Section
	Index   int
	Line    int
}

// Directive enumerates the three data-definition directives design
// §4.13/§4.15 define.
type Directive string

const (
	DB Directive = "db"
	DW Directive = "dw"
	DD Directive = "dd"
)

// DataDef is one data-section value: a directive naming its width and
// the textual value to parse as an immediate (design §3.12, §4.15).
type DataDef struct {
	Directive Directive
	Value     string
	Line      int
}

// Program is the parsed form of one assembly source file: the three
// linked-list-equivalent collections design §3.12 names, in source
// order.
type Program struct {
	Instructions []*Instruction
	Labels       []*LabelDef
	Data         []*DataDef
}
