package asm

import "strconv"

// Parser builds a Program from a token stream, one statement at a time
// (design §4.13).
type Parser struct {
	lex     *Lexer
	tok     Token
	section Section

	textIndex int // instructions seen so far in .text, for label positional index
	dataIndex int // data defs seen so far in .data, for label positional index
}

// NewParser returns a Parser ready to parse src.
func NewParser(src string) *Parser {
	p := &Parser{lex: NewLexer(src)}
	p.next()
	return p
}

func (p *Parser) next() {
	p.tok = p.lex.NextToken()
}

// Parse consumes the entire source and returns the resulting Program, or
// the first ParseError encountered.
func (p *Parser) Parse() (*Program, error) {
	prog := &Program{}
	for p.tok.Type != TokenEOF {
		if p.tok.Type == TokenNewline {
			p.next()
			continue
		}
		if err := p.parseLine(prog); err != nil {
			return nil, err
		}
	}
	return prog, nil
}

func (p *Parser) parseLine(prog *Program) error {
	switch p.tok.Type {
	case TokenSection:
		return p.parseSection()
	case TokenLabel:
		return p.parseLabel(prog)
	case TokenMnemonic:
		return p.parseInstruction(prog)
	case TokenDirective:
		return p.parseDirective(prog)
	default:
		return &ParseError{Line: p.tok.Line, Reason: "unexpected token starting a line"}
	}
}

// parseSection handles `section .text` / `section .data` (design §4.13).
// An unrecognised section name is a parse error rather than being
// silently ignored, since every later statement would otherwise be
// mis-attributed.
func (p *Parser) parseSection() error {
	line := p.tok.Line
	p.next() // consume "section"
	name := p.tok.Value
	switch name {
	case ".text":
		p.section = SectionText
	case ".data":
		p.section = SectionData
	default:
		return &ParseError{Line: line, Reason: "unknown section " + name}
	}
	p.next()
	return p.expectEOL(line)
}

func (p *Parser) parseLabel(prog *Program) error {
	line := p.tok.Line
	name := p.tok.Value
	p.next()

	index := p.textIndex
	if p.section == SectionData {
		index = p.dataIndex
	}
	prog.Labels = append(prog.Labels, &LabelDef{Name: name, Section: p.section, Index: index, Line: line})

	// A label may be followed by an instruction or a data definition on
	// the same line, or stand alone on its own line.
	if p.tok.Type == TokenNewline || p.tok.Type == TokenEOF {
		return p.expectEOL(line)
	}
	return p.parseLine(prog)
}

func (p *Parser) parseInstruction(prog *Program) error {
	line := p.tok.Line
	mnemonic := p.tok.Value
	p.next()

	operands, err := p.parseOperands()
	if err != nil {
		return err
	}
	instr := &Instruction{Mnemonic: mnemonic, Operands: operands, Section: p.section, Line: line}
	prog.Instructions = append(prog.Instructions, instr)
	if p.section == SectionText {
		p.textIndex++
	}
	return p.expectEOL(line)
}

// parseDirective handles `global name` (recognised but ignored, design
// §4.13) and `db`/`dw`/`dd value[, value...]` data definitions.
func (p *Parser) parseDirective(prog *Program) error {
	line := p.tok.Line
	name := p.tok.Value
	p.next()

	if name == "global" {
		if p.tok.Type == TokenIdent || p.tok.Type == TokenMnemonic || p.tok.Type == TokenRegister {
			p.next()
		}
		return p.expectEOL(line)
	}

	directive := Directive(name)
	for {
		if p.tok.Type != TokenNumber {
			return &ParseError{Line: line, Reason: name + " expects a numeric value"}
		}
		prog.Data = append(prog.Data, &DataDef{Directive: directive, Value: p.tok.Value, Line: line})
		if p.section == SectionData {
			p.dataIndex++
		}
		p.next()
		if p.tok.Type != TokenComma {
			break
		}
		p.next()
	}
	return p.expectEOL(line)
}

func (p *Parser) parseOperands() ([]Operand, error) {
	var ops []Operand
	for p.tok.Type != TokenNewline && p.tok.Type != TokenEOF && len(ops) < 2 {
		op, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		if p.tok.Type == TokenComma {
			p.next()
			continue
		}
		break
	}
	return ops, nil
}

func (p *Parser) parseOperand() (Operand, error) {
	line := p.tok.Line
	neg := false
	if p.tok.Type == TokenMinus {
		neg = true
		p.next()
	}
	switch p.tok.Type {
	case TokenRegister:
		name := p.tok.Value
		p.next()
		return Operand{Kind: OperandReg, Text: name}, nil
	case TokenNumber:
		v, err := parseNumber(p.tok.Value)
		if err != nil {
			return Operand{}, &ParseError{Line: line, Reason: err.Error()}
		}
		text := p.tok.Value
		if neg {
			v = -v
		}
		p.next()
		return Operand{Kind: OperandImm, Text: text, Imm: v}, nil
	case TokenLBracket:
		return p.parseMemOperand(line)
	case TokenIdent:
		name := p.tok.Value
		p.next()
		return Operand{Kind: OperandLabel, Text: name}, nil
	default:
		return Operand{}, &ParseError{Line: line, Reason: "expected a register, immediate, or label"}
	}
}

// parseMemOperand consumes a bracketed memory expression as one opaque
// operand. None of design §4.15's minimum encodings use a memory
// operand; the emitter reports OperandMem as unsupported rather than
// guessing at an addressing mode (design §4.15: "unknown operand shapes
// emit a single NOP").
func (p *Parser) parseMemOperand(line int) (Operand, error) {
	var text string
	p.next() // consume '['
	for p.tok.Type != TokenRBracket {
		if p.tok.Type == TokenNewline || p.tok.Type == TokenEOF {
			return Operand{}, &ParseError{Line: line, Reason: "unterminated memory operand"}
		}
		text += p.tok.Value
		p.next()
	}
	p.next() // consume ']'
	return Operand{Kind: OperandMem, Text: text}, nil
}

func (p *Parser) expectEOL(line int) error {
	if p.tok.Type != TokenNewline && p.tok.Type != TokenEOF {
		return &ParseError{Line: line, Reason: "unexpected trailing tokens"}
	}
	if p.tok.Type == TokenNewline {
		p.next()
	}
	return nil
}

func parseNumber(s string) (int64, error) {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}
