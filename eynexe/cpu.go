package eynexe

import (
	"encoding/binary"

	"github.com/Hdev-Group/eynos/x86"
)

// haltReturn is the sentinel return address the loader pushes before
// jumping to a program's entry point. A `ret` that pops this value ends
// the run instead of continuing execution (design §4.10 step 5, "call
// the entry point").
const haltReturn = 0xFFFFFFFF

// maxSteps bounds a single run so a program that never executes `ret`
// cannot hang the loader (design §4.10: loads are expected to return
// control, not run forever).
const maxSteps = 1_000_000

// ExitReason describes how a CPU.Run call ended.
type ExitReason int

const (
	ExitReturned ExitReason = iota
	ExitSyscall
	ExitStepLimit
)

// CPU is the minimal register machine that gives "call the entry point"
// real, testable semantics on a hosted Go build where jumping into raw
// machine code is not possible. It executes exactly the instruction
// subset design §4.15 defines, against one Process's memory.
type CPU struct {
	Regs [8]uint32
	EIP  uint32
	ZF   bool
	SF   bool

	proc *Process

	// LastSyscall is set when Run exits with ExitSyscall, so callers can
	// inspect eax (the syscall number) and argument registers.
	LastSyscall uint32
}

// NewCPU returns a CPU with esp initialised to the top of p's stack
// region and every other register zeroed.
func NewCPU(p *Process) *CPU {
	c := &CPU{proc: p}
	c.Regs[x86.ESP] = p.Regions.StackBase + StackRegionSize
	return c
}

func (c *CPU) readU32(addr uint32) (uint32, error) {
	if !c.proc.InRegion(addr, 4) {
		return 0, &SafetyError{Reason: "read outside process region", Offset: int(addr)}
	}
	return binary.LittleEndian.Uint32(c.proc.Mem[addr : addr+4]), nil
}

func (c *CPU) writeU32(addr, v uint32) error {
	if !c.proc.InRegion(addr, 4) {
		return &SafetyError{Reason: "write outside process region", Offset: int(addr)}
	}
	binary.LittleEndian.PutUint32(c.proc.Mem[addr:addr+4], v)
	return nil
}

func (c *CPU) push(v uint32) error {
	c.Regs[x86.ESP] -= 4
	return c.writeU32(c.Regs[x86.ESP], v)
}

func (c *CPU) pop() (uint32, error) {
	v, err := c.readU32(c.Regs[x86.ESP])
	if err != nil {
		return 0, err
	}
	c.Regs[x86.ESP] += 4
	return v, nil
}

func (c *CPU) fetch(n uint32) ([]byte, error) {
	start := c.proc.Regions.CodeBase + c.EIP
	if !c.proc.InRegion(start, n) {
		return nil, &SafetyError{Reason: "fetch outside code region", Offset: int(c.EIP)}
	}
	return c.proc.Mem[start : start+n], nil
}

func (c *CPU) setFlagsSub(a, b uint32) {
	r := a - b
	c.ZF = r == 0
	c.SF = int32(r) < 0
}

// Run calls into the entry point at eip and executes until a `ret` to
// haltReturn, an `int` syscall, or maxSteps is reached (design §4.10
// step 5). It returns the reason the run stopped.
func (c *CPU) Run(eip uint32) (ExitReason, error) {
	c.EIP = eip
	if err := c.push(haltReturn); err != nil {
		return 0, err
	}

	for step := 0; step < maxSteps; step++ {
		opByte, err := c.fetch(1)
		if err != nil {
			return 0, err
		}
		op := opByte[0]

		switch {
		case op >= 0xB8 && op <= 0xBF:
			r, _ := x86.RegFromMovOpcode(op, 0xB8)
			imm, err := c.fetch(5)
			if err != nil {
				return 0, err
			}
			c.Regs[r] = binary.LittleEndian.Uint32(imm[1:5])
			c.EIP += 5

		case op == x86.OpMovRegRegByte:
			operands, err := c.fetch(3)
			if err != nil {
				return 0, err
			}
			dst, src := operands[1], operands[2]
			if dst > 7 || src > 7 {
				return 0, &SafetyError{Reason: "bad register index", Offset: int(c.EIP)}
			}
			c.Regs[dst] = c.Regs[src]
			c.EIP += 3

		case op == x86.OpGroup1Imm32:
			header, err := c.fetch(2)
			if err != nil {
				return 0, err
			}
			ext, reg := header[1]>>4, header[1]&0x0F
			if reg > 7 {
				return 0, &SafetyError{Reason: "bad register index", Offset: int(c.EIP)}
			}
			imm, err := c.fetch(6)
			if err != nil {
				return 0, err
			}
			v := binary.LittleEndian.Uint32(imm[2:6])
			switch ext {
			case x86.ExtAdd:
				c.Regs[reg] += v
			case x86.ExtOr:
				c.Regs[reg] |= v
			case x86.ExtAnd:
				c.Regs[reg] &= v
			case x86.ExtSub:
				c.setFlagsSub(c.Regs[reg], v)
				c.Regs[reg] -= v
			case x86.ExtXor:
				c.Regs[reg] ^= v
			case x86.ExtCmp:
				c.setFlagsSub(c.Regs[reg], v)
			default:
				return 0, &SafetyError{Reason: "unknown group1 extension", Offset: int(c.EIP)}
			}
			c.EIP += 6

		case op == x86.OpGroup2Imm8:
			operands, err := c.fetch(3)
			if err != nil {
				return 0, err
			}
			ext, reg, sh := operands[1]>>4, operands[1]&0x0F, operands[2]
			if reg > 7 {
				return 0, &SafetyError{Reason: "bad register index", Offset: int(c.EIP)}
			}
			switch ext {
			case x86.ExtShl:
				c.Regs[reg] <<= sh
			case x86.ExtShr:
				c.Regs[reg] >>= sh
			default:
				return 0, &SafetyError{Reason: "unknown group2 extension", Offset: int(c.EIP)}
			}
			c.EIP += 3

		case op == x86.OpJmpRel32:
			instr, err := c.fetch(5)
			if err != nil {
				return 0, err
			}
			rel := int32(binary.LittleEndian.Uint32(instr[1:5]))
			c.EIP = uint32(int32(c.EIP) + 5 + rel)

		case op == x86.OpCallRel32:
			instr, err := c.fetch(5)
			if err != nil {
				return 0, err
			}
			rel := int32(binary.LittleEndian.Uint32(instr[1:5]))
			ret := c.EIP + 5
			if err := c.push(ret); err != nil {
				return 0, err
			}
			c.EIP = uint32(int32(c.EIP) + 5 + rel)

		case op == x86.OpRet:
			c.EIP += 1
			ret, err := c.pop()
			if err != nil {
				return 0, err
			}
			if ret == haltReturn {
				return ExitReturned, nil
			}
			c.EIP = ret

		case op == x86.OpInt:
			instr, err := c.fetch(2)
			if err != nil {
				return 0, err
			}
			c.LastSyscall = uint32(instr[1])
			c.EIP += 2
			return ExitSyscall, nil

		case op == x86.OpPushImm32:
			instr, err := c.fetch(5)
			if err != nil {
				return 0, err
			}
			v := binary.LittleEndian.Uint32(instr[1:5])
			if err := c.push(v); err != nil {
				return 0, err
			}
			c.EIP += 5

		case op >= 0x50 && op <= 0x57:
			r, _ := x86.RegFromMovOpcode(op, 0x50)
			if err := c.push(c.Regs[r]); err != nil {
				return 0, err
			}
			c.EIP += 1

		case op >= 0x58 && op <= 0x5F:
			r, _ := x86.RegFromMovOpcode(op, 0x58)
			v, err := c.pop()
			if err != nil {
				return 0, err
			}
			c.Regs[r] = v
			c.EIP += 1

		case op >= 0x40 && op <= 0x47:
			r, _ := x86.RegFromMovOpcode(op, 0x40)
			c.Regs[r]++
			c.EIP += 1

		case op >= 0x48 && op <= 0x4F:
			r, _ := x86.RegFromMovOpcode(op, 0x48)
			c.Regs[r]--
			c.EIP += 1

		case op == x86.OpNop:
			c.EIP += 1

		case op == x86.OpJgRel32[0]:
			instr, err := c.fetch(6)
			if err != nil {
				return 0, err
			}
			if instr[1] != x86.OpJgRel32[1] {
				return 0, &SafetyError{Reason: "unknown two-byte opcode", Offset: int(c.EIP)}
			}
			rel := int32(binary.LittleEndian.Uint32(instr[2:6]))
			if !c.ZF && !c.SF {
				c.EIP = uint32(int32(c.EIP) + 6 + rel)
			} else {
				c.EIP += 6
			}

		default:
			return 0, &SafetyError{Reason: "disallowed or unknown opcode", Offset: int(c.EIP)}
		}
	}
	return ExitStepLimit, nil
}
