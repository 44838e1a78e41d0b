package eynexe

import (
	"testing"

	"github.com/Hdev-Group/eynos/x86"
)

func TestScreenRejectsHlt(t *testing.T) {
	code := []byte{x86.OpNop, x86.OpHlt, x86.OpRet}
	if err := Screen(code); err == nil {
		t.Fatal("expected Screen to reject hlt")
	}
}

func TestScreenAcceptsInt80(t *testing.T) {
	code := []byte{x86.OpInt, 0x80, x86.OpRet}
	if err := Screen(code); err != nil {
		t.Fatalf("Screen rejected int 0x80: %v", err)
	}
}

func TestScreenRejectsInt21(t *testing.T) {
	code := []byte{x86.OpInt, 0x21, x86.OpRet}
	if err := Screen(code); err == nil {
		t.Fatal("expected Screen to reject int 0x21")
	}
}

func TestScreenRejectsInOut(t *testing.T) {
	for _, op := range []byte{0xE4, 0xE5, 0xE6, 0xE7, 0xEC, 0xED, 0xEE, 0xEF} {
		if err := Screen([]byte{op}); err == nil {
			t.Fatalf("expected Screen to reject opcode %#x", op)
		}
	}
}

func TestBuildAndParseHeaderRoundTrip(t *testing.T) {
	code := []byte{x86.MovRegImm32(x86.EAX), 0x2A, 0x00, 0x00, 0x00, x86.OpRet}
	file, err := Build(code, nil, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h, err := ParseHeader(file)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.CodeSize != uint32(len(code)) {
		t.Fatalf("got code size %d, want %d", h.CodeSize, len(code))
	}
	if h.Version != CurrentVersion {
		t.Fatalf("got version %d, want %d", h.Version, CurrentVersion)
	}
}

func TestParseHeaderRejectsTruncated(t *testing.T) {
	if _, err := ParseHeader([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected ParseHeader to reject a too-short buffer")
	}
}

func TestParseHeaderRejectsBadMagic(t *testing.T) {
	file, _ := Build([]byte{x86.OpRet}, nil, 0)
	file[0] = 'X'
	if _, err := ParseHeader(file); err == nil {
		t.Fatal("expected ParseHeader to reject bad magic")
	}
}

func TestLoadMovImmAndReturn(t *testing.T) {
	// mov eax, 42; ret
	code := []byte{x86.MovRegImm32(x86.EAX), 0x2A, 0x00, 0x00, 0x00, x86.OpRet}
	file, err := Build(code, nil, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sb := NewSandbox()
	res, err := Load(sb, file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Reason != ExitReturned {
		t.Fatalf("got exit reason %v, want ExitReturned", res.Reason)
	}
	if res.Regs[x86.EAX] != 42 {
		t.Fatalf("got eax %d, want 42", res.Regs[x86.EAX])
	}
}

func TestLoadRejectsDisallowedOpcode(t *testing.T) {
	code := []byte{x86.OpHlt}
	file, err := Build(code, nil, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sb := NewSandbox()
	if _, err := Load(sb, file); err == nil {
		t.Fatal("expected Load to refuse a program containing hlt")
	}
}

func TestLoadReleasesSlotAfterReturn(t *testing.T) {
	code := []byte{x86.OpRet}
	file, err := Build(code, nil, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sb := NewSandbox()
	for i := 0; i < SlotCount*2; i++ {
		if _, err := Load(sb, file); err != nil {
			t.Fatalf("Load iteration %d: %v", i, err)
		}
	}
}

func TestLoadExhaustsSlots(t *testing.T) {
	// Hold every sandbox slot directly via acquire, so a Load of a
	// trivial ret program finds no free slot.
	sb := NewSandbox()
	code := []byte{x86.OpRet}
	file, _ := Build(code, nil, 0)

	held := make([]*Process, 0, SlotCount)
	for i := 0; i < SlotCount; i++ {
		p := sb.acquire()
		if p == nil {
			t.Fatalf("acquire %d returned nil before slots exhausted", i)
		}
		held = append(held, p)
	}
	if _, err := Load(sb, file); err == nil {
		t.Fatal("expected Load to fail when all slots are held")
	}
	for _, p := range held {
		sb.release(p)
	}
}

func TestLoadRejectsOversizedCode(t *testing.T) {
	code := make([]byte, CodeRegionSize+1)
	for i := range code {
		code[i] = x86.OpNop
	}
	file, err := Build(code, nil, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sb := NewSandbox()
	if _, err := Load(sb, file); err == nil {
		t.Fatal("expected Load to refuse oversized code")
	}
}

func TestCPUArithmeticAndConditionalJump(t *testing.T) {
	// mov eax, 10
	// sub eax, 3      -> eax=7, ZF=0, SF=0 so jg taken
	// jg +5           -> skip the next instruction (mov eax, 999)
	// mov eax, 999 (5 bytes, skipped)
	// ret
	code := []byte{}
	code = append(code, x86.MovRegImm32(x86.EAX), 0x0A, 0x00, 0x00, 0x00)
	code = append(code, x86.OpGroup1Imm32, (x86.ExtSub<<4)|byte(x86.EAX), 0x03, 0x00, 0x00, 0x00)
	code = append(code, x86.OpJgRel32[0], x86.OpJgRel32[1], 0x05, 0x00, 0x00, 0x00)
	code = append(code, x86.MovRegImm32(x86.EAX), 0xE7, 0x03, 0x00, 0x00)
	code = append(code, x86.OpRet)

	file, err := Build(code, nil, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sb := NewSandbox()
	res, err := Load(sb, file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Regs[x86.EAX] != 7 {
		t.Fatalf("got eax %d, want 7 (jg should have skipped the mov 999)", res.Regs[x86.EAX])
	}
}

func TestCPUSyscallExit(t *testing.T) {
	// mov eax, 1; int 0x80
	code := []byte{x86.MovRegImm32(x86.EAX), 0x01, 0x00, 0x00, 0x00, x86.OpInt, 0x80}
	file, err := Build(code, nil, 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sb := NewSandbox()
	res, err := Load(sb, file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Reason != ExitSyscall {
		t.Fatalf("got exit reason %v, want ExitSyscall", res.Reason)
	}
	if res.Regs[x86.EAX] != 1 {
		t.Fatalf("got eax %d, want 1", res.Regs[x86.EAX])
	}
}
