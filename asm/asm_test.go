package asm

import (
	"encoding/binary"
	"testing"

	"github.com/Hdev-Group/eynos/eynexe"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := NewParser(src).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return prog
}

func TestParserSplitsSectionsAndLabels(t *testing.T) {
	src := "section .text\n_start:\n  mov eax, 1\n  ret\n"
	prog := mustParse(t, src)
	if len(prog.Instructions) != 2 {
		t.Fatalf("got %d instructions, want 2", len(prog.Instructions))
	}
	if len(prog.Labels) != 1 || prog.Labels[0].Name != "_start" {
		t.Fatalf("got labels %+v, want one _start", prog.Labels)
	}
	if prog.Labels[0].Index != 0 {
		t.Fatalf("got label index %d, want 0", prog.Labels[0].Index)
	}
}

// TestLabelResolutionAfterThreeNops covers design §8's "label
// resolution" property: a .text label placed after three `nop`
// instructions resolves to code_base + 3.
func TestLabelResolutionAfterThreeNops(t *testing.T) {
	src := "section .text\nnop\nnop\nnop\nL:\nmov eax, L\n"
	prog := mustParse(t, src)
	syms, _, _, err := Resolve(prog)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := uint32(CodeBase + 3)
	if got := syms["L"].Address; got != want {
		t.Fatalf("got L at %#x, want %#x", got, want)
	}

	code, _, errs := Emit(prog, syms)
	if len(errs) != 0 {
		t.Fatalf("unexpected emit errors: %v", errs)
	}
	// mov eax, L is the fourth instruction, at code offset 3.
	if code[3] != 0xB8 {
		t.Fatalf("got opcode %#x at offset 3, want 0xB8", code[3])
	}
	got := binary.LittleEndian.Uint32(code[4:8])
	if got != want {
		t.Fatalf("got immediate %#x, want %#x", got, want)
	}
}

// TestJmpPCRelative covers design §8's "PC-relative correctness"
// property.
func TestJmpPCRelative(t *testing.T) {
	src := "section .text\njmp L\nL:\nret\n"
	prog := mustParse(t, src)
	syms, _, _, err := Resolve(prog)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	code, _, errs := Emit(prog, syms)
	if len(errs) != 0 {
		t.Fatalf("unexpected emit errors: %v", errs)
	}
	if code[0] != 0xE9 {
		t.Fatalf("got opcode %#x, want 0xE9", code[0])
	}
	rel := int32(binary.LittleEndian.Uint32(code[1:5]))
	labelAddr := int32(syms["L"].Address)
	wantRel := labelAddr - int32(CodeBase+5)
	if rel != wantRel {
		t.Fatalf("got rel %d, want %d", rel, wantRel)
	}
}

// TestAssembleEndToEndScenario assembles the design §8 scenario-4
// source and checks the header and entry point it asserts.
func TestAssembleEndToEndScenario(t *testing.T) {
	src := "section .text\n_start:\n  mov eax, 1\n  mov ebx, 0\n  int 0x80\n  ret\n"
	res, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected emit errors: %v", res.Errors)
	}
	if res.EntryAddr != 0 {
		t.Fatalf("got entry %#x, want 0", res.EntryAddr)
	}
	h, err := eynexe.ParseHeader(res.File)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	wantCodeSize := uint32(5 + 5 + 2 + 1) // two mov imm32, int 0x80, ret
	if h.CodeSize != wantCodeSize {
		t.Fatalf("got code_size %d, want %d", h.CodeSize, wantCodeSize)
	}
	if string(res.File[0:8]) != string([]byte{'E', 'Y', 'N', 0, 1, 0, 0, 0}) {
		t.Fatalf("got header prefix %v, want EYN\\0 01 00 00", res.File[0:8])
	}
}

func TestAssembleRunnableByLoader(t *testing.T) {
	// mov eax, 42; ret, matching design §8's "Entry jump" loader property.
	src := "section .text\n_start:\n  mov eax, 42\n  ret\n"
	res, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	sb := eynexe.NewSandbox()
	result, err := eynexe.Load(sb, res.File)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.Regs[0] != 42 {
		t.Fatalf("got eax=%d, want 42", result.Regs[0])
	}
}

func TestEmitUndefinedLabelError(t *testing.T) {
	prog := mustParse(t, "section .text\njmp nowhere\n")
	syms, _, _, err := Resolve(prog)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	_, _, errs := Emit(prog, syms)
	if len(errs) == 0 {
		t.Fatal("expected an emit error for an undefined label")
	}
}

func TestResolveDuplicateLabelError(t *testing.T) {
	prog := mustParse(t, "section .text\nL:\nnop\nL:\nnop\n")
	if _, _, _, err := Resolve(prog); err == nil {
		t.Fatal("expected Resolve to reject a duplicate label")
	}
}

func TestDataDirectivesWidths(t *testing.T) {
	src := "section .data\ndb 1\ndw 2\ndd 3\n"
	prog := mustParse(t, src)
	_, _, data, err := Resolve(prog)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if data != 1+2+4 {
		t.Fatalf("got data size %d, want 7", data)
	}
}

func TestGlobalDirectiveIgnored(t *testing.T) {
	src := "section .text\nglobal _start\n_start:\nret\n"
	prog := mustParse(t, src)
	if len(prog.Instructions) != 1 {
		t.Fatalf("got %d instructions, want 1 (global produced none)", len(prog.Instructions))
	}
}
