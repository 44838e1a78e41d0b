package kernel

import (
	"testing"

	"github.com/Hdev-Group/eynos/asm"
	"github.com/Hdev-Group/eynos/blockdev"
	"github.com/Hdev-Group/eynos/handle"
)

func newTestKernel(t *testing.T, totalBlocks uint32) *Kernel {
	t.Helper()
	dev := blockdev.NewMem(int(totalBlocks))
	k := New(dev)
	if err := k.Format(0, 0, totalBlocks); err != nil {
		t.Fatalf("Format: %v", err)
	}
	return k
}

func TestFormatThenReadWriteEYN(t *testing.T) {
	k := newTestKernel(t, 256)

	if err := k.WriteEYN(0, "/greeting.txt", []byte("hello eynos")); err != nil {
		t.Fatalf("WriteEYN: %v", err)
	}
	got, err := k.ReadEYN(0, "/greeting.txt")
	if err != nil {
		t.Fatalf("ReadEYN: %v", err)
	}
	if string(got) != "hello eynos" {
		t.Fatalf("got %q, want %q", got, "hello eynos")
	}
}

func TestFSMissingVolumeErrors(t *testing.T) {
	dev := blockdev.NewMem(256)
	k := New(dev)
	if _, err := k.FS(0); err == nil {
		t.Fatal("expected an error for an unmounted drive")
	}
}

func TestFSCheckOnFormattedVolume(t *testing.T) {
	k := newTestKernel(t, 256)
	if err := k.FSCheck(0); err != nil {
		t.Fatalf("FSCheck: %v", err)
	}
}

// TestRunAssembledProgram exercises the full pipeline design §4.10
// names: assemble a program, write it to the mounted volume, then load
// and run it straight off the filesystem.
func TestRunAssembledProgram(t *testing.T) {
	k := newTestKernel(t, 256)

	res, err := asm.Assemble("section .text\n_start:\n  mov eax, 7\n  ret\n")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected assemble errors: %v", res.Errors)
	}

	if err := k.WriteEYN(0, "/seven.eyn", res.File); err != nil {
		t.Fatalf("WriteEYN: %v", err)
	}

	result, err := k.Run(0, "/seven.eyn")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Regs[0] != 7 {
		t.Fatalf("got eax=%d, want 7", result.Regs[0])
	}
}

func TestMountAfterFormatSeesSameData(t *testing.T) {
	dev := blockdev.NewMem(256)
	k1 := New(dev)
	if err := k1.Format(0, 0, 256); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if err := k1.WriteEYN(0, "/a.txt", []byte("persisted")); err != nil {
		t.Fatalf("WriteEYN: %v", err)
	}

	k2 := New(dev)
	if err := k2.Mount(0, 0); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	got, err := k2.ReadEYN(0, "/a.txt")
	if err != nil {
		t.Fatalf("ReadEYN: %v", err)
	}
	if string(got) != "persisted" {
		t.Fatalf("got %q, want %q", got, "persisted")
	}
}

func TestWriteEYNThroughHandleModeRead(t *testing.T) {
	k := newTestKernel(t, 256)
	if err := k.WriteEYN(0, "/ro.txt", []byte("data")); err != nil {
		t.Fatalf("WriteEYN: %v", err)
	}
	fd, err := k.Handles.Open(0, "/ro.txt", handle.ModeRead)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer k.Handles.Close(fd)
	buf := make([]byte, 4)
	n, err := k.Handles.Read(fd, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "data" {
		t.Fatalf("got %q, want %q", buf[:n], "data")
	}
}
