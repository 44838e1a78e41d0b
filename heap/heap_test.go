package heap

import (
	"testing"
)

func TestAllocFreeBalance(t *testing.T) {
	a := New(4096)
	var ptrs []uint32
	for i := 0; i < 10; i++ {
		p, ok := a.Alloc(32)
		if !ok {
			t.Fatalf("alloc %d failed", i)
		}
		ptrs = append(ptrs, p)
	}
	for _, p := range ptrs {
		a.Free(p)
	}
	// After freeing everything in order, no block in the chain is still
	// used and the chain still covers the whole heap. Coalescing merges a
	// freed block only with the free block right after it, so freeing in
	// order merges just the last allocation into the trailing free space.
	var total uint32
	for off := uint32(0); off != sentinelNone; off = a.readNext(off) {
		if a.readUsedMagic(off)&usedBit != 0 {
			t.Fatalf("block at %d still used after freeing everything", off)
		}
		total += a.readSize(off)
	}
	if got, want := total, a.Size(); got != want {
		t.Fatalf("got chain size %d, want %d (full heap)", got, want)
	}
}

func TestAllocBounds(t *testing.T) {
	a := New(1024)
	ptr, ok := a.Alloc(100)
	if !ok {
		t.Fatal("alloc failed")
	}
	if ptr < headerSize {
		t.Fatalf("ptr %d precedes first possible payload offset", ptr)
	}
	if ptr+100 > a.Size() {
		t.Fatalf("ptr+n %d exceeds heap size %d", ptr+100, a.Size())
	}
}

func TestNoOverlap(t *testing.T) {
	a := New(1024)
	p1, ok := a.Alloc(100)
	if !ok {
		t.Fatal("alloc 1 failed")
	}
	p2, ok := a.Alloc(100)
	if !ok {
		t.Fatal("alloc 2 failed")
	}
	r1lo, r1hi := p1, p1+100
	r2lo, r2hi := p2, p2+100
	if r1lo < r2hi && r2lo < r1hi {
		t.Fatalf("overlapping allocations: [%d,%d) and [%d,%d)", r1lo, r1hi, r2lo, r2hi)
	}
}

// TestBestFitPreference constructs a free list of exactly the shape
// design §8 specifies (blocks of payload size 64, 128, 256) and checks
// that a request for 96 bytes selects the 128-byte block.
func TestBestFitPreference(t *testing.T) {
	a := New(4096)
	sizes := []uint32{64 + headerSize, 128 + headerSize, 256 + headerSize}
	off := uint32(0)
	for i, sz := range sizes {
		a.writeHeader(off, sz, false)
		if i == len(sizes)-1 {
			a.setNext(off, sentinelNone)
		} else {
			a.setNext(off, off+sz)
		}
		off += sz
	}

	ptr, ok := a.Alloc(96)
	if !ok {
		t.Fatal("alloc(96) failed")
	}
	wantOff := sizes[0] // the 128-byte block starts right after the 64-byte one
	if got := ptr - headerSize; got != wantOff {
		t.Fatalf("alloc(96) selected block at %d, want %d (the 128-byte block)", got, wantOff)
	}
}

func TestAllocRefusesOversized(t *testing.T) {
	a := New(1024)
	before := a.Stats()
	_, ok := a.Alloc(1024)
	if ok {
		t.Fatal("expected alloc(heap_size) to be refused")
	}
	after := a.Stats()
	if after.MemoryErrors != before.MemoryErrors {
		t.Fatalf("refusal should not touch MemoryErrors: before %d after %d", before.MemoryErrors, after.MemoryErrors)
	}
}

func TestDoubleFreeIncrementsCounter(t *testing.T) {
	a := New(1024)
	ptr, ok := a.Alloc(64)
	if !ok {
		t.Fatal("alloc failed")
	}
	a.Free(ptr)
	before := a.Stats().MemoryErrors
	a.Free(ptr)
	after := a.Stats().MemoryErrors
	if after != before+1 {
		t.Fatalf("got MemoryErrors %d, want %d", after, before+1)
	}
}

func TestReallocPreservesContent(t *testing.T) {
	a := New(1024)
	ptr, ok := a.Alloc(16)
	if !ok {
		t.Fatal("alloc failed")
	}
	copy(a.Bytes(ptr, 16), []byte("0123456789abcdef"))
	newPtr, ok := a.Realloc(ptr, 32)
	if !ok {
		t.Fatal("realloc failed")
	}
	got := string(a.Bytes(newPtr, 16))
	if got != "0123456789abcdef" {
		t.Fatalf("got %q after realloc", got)
	}
}

func TestCallocZeroes(t *testing.T) {
	a := New(1024)
	ptr, ok := a.Calloc(4, 8)
	if !ok {
		t.Fatal("calloc failed")
	}
	for _, b := range a.Bytes(ptr, 32) {
		if b != 0 {
			t.Fatalf("calloc did not zero memory")
		}
	}
}

func TestSizeFromMemoryMap(t *testing.T) {
	cases := []struct {
		mib  uint64
		want uint32
	}{
		{2, 256 * 1024},
		{8, 512 * 1024},
		{32, 2 * 1024 * 1024},
		{128, 8 * 1024 * 1024},
		{1024, 32 * 1024 * 1024},
	}
	for _, c := range cases {
		regions := []Region{{Length: c.mib * 1024 * 1024, Available: true}}
		if got := SizeFromMemoryMap(regions); got != c.want {
			t.Errorf("SizeFromMemoryMap(%d MiB) = %d, want %d", c.mib, got, c.want)
		}
	}
}

func TestSizeFromMemoryMapClampedToQuarter(t *testing.T) {
	// 1 MiB available: the smallest bucket (256 KiB) equals a quarter of
	// that, so the result must stay within the quarter and at or above
	// the 64 KiB floor.
	regions := []Region{{Length: 1 * 1024 * 1024, Available: true}}
	got := SizeFromMemoryMap(regions)
	if got < 64*1024 {
		t.Fatalf("got %d, want >= 64 KiB floor", got)
	}
	if got > 1*1024*1024/4 {
		t.Fatalf("got %d, want <= quarter of available RAM", got)
	}
}
