// Package heap implements the kernel's best-fit free-list allocator: one
// contiguous backing region, an intrusive singly linked chain of block
// headers, coalescing on free, and counters for diagnostics instead of
// panics. The allocator never raises: every failure is a null (zero,
// false) return. A rejected Free, or a Realloc whose block fails header
// validation, also increments a counter; an Alloc refusal leaves the
// counters untouched (design §4.2, §7 "the heap allocator never
// raises").
package heap

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// headerSize is the fixed 12-byte header preceding every block: total
// block size (4), offset of the next block in the chain or sentinelNone
// (4), and a word packing the used flag into its top bit with a 31-bit
// magic in the low bits (4). Sharing one word between the used flag and
// the magic keeps the header at 12 bytes instead of 16.
const headerSize = 12

const sentinelNone = 0xFFFFFFFF

// magic distinguishes a genuine block header from stray bytes; the low 31
// bits of the third header word always hold this value for a block this
// allocator created.
const magic = 0x45594E // "EYN" folded into 31 bits

const usedBit = uint32(1) << 31

// maxScanBlocks bounds how many blocks (used or free) a single alloc will
// examine,
// so a corrupted or heavily fragmented chain cannot turn alloc into an
// unbounded walk (design §4.2).
const maxScanBlocks = 100

// minSplitRemainder is the smallest remainder (header + payload) worth
// splitting off as its own free block.
const minSplitRemainder = headerSize + 16

// Stats exposes the allocator's diagnostic counters (design §4.2, §2
// "Diagnostics/counters").
type Stats struct {
	Allocations     uint64
	Frees           uint64
	MemoryErrors    uint64
	CorruptedBlocks uint64
}

// Allocator owns one contiguous region and the singly linked chain of
// block headers inside it. It is not safe for concurrent use; the kernel
// core is single-threaded cooperative (design §5).
type Allocator struct {
	buf   []byte
	stats Stats
}

// New creates an allocator over a freshly allocated region of the given
// size, initialised as one large free block.
func New(size uint32) *Allocator {
	a := &Allocator{buf: make([]byte, size)}
	a.writeHeader(0, size, false)
	a.setNext(0, sentinelNone)
	return a
}

// Region describes one entry of a multiboot-style memory map, used by
// SizeFromMemoryMap to bucket the heap the way design §4.2 specifies.
type Region struct {
	Length    uint64
	Available bool
}

// SizeFromMemoryMap computes the heap size design §4.2 prescribes from a
// multiboot memory map: sum the available regions (with an overflow
// guard), bucket into one of five fixed sizes, then clamp to at most one
// quarter of available RAM and at least 64 KiB.
func SizeFromMemoryMap(regions []Region) uint32 {
	const (
		kib = 1024
		mib = 1024 * kib
	)
	var total uint64
	for _, r := range regions {
		if !r.Available {
			continue
		}
		next := total + r.Length
		if next < total {
			// overflow guard: stop accumulating, we already have enough
			// to pick the largest bucket.
			total = 1 << 62
			break
		}
		total = next
	}

	var bucket uint64
	switch {
	case total <= 4*mib:
		bucket = 256 * kib
	case total <= 16*mib:
		bucket = 512 * kib
	case total <= 64*mib:
		bucket = 2 * mib
	case total <= 256*mib:
		bucket = 8 * mib
	default:
		bucket = 32 * mib
	}

	quarter := total / 4
	if bucket > quarter {
		bucket = quarter
	}
	if bucket < 64*kib {
		bucket = 64 * kib
	}
	if bucket > 1<<32-1 {
		bucket = 1<<32 - 1
	}
	return uint32(bucket)
}

// NewFromMemoryMap is a convenience wrapper combining SizeFromMemoryMap
// and New.
func NewFromMemoryMap(regions []Region) *Allocator {
	return New(SizeFromMemoryMap(regions))
}

// Stats returns a snapshot of the allocator's diagnostic counters.
func (a *Allocator) Stats() Stats { return a.stats }

// Size returns the total size of the backing region.
func (a *Allocator) Size() uint32 { return uint32(len(a.buf)) }

func (a *Allocator) readSize(off uint32) uint32 {
	return binary.LittleEndian.Uint32(a.buf[off : off+4])
}

func (a *Allocator) readNext(off uint32) uint32 {
	return binary.LittleEndian.Uint32(a.buf[off+4 : off+8])
}

func (a *Allocator) setNext(off, next uint32) {
	binary.LittleEndian.PutUint32(a.buf[off+4:off+8], next)
}

func (a *Allocator) readUsedMagic(off uint32) uint32 {
	return binary.LittleEndian.Uint32(a.buf[off+8 : off+12])
}

func (a *Allocator) isUsed(off uint32) bool {
	return a.readUsedMagic(off)&usedBit != 0
}

func (a *Allocator) hasValidMagic(off uint32) bool {
	return a.readUsedMagic(off)&(usedBit-1) == magic
}

func (a *Allocator) writeHeader(off, size uint32, used bool) {
	binary.LittleEndian.PutUint32(a.buf[off:off+4], size)
	um := uint32(magic)
	if used {
		um |= usedBit
	}
	binary.LittleEndian.PutUint32(a.buf[off+8:off+12], um)
}

func (a *Allocator) setUsed(off uint32, used bool) {
	um := magic
	if used {
		um |= int(usedBit)
	}
	binary.LittleEndian.PutUint32(a.buf[off+8:off+12], uint32(um))
}

// validateBlock performs the mandatory bounds and size checks plus the
// magic-word check design notes call for enforcing (design §9,
// "Magic-word validation"). It does not look at the used flag; Free
// checks that separately. It returns an error describing which check
// failed; callers treat any failure as a memory-integrity error.
func (a *Allocator) validateBlock(off uint32) error {
	if off+headerSize > uint32(len(a.buf)) {
		return xerrors.Errorf("header at %d out of bounds", off)
	}
	size := a.readSize(off)
	if size < headerSize || off+size > uint32(len(a.buf)) {
		return xerrors.Errorf("block at %d has invalid size %d", off, size)
	}
	if !a.hasValidMagic(off) {
		return xerrors.Errorf("block at %d has bad magic", off)
	}
	return nil
}

// Alloc reserves n bytes using best fit: the smallest free block whose
// size is at least n+headerSize, among at most maxScanBlocks examined.
// It returns (0, false) on any refusal — zero-length request, request
// exceeding three quarters of the heap, or no block large enough — with
// no effect on allocator state beyond the attempt itself. Zero is never
// a valid payload offset (the first header always occupies offset 0).
func (a *Allocator) Alloc(n uint32) (uint32, bool) {
	if n == 0 {
		return 0, false
	}
	heapSize := uint32(len(a.buf))
	if uint64(n) > uint64(heapSize)*3/4 {
		return 0, false
	}
	need := n + headerSize
	if need < n { // overflow
		return 0, false
	}

	var (
		bestOff  uint32
		bestSize uint32
		found    bool
	)
	off := uint32(0)
	for i := 0; i < maxScanBlocks && off != sentinelNone; i++ {
		size := a.readSize(off)
		if !a.isUsed(off) && size >= need {
			if !found || size < bestSize {
				bestOff, bestSize, found = off, size, true
			}
		}
		off = a.readNext(off)
	}
	if !found {
		return 0, false
	}

	remainder := bestSize - need
	if remainder >= minSplitRemainder {
		newOff := bestOff + need
		a.writeHeader(newOff, remainder, false)
		a.setNext(newOff, a.readNext(bestOff))
		a.writeHeader(bestOff, need, true)
		a.setNext(bestOff, newOff)
	} else {
		a.setUsed(bestOff, true)
	}
	a.stats.Allocations++
	return bestOff + headerSize, true
}

// Free releases the block at ptr (a payload offset previously returned by
// Alloc). Double-free and out-of-bounds frees are refused: the memory
// error counter is incremented and the heap is left untouched (design
// §4.2, "double-free ... increment a memory-error counter and return
// without touching the heap").
func (a *Allocator) Free(ptr uint32) {
	if ptr < headerSize {
		a.stats.MemoryErrors++
		return
	}
	off := ptr - headerSize
	if err := a.validateBlock(off); err != nil {
		a.stats.MemoryErrors++
		a.stats.CorruptedBlocks++
		return
	}
	if !a.isUsed(off) {
		a.stats.MemoryErrors++
		return
	}
	a.setUsed(off, false)
	a.coalesce(off)
	a.stats.Frees++
}

// coalesce merges the free block at off with the immediately following
// block if that block is also free (design §4.2, "on release it
// coalesces with the immediately following free block").
func (a *Allocator) coalesce(off uint32) {
	next := a.readNext(off)
	if next == sentinelNone {
		return
	}
	if next != off+a.readSize(off) {
		// next in the chain is not adjacent in memory; nothing to merge.
		return
	}
	if a.isUsed(next) {
		return
	}
	mergedSize := a.readSize(off) + a.readSize(next)
	a.writeHeader(off, mergedSize, false)
	a.setNext(off, a.readNext(next))
}

// Bytes returns a slice view of the payload at ptr, of length n. The
// caller must not retain it past a Free of ptr.
func (a *Allocator) Bytes(ptr, n uint32) []byte {
	return a.buf[ptr : ptr+n]
}

// Calloc allocates space for count elements of size bytes each and
// zeroes it, returning (0, false) on overflow or allocation failure.
func (a *Allocator) Calloc(count, size uint32) (uint32, bool) {
	total := uint64(count) * uint64(size)
	if total > 0xFFFFFFFF {
		return 0, false
	}
	ptr, ok := a.Alloc(uint32(total))
	if !ok {
		return 0, false
	}
	buf := a.Bytes(ptr, uint32(total))
	for i := range buf {
		buf[i] = 0
	}
	return ptr, true
}

// Realloc resizes the allocation at ptr to n bytes, preserving the
// min(old, new) leading bytes. It never mutates in place across a size
// class boundary; it always allocates fresh and frees the old block,
// which keeps the free-list invariants simple at the cost of one extra
// copy.
func (a *Allocator) Realloc(ptr, n uint32) (uint32, bool) {
	if ptr == 0 {
		return a.Alloc(n)
	}
	off := ptr - headerSize
	if err := a.validateBlock(off); err != nil {
		a.stats.MemoryErrors++
		return 0, false
	}
	oldPayload := a.readSize(off) - headerSize
	newPtr, ok := a.Alloc(n)
	if !ok {
		return 0, false
	}
	toCopy := oldPayload
	if n < toCopy {
		toCopy = n
	}
	copy(a.Bytes(newPtr, toCopy), a.Bytes(ptr, toCopy))
	a.Free(ptr)
	return newPtr, true
}
