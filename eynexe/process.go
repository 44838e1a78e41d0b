package eynexe

// SlotCount is the fixed number of concurrent process slots design §3.11
// allows ("two-slot process sandbox").
const SlotCount = 2

// Region bounds are design constants (§3.11): each slot gets a fixed code
// buffer, a fixed stack, and a fixed heap, all disjoint.
const (
	CodeRegionSize  = 64 * 1024
	StackRegionSize = 16 * 1024
	HeapRegionSize  = 64 * 1024
)

// Regions is the set of byte offsets within a process's own Mem buffer
// that its three regions occupy. Each Process owns an independent Mem
// slice, so these offsets never need to account for which slot the
// process was assigned: two processes never share a backing array.
type Regions struct {
	CodeBase  uint32
	StackBase uint32
	HeapBase  uint32
}

func newRegions() Regions {
	return Regions{
		CodeBase:  0,
		StackBase: CodeRegionSize,
		HeapBase:  CodeRegionSize + StackRegionSize,
	}
}

// Process is one loaded program occupying a slot: its memory, its
// regions, and the CPU state the loader resumes from when it calls the
// entry point.
type Process struct {
	Slot    int
	Regions Regions
	Mem     []byte
	active  bool
}

// Sandbox owns the fixed SlotCount process slots. It never grows: a
// program that does not fit an empty slot is refused (design §3.11, "no
// process may exceed its fixed regions").
type Sandbox struct {
	slots [SlotCount]*Process
}

// NewSandbox returns an empty sandbox with all slots free.
func NewSandbox() *Sandbox {
	return &Sandbox{}
}

// acquire finds a free slot and reserves it, returning nil if every slot
// is in use.
func (s *Sandbox) acquire() *Process {
	for i := range s.slots {
		if s.slots[i] == nil {
			slotSize := CodeRegionSize + StackRegionSize + HeapRegionSize
			p := &Process{
				Slot:    i,
				Regions: newRegions(),
				Mem:     make([]byte, slotSize),
				active:  true,
			}
			s.slots[i] = p
			return p
		}
	}
	return nil
}

// release frees p's slot. It is a no-op if p's slot has already been
// released or reassigned.
func (s *Sandbox) release(p *Process) {
	if p == nil {
		return
	}
	if s.slots[p.Slot] == p {
		s.slots[p.Slot] = nil
	}
	p.active = false
}

// InRegion reports whether [off, off+n) lies entirely within one of p's
// three regions (design §4.11: "no pointer may cross a region boundary").
func (p *Process) InRegion(off, n uint32) bool {
	end := off + n
	if end < off {
		return false
	}
	r := p.Regions
	switch {
	case off >= r.CodeBase && end <= r.CodeBase+CodeRegionSize:
		return true
	case off >= r.StackBase && end <= r.StackBase+StackRegionSize:
		return true
	case off >= r.HeapBase && end <= r.HeapBase+HeapRegionSize:
		return true
	default:
		return false
	}
}
