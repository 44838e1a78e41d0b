package eynexe

// LoadResult reports how a Load call ended, for callers (the shell's
// `run` verb) that want to surface something more specific than "it
// worked" (design §4.10 step 6, §6.4).
type LoadResult struct {
	Slot   int
	Reason ExitReason
	Regs   [8]uint32
}

// Load validates file's header, screens its code, reserves a sandbox
// slot, copies code and data into the slot's regions, and calls the
// entry point (design §4.10). It refuses outright (no slot is touched)
// if the header is malformed, the code is oversized for the fixed code
// region, or the code contains a disallowed opcode.
func Load(sb *Sandbox, file []byte) (LoadResult, error) {
	h, err := ParseHeader(file)
	if err != nil {
		return LoadResult{}, err
	}

	code := file[HeaderSize : HeaderSize+h.CodeSize]
	data := file[HeaderSize+h.CodeSize : HeaderSize+h.CodeSize+h.DataSize]

	if h.CodeSize > CodeRegionSize {
		return LoadResult{}, newSafetyError("code_size exceeds fixed code region")
	}
	if uint64(h.DataSize)+uint64(h.BSSSize) > HeapRegionSize {
		return LoadResult{}, newSafetyError("data_size+bss_size exceeds fixed heap region")
	}
	if err := Screen(code); err != nil {
		return LoadResult{}, err
	}

	p := sb.acquire()
	if p == nil {
		return LoadResult{}, &ResourceError{Reason: "no free process slot"}
	}
	defer func() {
		if p.active {
			sb.release(p)
		}
	}()

	copy(p.Mem[p.Regions.CodeBase:], code)
	// The original loader places the data section at code_start+0x1000,
	// inside the same region as the code (run_command.c:266); this
	// sandbox gives code, stack, and heap disjoint fixed regions instead
	// (design §3.11), so data is copied to HeapBase rather than
	// overlapping CodeBase+0x1000. The deviation is harmless here: this
	// CPU is a register machine over Mem offsets, and no instruction in
	// design §4.15's subset forms or dereferences a data-section address,
	// so nothing actually reads data back out at a fixed flat address.
	copy(p.Mem[p.Regions.HeapBase:], data)

	cpu := NewCPU(p)
	reason, runErr := cpu.Run(h.EntryPoint)
	if runErr != nil {
		return LoadResult{Slot: p.Slot}, runErr
	}
	return LoadResult{Slot: p.Slot, Reason: reason, Regs: cpu.Regs}, nil
}
