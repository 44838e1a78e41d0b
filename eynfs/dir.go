package eynfs

import (
	"strings"
)

// ReadDirTable walks the chain rooted at head, concatenating each
// block's entry array (including empty slots) until either the chain
// ends or maxEntries entries have been produced (design §4.6).
func (fs *FS) ReadDirTable(head uint32, maxEntries int) ([]DirEntry, error) {
	var out []DirEntry
	block := head
	for i := 0; i < maxChainWalk && block != 0 && len(out) < maxEntries; i++ {
		buf := make([]byte, BlockSize)
		if err := fs.readBlock(block, buf); err != nil {
			return nil, err
		}
		for slot := 0; slot < entriesPerDirBlock && len(out) < maxEntries; slot++ {
			off := 4 + slot*DirEntrySize
			out = append(out, unmarshalDirEntry(buf[off:off+DirEntrySize]))
		}
		block = blockNext(buf)
	}
	return out, nil
}

// CountDirEntries sums the per-block entry capacity of the chain rooted
// at head, capped at maxDirBlocksForCount blocks (design §4.6). This is
// capacity (every slot, empty or not), not a count of occupied slots; it
// tells write-path callers how large the backing entry array already is.
func (fs *FS) CountDirEntries(head uint32) (int, error) {
	count := 0
	block := head
	for i := 0; i < maxDirBlocksForCount && block != 0; i++ {
		buf := make([]byte, BlockSize)
		if err := fs.readBlock(block, buf); err != nil {
			return 0, err
		}
		count += entriesPerDirBlock
		block = blockNext(buf)
		if i == maxDirBlocksForCount-1 && block != 0 {
			// Chain continues past the cap; design §4.6 treats this as a
			// warning, not an error: the caller gets a possibly-partial
			// capacity count rather than a failure.
			break
		}
	}
	return count, nil
}

func validateName(name string) error {
	if len(name) < 1 || len(name) > maxNameLen {
		return &LogicalError{Kind: InvalidPath, Path: name}
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, 0) {
		return &LogicalError{Kind: InvalidPath, Path: name}
	}
	return nil
}

// dirReadLimit converts the 16 KiB safety cap (design §4.6) into an
// entry count.
const dirReadLimit = dirReadCap / DirEntrySize

// FindInDir looks up name inside the directory rooted at head, checking
// the directory cache first. On a cache miss it reads the directory into
// a bounded buffer, scans linearly (skipping empty slots), and caches the
// result on success (design §4.6).
func (fs *FS) FindInDir(head uint32, name string) (DirEntry, int, error) {
	entries, ok := fs.dirc.Lookup(fs.sb.Drive, head)
	if !ok {
		var err error
		entries, err = fs.ReadDirTable(head, dirReadLimit)
		if err != nil {
			return DirEntry{}, 0, err
		}
	}
	for i, e := range entries {
		if e.Empty() {
			continue
		}
		if e.NameString() == name {
			fs.dirc.Put(fs.sb.Drive, head, entries)
			return e, i, nil
		}
	}
	fs.dirc.Put(fs.sb.Drive, head, entries)
	return DirEntry{}, 0, &LogicalError{Kind: NotFound, Path: name}
}

// WriteDirTable rewrites the directory rooted at head with entries[:count],
// preserving the existing block chain where possible (design §4.6). Phase
// 1 records up to maxDirBlocksForCount existing block numbers; phase 2
// writes the new entries into those blocks, allocating additional blocks
// for any overflow. Allocation failure aborts the write, leaving no
// change (newly allocated overflow blocks are freed again) and surfaces
// ResourceError{OutOfSpace}. The directory cache is cleared on success,
// per design §4.4: "any mutating directory operation ... MUST invalidate
// the cache before returning".
func (fs *FS) WriteDirTable(head uint32, entries []DirEntry, count int) error {
	if count > len(entries) {
		count = len(entries)
	}

	// Phase 1: record the existing chain's block numbers.
	var existing []uint32
	block := head
	for i := 0; i < maxDirBlocksForCount && block != 0; i++ {
		existing = append(existing, block)
		buf := make([]byte, BlockSize)
		if err := fs.readBlock(block, buf); err != nil {
			return err
		}
		block = blockNext(buf)
	}

	blocksNeeded := (count + entriesPerDirBlock - 1) / entriesPerDirBlock
	if blocksNeeded == 0 {
		blocksNeeded = 1
	}

	var allocated []uint32
	blocks := make([]uint32, 0, blocksNeeded)
	for i := 0; i < blocksNeeded; i++ {
		if i < len(existing) {
			blocks = append(blocks, existing[i])
			continue
		}
		b, err := fs.bmp.AllocBlock(&fs.sb)
		if err != nil {
			for _, ab := range allocated {
				fs.bmp.FreeBlock(&fs.sb, ab)
			}
			return err
		}
		allocated = append(allocated, b)
		blocks = append(blocks, b)
	}

	for i, b := range blocks {
		buf := make([]byte, BlockSize)
		if i+1 < len(blocks) {
			setBlockNext(buf, blocks[i+1])
		} else {
			setBlockNext(buf, 0)
		}
		for slot := 0; slot < entriesPerDirBlock; slot++ {
			idx := i*entriesPerDirBlock + slot
			off := 4 + slot*DirEntrySize
			var e DirEntry
			if idx < count {
				e = entries[idx]
			}
			copy(buf[off:off+DirEntrySize], marshalDirEntry(e))
		}
		if err := fs.writeBlock(b, buf); err != nil {
			return err
		}
	}

	// Any leftover original blocks beyond what the new layout needs are
	// freed: they are no longer reachable from the chain.
	for _, b := range existing[min(len(existing), len(blocks)):] {
		if err := fs.bmp.FreeBlock(&fs.sb, b); err != nil {
			return err
		}
	}

	fs.dirc.Clear()
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// CreateEntry adds a new directory entry named name of the given type
// under parentHead, allocating one fresh block for its FirstBlock and
// zeroing it (an empty directory block for directories) per design §4.6.
// Duplicates are refused with LogicalError{Exists}.
func (fs *FS) CreateEntry(parentHead uint32, name string, typ uint8) (DirEntry, error) {
	if err := validateName(name); err != nil {
		return DirEntry{}, err
	}
	if _, _, err := fs.FindInDir(parentHead, name); err == nil {
		return DirEntry{}, &LogicalError{Kind: Exists, Path: name}
	}

	entries, err := fs.ReadDirTable(parentHead, dirReadLimit)
	if err != nil {
		return DirEntry{}, err
	}

	slot := -1
	for i, e := range entries {
		if e.Empty() {
			slot = i
			break
		}
	}
	if slot < 0 {
		if len(entries) >= dirReadLimit {
			return DirEntry{}, &ResourceError{Kind: OutOfSpace, Op: "create_entry"}
		}
		slot = len(entries)
		entries = append(entries, DirEntry{})
	}

	block, err := fs.bmp.AllocBlock(&fs.sb)
	if err != nil {
		return DirEntry{}, err
	}

	buf := make([]byte, BlockSize)
	setBlockNext(buf, 0)
	if err := fs.writeBlock(block, buf); err != nil {
		fs.bmp.FreeBlock(&fs.sb, block)
		return DirEntry{}, err
	}

	var e DirEntry
	e.SetName(name)
	e.Type = typ
	e.FirstBlock = block
	entries[slot] = e

	if err := fs.WriteDirTable(parentHead, entries, len(entries)); err != nil {
		fs.bmp.FreeBlock(&fs.sb, block)
		return DirEntry{}, err
	}

	return e, nil
}

// DeleteEntry removes name from the directory rooted at parentHead,
// freeing every block reachable from the victim's chain (design §4.6).
func (fs *FS) DeleteEntry(parentHead uint32, name string) error {
	entries, err := fs.ReadDirTable(parentHead, dirReadLimit)
	if err != nil {
		return err
	}
	idx := -1
	for i, e := range entries {
		if !e.Empty() && e.NameString() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &LogicalError{Kind: NotFound, Path: name}
	}

	if entries[idx].FirstBlock != 0 {
		if err := fs.freeChain(entries[idx].FirstBlock); err != nil {
			return err
		}
	}
	entries[idx] = DirEntry{}

	if err := fs.WriteDirTable(parentHead, entries, len(entries)); err != nil {
		return err
	}
	return nil
}
