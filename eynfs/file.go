package eynfs

import "golang.org/x/xerrors"

// payloadPerBlock is the usable payload per file block: BlockSize minus
// the 4-byte next-pointer (design §3.5).
const payloadPerBlock = BlockSize - 4

// ReadFile copies up to len(buf) bytes starting at offset from entry's
// data chain, returning the number of bytes actually copied. Reading at
// or past entry.Size returns 0 bytes and no error (design §4.8).
func (fs *FS) ReadFile(entry DirEntry, buf []byte, offset uint32) (int, error) {
	if offset >= entry.Size {
		return 0, nil
	}
	want := uint32(len(buf))
	if remaining := entry.Size - offset; want > remaining {
		want = remaining
	}

	block := entry.FirstBlock
	skip := offset / payloadPerBlock
	posInBlock := offset % payloadPerBlock

	for i := uint32(0); i < skip; i++ {
		if block == 0 {
			return 0, xerrors.Errorf("read_file: chain ended early while skipping to offset %d", offset)
		}
		hdr := make([]byte, 4)
		if err := fs.readBlockHeaderOnly(block, hdr); err != nil {
			return 0, err
		}
		block = blockNext(hdr)
	}

	var n uint32
	for n < want {
		if block == 0 {
			return int(n), xerrors.Errorf("read_file: chain ended early after %d bytes", n)
		}
		buf512 := make([]byte, BlockSize)
		if err := fs.readBlock(block, buf512); err != nil {
			return int(n), err
		}
		payload := buf512[4:]
		start := uint32(0)
		if n == 0 {
			start = posInBlock
		}
		avail := payloadPerBlock - start
		need := want - n
		take := avail
		if need < take {
			take = need
		}
		copy(buf[n:n+take], payload[start:start+take])
		n += take
		block = blockNext(buf512)
	}
	return int(n), nil
}

// readBlockHeaderOnly reads just the 4-byte next-pointer of a block,
// still going through the full block cache (the cache operates on whole
// blocks; this only trims what the caller keeps).
func (fs *FS) readBlockHeaderOnly(block uint32, hdr []byte) error {
	full := make([]byte, BlockSize)
	if err := fs.readBlock(block, full); err != nil {
		return err
	}
	copy(hdr, full[:4])
	return nil
}

// WriteFile replaces entry's data chain with the contents of data,
// updates entry.FirstBlock and entry.Size, and rewrites the parent
// directory entry at parentHead/index. Per the resolved open question in
// SPEC_FULL.md §3 (spec.md's "partial write rollback" question), the new
// chain is fully allocated before anything is freed or written: if
// allocation fails partway through, every block allocated for the new
// chain so far is freed, the old chain and entry are left untouched, and
// ResourceError{OutOfSpace} is returned.
func (fs *FS) WriteFile(entry *DirEntry, data []byte, parentHead uint32, index int) error {
	nBlocks := (len(data) + payloadPerBlock - 1) / payloadPerBlock
	if nBlocks == 0 {
		nBlocks = 1
	}

	blocks := make([]uint32, 0, nBlocks)
	for i := 0; i < nBlocks; i++ {
		b, err := fs.bmp.AllocBlock(&fs.sb)
		if err != nil {
			for _, ab := range blocks {
				fs.bmp.FreeBlock(&fs.sb, ab)
			}
			return err
		}
		blocks = append(blocks, b)
	}

	for i, b := range blocks {
		buf := make([]byte, BlockSize)
		if i+1 < len(blocks) {
			setBlockNext(buf, blocks[i+1])
		} else {
			setBlockNext(buf, 0)
		}
		start := i * payloadPerBlock
		end := start + payloadPerBlock
		if end > len(data) {
			end = len(data)
		}
		copy(buf[4:], data[start:end])
		if err := fs.writeBlock(b, buf); err != nil {
			for _, ab := range blocks {
				fs.bmp.FreeBlock(&fs.sb, ab)
			}
			return err
		}
	}

	oldFirst := entry.FirstBlock
	if oldFirst != 0 {
		if err := fs.freeChain(oldFirst); err != nil {
			return err
		}
	}

	entry.FirstBlock = blocks[0]
	entry.Size = uint32(len(data))

	entries, err := fs.ReadDirTable(parentHead, dirReadLimit)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return xerrors.Errorf("write_file: entry index %d out of range", index)
	}
	entries[index] = *entry
	return fs.WriteDirTable(parentHead, entries, len(entries))
}
