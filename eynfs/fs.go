package eynfs

import (
	"github.com/Hdev-Group/eynos/blockdev"
	"golang.org/x/xerrors"
)

// maxChainWalk bounds every chain walk (directory or file) so a cycle
// introduced by corruption cannot loop forever (design §5, "Long loops
// ... carry fixed bounds"). It is generous relative to any volume this
// package expects to format.
const maxChainWalk = 1 << 20

// maxDirBlocksForCount caps count_dir_entries's walk at 32 blocks (design
// §4.6).
const maxDirBlocksForCount = 32

// dirReadCap bounds the buffer find_in_dir, create_entry, delete_entry
// and write_file are willing to allocate while materialising a
// directory, through dirReadLimit (design §4.6, "allocation size capped
// at 16 KiB").
const dirReadCap = 16 * 1024

// FS is one mounted EYNFS volume: a superblock, its own bitmap
// allocator, and the block cache and directory cache it may share with
// other mounted volumes on the same device (design §9, "bind them to a
// Kernel root object"). Multiple FS values can share one *BlockCache/*DirCache
// pair (one per drive index), matching the design's process-wide cache
// state.
type FS struct {
	dev   blockdev.BlockDevice
	cache *BlockCache
	dirc  *DirCache
	bmp   *Bitmap
	sb    Superblock
}

// Superblock returns a copy of the mounted volume's superblock.
func (fs *FS) Superblock() Superblock { return fs.sb }

// Format writes a fresh EYNFS volume at baseLBA on drive, sized
// totalBlocks, per design §6.1: the preceding ZeroedSectorsBeforeFormat
// sectors are zeroed, then the superblock, bitmap (with reserved bits
// pre-set), name table, and an empty root directory block are written.
func Format(dev blockdev.BlockDevice, cache *BlockCache, drive int, baseLBA, totalBlocks uint32) (*FS, error) {
	if totalBlocks < ReservedBlocks+1 {
		return nil, xerrors.Errorf("totalBlocks %d too small for %d reserved blocks", totalBlocks, ReservedBlocks)
	}

	zero := make([]byte, BlockSize)
	for i := uint32(0); i < ZeroedSectorsBeforeFormat && i < baseLBA; i++ {
		if err := dev.WriteSector(drive, baseLBA-1-i, zero); err != nil {
			return nil, err
		}
	}

	sb := Superblock{
		Magic:        Magic,
		Version:      Version,
		BlockSize:    BlockSize,
		TotalBlocks:  totalBlocks,
		RootDirBlock: RootDirOffset,
		BitmapBlock:  BitmapOffset,
		NameTable:    NameTableOffset,
		BaseLBA:      baseLBA,
		Drive:        drive,
	}
	if err := dev.WriteSector(drive, baseLBA+SuperblockOffset, sb.Marshal()); err != nil {
		return nil, err
	}

	bitmapBuf := make([]byte, BlockSize)
	for b := uint32(0); b < ReservedBlocks; b++ {
		bitmapSet(bitmapBuf, b, true)
	}
	if err := dev.WriteSector(drive, baseLBA+BitmapOffset, bitmapBuf); err != nil {
		return nil, err
	}

	if err := dev.WriteSector(drive, baseLBA+NameTableOffset, zero); err != nil {
		return nil, err
	}

	rootBuf := make([]byte, BlockSize)
	setBlockNext(rootBuf, 0)
	if err := dev.WriteSector(drive, baseLBA+RootDirOffset, rootBuf); err != nil {
		return nil, err
	}

	fs := &FS{dev: dev, cache: cache, dirc: NewDirCache(), sb: sb}
	fs.bmp = newBitmap(fs)
	return fs, nil
}

// Mount reads and validates the superblock at baseLBA on drive (design
// §3.1, "read once per mount and validated"). cache and dirc may be
// shared with other FS values mounted on different drives from the same
// kernel root.
func Mount(dev blockdev.BlockDevice, cache *BlockCache, dirc *DirCache, drive int, baseLBA uint32) (*FS, error) {
	buf := make([]byte, BlockSize)
	if err := cache.Read(drive, baseLBA+SuperblockOffset, buf); err != nil {
		return nil, err
	}
	sb := UnmarshalSuperblock(buf)
	sb.BaseLBA = baseLBA
	sb.Drive = drive

	if sb.Magic != Magic {
		return nil, &StructuralError{Op: "mount", Context: "bad magic"}
	}
	if sb.Version != Version {
		return nil, &StructuralError{Op: "mount", Context: "unsupported version"}
	}
	if sb.BlockSize != BlockSize {
		return nil, &StructuralError{Op: "mount", Context: "unexpected block size"}
	}
	if sb.RootDirBlock >= sb.TotalBlocks || sb.BitmapBlock >= sb.TotalBlocks {
		return nil, &StructuralError{Op: "mount", Context: "block reference out of range"}
	}

	fs := &FS{dev: dev, cache: cache, dirc: dirc, sb: sb}
	fs.bmp = newBitmap(fs)
	return fs, nil
}

// ClearCaches implements design §4.3's cache_clear: flush then
// invalidate the block cache, invalidate the directory cache, and drop
// the in-memory free-block cache.
func (fs *FS) ClearCaches() error {
	if err := fs.cache.Clear(); err != nil {
		return err
	}
	fs.dirc.Clear()
	fs.bmp.freeCache = nil
	return nil
}

// readBlock reads one filesystem block through the shared cache. block
// is relative to the volume's own start, the same convention the
// superblock's RootDirBlock/BitmapBlock/NameTable fields and the bitmap
// allocator use; BaseLBA is added here, once, to reach the device's
// absolute LBA.
func (fs *FS) readBlock(block uint32, buf []byte) error {
	return fs.cache.Read(fs.sb.Drive, fs.sb.BaseLBA+block, buf)
}

func (fs *FS) writeBlock(block uint32, buf []byte) error {
	return fs.cache.Write(fs.sb.Drive, fs.sb.BaseLBA+block, buf)
}

// freeChain walks a directory or file chain starting at head, freeing
// every block it visits. It tolerates a broken next-pointer by stopping
// rather than failing (design §4.6, delete_entry).
func (fs *FS) freeChain(head uint32) error {
	block := head
	for i := 0; i < maxChainWalk && block != 0; i++ {
		buf := make([]byte, BlockSize)
		if err := fs.readBlock(block, buf); err != nil {
			break
		}
		next := blockNext(buf)
		if err := fs.bmp.FreeBlock(&fs.sb, block); err != nil {
			return err
		}
		block = next
	}
	return nil
}
