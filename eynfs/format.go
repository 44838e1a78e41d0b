// Package eynfs implements EYNFS, the kernel's native block filesystem:
// superblock, bitmap allocator, multi-block directory and file chains, a
// block cache with LRU eviction, a directory-entry cache, and path
// resolution. Every on-disk structure is read and written with explicit
// encoding/binary calls against a raw 512-byte buffer, the way the
// teacher's squashfs package treats its superblock and directory headers
// (see squashfs.superblock, squashfs.dirHeader) rather than aliasing Go
// structs onto the buffer.
package eynfs

import (
	"encoding/binary"

	"github.com/Hdev-Group/eynos/blockdev"
)

// BlockSize is the fixed on-disk block size; the superblock's own
// BlockSize field must equal this for a volume to mount (design §3.1).
const BlockSize = blockdev.SectorSize

// Magic identifies an EYNFS superblock. Stored as the four bytes 'E' 'Y'
// 'N' 'S' read little-endian.
const Magic uint32 = 0x534E5945 // "EYNS" little-endian

// Version is the on-disk format version this package writes and accepts.
const Version uint32 = 1

// Layout offsets, in blocks, relative to a filesystem's base LBA (design
// §6.1).
const (
	SuperblockOffset = 0
	BitmapOffset     = 1
	NameTableOffset  = 2
	RootDirOffset    = 3
	FirstDataOffset  = 4
)

// ReservedBlocks is the count of permanently-used blocks at the start of
// every EYNFS volume (superblock, bitmap, name table, root directory).
const ReservedBlocks = 4

// ZeroedSectorsBeforeFormat is how many sectors preceding the superblock
// LBA are zeroed at format time to erase any prior contents (design
// §6.1).
const ZeroedSectorsBeforeFormat = 2048

// DirEntrySize resolves spec.md's open question about directory entry
// size: the design fixes it at 64 bytes (name 32 + type 1 + flags 1 +
// reserved 2 + size 4 + first_block 4 + 2 reserved words 8 = 52 bytes of
// real fields, padded to 64). The 508-byte body left after a block's
// 4-byte next-pointer holds 7 entries, leaving 60 bytes unused. Every
// directory-table operation (read, write, create, delete,
// count) uses this single constant; see DESIGN.md for the full
// rationale.
const DirEntrySize = 64

// entriesPerDirBlock is (512-4)/64 = 7, per design §3.4.
const entriesPerDirBlock = (BlockSize - 4) / DirEntrySize

// maxNameLen is the usable length of DirEntry.Name (32 bytes, NUL
// padded); names are ASCII, 1..31 bytes, and may not contain '/' or NUL
// (design §3.3).
const maxNameLen = 31

// Entry types.
const (
	TypeFile = 1
	TypeDir  = 2
)

// Superblock mirrors design §3.1's on-disk layout exactly, one 512-byte
// block at a fixed LBA.
type Superblock struct {
	Magic        uint32
	Version      uint32
	BlockSize    uint32
	TotalBlocks  uint32
	RootDirBlock uint32
	BitmapBlock  uint32
	NameTable    uint32
	Reserved0    uint32
	Reserved1    uint32

	// BaseLBA is not part of the on-disk image; it is the LBA the
	// superblock itself was read from, carried alongside so every other
	// block reference in this struct (which are filesystem-relative) can
	// be translated to an absolute LBA.
	BaseLBA uint32 `json:"-"`
	// Drive is likewise not on-disk: the drive index this superblock was
	// mounted from.
	Drive int `json:"-"`
}

// Marshal encodes the superblock into a BlockSize-byte buffer.
func (sb *Superblock) Marshal() []byte {
	buf := make([]byte, BlockSize)
	binary.LittleEndian.PutUint32(buf[0:4], sb.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], sb.Version)
	binary.LittleEndian.PutUint32(buf[8:12], sb.BlockSize)
	binary.LittleEndian.PutUint32(buf[12:16], sb.TotalBlocks)
	binary.LittleEndian.PutUint32(buf[16:20], sb.RootDirBlock)
	binary.LittleEndian.PutUint32(buf[20:24], sb.BitmapBlock)
	binary.LittleEndian.PutUint32(buf[24:28], sb.NameTable)
	binary.LittleEndian.PutUint32(buf[28:32], sb.Reserved0)
	binary.LittleEndian.PutUint32(buf[32:36], sb.Reserved1)
	return buf
}

// UnmarshalSuperblock decodes a BlockSize-byte buffer into a Superblock.
func UnmarshalSuperblock(buf []byte) Superblock {
	var sb Superblock
	sb.Magic = binary.LittleEndian.Uint32(buf[0:4])
	sb.Version = binary.LittleEndian.Uint32(buf[4:8])
	sb.BlockSize = binary.LittleEndian.Uint32(buf[8:12])
	sb.TotalBlocks = binary.LittleEndian.Uint32(buf[12:16])
	sb.RootDirBlock = binary.LittleEndian.Uint32(buf[16:20])
	sb.BitmapBlock = binary.LittleEndian.Uint32(buf[20:24])
	sb.NameTable = binary.LittleEndian.Uint32(buf[24:28])
	sb.Reserved0 = binary.LittleEndian.Uint32(buf[28:32])
	sb.Reserved1 = binary.LittleEndian.Uint32(buf[32:36])
	return sb
}

// DirEntry mirrors design §3.3's 64-byte directory entry layout.
type DirEntry struct {
	Name       [maxNameLen + 1]byte
	Type       uint8
	Flags      uint8
	Size       uint32
	FirstBlock uint32
}

// NameString returns the entry's name as a Go string, trimmed at the
// first NUL.
func (e *DirEntry) NameString() string {
	n := 0
	for n < len(e.Name) && e.Name[n] != 0 {
		n++
	}
	return string(e.Name[:n])
}

// SetName stores name into the entry, NUL-padding the remainder. The
// caller is responsible for validating name per design §3.3 first.
func (e *DirEntry) SetName(name string) {
	for i := range e.Name {
		e.Name[i] = 0
	}
	copy(e.Name[:], name)
}

// Empty reports whether this slot is unused (design §3.3: "name[0]==0").
func (e *DirEntry) Empty() bool { return e.Name[0] == 0 }

// marshalDirEntry encodes e into a DirEntrySize-byte buffer.
func marshalDirEntry(e DirEntry) []byte {
	buf := make([]byte, DirEntrySize)
	copy(buf[0:32], e.Name[:])
	buf[32] = e.Type
	buf[33] = e.Flags
	// bytes 34-35 reserved
	binary.LittleEndian.PutUint32(buf[36:40], e.Size)
	binary.LittleEndian.PutUint32(buf[40:44], e.FirstBlock)
	// bytes 44-63 reserved / padding
	return buf
}

// unmarshalDirEntry decodes a DirEntrySize-byte buffer into a DirEntry.
func unmarshalDirEntry(buf []byte) DirEntry {
	var e DirEntry
	copy(e.Name[:], buf[0:32])
	e.Type = buf[32]
	e.Flags = buf[33]
	e.Size = binary.LittleEndian.Uint32(buf[36:40])
	e.FirstBlock = binary.LittleEndian.Uint32(buf[40:44])
	return e
}

// blockNext reads the 4-byte next-block pointer at the head of a
// directory or file block (design §3.4, §3.5).
func blockNext(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[0:4])
}

func setBlockNext(buf []byte, next uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], next)
}
