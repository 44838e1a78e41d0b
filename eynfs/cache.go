package eynfs

import (
	"github.com/Hdev-Group/eynos/blockdev"
	"golang.org/x/xerrors"
)

// CacheSize is the fixed number of block cache entries (design §3.6,
// "target: 16").
const CacheSize = 16

type cacheEntry struct {
	valid bool
	dirty bool
	drive int
	block uint32
	tick  uint64
	data  [BlockSize]byte
}

// BlockCache is the LRU block cache every EYNFS operation reads and
// writes blocks through (design §4.3). Eviction picks the entry with the
// oldest access tick; a dirty victim is written back first.
type BlockCache struct {
	dev     blockdev.BlockDevice
	entries [CacheSize]cacheEntry
	clock   uint64

	Hits   uint64
	Misses uint64
}

// NewBlockCache wraps dev with a fresh, empty block cache.
func NewBlockCache(dev blockdev.BlockDevice) *BlockCache {
	return &BlockCache{dev: dev}
}

func (c *BlockCache) find(drive int, block uint32) int {
	for i := range c.entries {
		e := &c.entries[i]
		if e.valid && e.drive == drive && e.block == block {
			return i
		}
	}
	return -1
}

func (c *BlockCache) lruVictim() int {
	victim := 0
	var oldest uint64 = ^uint64(0)
	for i := range c.entries {
		e := &c.entries[i]
		if !e.valid {
			return i
		}
		if e.tick < oldest {
			oldest = e.tick
			victim = i
		}
	}
	return victim
}

func (c *BlockCache) writeBack(i int) error {
	e := &c.entries[i]
	if !e.valid || !e.dirty {
		return nil
	}
	if err := c.dev.WriteSector(e.drive, e.block, e.data[:]); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

// Read fills buf (BlockSize bytes) with the contents of (drive, block). A
// hit copies the cached payload; a miss reads through the device,
// installs the result into the LRU victim slot (flushing it first if
// dirty), and copies out (design §4.3).
func (c *BlockCache) Read(drive int, block uint32, buf []byte) error {
	if len(buf) != BlockSize {
		return xerrors.Errorf("buffer size %d, want %d", len(buf), BlockSize)
	}
	c.clock++
	if i := c.find(drive, block); i >= 0 {
		c.Hits++
		c.entries[i].tick = c.clock
		copy(buf, c.entries[i].data[:])
		return nil
	}
	c.Misses++

	i := c.lruVictim()
	if err := c.writeBack(i); err != nil {
		return err
	}
	e := &c.entries[i]
	if err := c.dev.ReadSector(drive, block, e.data[:]); err != nil {
		return err
	}
	e.valid = true
	e.dirty = false
	e.drive = drive
	e.block = block
	e.tick = c.clock
	copy(buf, e.data[:])
	return nil
}

// Write updates (drive, block) with buf's contents. If the block is
// cached the update stays in the cache (write-back); otherwise it is
// written straight through to the device (design §4.3).
func (c *BlockCache) Write(drive int, block uint32, buf []byte) error {
	if len(buf) != BlockSize {
		return xerrors.Errorf("buffer size %d, want %d", len(buf), BlockSize)
	}
	c.clock++
	if i := c.find(drive, block); i >= 0 {
		e := &c.entries[i]
		copy(e.data[:], buf)
		e.dirty = true
		e.tick = c.clock
		return nil
	}
	return c.dev.WriteSector(drive, block, buf)
}

// Flush writes back every dirty entry for the given drive.
func (c *BlockCache) Flush(drive int) error {
	for i := range c.entries {
		e := &c.entries[i]
		if e.valid && e.drive == drive && e.dirty {
			if err := c.writeBack(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clear flushes every drive's dirty entries, then invalidates the whole
// cache (design §4.3, "cache_clear"). Callers are responsible for also
// clearing the directory cache and free-block cache, which this method
// does not know about; FS.ClearCaches does all three together.
func (c *BlockCache) Clear() error {
	seen := map[int]bool{}
	for i := range c.entries {
		e := &c.entries[i]
		if e.valid && !seen[e.drive] {
			seen[e.drive] = true
			if err := c.Flush(e.drive); err != nil {
				return err
			}
		}
	}
	for i := range c.entries {
		c.entries[i] = cacheEntry{}
	}
	return nil
}
