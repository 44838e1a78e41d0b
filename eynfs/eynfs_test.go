package eynfs

import (
	"testing"

	"github.com/Hdev-Group/eynos/blockdev"
)

func newTestFS(t *testing.T, totalBlocks uint32) *FS {
	t.Helper()
	dev := blockdev.NewMem(int(totalBlocks))
	cache := NewBlockCache(dev)
	fs, err := Format(dev, cache, 0, 0, totalBlocks)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	return fs
}

func TestFormatThenMount(t *testing.T) {
	dev := blockdev.NewMem(256)
	cache := NewBlockCache(dev)
	if _, err := Format(dev, cache, 0, 0, 256); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatal(err)
	}
	fs, err := Mount(dev, cache, NewDirCache(), 0, 0)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	sb := fs.Superblock()
	if sb.Magic != Magic {
		t.Errorf("got magic %x, want %x", sb.Magic, Magic)
	}
	if sb.RootDirBlock != RootDirOffset {
		t.Errorf("got root dir block %d, want %d", sb.RootDirBlock, RootDirOffset)
	}
}

func TestFormatThenMountNonZeroBaseLBA(t *testing.T) {
	const baseLBA = 2048
	dev := blockdev.NewMem(baseLBA + 256)
	cache := NewBlockCache(dev)
	if _, err := Format(dev, cache, 0, baseLBA, 256); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatal(err)
	}
	fs, err := Mount(dev, cache, NewDirCache(), 0, baseLBA)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	sb := fs.Superblock()
	if sb.RootDirBlock != RootDirOffset {
		t.Errorf("got root dir block %d, want %d (relative to BaseLBA, not absolute)", sb.RootDirBlock, RootDirOffset)
	}

	root := sb.RootDirBlock
	entry, err := fs.CreateEntry(root, "x.txt", TypeFile)
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	want := []byte("offset volume")
	if err := fs.WriteFile(&entry, want, root, 0); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	found, _, err := fs.FindInDir(root, "x.txt")
	if err != nil {
		t.Fatalf("FindInDir: %v", err)
	}
	got := make([]byte, len(want))
	if _, err := fs.ReadFile(found, got, 0); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}

	// The superblock's own LBA (baseLBA+SuperblockOffset) must still hold
	// valid magic/version bytes: a write through a relative block number
	// that lands back on the superblock would corrupt it.
	sbBuf := make([]byte, BlockSize)
	if err := dev.ReadSector(0, baseLBA+SuperblockOffset, sbBuf); err != nil {
		t.Fatal(err)
	}
	reread := UnmarshalSuperblock(sbBuf)
	if reread.Magic != Magic {
		t.Fatalf("superblock at baseLBA corrupted: got magic %x, want %x", reread.Magic, Magic)
	}
}

func TestFormatIdempotent(t *testing.T) {
	dev1 := blockdev.NewMem(256)
	cache1 := NewBlockCache(dev1)
	if _, err := Format(dev1, cache1, 0, 0, 256); err != nil {
		t.Fatal(err)
	}
	cache1.Clear()

	dev2 := blockdev.NewMem(256)
	cache2 := NewBlockCache(dev2)
	if _, err := Format(dev2, cache2, 0, 0, 256); err != nil {
		t.Fatal(err)
	}
	cache2.Clear()

	for _, block := range []uint32{SuperblockOffset, BitmapOffset, RootDirOffset} {
		b1 := make([]byte, BlockSize)
		b2 := make([]byte, BlockSize)
		if err := dev1.ReadSector(0, block, b1); err != nil {
			t.Fatal(err)
		}
		if err := dev2.ReadSector(0, block, b2); err != nil {
			t.Fatal(err)
		}
		for i := range b1 {
			if b1[i] != b2[i] {
				t.Fatalf("block %d differs at byte %d: %x vs %x", block, i, b1[i], b2[i])
			}
		}
	}
}

func TestCreateReadWriteRoundTrip(t *testing.T) {
	fs := newTestFS(t, 256)
	root := fs.Superblock().RootDirBlock

	docs, err := fs.CreateEntry(root, "docs", TypeDir)
	if err != nil {
		t.Fatalf("CreateEntry(docs): %v", err)
	}

	note, err := fs.CreateEntry(docs.FirstBlock, "note.txt", TypeFile)
	if err != nil {
		t.Fatalf("CreateEntry(note.txt): %v", err)
	}

	want := []byte("hello")
	if err := fs.WriteFile(&note, want, docs.FirstBlock, 0); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	found, _, err := fs.FindInDir(docs.FirstBlock, "note.txt")
	if err != nil {
		t.Fatalf("FindInDir: %v", err)
	}
	if found.Size != uint32(len(want)) {
		t.Fatalf("got size %d, want %d", found.Size, len(want))
	}

	got := make([]byte, len(want))
	n, err := fs.ReadFile(found, got, 0)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if n != len(want) || string(got) != string(want) {
		t.Fatalf("got %q, want %q", got[:n], want)
	}
}

func TestDeleteEvictsAndFreesBlocks(t *testing.T) {
	fs := newTestFS(t, 256)
	root := fs.Superblock().RootDirBlock

	entry, err := fs.CreateEntry(root, "gone.txt", TypeFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFile(&entry, []byte("data"), root, 0); err != nil {
		t.Fatal(err)
	}
	chainHead := entry.FirstBlock

	if err := fs.DeleteEntry(root, "gone.txt"); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}

	if _, _, err := fs.FindInDir(root, "gone.txt"); err == nil {
		t.Fatal("expected NotFound after delete")
	}

	// The block the file's chain occupied must now read back as free in
	// the bitmap.
	bitmapBuf := make([]byte, BlockSize)
	if err := fs.readBlock(fs.sb.BitmapBlock, bitmapBuf); err != nil {
		t.Fatal(err)
	}
	if bitmapGet(bitmapBuf, chainHead) {
		t.Fatalf("block %d still marked used after delete", chainHead)
	}
}

func TestManyFilesCreateAndSelectiveDelete(t *testing.T) {
	fs := newTestFS(t, 4096)
	root := fs.Superblock().RootDirBlock

	const n = 200
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = filename(i)
		if _, err := fs.CreateEntry(root, names[i], TypeFile); err != nil {
			t.Fatalf("CreateEntry(%s): %v", names[i], err)
		}
	}

	listed, err := fs.ReadDirTable(root, dirReadLimit)
	if err != nil {
		t.Fatal(err)
	}
	if got := countNonEmpty(listed); got != n {
		t.Fatalf("got %d entries after creating %d, want %d", got, n, n)
	}

	for i := 0; i < n; i += 2 {
		if err := fs.DeleteEntry(root, names[i]); err != nil {
			t.Fatalf("DeleteEntry(%s): %v", names[i], err)
		}
	}

	listed, err = fs.ReadDirTable(root, dirReadLimit)
	if err != nil {
		t.Fatal(err)
	}
	if got := countNonEmpty(listed); got != n/2 {
		t.Fatalf("got %d entries after deleting evens, want %d", got, n/2)
	}
	for i := 1; i < n; i += 2 {
		if _, _, err := fs.FindInDir(root, names[i]); err != nil {
			t.Fatalf("FindInDir(%s) after selective delete: %v", names[i], err)
		}
	}
}

func filename(i int) string {
	digits := "0123456789"
	s := ""
	if i == 0 {
		return "f0"
	}
	for i > 0 {
		s = string(digits[i%10]) + s
		i /= 10
	}
	return "f" + s
}

func countNonEmpty(entries []DirEntry) int {
	n := 0
	for _, e := range entries {
		if !e.Empty() {
			n++
		}
	}
	return n
}

func TestTraversePathRoot(t *testing.T) {
	fs := newTestFS(t, 256)
	res, err := fs.TraversePath("/")
	if err != nil {
		t.Fatal(err)
	}
	if res.Entry.Type != TypeDir {
		t.Fatalf("got type %d, want TypeDir", res.Entry.Type)
	}
	if res.Entry.FirstBlock != fs.Superblock().RootDirBlock {
		t.Fatalf("got first block %d, want root dir block %d", res.Entry.FirstBlock, fs.Superblock().RootDirBlock)
	}
}

func TestTraversePathNestedAndNotADirectory(t *testing.T) {
	fs := newTestFS(t, 256)
	root := fs.Superblock().RootDirBlock

	docs, err := fs.CreateEntry(root, "docs", TypeDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.CreateEntry(docs.FirstBlock, "note.txt", TypeFile); err != nil {
		t.Fatal(err)
	}

	res, err := fs.TraversePath("/docs/note.txt")
	if err != nil {
		t.Fatalf("TraversePath: %v", err)
	}
	if res.Entry.NameString() != "note.txt" {
		t.Fatalf("got %q, want note.txt", res.Entry.NameString())
	}

	if _, err := fs.TraversePath("/docs/note.txt/x"); err == nil {
		t.Fatal("expected NotADirectory walking through a file")
	} else if le, ok := err.(*LogicalError); !ok || le.Kind != NotADirectory {
		t.Fatalf("got %v, want NotADirectory", err)
	}
}

func TestCacheTransparency(t *testing.T) {
	fs := newTestFS(t, 256)
	root := fs.Superblock().RootDirBlock
	entry, err := fs.CreateEntry(root, "x.txt", TypeFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteFile(&entry, []byte("payload"), root, 0); err != nil {
		t.Fatal(err)
	}

	before, _, err := fs.FindInDir(root, "x.txt")
	if err != nil {
		t.Fatal(err)
	}
	bufBefore := make([]byte, before.Size)
	if _, err := fs.ReadFile(before, bufBefore, 0); err != nil {
		t.Fatal(err)
	}

	if err := fs.ClearCaches(); err != nil {
		t.Fatal(err)
	}

	after, _, err := fs.FindInDir(root, "x.txt")
	if err != nil {
		t.Fatal(err)
	}
	bufAfter := make([]byte, after.Size)
	if _, err := fs.ReadFile(after, bufAfter, 0); err != nil {
		t.Fatal(err)
	}

	if string(bufBefore) != string(bufAfter) {
		t.Fatalf("got %q after cache clear, want %q", bufAfter, bufBefore)
	}
}

func TestCreateEntryRefusesDuplicate(t *testing.T) {
	fs := newTestFS(t, 256)
	root := fs.Superblock().RootDirBlock
	if _, err := fs.CreateEntry(root, "dup", TypeFile); err != nil {
		t.Fatal(err)
	}
	_, err := fs.CreateEntry(root, "dup", TypeFile)
	if err == nil {
		t.Fatal("expected Exists error for duplicate name")
	}
	if le, ok := err.(*LogicalError); !ok || le.Kind != Exists {
		t.Fatalf("got %v, want Exists", err)
	}
}
