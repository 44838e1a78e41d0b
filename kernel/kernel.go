// Package kernel binds the filesystem and loader state — the block
// cache, directory cache, free-block cache (owned per-FS inside package
// eynfs), file handle table, and process sandbox — into one root object,
// instead of the ad-hoc package-level singletons design §9's "Global
// mutable state" note warns against. The heap allocator (package heap)
// is not part of Kernel. A *Kernel is constructed once per block device and
// threaded explicitly through every subsystem call; nothing in this
// module keeps package-level mutable globals.
package kernel

import (
	"github.com/Hdev-Group/eynos/blockdev"
	"github.com/Hdev-Group/eynos/eynexe"
	"github.com/Hdev-Group/eynos/eynfs"
	"github.com/Hdev-Group/eynos/handle"
	"golang.org/x/xerrors"
)

// Kernel is the root object a host CLI or shell constructs once and
// passes to every operation it drives.
type Kernel struct {
	Dev      blockdev.BlockDevice
	Cache    *eynfs.BlockCache
	DirCache *eynfs.DirCache
	Handles  *handle.Table
	Sandbox  *eynexe.Sandbox

	volumes map[int]*eynfs.FS
}

// New returns a Kernel with empty caches and an empty handle table,
// ready to have volumes mounted or formatted onto it.
func New(dev blockdev.BlockDevice) *Kernel {
	return &Kernel{
		Dev:      dev,
		Cache:    eynfs.NewBlockCache(dev),
		DirCache: eynfs.NewDirCache(),
		Handles:  handle.NewTable(),
		Sandbox:  eynexe.NewSandbox(),
		volumes:  make(map[int]*eynfs.FS),
	}
}

// Format formats a fresh EYNFS volume on drive starting at baseLBA
// (design §6.1) and mounts it into the handle table.
func (k *Kernel) Format(drive int, baseLBA, totalBlocks uint32) error {
	fs, err := eynfs.Format(k.Dev, k.Cache, drive, baseLBA, totalBlocks)
	if err != nil {
		return xerrors.Errorf("formatting drive %d: %w", drive, err)
	}
	k.volumes[drive] = fs
	k.Handles.Mount(drive, fs)
	return nil
}

// Mount mounts an already-formatted EYNFS volume on drive.
func (k *Kernel) Mount(drive int, baseLBA uint32) error {
	fs, err := eynfs.Mount(k.Dev, k.Cache, k.DirCache, drive, baseLBA)
	if err != nil {
		return xerrors.Errorf("mounting drive %d: %w", drive, err)
	}
	k.volumes[drive] = fs
	k.Handles.Mount(drive, fs)
	return nil
}

// FS returns the mounted volume on drive, or an error if none is
// mounted.
func (k *Kernel) FS(drive int) (*eynfs.FS, error) {
	fs, ok := k.volumes[drive]
	if !ok {
		return nil, xerrors.Errorf("drive %d: no filesystem mounted", drive)
	}
	return fs, nil
}

// FSCheck validates the superblock of drive (design §6.3's `fscheck`
// operation) by checking the copy read when the volume was mounted,
// magic and block size only; the device is not read again.
func (k *Kernel) FSCheck(drive int) error {
	return k.Handles.FSCheck(drive)
}

// ReadEYN reads path in full through the handle table, for callers (the
// loader, the shell's `run` verb) that need a whole file's bytes rather
// than a stream.
func (k *Kernel) ReadEYN(drive int, path string) ([]byte, error) {
	fd, err := k.Handles.Open(drive, path, handle.ModeRead)
	if err != nil {
		return nil, err
	}
	defer k.Handles.Close(fd)

	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := k.Handles.Read(fd, buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}

// WriteEYN writes data to path through the handle table, truncating any
// existing content (design §4.9, write mode), then flushes drive's dirty
// blocks from the block cache so the result is on the device.
func (k *Kernel) WriteEYN(drive int, path string, data []byte) error {
	fd, err := k.Handles.Open(drive, path, handle.ModeWrite)
	if err != nil {
		return err
	}
	defer k.Handles.Close(fd)
	if _, err := k.Handles.Write(fd, data); err != nil {
		return err
	}
	return k.Cache.Flush(drive)
}

// Run loads and executes path per design §4.10 (the `run` CLI verb,
// design §6.5).
func (k *Kernel) Run(drive int, path string) (eynexe.LoadResult, error) {
	file, err := k.ReadEYN(drive, path)
	if err != nil {
		return eynexe.LoadResult{}, err
	}
	return eynexe.Load(k.Sandbox, file)
}
