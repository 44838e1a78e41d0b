// Package handle implements the POSIX-like file handle table design §4.9
// and §6.3 specify: a fixed table of handles over one or more mounted
// EYNFS volumes, exposing open/close/read/write plus the directory
// operations (mkdir, rmdir, unlink, readdir, stat) the shell calls.
package handle

import (
	"fmt"

	"github.com/Hdev-Group/eynos/eynfs"
)

// MaxHandles bounds the table (design §3.8, "Up to 32 concurrent
// handles").
const MaxHandles = 32

// Mode enumerates the three modes design §6.3 exposes. Mode is the
// implementation vehicle for design §3.8's four conceptual modes {read,
// write, truncate-write, append}: Write always truncates, matching the
// shell-facing API in design §6.3 where "write" and "truncate-write" are
// the same externally visible mode.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
	ModeAppend
)

// ErrorKind enumerates handle-table-specific failures not already
// covered by eynfs's error kinds.
type ErrorKind int

const (
	BadFd ErrorKind = iota
	BadMode
)

func (k ErrorKind) String() string {
	if k == BadFd {
		return "BadFd"
	}
	return "BadMode"
}

// Error is returned for handle-table-specific failures (bad descriptor,
// writing a directory handle, etc).
type Error struct {
	Kind ErrorKind
	Fd   int
}

func (e *Error) Error() string { return fmt.Sprintf("%s: fd %d", e.Kind, e.Fd) }

type slot struct {
	inUse      bool
	drive      int
	entry      eynfs.DirEntry
	offset     uint32
	mode       Mode
	parentHead uint32
	index      int
	isRoot     bool
	dirRead    bool // directory handle: synthetic listing already produced
}

// Table is the fixed 32-entry file handle table. It is bound to one or
// more mounted eynfs.FS volumes, keyed by drive index, via Mount.
type Table struct {
	drives  map[int]*eynfs.FS
	handles [MaxHandles]slot
}

// NewTable returns an empty handle table with no mounted volumes.
func NewTable() *Table {
	return &Table{drives: make(map[int]*eynfs.FS)}
}

// Mount registers fs as the mounted volume for drive. A later Open call
// using that drive will resolve paths against it.
func (t *Table) Mount(drive int, fs *eynfs.FS) {
	t.drives[drive] = fs
}

func (t *Table) fsFor(drive int) (*eynfs.FS, error) {
	fs, ok := t.drives[drive]
	if !ok {
		return nil, &eynfs.StructuralError{Op: "open", Context: "no filesystem mounted on this drive"}
	}
	return fs, nil
}

func (t *Table) allocSlot() (int, error) {
	for i := range t.handles {
		if !t.handles[i].inUse {
			return i, nil
		}
	}
	return 0, &eynfs.ResourceError{Kind: eynfs.OutOfHandles, Op: "open"}
}

// Open resolves path against the volume mounted on drive and binds a
// handle to it. "/" only succeeds in ModeRead, yielding a synthetic
// directory entry. If the path does not exist and mode is ModeWrite or
// ModeAppend, the parent directory is found, the entry is created, and
// the path is re-resolved against the fresh entry (design §4.9).
func (t *Table) Open(drive int, path string, mode Mode) (int, error) {
	fs, err := t.fsFor(drive)
	if err != nil {
		return 0, err
	}

	if path == "/" {
		if mode != ModeRead {
			return 0, &eynfs.LogicalError{Kind: eynfs.InvalidPath, Path: path}
		}
		fd, err := t.allocSlot()
		if err != nil {
			return 0, err
		}
		t.handles[fd] = slot{
			inUse:  true,
			drive:  drive,
			entry:  eynfs.DirEntry{Type: eynfs.TypeDir, FirstBlock: fs.Superblock().RootDirBlock},
			mode:   ModeRead,
			isRoot: true,
		}
		return fd, nil
	}

	res, err := fs.TraversePath(path)
	if err != nil {
		le, isLogical := err.(*eynfs.LogicalError)
		if !isLogical || le.Kind != eynfs.NotFound || mode == ModeRead {
			return 0, err
		}
		parentPath, base := eynfs.SplitParent(path)
		parentRes, perr := fs.TraversePath(parentPath)
		if perr != nil {
			return 0, perr
		}
		if parentRes.Entry.Type != eynfs.TypeDir {
			return 0, &eynfs.LogicalError{Kind: eynfs.NotADirectory, Path: parentPath}
		}
		created, cerr := fs.CreateEntry(parentRes.Entry.FirstBlock, base, eynfs.TypeFile)
		if cerr != nil {
			return 0, cerr
		}
		res = eynfs.TraverseResult{Entry: created, ParentHead: parentRes.Entry.FirstBlock, Index: 0}
		// Re-resolve to get the authoritative index assigned by CreateEntry.
		res2, terr := fs.TraversePath(path)
		if terr == nil {
			res = res2
		}
	}

	if res.Entry.Type == eynfs.TypeDir && mode != ModeRead {
		return 0, &eynfs.LogicalError{Kind: eynfs.IsADirectory, Path: path}
	}

	fd, err := t.allocSlot()
	if err != nil {
		return 0, err
	}
	s := slot{
		inUse:      true,
		drive:      drive,
		entry:      res.Entry,
		mode:       mode,
		parentHead: res.ParentHead,
		index:      res.Index,
	}
	switch mode {
	case ModeWrite:
		s.entry.Size = 0
		s.entry.FirstBlock = 0
		s.offset = 0
	case ModeAppend:
		s.offset = res.Entry.Size
	}
	t.handles[fd] = s
	return fd, nil
}

// Close releases fd. No implicit flush happens beyond what Write already
// committed (design §4.9).
func (t *Table) Close(fd int) error {
	s, err := t.slotFor(fd)
	if err != nil {
		return err
	}
	*s = slot{}
	return nil
}

func (t *Table) slotFor(fd int) (*slot, error) {
	if fd < 0 || fd >= MaxHandles || !t.handles[fd].inUse {
		return nil, &Error{Kind: BadFd, Fd: fd}
	}
	return &t.handles[fd], nil
}

// Read behaves per design §4.9: a directory handle's first read produces
// a synthesised newline-separated text listing (directories suffixed
// with "/"); subsequent reads return 0. A file handle delegates to
// eynfs.FS.ReadFile at the current offset and advances it.
func (t *Table) Read(fd int, buf []byte) (int, error) {
	s, err := t.slotFor(fd)
	if err != nil {
		return 0, err
	}
	fs, err := t.fsFor(s.drive)
	if err != nil {
		return 0, err
	}

	if s.entry.Type == eynfs.TypeDir {
		if s.dirRead {
			return 0, nil
		}
		s.dirRead = true
		entries, err := fs.ReadDirTable(s.entry.FirstBlock, dirListLimit)
		if err != nil {
			return 0, err
		}
		text := ""
		for _, e := range entries {
			if e.Empty() {
				continue
			}
			name := e.NameString()
			if e.Type == eynfs.TypeDir {
				name += "/"
			}
			text += name + "\n"
		}
		n := copy(buf, text)
		return n, nil
	}

	n, err := fs.ReadFile(s.entry, buf, s.offset)
	if err != nil {
		return n, err
	}
	s.offset += uint32(n)
	return n, nil
}

// dirListLimit bounds how many entries Read will materialise for a
// directory handle's synthetic listing.
const dirListLimit = 16 * 1024 / eynfs.DirEntrySize

// Write behaves per design §4.9: directory handles are refused. Append
// mode with a nonzero offset reads the existing content and concatenates
// before calling WriteFile once, so the update is atomic per call (not
// per byte). Other write modes overwrite from offset zero.
func (t *Table) Write(fd int, buf []byte) (int, error) {
	s, err := t.slotFor(fd)
	if err != nil {
		return 0, err
	}
	if s.entry.Type == eynfs.TypeDir {
		return 0, &Error{Kind: BadMode, Fd: fd}
	}
	fs, err := t.fsFor(s.drive)
	if err != nil {
		return 0, err
	}

	var final []byte
	if s.mode == ModeAppend && s.offset > 0 {
		existing := make([]byte, s.offset)
		if _, err := fs.ReadFile(s.entry, existing, 0); err != nil {
			return 0, err
		}
		final = append(existing, buf...)
	} else {
		final = append([]byte(nil), buf...)
	}

	if err := fs.WriteFile(&s.entry, final, s.parentHead, s.index); err != nil {
		return 0, err
	}
	s.offset = s.entry.Size
	return len(buf), nil
}

// Mkdir creates an empty directory at path.
func (t *Table) Mkdir(drive int, path string) error {
	fs, err := t.fsFor(drive)
	if err != nil {
		return err
	}
	parentPath, base := eynfs.SplitParent(path)
	parentRes, err := fs.TraversePath(parentPath)
	if err != nil {
		return err
	}
	if parentRes.Entry.Type != eynfs.TypeDir {
		return &eynfs.LogicalError{Kind: eynfs.NotADirectory, Path: parentPath}
	}
	_, err = fs.CreateEntry(parentRes.Entry.FirstBlock, base, eynfs.TypeDir)
	return err
}

// Rmdir removes an empty directory at path.
func (t *Table) Rmdir(drive int, path string) error {
	fs, err := t.fsFor(drive)
	if err != nil {
		return err
	}
	res, err := fs.TraversePath(path)
	if err != nil {
		return err
	}
	if res.Entry.Type != eynfs.TypeDir {
		return &eynfs.LogicalError{Kind: eynfs.NotADirectory, Path: path}
	}
	children, err := fs.ReadDirTable(res.Entry.FirstBlock, dirListLimit)
	if err != nil {
		return err
	}
	for _, c := range children {
		if !c.Empty() {
			return &eynfs.LogicalError{Kind: eynfs.NotEmpty, Path: path}
		}
	}
	_, base := eynfs.SplitParent(path)
	return fs.DeleteEntry(res.ParentHead, base)
}

// Unlink removes a file at path.
func (t *Table) Unlink(drive int, path string) error {
	fs, err := t.fsFor(drive)
	if err != nil {
		return err
	}
	res, err := fs.TraversePath(path)
	if err != nil {
		return err
	}
	if res.Entry.Type == eynfs.TypeDir {
		return &eynfs.LogicalError{Kind: eynfs.IsADirectory, Path: path}
	}
	_, base := eynfs.SplitParent(path)
	return fs.DeleteEntry(res.ParentHead, base)
}

// Readdir returns the non-empty entries of the directory at head.
func (t *Table) Readdir(drive int, head uint32) ([]eynfs.DirEntry, error) {
	fs, err := t.fsFor(drive)
	if err != nil {
		return nil, err
	}
	all, err := fs.ReadDirTable(head, dirListLimit)
	if err != nil {
		return nil, err
	}
	out := make([]eynfs.DirEntry, 0, len(all))
	for _, e := range all {
		if !e.Empty() {
			out = append(out, e)
		}
	}
	return out, nil
}

// Stat resolves path and returns its directory entry.
func (t *Table) Stat(drive int, path string) (eynfs.DirEntry, error) {
	fs, err := t.fsFor(drive)
	if err != nil {
		return eynfs.DirEntry{}, err
	}
	res, err := fs.TraversePath(path)
	if err != nil {
		return eynfs.DirEntry{}, err
	}
	return res.Entry, nil
}

// FSCheck validates the superblock of the volume mounted on drive (design
// §6.3, "fscheck"). It checks the copy read when the volume was mounted,
// magic and block size only; the device is not read again.
func (t *Table) FSCheck(drive int) error {
	fs, err := t.fsFor(drive)
	if err != nil {
		return err
	}
	sb := fs.Superblock()
	if sb.Magic != eynfs.Magic {
		return &eynfs.StructuralError{Op: "fscheck", Context: "bad magic"}
	}
	if sb.BlockSize != eynfs.BlockSize {
		return &eynfs.StructuralError{Op: "fscheck", Context: "unexpected block size"}
	}
	return nil
}
