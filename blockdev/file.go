package blockdev

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// File is a BlockDevice backed by up to MaxDrives regular files (or any
// io.ReaderAt/io.WriterAt), simulating the ATA PIO driver the design
// treats as an external collaborator. When a drive's backing is a real
// *os.File, reads and writes go through golang.org/x/sys/unix.Pread and
// Pwrite directly, following the teacher's habit of reaching for raw
// syscalls (cmd/minitrd) rather than the generic os.File offset API.
// Other io.ReaderAt/io.WriterAt backings (e.g. an in-memory image under
// test) fall back to ReadAt/WriteAt.
type File struct {
	drives [MaxDrives]driveBacking
}

type driveBacking struct {
	osFile *os.File
	ra     io.ReaderAt
	wa     io.WriterAt
}

// NewFile constructs an empty File device with no drives attached.
func NewFile() *File {
	return &File{}
}

// Attach binds drive to the given backing file. The caller retains
// ownership of f and is responsible for closing it.
func (d *File) Attach(drive int, f *os.File) error {
	if err := checkDrive(drive); err != nil {
		return err
	}
	d.drives[drive] = driveBacking{osFile: f, ra: f, wa: f}
	return nil
}

// AttachReaderWriter binds drive to an arbitrary io.ReaderAt/io.WriterAt,
// used by tests to back a drive with an in-memory buffer.
func (d *File) AttachReaderWriter(drive int, ra io.ReaderAt, wa io.WriterAt) error {
	if err := checkDrive(drive); err != nil {
		return err
	}
	d.drives[drive] = driveBacking{ra: ra, wa: wa}
	return nil
}

func (d *File) backing(drive int, lba uint32) (driveBacking, error) {
	if err := checkDrive(drive); err != nil {
		return driveBacking{}, newDeviceError(NotPresent, drive, lba, err)
	}
	b := d.drives[drive]
	if b.osFile == nil && b.ra == nil {
		return driveBacking{}, newDeviceError(NotPresent, drive, lba, xerrors.New("no backing attached"))
	}
	return b, nil
}

func (d *File) ReadSector(drive int, lba uint32, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return newDeviceError(BusError, drive, lba, err)
	}
	b, err := d.backing(drive, lba)
	if err != nil {
		return err
	}
	off := int64(lba) * SectorSize
	var n int
	if b.osFile != nil {
		n, err = unix.Pread(int(b.osFile.Fd()), buf, off)
	} else {
		n, err = b.ra.ReadAt(buf, off)
	}
	if err != nil && err != io.EOF {
		return newDeviceError(BusError, drive, lba, err)
	}
	for i := n; i < SectorSize; i++ {
		buf[i] = 0
	}
	return nil
}

func (d *File) WriteSector(drive int, lba uint32, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return newDeviceError(BusError, drive, lba, err)
	}
	b, err := d.backing(drive, lba)
	if err != nil {
		return err
	}
	off := int64(lba) * SectorSize
	if b.osFile != nil {
		_, err = unix.Pwrite(int(b.osFile.Fd()), buf, off)
	} else {
		_, err = b.wa.WriteAt(buf, off)
	}
	if err != nil {
		return newDeviceError(BusError, drive, lba, err)
	}
	return nil
}

// Mem is a BlockDevice backed entirely in memory, used by unit tests that
// do not want to touch the filesystem. It is equivalent to attaching a
// fixed-size *bytes.Reader-like buffer to every drive via File, but
// avoids the os.File machinery entirely.
type Mem struct {
	drives [MaxDrives][]byte
}

// NewMem constructs an in-memory device with drive 0 sized for nsectors
// sectors. Additional drives can be sized with Resize.
func NewMem(nsectors int) *Mem {
	m := &Mem{}
	m.drives[0] = make([]byte, nsectors*SectorSize)
	return m
}

// Resize (re)allocates the given drive to hold nsectors sectors, zeroed.
func (m *Mem) Resize(drive, nsectors int) error {
	if err := checkDrive(drive); err != nil {
		return err
	}
	m.drives[drive] = make([]byte, nsectors*SectorSize)
	return nil
}

func (m *Mem) ReadSector(drive int, lba uint32, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return newDeviceError(BusError, drive, lba, err)
	}
	if err := checkDrive(drive); err != nil {
		return newDeviceError(NotPresent, drive, lba, err)
	}
	d := m.drives[drive]
	off := int64(lba) * SectorSize
	if off < 0 || off+SectorSize > int64(len(d)) {
		return newDeviceError(BusError, drive, lba, xerrors.New("lba out of range"))
	}
	copy(buf, d[off:off+SectorSize])
	return nil
}

func (m *Mem) WriteSector(drive int, lba uint32, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return newDeviceError(BusError, drive, lba, err)
	}
	if err := checkDrive(drive); err != nil {
		return newDeviceError(NotPresent, drive, lba, err)
	}
	d := m.drives[drive]
	off := int64(lba) * SectorSize
	if off < 0 || off+SectorSize > int64(len(d)) {
		return newDeviceError(BusError, drive, lba, xerrors.New("lba out of range"))
	}
	copy(d[off:off+SectorSize], buf)
	return nil
}
