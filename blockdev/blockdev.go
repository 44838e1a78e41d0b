// Package blockdev abstracts sector-addressed storage behind the single
// I/O boundary the rest of the kernel core is built on: read_sector and
// write_sector keyed by a drive index and an absolute LBA. This package
// neither retries nor caches; caching is the job of eynfs's block cache.
package blockdev

import (
	"fmt"

	"golang.org/x/xerrors"
)

// SectorSize is the fixed sector size every EYNFS structure is built on.
const SectorSize = 512

// MaxDrives bounds the drive index accepted by implementations, matching
// the 0..7 range the design specifies.
const MaxDrives = 8

// ErrorKind classifies a DeviceError the way the design's §7 taxonomy
// requires: callers branch on Kind, not on the wrapped error's type.
type ErrorKind int

const (
	Timeout ErrorKind = iota
	NotPresent
	BusError
)

func (k ErrorKind) String() string {
	switch k {
	case Timeout:
		return "Timeout"
	case NotPresent:
		return "NotPresent"
	case BusError:
		return "BusError"
	default:
		return "Unknown"
	}
}

// DeviceError is the sole error type surfaced across the block device
// boundary. It always carries enough context (drive, lba) for the shell
// to print a useful message.
type DeviceError struct {
	Kind  ErrorKind
	Drive int
	LBA   uint32
	Err   error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Device(%s): drive %d lba %d: %v", e.Kind, e.Drive, e.LBA, e.Err)
	}
	return fmt.Sprintf("Device(%s): drive %d lba %d", e.Kind, e.Drive, e.LBA)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func newDeviceError(kind ErrorKind, drive int, lba uint32, err error) *DeviceError {
	return &DeviceError{Kind: kind, Drive: drive, LBA: lba, Err: err}
}

// BlockDevice is the contract every higher layer in the kernel core is
// written against. Implementations do not need to be safe for concurrent
// use: the kernel core is single-threaded cooperative (design §5).
type BlockDevice interface {
	// ReadSector fills buf (which must be exactly SectorSize bytes) with
	// the contents of the given sector.
	ReadSector(drive int, lba uint32, buf []byte) error
	// WriteSector writes buf (which must be exactly SectorSize bytes) to
	// the given sector.
	WriteSector(drive int, lba uint32, buf []byte) error
}

func checkDrive(drive int) error {
	if drive < 0 || drive >= MaxDrives {
		return xerrors.Errorf("drive %d out of range [0,%d)", drive, MaxDrives)
	}
	return nil
}

func checkBuf(buf []byte) error {
	if len(buf) != SectorSize {
		return xerrors.Errorf("buffer size %d, want %d", len(buf), SectorSize)
	}
	return nil
}
