package main

import (
	"flag"
	"os"

	"github.com/Hdev-Group/eynos/blockdev"
	"github.com/Hdev-Group/eynos/kernel"
	"golang.org/x/xerrors"
)

// openKernel opens imgPath (creating it with nsectors sectors if it does
// not exist and create is true) and returns a *kernel.Kernel backed by
// it via blockdev.File, mirroring the teacher's pattern of building
// host-side plumbing directly in each verb rather than a shared daemon.
func openKernel(imgPath string, create bool, nsectors int) (*kernel.Kernel, func() error, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(imgPath, flags, 0644)
	if err != nil {
		return nil, nil, xerrors.Errorf("opening image %s: %w", imgPath, err)
	}
	if create {
		if err := f.Truncate(int64(nsectors) * blockdev.SectorSize); err != nil {
			f.Close()
			return nil, nil, xerrors.Errorf("sizing image %s: %w", imgPath, err)
		}
	}

	// A single backing image can host several EYNFS volumes at distinct
	// base LBAs (design §6.1's baseLBA parameter); every drive index is
	// attached to the same file so -drive only selects which volume's
	// superblock a verb addresses, not a separate backing file.
	dev := blockdev.NewFile()
	for drive := 0; drive < blockdev.MaxDrives; drive++ {
		if err := dev.Attach(drive, f); err != nil {
			f.Close()
			return nil, nil, xerrors.Errorf("attaching image %s: %w", imgPath, err)
		}
	}

	k := kernel.New(dev)
	return k, f.Close, nil
}

// driveFlag registers the -drive flag every filesystem verb accepts.
func driveFlag(fs *flag.FlagSet) *int {
	return fs.Int("drive", 0, "drive number to operate on")
}

// imageFlag registers the -image flag every filesystem verb accepts.
func imageFlag(fs *flag.FlagSet) *string {
	return fs.String("image", "eynos.img", "path to the EYNFS disk image")
}
