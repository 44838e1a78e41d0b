package main

import (
	"context"
	"flag"
	"fmt"

	"golang.org/x/xerrors"
)

// cmdMkfs implements design §6.3's `mkfs` verb: format a fresh EYNFS
// volume onto a (possibly freshly created) disk image.
func cmdMkfs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mkfs", flag.ExitOnError)
	image := imageFlag(fs)
	drive := driveFlag(fs)
	baseLBA := fs.Uint("base", 0, "base LBA of the volume")
	blocks := fs.Uint("blocks", 2048, "total blocks in the volume")
	if err := fs.Parse(args); err != nil {
		return err
	}

	nsectors := int(*baseLBA) + int(*blocks)
	k, closeFn, err := openKernel(*image, true, nsectors)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := k.Format(*drive, uint32(*baseLBA), uint32(*blocks)); err != nil {
		return xerrors.Errorf("mkfs: %w", err)
	}
	fmt.Printf("formatted drive %d: %d blocks at base LBA %d\n", *drive, *blocks, *baseLBA)
	return nil
}
