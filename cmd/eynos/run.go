package main

import (
	"context"
	"flag"
	"fmt"

	"golang.org/x/xerrors"
)

// cmdRun implements design §6.5's `run` verb: load and execute an EYN
// executable already stored on the mounted volume, through the same
// loader path the kernel uses (design §4.10).
func cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	image := imageFlag(fs)
	drive := driveFlag(fs)
	baseLBA := fs.Uint("base", 0, "base LBA of the volume")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return xerrors.Errorf("usage: eynos run -image=... <path>")
	}
	path := fs.Arg(0)

	k, closeFn, err := openKernel(*image, false, 0)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := k.Mount(*drive, uint32(*baseLBA)); err != nil {
		return xerrors.Errorf("run: %w", err)
	}

	result, err := k.Run(*drive, path)
	if err != nil {
		return xerrors.Errorf("run %s: %w", path, err)
	}
	fmt.Printf("exit: %v\n", result.Reason)
	fmt.Printf("registers: eax=%d ebx=%d ecx=%d edx=%d esi=%d edi=%d esp=%d ebp=%d\n",
		result.Regs[0], result.Regs[1], result.Regs[2], result.Regs[3],
		result.Regs[4], result.Regs[5], result.Regs[6], result.Regs[7])
	return nil
}
