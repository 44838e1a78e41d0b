package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Hdev-Group/eynos/eynfs"
	"golang.org/x/xerrors"
)

func cmdLs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	image := imageFlag(fs)
	drive := driveFlag(fs)
	baseLBA := fs.Uint("base", 0, "base LBA of the volume")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := "/"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	k, closeFn, err := openKernel(*image, false, 0)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := k.Mount(*drive, uint32(*baseLBA)); err != nil {
		return xerrors.Errorf("ls: %w", err)
	}

	volFS, err := k.FS(*drive)
	if err != nil {
		return err
	}

	head := volFS.Superblock().RootDirBlock
	if path != "/" && path != "" {
		entry, err := k.Handles.Stat(*drive, path)
		if err != nil {
			return xerrors.Errorf("ls %s: %w", path, err)
		}
		head = entry.FirstBlock
	}

	entries, err := k.Handles.Readdir(*drive, head)
	if err != nil {
		return xerrors.Errorf("ls %s: %w", path, err)
	}
	for _, e := range entries {
		kind := "f"
		if e.Type == eynfs.TypeDir {
			kind = "d"
		}
		fmt.Printf("%s %8d %s\n", kind, e.Size, e.NameString())
	}
	return nil
}

func cmdCat(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cat", flag.ExitOnError)
	image := imageFlag(fs)
	drive := driveFlag(fs)
	baseLBA := fs.Uint("base", 0, "base LBA of the volume")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return xerrors.Errorf("usage: eynos cat -image=... <path>")
	}
	path := fs.Arg(0)

	k, closeFn, err := openKernel(*image, false, 0)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := k.Mount(*drive, uint32(*baseLBA)); err != nil {
		return xerrors.Errorf("cat: %w", err)
	}

	data, err := k.ReadEYN(*drive, path)
	if err != nil {
		return xerrors.Errorf("cat %s: %w", path, err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func cmdWrite(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	image := imageFlag(fs)
	drive := driveFlag(fs)
	baseLBA := fs.Uint("base", 0, "base LBA of the volume")
	from := fs.String("from", "", "host file to copy content from (default: stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return xerrors.Errorf("usage: eynos write -image=... [-from=hostfile] <path>")
	}
	path := fs.Arg(0)

	var data []byte
	var err error
	if *from != "" {
		data, err = os.ReadFile(*from)
	} else {
		data, err = readAllStdin()
	}
	if err != nil {
		return xerrors.Errorf("write %s: %w", path, err)
	}

	k, closeFn, err := openKernel(*image, false, 0)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := k.Mount(*drive, uint32(*baseLBA)); err != nil {
		return xerrors.Errorf("write: %w", err)
	}
	if err := k.WriteEYN(*drive, path, data); err != nil {
		return xerrors.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("wrote %d bytes to %s\n", len(data), path)
	return nil
}

func cmdRm(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	image := imageFlag(fs)
	drive := driveFlag(fs)
	baseLBA := fs.Uint("base", 0, "base LBA of the volume")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return xerrors.Errorf("usage: eynos rm -image=... <path>")
	}
	path := fs.Arg(0)

	k, closeFn, err := openKernel(*image, false, 0)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := k.Mount(*drive, uint32(*baseLBA)); err != nil {
		return xerrors.Errorf("rm: %w", err)
	}
	if err := k.Handles.Unlink(*drive, path); err != nil {
		return xerrors.Errorf("rm %s: %w", path, err)
	}
	return nil
}

func cmdMkdir(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mkdir", flag.ExitOnError)
	image := imageFlag(fs)
	drive := driveFlag(fs)
	baseLBA := fs.Uint("base", 0, "base LBA of the volume")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return xerrors.Errorf("usage: eynos mkdir -image=... <path>")
	}
	path := fs.Arg(0)

	k, closeFn, err := openKernel(*image, false, 0)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := k.Mount(*drive, uint32(*baseLBA)); err != nil {
		return xerrors.Errorf("mkdir: %w", err)
	}
	if err := k.Handles.Mkdir(*drive, path); err != nil {
		return xerrors.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

func readAllStdin() ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return buf, err
		}
		if n == 0 {
			break
		}
	}
	return buf, nil
}
