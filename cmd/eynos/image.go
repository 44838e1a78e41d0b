package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/Hdev-Group/eynos/image"
	"golang.org/x/xerrors"
)

// cmdImage implements design §6.6's `image` verb group: export bundles
// a disk image plus EYN binaries into a distributable gzip+cpio
// archive; import extracts one back onto the host.
func cmdImage(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return xerrors.Errorf("usage: eynos image <export|import> ...")
	}
	switch args[0] {
	case "export":
		return cmdImageExport(ctx, args[1:])
	case "import":
		return cmdImageImport(ctx, args[1:])
	default:
		return xerrors.Errorf("unknown image subcommand %q", args[0])
	}
}

func cmdImageExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("image export", flag.ExitOnError)
	disk := fs.String("disk", "eynos.img", "EYNFS disk image to bundle")
	out := fs.String("o", "eynos-bundle.img.gz", "output bundle path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := image.BundleToFile(*out, *disk, fs.Args()); err != nil {
		return xerrors.Errorf("exporting bundle: %w", err)
	}
	fmt.Printf("wrote bundle %s (disk %s, %d binaries)\n", *out, *disk, fs.NArg())
	return nil
}

func cmdImageImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("image import", flag.ExitOnError)
	destDir := fs.String("dest", ".", "directory to extract the bundle into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return xerrors.Errorf("usage: eynos image import -dest=dir <bundle.img.gz>")
	}

	diskPath, err := image.UnbundleFile(fs.Arg(0), *destDir)
	if err != nil {
		return xerrors.Errorf("importing bundle: %w", err)
	}
	fmt.Printf("extracted disk image to %s\n", diskPath)
	return nil
}
