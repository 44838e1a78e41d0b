package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Hdev-Group/eynos/asm"
	"golang.org/x/xerrors"
)

// cmdAssemble implements design §6.4's `assemble` verb: read a source
// file, run it through the assembler pipeline, and write the packaged
// EYN executable, reporting per-line emission errors without aborting
// the run (design §7).
func cmdAssemble(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("assemble", flag.ExitOnError)
	out := fs.String("o", "a.eyn", "output EYN executable path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return xerrors.Errorf("usage: eynos assemble -o=out.eyn <source.asm>")
	}

	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return xerrors.Errorf("reading %s: %w", fs.Arg(0), err)
	}

	res, err := asm.Assemble(string(src))
	if err != nil {
		return xerrors.Errorf("assembling %s: %w", fs.Arg(0), err)
	}
	for _, e := range res.Errors {
		fmt.Fprintln(os.Stderr, e)
	}
	if res.File == nil {
		return xerrors.Errorf("assembling %s: no output produced", fs.Arg(0))
	}

	if err := os.WriteFile(*out, res.File, 0644); err != nil {
		return xerrors.Errorf("writing %s: %w", *out, err)
	}
	fmt.Printf("assembled %s -> %s (code %d bytes, data %d bytes, entry %#x)\n",
		fs.Arg(0), *out, res.CodeSize, res.DataSize, res.EntryAddr)
	return nil
}
