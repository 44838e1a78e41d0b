// Command eynos is the hosted CLI front end for the EYN-OS core: format
// and check EYNFS disk images, run shell-equivalent filesystem verbs
// against one, assemble and run EYN executables, package images for
// distribution, and drop into an interactive shell — all without a
// bootloader, driving the same core package the kernel itself would use
// (design SPEC_FULL.md §2, §6.6, §6.7). Verb dispatch follows the
// teacher's cmd/distri/distri.go funcmain/verbs pattern.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	eynos "github.com/Hdev-Group/eynos"
)

var debug = flag.Bool("debug", false, "format error messages with additional detail")

type cmd struct {
	fn func(ctx context.Context, args []string) error
}

func funcmain() error {
	flag.Parse()

	verbs := map[string]cmd{
		"mkfs":     {cmdMkfs},
		"fsck":     {cmdFsck},
		"ls":       {cmdLs},
		"cat":      {cmdCat},
		"write":    {cmdWrite},
		"rm":       {cmdRm},
		"mkdir":    {cmdMkdir},
		"assemble": {cmdAssemble},
		"run":      {cmdRun},
		"image":    {cmdImage},
		"shell":    {cmdShell},
	}

	args := flag.Args()
	if len(args) == 0 {
		return fmt.Errorf("usage: eynos <command> [options]; commands: mkfs fsck ls cat write rm mkdir assemble run image shell")
	}
	verb, rest := args[0], args[1:]

	v, ok := verbs[verb]
	if !ok {
		return fmt.Errorf("unknown command %q", verb)
	}

	ctx, canc := eynos.InterruptibleContext()
	defer canc()
	return v.fn(ctx, rest)
}

func main() {
	if err := funcmain(); err != nil {
		if *debug {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
