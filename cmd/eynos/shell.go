package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Hdev-Group/eynos/eynfs"
	"github.com/Hdev-Group/eynos/kernel"
	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"
)

// cmdShell implements design §6.7's interactive shell: a line-reading
// loop over the same filesystem and loader operations the other verbs
// expose, against one mounted volume. Prompts are only printed when
// stdin is a real TTY (github.com/mattn/go-isatty), matching the
// teacher's own isTerminal gate in internal/batch/batch.go, so piping a
// script of commands into the shell produces no prompt noise.
func cmdShell(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	image := imageFlag(fs)
	drive := driveFlag(fs)
	baseLBA := fs.Uint("base", 0, "base LBA of the volume")
	if err := fs.Parse(args); err != nil {
		return err
	}

	k, closeFn, err := openKernel(*image, false, 0)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := k.Mount(*drive, uint32(*baseLBA)); err != nil {
		return xerrors.Errorf("shell: %w", err)
	}

	interactive := isatty.IsTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Println("eynos shell — commands: ls cat write rm mkdir run exit")
	}

	scan := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print("> ")
		}
		if !scan.Scan() {
			break
		}
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "exit", "quit":
			return nil
		case "ls":
			runShellLine(k, *drive, fields, shellLs)
		case "cat":
			runShellLine(k, *drive, fields, shellCat)
		case "write":
			runShellLine(k, *drive, fields, shellWrite)
		case "rm":
			runShellLine(k, *drive, fields, shellRm)
		case "mkdir":
			runShellLine(k, *drive, fields, shellMkdir)
		case "run":
			runShellLine(k, *drive, fields, shellRun)
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", fields[0])
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
	return scan.Err()
}

func runShellLine(k *kernel.Kernel, drive int, fields []string, fn func(k *kernel.Kernel, drive int, args []string) error) {
	if err := fn(k, drive, fields[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

func shellLs(k *kernel.Kernel, drive int, args []string) error {
	volFS, err := k.FS(drive)
	if err != nil {
		return err
	}
	head := volFS.Superblock().RootDirBlock
	if len(args) > 0 {
		entry, err := k.Handles.Stat(drive, args[0])
		if err != nil {
			return err
		}
		head = entry.FirstBlock
	}
	entries, err := k.Handles.Readdir(drive, head)
	if err != nil {
		return err
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

func shellCat(k *kernel.Kernel, drive int, args []string) error {
	if len(args) != 1 {
		return xerrors.New("usage: cat <path>")
	}
	data, err := k.ReadEYN(drive, args[0])
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	fmt.Println()
	return err
}

func shellWrite(k *kernel.Kernel, drive int, args []string) error {
	if len(args) < 2 {
		return xerrors.New("usage: write <path> <text...>")
	}
	data := []byte(strings.Join(args[1:], " "))
	return k.WriteEYN(drive, args[0], data)
}

func shellRm(k *kernel.Kernel, drive int, args []string) error {
	if len(args) != 1 {
		return xerrors.New("usage: rm <path>")
	}
	return k.Handles.Unlink(drive, args[0])
}

func shellMkdir(k *kernel.Kernel, drive int, args []string) error {
	if len(args) != 1 {
		return xerrors.New("usage: mkdir <path>")
	}
	return k.Handles.Mkdir(drive, args[0])
}

func shellRun(k *kernel.Kernel, drive int, args []string) error {
	if len(args) != 1 {
		return xerrors.New("usage: run <path>")
	}
	result, err := k.Run(drive, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("exit: %v eax=%d\n", result.Reason, result.Regs[0])
	return nil
}
