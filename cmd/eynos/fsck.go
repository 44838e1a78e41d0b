package main

import (
	"context"
	"flag"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// cmdFsck implements design §6.3's `fsck` verb. With -all, every drive
// named by -drives is checked concurrently via errgroup, following the
// teacher's habit of using golang.org/x/sync/errgroup to fan out
// independent host-tool work (cmd/distri's build scheduler).
func cmdFsck(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fsck", flag.ExitOnError)
	image := imageFlag(fs)
	drive := driveFlag(fs)
	baseLBA := fs.Uint("base", 0, "base LBA of the volume")
	all := fs.Bool("all", false, "check every drive in -drives concurrently")
	drives := fs.String("drives", "0", "comma-separated drive list used with -all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	k, closeFn, err := openKernel(*image, false, 0)
	if err != nil {
		return err
	}
	defer closeFn()

	if !*all {
		if err := k.Mount(*drive, uint32(*baseLBA)); err != nil {
			return xerrors.Errorf("fsck: %w", err)
		}
		if err := k.FSCheck(*drive); err != nil {
			return xerrors.Errorf("fsck drive %d: %w", *drive, err)
		}
		fmt.Printf("drive %d: ok\n", *drive)
		return nil
	}

	ids, err := parseDriveList(*drives)
	if err != nil {
		return err
	}
	for _, d := range ids {
		if err := k.Mount(d, uint32(*baseLBA)); err != nil {
			return xerrors.Errorf("fsck: mounting drive %d: %w", d, err)
		}
	}

	g, _ := errgroup.WithContext(ctx)
	for _, d := range ids {
		d := d
		g.Go(func() error {
			if err := k.FSCheck(d); err != nil {
				return xerrors.Errorf("fsck drive %d: %w", d, err)
			}
			fmt.Printf("drive %d: ok\n", d)
			return nil
		})
	}
	return g.Wait()
}

func parseDriveList(s string) ([]int, error) {
	var out []int
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				var n int
				if _, err := fmt.Sscanf(s[start:i], "%d", &n); err != nil {
					return nil, xerrors.Errorf("parsing drive list %q: %w", s, err)
				}
				out = append(out, n)
			}
			start = i + 1
		}
	}
	return out, nil
}
