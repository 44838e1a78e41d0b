// Package image packages a formatted EYNFS disk image together with a
// set of EYN executables into a single distributable bundle: a
// gzip-compressed cpio archive, grounded on the teacher's
// cmd/distri/initrd.go initramfs assembly (cpio.Writer wrapped in a
// gzip.Writer, written out atomically via renameio).
package image

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/cavaliercoder/go-cpio"
	"github.com/google/renameio"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/xerrors"
)

// DiskImageName is the fixed name the raw EYNFS disk image is stored
// under inside a bundle.
const DiskImageName = "disk.img"

// Bundle writes a gzip-compressed cpio archive to w containing the disk
// image at diskImagePath (named DiskImageName) and each named EYN
// executable under its base name.
func Bundle(w io.Writer, diskImagePath string, binaries []string) error {
	var buf bytes.Buffer
	cw := cpio.NewWriter(&buf)

	if err := writeFileEntry(cw, DiskImageName, diskImagePath); err != nil {
		return xerrors.Errorf("bundling disk image: %w", err)
	}
	for _, bin := range binaries {
		if err := writeFileEntry(cw, filepath.Base(bin), bin); err != nil {
			return xerrors.Errorf("bundling %s: %w", bin, err)
		}
	}
	if err := cw.Close(); err != nil {
		return xerrors.Errorf("closing cpio archive: %w", err)
	}

	zw := gzip.NewWriter(w)
	if _, err := io.Copy(zw, &buf); err != nil {
		return xerrors.Errorf("compressing bundle: %w", err)
	}
	return zw.Close()
}

func writeFileEntry(cw *cpio.Writer, name, path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	if err := cw.WriteHeader(&cpio.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	}); err != nil {
		return err
	}
	_, err = cw.Write(data)
	return err
}

// BundleToFile writes a bundle atomically to outPath via renameio,
// matching the teacher's atomic-output convention.
func BundleToFile(outPath, diskImagePath string, binaries []string) error {
	out, err := renameio.TempFile("", outPath)
	if err != nil {
		return xerrors.Errorf("creating temp file for %s: %w", outPath, err)
	}
	defer out.Cleanup()

	if err := Bundle(out, diskImagePath, binaries); err != nil {
		return err
	}
	return out.CloseAtomicallyReplace()
}

// Unbundle is the inverse of Bundle: it decompresses and extracts r's
// cpio entries into destDir, returning the disk image's path within
// destDir.
func Unbundle(r io.Reader, destDir string) (string, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return "", xerrors.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	cr := cpio.NewReader(zr)
	var diskPath string
	for {
		hdr, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", xerrors.Errorf("reading cpio entry: %w", err)
		}
		outPath := filepath.Join(destDir, hdr.Name)
		data, err := ioutil.ReadAll(cr)
		if err != nil {
			return "", xerrors.Errorf("reading %s: %w", hdr.Name, err)
		}
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			return "", xerrors.Errorf("writing %s: %w", outPath, err)
		}
		if hdr.Name == DiskImageName {
			diskPath = outPath
		}
	}
	if diskPath == "" {
		return "", xerrors.Errorf("bundle contained no %s", DiskImageName)
	}
	return diskPath, nil
}

// UnbundleFile is the file-path convenience form of Unbundle.
func UnbundleFile(bundlePath, destDir string) (string, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return "", xerrors.Errorf("opening bundle %s: %w", bundlePath, err)
	}
	defer f.Close()
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", xerrors.Errorf("creating %s: %w", destDir, err)
	}
	return Unbundle(f, destDir)
}
