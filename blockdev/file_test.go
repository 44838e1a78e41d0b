package blockdev

import (
	"bytes"
	"testing"
)

func TestMemRoundTrip(t *testing.T) {
	m := NewMem(4)
	want := bytes.Repeat([]byte{0xAB}, SectorSize)
	if err := m.WriteSector(0, 2, want); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, SectorSize)
	if err := m.ReadSector(0, 2, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got[:8], want[:8])
	}
}

func TestMemOutOfRange(t *testing.T) {
	m := NewMem(1)
	buf := make([]byte, SectorSize)
	err := m.ReadSector(0, 5, buf)
	if err == nil {
		t.Fatal("expected error reading out-of-range lba")
	}
	de, ok := err.(*DeviceError)
	if !ok {
		t.Fatalf("got %T, want *DeviceError", err)
	}
	if de.Kind != BusError {
		t.Fatalf("got kind %v, want BusError", de.Kind)
	}
}

func TestDriveNotPresent(t *testing.T) {
	d := NewFile()
	buf := make([]byte, SectorSize)
	err := d.ReadSector(3, 0, buf)
	de, ok := err.(*DeviceError)
	if !ok {
		t.Fatalf("got %T, want *DeviceError", err)
	}
	if de.Kind != NotPresent {
		t.Fatalf("got kind %v, want NotPresent", de.Kind)
	}
}

func TestFileAttachReaderWriter(t *testing.T) {
	buf := make([]byte, 4*SectorSize)
	rw := &memRW{buf: buf}
	d := NewFile()
	if err := d.AttachReaderWriter(1, rw, rw); err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte{0x42}, SectorSize)
	if err := d.WriteSector(1, 1, payload); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, SectorSize)
	if err := d.ReadSector(1, 1, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %x, want %x", got[:4], payload[:4])
	}
}

type memRW struct{ buf []byte }

func (m *memRW) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.buf[off:])
	return n, nil
}

func (m *memRW) WriteAt(p []byte, off int64) (int, error) {
	n := copy(m.buf[off:], p)
	return n, nil
}
