// Package eynexe implements the EYN executable container format: header
// validation, the dangerous-opcode screen, the two-slot process sandbox,
// and the loader that copies a screened program into its process region
// and transfers control (design §3.10, §3.11, §4.10, §4.11).
package eynexe

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// HeaderSize is the fixed 32-byte on-disk header size (design §3.10,
// §6.2).
const HeaderSize = 32

// Magic is the four-byte "EYN\0" signature every EYN file starts with.
var Magic = [4]byte{'E', 'Y', 'N', 0}

// CurrentVersion is the only version this package writes.
const CurrentVersion = 1

// Header mirrors design §3.10's on-disk layout exactly.
type Header struct {
	Version     uint8
	Flags       uint8
	EntryPoint  uint32
	CodeSize    uint32
	DataSize    uint32
	BSSSize     uint32
	DynTableOff uint32
	DynTableLen uint32
}

// Marshal encodes h (with its implicit magic) into a HeaderSize-byte
// buffer.
func (h *Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic[:])
	buf[4] = h.Version
	buf[5] = h.Flags
	// bytes 6-7 reserved
	binary.LittleEndian.PutUint32(buf[8:12], h.EntryPoint)
	binary.LittleEndian.PutUint32(buf[12:16], h.CodeSize)
	binary.LittleEndian.PutUint32(buf[16:20], h.DataSize)
	binary.LittleEndian.PutUint32(buf[20:24], h.BSSSize)
	binary.LittleEndian.PutUint32(buf[24:28], h.DynTableOff)
	binary.LittleEndian.PutUint32(buf[28:32], h.DynTableLen)
	return buf
}

// ParseHeader validates and decodes the first HeaderSize bytes of buf
// (design §4.10 step 2).
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, newSafetyError("file smaller than header")
	}
	if string(buf[0:4]) != string(Magic[:]) {
		return Header{}, newSafetyError("bad magic")
	}
	h := Header{
		Version:     buf[4],
		Flags:       buf[5],
		EntryPoint:  binary.LittleEndian.Uint32(buf[8:12]),
		CodeSize:    binary.LittleEndian.Uint32(buf[12:16]),
		DataSize:    binary.LittleEndian.Uint32(buf[16:20]),
		BSSSize:     binary.LittleEndian.Uint32(buf[20:24]),
		DynTableOff: binary.LittleEndian.Uint32(buf[24:28]),
		DynTableLen: binary.LittleEndian.Uint32(buf[28:32]),
	}
	if uint64(h.CodeSize) > uint64(len(buf))-HeaderSize {
		return Header{}, newSafetyError("code_size exceeds file size")
	}
	if uint64(h.CodeSize)+uint64(h.DataSize) > uint64(len(buf))-HeaderSize {
		return Header{}, newSafetyError("code_size+data_size exceeds file size")
	}
	return h, nil
}

// Build assembles a full EYN file image from code, data, and an entry
// point offset (design §4.16, §6.2).
func Build(code, data []byte, entryPoint uint32) ([]byte, error) {
	if len(code) > 0xFFFFFFFF || len(data) > 0xFFFFFFFF {
		return nil, xerrors.New("code or data too large")
	}
	h := Header{
		Version:    CurrentVersion,
		EntryPoint: entryPoint,
		CodeSize:   uint32(len(code)),
		DataSize:   uint32(len(data)),
	}
	out := make([]byte, 0, HeaderSize+len(code)+len(data))
	out = append(out, h.Marshal()...)
	out = append(out, code...)
	out = append(out, data...)
	return out, nil
}
