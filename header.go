// header.go -- magic and header codec

package shard

import (
	"fmt"
	"os"
)

// Magic identifies a shard file. Create does not write it; Save writes it
// last, so a crashed or aborted build never validates as a shard.
var Magic = [8]byte{'R', 'D', 'S', 'H', 'A', 'R', 'D', '1'}

const (
	// Version is the on-disk header version this package reads and writes.
	Version = uint64(1)

	// KeyLen is the fixed width, in bytes, of every shard key.
	KeyLen = 32

	// headerFieldCount is the number of uint64 fields in Header.
	headerFieldCount = 7

	// OffsetMagic is the file offset immediately following the magic
	// bytes, i.e. where the header begins (not the offset of the magic
	// itself, which is always 0).
	OffsetMagic = uint64(len(Magic))

	// OffsetHeader is the file offset immediately following the header,
	// i.e. where the objects region begins.
	OffsetHeader = OffsetMagic + headerFieldCount*8
)

// Header is the shard's 56-byte, 7-field preamble, immediately following
// the magic. All fields are big-endian uint64 on disk.
type Header struct {
	Version         uint64
	ObjectsCount    uint64
	ObjectsPosition uint64
	ObjectsSize     uint64
	IndexPosition   uint64
	IndexSize       uint64
	HashPosition    uint64
}

// reset initializes a fresh header: current format version, objects region
// starting right after the header, everything else zero.
func (h *Header) reset() {
	*h = Header{
		Version:         Version,
		ObjectsPosition: OffsetHeader,
	}
}

// Load reads and validates the header at OffsetMagic, seeking there first.
// It rejects any version other than Version with ErrVersionMismatch.
func (h *Header) Load(f *os.File) error {
	if err := seekTo(f, OffsetMagic); err != nil {
		return err
	}

	fields := [headerFieldCount]*uint64{
		&h.Version, &h.ObjectsCount, &h.ObjectsPosition, &h.ObjectsSize,
		&h.IndexPosition, &h.IndexSize, &h.HashPosition,
	}
	for _, fp := range fields {
		v, err := readU64BE(f)
		if err != nil {
			return err
		}
		*fp = v
	}

	if h.Version != Version {
		return fmt.Errorf("%w: want %d, got %d", ErrVersionMismatch, Version, h.Version)
	}
	return nil
}

// Save writes the header fields at the file's current position (the caller
// is expected to have already seeked to OffsetMagic).
func (h *Header) Save(f *os.File) error {
	fields := [headerFieldCount]uint64{
		h.Version, h.ObjectsCount, h.ObjectsPosition, h.ObjectsSize,
		h.IndexPosition, h.IndexSize, h.HashPosition,
	}
	for _, v := range fields {
		if err := writeU64BE(f, v); err != nil {
			return err
		}
	}
	return nil
}

// LoadMagic seeks to offset 0, reads len(Magic) bytes, and compares them
// against Magic. Mismatch yields ErrBadMagic.
func LoadMagic(f *os.File) error {
	if err := seekTo(f, 0); err != nil {
		return err
	}
	var buf [8]byte
	if err := readFull(f, buf[:]); err != nil {
		return err
	}
	if buf != Magic {
		return ErrBadMagic
	}
	return nil
}

// SaveMagic seeks to offset 0 and writes Magic.
func SaveMagic(f *os.File) error {
	if err := seekTo(f, 0); err != nil {
		return err
	}
	return writeFull(f, Magic[:])
}
