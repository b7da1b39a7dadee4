// seeder.go -- compact per-bucket seed table for the CHD MPHF
//
// The per-bucket displacement seed found during Build is stored in the
// smallest byte-aligned integer width that can represent the largest
// seed actually used, keeping the common case (small seeds) cheap on
// disk without a variable-length encoding.
//
// (De)serialization goes through a plain io.Reader/io.Writer, big-endian,
// one pass, since the shard reader in reader.go does positioned file I/O
// rather than memory-mapping.

package shard

import (
	"encoding/binary"
	"io"
)

// seeder abstracts over seed tables of different element widths (1, 2, 4
// bytes), chosen by makeSeeds based on the largest seed value produced
// during Build.
type seeder interface {
	// seed returns the seed value at hash-table index h.
	seed(h uint64) uint32

	// marshal writes the seed table to w.
	marshal(w io.Writer) error

	// seedsize returns the width, in bytes, of one seed.
	seedsize() byte
}

func makeSeeds(s []uint32, max uint32) seeder {
	switch {
	case max < 1<<8:
		return newU8Seeder(s)
	case max < 1<<16:
		return newU16Seeder(s)
	default:
		return newU32Seeder(s)
	}
}

func loadSeeder(r io.Reader, size byte, n uint32) (seeder, error) {
	switch size {
	case 1:
		buf := make([]byte, n)
		if err := readAllFrom(r, buf); err != nil {
			return nil, err
		}
		return &u8Seeder{seeds: buf}, nil

	case 2:
		buf := make([]byte, int(n)*2)
		if err := readAllFrom(r, buf); err != nil {
			return nil, err
		}
		seeds := make([]uint16, n)
		for i := range seeds {
			seeds[i] = binary.BigEndian.Uint16(buf[i*2:])
		}
		return &u16Seeder{seeds: seeds}, nil

	case 4:
		buf := make([]byte, int(n)*4)
		if err := readAllFrom(r, buf); err != nil {
			return nil, err
		}
		seeds := make([]uint32, n)
		for i := range seeds {
			seeds[i] = binary.BigEndian.Uint32(buf[i*4:])
		}
		return &u32Seeder{seeds: seeds}, nil

	default:
		return nil, ioErr(IOErrOS, nil)
	}
}

func readAllFrom(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return ioErr(IOErrShortRead, err)
	}
	return nil
}

// u8Seeder stores one seed byte per bucket.
type u8Seeder struct {
	seeds []byte
}

func newU8Seeder(v []uint32) seeder {
	b := make([]byte, len(v))
	for i, s := range v {
		b[i] = byte(s)
	}
	return &u8Seeder{seeds: b}
}

func (u *u8Seeder) seed(h uint64) uint32 { return uint32(u.seeds[h]) }
func (u *u8Seeder) seedsize() byte       { return 1 }
func (u *u8Seeder) marshal(w io.Writer) error {
	_, err := w.Write(u.seeds)
	if err != nil {
		return ioErr(IOErrOS, err)
	}
	return nil
}

// u16Seeder stores two seed bytes per bucket.
type u16Seeder struct {
	seeds []uint16
}

func newU16Seeder(v []uint32) seeder {
	s := make([]uint16, len(v))
	for i, a := range v {
		s[i] = uint16(a)
	}
	return &u16Seeder{seeds: s}
}

func (u *u16Seeder) seed(h uint64) uint32 { return uint32(u.seeds[h]) }
func (u *u16Seeder) seedsize() byte       { return 2 }
func (u *u16Seeder) marshal(w io.Writer) error {
	buf := make([]byte, len(u.seeds)*2)
	for i, s := range u.seeds {
		binary.BigEndian.PutUint16(buf[i*2:], s)
	}
	if _, err := w.Write(buf); err != nil {
		return ioErr(IOErrOS, err)
	}
	return nil
}

// u32Seeder stores four seed bytes per bucket, for pathological key sets
// that need a very large per-bucket displacement seed.
type u32Seeder struct {
	seeds []uint32
}

func newU32Seeder(v []uint32) seeder {
	s := make([]uint32, len(v))
	copy(s, v)
	return &u32Seeder{seeds: s}
}

func (u *u32Seeder) seed(h uint64) uint32 { return u.seeds[h] }
func (u *u32Seeder) seedsize() byte       { return 4 }
func (u *u32Seeder) marshal(w io.Writer) error {
	buf := make([]byte, len(u.seeds)*4)
	for i, s := range u.seeds {
		binary.BigEndian.PutUint32(buf[i*4:], s)
	}
	if _, err := w.Write(buf); err != nil {
		return ioErr(IOErrOS, err)
	}
	return nil
}
