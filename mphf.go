// mphf.go -- the minimal perfect hash function contract, plus a concrete
// CHD (compress-hash-displace) implementation satisfying it.
//
// The construction (bucket assignment, occupancy-sorted bucket
// processing, per-bucket seed displacement search, compact seed table)
// generalizes the classic CHD-PH algorithm (keys-per-bin=1) from uint64
// keys to arbitrary []byte keys. The bucket count equals the table size,
// so a bucket holds on average at most one key (the load factor).

package shard

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/dchest/siphash"
)

// defaultLoad is the CHD table load factor used when no WithLoadFactor
// option is given: a reasonably dense table that still builds fast.
const defaultLoad = 0.9

// maxSeedTries bounds how many per-bucket seeds the builder tries before
// giving up on a bucket (and thus the whole build).
const maxSeedTries = 1 << 17

// mphfFormatVersion is the version byte at the start of a serialized MPHF
// blob, independent of the shard format Version in header.go.
const mphfFormatVersion = 1

// MPHF is the contract the shard format requires of a minimal perfect
// hash function: evaluate a key to a slot in [0, Range()), and serialize
// self-delimitingly to a writer. Search's result is meaningful only for
// keys present at construction time.
type MPHF interface {
	// Search returns a value in [0, Range()) for key.
	Search(key []byte) uint32

	// Range returns H, the number of distinct slots Search can return.
	// H >= the number of keys the function was built over.
	Range() uint32

	// Dump serializes the function at w's current position.
	Dump(w io.Writer) error
}

// MPHFBuilder constructs an MPHF from a KeySource. Implementations should
// choose a construction with small range (ideally Range() == Len()) and
// small per-key storage.
type MPHFBuilder interface {
	Build(src KeySource) (MPHF, error)
}

// MPHFLoader deserializes a previously Dump-ed MPHF from r's current
// position. The default loader is LoadCHD.
type MPHFLoader func(r io.Reader) (MPHF, error)

// chdBuilder builds a CHD-PH minimal perfect hash function.
type chdBuilder struct {
	load float64
}

// NewCHDBuilder returns an MPHFBuilder using the CHD algorithm with the
// given table load factor (0 < load <= 1; lower values build faster but
// produce a larger table). Typical values are between 0.75 and 0.9.
func NewCHDBuilder(load float64) MPHFBuilder {
	if load <= 0 || load > 1 {
		load = defaultLoad
	}
	return &chdBuilder{load: load}
}

type bucket struct {
	slot uint64
	keys [][]byte
}

type buckets []bucket

func (b buckets) Len() int           { return len(b) }
func (b buckets) Less(i, j int) bool { return len(b[i].keys) > len(b[j].keys) }
func (b buckets) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }

func (cb *chdBuilder) Build(src KeySource) (MPHF, error) {
	n := src.Len()
	if n == 0 {
		return nil, ErrEmptyKeySource
	}

	salt := rand64()
	m := nextpow2(uint64(float64(n) / cb.load))
	if m == 0 {
		m = 1
	}

	bkts := make(buckets, m)
	for i := range bkts {
		bkts[i].slot = uint64(i)
	}

	src.Rewind()
	for {
		key, ok := src.Next()
		if !ok {
			break
		}
		j := rhash(0, key, m, salt)
		bkts[j].keys = append(bkts[j].keys, append([]byte(nil), key...))
	}

	sort.Sort(bkts)

	occ := newBitVector(m)
	bOcc := newBitVector(m)
	seeds := make([]uint32, m)
	var maxseed uint32

	for i := range bkts {
		bkt := &bkts[i]
		if len(bkt.keys) == 0 {
			continue
		}

		found := false
		for s := uint32(1); s < maxSeedTries; s++ {
			bOcc.Reset()
			collided := false
			for _, key := range bkt.keys {
				h := rhash(s, key, m, salt)
				if occ.IsSet(h) || bOcc.IsSet(h) {
					collided = true
					break
				}
				bOcc.Set(h)
			}
			if collided {
				continue
			}

			occ.Merge(bOcc)
			seeds[bkt.slot] = s
			if s > maxseed {
				maxseed = s
			}
			found = true
			break
		}

		if !found {
			return nil, fmt.Errorf("%w: no perfect hash for bucket after %d tries (likely duplicate keys)", ErrBuild, maxSeedTries)
		}
	}

	return &chd{
		seed:        makeSeeds(seeds, maxseed),
		salt:        salt,
		bucketCount: m,
	}, nil
}

// chd is a frozen CHD-PH minimal perfect hash function.
type chd struct {
	seed        seeder
	salt        uint64
	bucketCount uint64
}

func (c *chd) Range() uint32 {
	return uint32(c.bucketCount)
}

func (c *chd) Search(key []byte) uint32 {
	m := c.bucketCount
	h := rhash(0, key, m, c.salt)
	s := c.seed.seed(h)
	return uint32(rhash(s, key, m, c.salt))
}

// mphfHeaderSize: 1 version + 1 seedsize + 2 reserved + 4 bucketCount + 8 salt.
const mphfHeaderSize = 16

func (c *chd) Dump(w io.Writer) error {
	var hdr [mphfHeaderSize]byte
	hdr[0] = mphfFormatVersion
	hdr[1] = c.seed.seedsize()
	binary.BigEndian.PutUint32(hdr[4:8], uint32(c.bucketCount))
	binary.BigEndian.PutUint64(hdr[8:16], c.salt)

	if _, err := w.Write(hdr[:]); err != nil {
		return ioErr(IOErrOS, err)
	}
	return c.seed.marshal(w)
}

// LoadCHD is the default MPHFLoader: it deserializes a chd previously
// written by (*chd).Dump.
func LoadCHD(r io.Reader) (MPHF, error) {
	var hdr [mphfHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, ioErr(IOErrShortRead, err)
	}
	if hdr[0] != mphfFormatVersion {
		return nil, fmt.Errorf("shard: unsupported mphf blob version %d", hdr[0])
	}

	seedSize := hdr[1]
	bucketCount := binary.BigEndian.Uint32(hdr[4:8])
	salt := binary.BigEndian.Uint64(hdr[8:16])

	seed, err := loadSeeder(r, seedSize, bucketCount)
	if err != nil {
		return nil, err
	}

	return &chd{seed: seed, salt: salt, bucketCount: uint64(bucketCount)}, nil
}

// mix is a MurmurHash3-style finalizer, used here purely to whiten
// siphash's output before masking it down to the bucket-count power of
// two.
func mix(h uint64) uint64 {
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// rhash hashes key under (seed, salt) and reduces it modulo sz, which is
// always a power of two. seed 0 is the bucket-assignment pass; seed in
// [1, maxSeedTries) is a per-bucket displacement trial.
func rhash(seed uint32, key []byte, sz uint64, salt uint64) uint64 {
	h := siphash.Hash(salt, uint64(seed), key)
	return mix(h) & (sz - 1)
}

// nextpow2 returns the smallest power of two >= n (n >= 1).
func nextpow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
