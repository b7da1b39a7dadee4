// builder.go -- streaming object append and shard finalization
//
// Unlike a writer that builds into a temp file and renames into place on
// finalize, Builder writes directly to path: a shard's file-existence
// lifecycle moves from absent straight through building to frozen, and
// the magic-written-last trick (see header.go) is what makes a crashed
// or aborted build fail to validate without needing a rename step.

package shard

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Key is a fixed-width shard key: a cryptographic digest, conventionally
// SHA-256.
type Key [KeyLen]byte

// indexEntry records a written object's key and the file offset of its
// size-prefixed record, kept in memory until Save builds the MPHF and
// the dense index.
type indexEntry struct {
	key    Key
	offset uint64
}

// Builder appends size-prefixed objects to a shard file under
// construction and, once every declared object has been written,
// finalizes the shard by computing and persisting its MPHF and offset
// index.
//
// A Builder is not safe for concurrent use: WriteObject
// calls must happen from a single goroutine, in any key order, and
// define the append order recorded in the shard.
type Builder struct {
	f      *os.File
	path   string
	header Header
	index  []indexEntry

	mphfBuild MPHFBuilder
	log       *zap.SugaredLogger

	done bool
}

// BuilderOption configures a Builder at Create time.
type BuilderOption func(*Builder)

// WithLoadFactor selects the CHD table load factor (0 < load <= 1) used
// by the default MPHF builder. Options apply in order: combined with
// WithMPHFBuilder, whichever of the two comes later takes effect.
func WithLoadFactor(load float64) BuilderOption {
	return func(b *Builder) { b.mphfBuild = NewCHDBuilder(load) }
}

// WithMPHFBuilder overrides the MPHF construction backend entirely,
// letting callers substitute an alternative MPHF implementation behind
// the MPHFBuilder contract.
func WithMPHFBuilder(mb MPHFBuilder) BuilderOption {
	return func(b *Builder) { b.mphfBuild = mb }
}

// WithBuilderLogger attaches a structured logger; by default Builder
// logs nowhere.
func WithBuilderLogger(l *zap.SugaredLogger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// Create opens path for writing and prepares to accept exactly
// objectsCount objects. objectsCount must equal the number of
// WriteObject calls that will precede Save.
func Create(path string, objectsCount uint64, opts ...BuilderOption) (*Builder, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, ioErr(IOErrOS, err)
	}

	b := &Builder{
		f:         f,
		path:      path,
		index:     make([]indexEntry, 0, objectsCount),
		mphfBuild: NewCHDBuilder(defaultLoad),
		log:       zap.NewNop().Sugar(),
	}
	b.header.reset()
	b.header.ObjectsCount = objectsCount

	for _, opt := range opts {
		opt(b)
	}

	if err := seekTo(f, OffsetHeader); err != nil {
		f.Close()
		return nil, err
	}

	b.log.Debugw("shard build started", "path", path, "objects", objectsCount)
	return b, nil
}

// WriteObject appends one (key, payload) pair to the objects region.
// Keys are not deduplicated here; a duplicate key causes Save to fail
// with ErrBuild once the MPHF construction detects it.
func (b *Builder) WriteObject(key Key, payload []byte) error {
	if b.done {
		return fmt.Errorf("%w: builder already closed", ErrState)
	}
	if uint64(len(b.index)) >= b.header.ObjectsCount {
		return fmt.Errorf("%w: all %d declared objects already written", ErrState, b.header.ObjectsCount)
	}

	off, err := tell(b.f)
	if err != nil {
		return err
	}
	b.index = append(b.index, indexEntry{key: key, offset: off})

	if err := writeU64BE(b.f, uint64(len(payload))); err != nil {
		return err
	}
	return writeFull(b.f, payload)
}

// Save finalizes the shard: it builds the MPHF over the written keys,
// writes the dense offset index, serializes the MPHF, writes the header,
// and writes the magic last, in that order. Save must be called exactly
// once, after exactly the declared number of WriteObject calls.
func (b *Builder) Save() (err error) {
	if b.done {
		return fmt.Errorf("%w: builder already closed", ErrState)
	}
	if uint64(len(b.index)) != b.header.ObjectsCount {
		return fmt.Errorf("%w: wrote %d of %d declared objects", ErrState, len(b.index), b.header.ObjectsCount)
	}

	defer func() {
		b.done = true
		b.f.Close()
	}()

	pos, err := tell(b.f)
	if err != nil {
		return err
	}
	b.header.ObjectsSize = pos - b.header.ObjectsPosition

	mphf, err := b.mphfBuild.Build(newSliceKeySource(b.index))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBuild, err)
	}

	cur, err := tell(b.f)
	if err != nil {
		return err
	}
	b.header.IndexPosition = b.header.ObjectsPosition + b.header.ObjectsSize
	if cur != b.header.IndexPosition {
		return fmt.Errorf("%w: cursor at %d, expected index position %d", ErrState, cur, b.header.IndexPosition)
	}

	hslots := uint64(mphf.Range())
	dense := make([]uint64, hslots)
	for _, e := range b.index {
		h := mphf.Search(e.key[:])
		dense[h] = e.offset
	}
	for _, off := range dense {
		if err := writeU64BE(b.f, off); err != nil {
			return err
		}
	}
	b.header.IndexSize = hslots * 8

	b.header.HashPosition = b.header.IndexPosition + b.header.IndexSize
	if err := mphf.Dump(b.f); err != nil {
		return err
	}

	b.log.Debugw("shard finalizing", "path", b.path,
		"objects", b.header.ObjectsCount, "hash_slots", hslots,
		"objects_size", b.header.ObjectsSize, "index_size", b.header.IndexSize)

	if err := seekTo(b.f, OffsetMagic); err != nil {
		return err
	}
	if err := b.header.Save(b.f); err != nil {
		return err
	}

	if err := b.f.Sync(); err != nil {
		return ioErr(IOErrOS, err)
	}

	return SaveMagic(b.f)
}

// Abort discards an in-progress build: the underlying file is closed and
// removed. A second call, or a call after Save has run (whether Save
// succeeded or failed), is a no-op that returns nil and leaves the file
// in place.
func (b *Builder) Abort() error {
	if b.done {
		return nil
	}
	b.done = true
	b.log.Debugw("shard build aborted", "path", b.path)
	b.f.Close()
	return os.Remove(b.path)
}
