// Package shard implements a Read Shard: an immutable, single-file,
// on-disk key-value store where each key is a fixed-width 32-byte digest
// and each value is an opaque byte blob.
//
// # Design
//
// A shard is built once and read many times. Keys are never looked up by
// scanning or by a general-purpose hash table; instead, the full key set
// is known up front and a Minimal Perfect Hash Function (MPHF) is computed
// over it at build time. At read time, a lookup costs one MPHF evaluation
// (in memory) plus at most two disk seeks: one into a dense offset index,
// and one into the object region itself.
//
//	w, _ := shard.Create("objects.shard", uint64(len(objs)))
//	for _, o := range objs {
//		w.WriteObject(o.Key, o.Value)
//	}
//	w.Save()
//
//	r, _ := shard.Open("objects.shard")
//	val, _ := r.Lookup(key)
//
// # Layout
//
// A shard file consists of, in order: an 8-byte magic, a 56-byte header
// (seven big-endian uint64 fields), the objects region (size-prefixed
// payloads in append order), a dense index region (one big-endian uint64
// object offset per MPHF output slot), and finally the serialized MPHF.
// The magic is written last during Save, so a crashed or aborted build
// never validates as a shard.
//
// # Minimal perfect hashing
//
// The default MPHF is a from-scratch CHD (compress-hash-displace)
// construction generalized to byte-slice keys; see mphf.go. Any type
// implementing MPHF/MPHFBuilder/MPHFLoader can be substituted via
// WithMPHFBuilder/WithMPHFLoader.
//
// # Non-goals
//
// No concurrent writers, no in-place mutation after Save, no deletion or
// compaction, no secondary indexes, no encryption or integrity MAC. A
// lookup for a key that was never written is not detected: it reads
// whatever record the key's MPHF slot points at, which may be another
// key's record or, for an unused slot, offset 0 (see Reader.LookupSize);
// detecting that is the caller's responsibility.
package shard
