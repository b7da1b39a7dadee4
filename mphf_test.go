// mphf_test.go -- CHD MPHF construction and serialization round-trip

package shard

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func sha256Keys(n int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		sum := sha256.Sum256([]byte(fmt.Sprintf("mphf-test-key-%d", i)))
		keys[i] = append([]byte(nil), sum[:]...)
	}
	return keys
}

func TestCHDBuildAndSearch(t *testing.T) {
	keys := sha256Keys(500)
	src := newByteSliceSource(keys)

	mphf, err := NewCHDBuilder(0.9).Build(src)
	require.NoError(t, err)

	seen := make(map[uint32]bool, len(keys))
	for _, k := range keys {
		h := mphf.Search(k)
		require.Less(t, h, mphf.Range())
		require.False(t, seen[h], "collision at slot %d", h)
		seen[h] = true
	}
	require.GreaterOrEqual(t, uint64(mphf.Range()), uint64(len(keys)))
}

func TestCHDDumpLoadRoundTrip(t *testing.T) {
	keys := sha256Keys(200)
	src := newByteSliceSource(keys)

	mphf, err := NewCHDBuilder(0.85).Build(src)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, mphf.Dump(&buf))

	loaded, err := LoadCHD(&buf)
	require.NoError(t, err)
	require.Equal(t, mphf.Range(), loaded.Range())

	for _, k := range keys {
		require.Equal(t, mphf.Search(k), loaded.Search(k))
	}
}

func TestCHDDuplicateKeysFail(t *testing.T) {
	dup := sha256.Sum256([]byte("duplicate"))
	src := newByteSliceSource([][]byte{dup[:], dup[:]})

	_, err := NewCHDBuilder(0.9).Build(src)
	require.Error(t, err)
}

func TestCHDEmptyKeySourceFails(t *testing.T) {
	src := newByteSliceSource(nil)
	_, err := NewCHDBuilder(0.9).Build(src)
	require.ErrorIs(t, err, ErrEmptyKeySource)
}

// byteSliceSource is a standalone KeySource used only in tests, separate
// from the Builder-backed sliceKeySource in keysource.go.
type byteSliceSource struct {
	keys [][]byte
	pos  int
}

func newByteSliceSource(keys [][]byte) *byteSliceSource {
	return &byteSliceSource{keys: keys}
}

func (s *byteSliceSource) Len() uint64 { return uint64(len(s.keys)) }
func (s *byteSliceSource) Rewind()     { s.pos = 0 }
func (s *byteSliceSource) Next() ([]byte, bool) {
	if s.pos >= len(s.keys) {
		return nil, false
	}
	k := s.keys[s.pos]
	s.pos++
	return k, true
}
