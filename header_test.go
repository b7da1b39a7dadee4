// header_test.go -- magic and header codec round-trip tests

package shard

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func tmpPath(t *testing.T) string {
	t.Helper()
	fn := fmt.Sprintf("%s/shard-test-%d-%d.shard", t.TempDir(), os.Getpid(), rand64())
	return fn
}

func TestHeaderRoundTrip(t *testing.T) {
	fn := tmpPath(t)
	f, err := os.OpenFile(fn, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	defer f.Close()

	var h Header
	h.reset()
	h.ObjectsCount = 3
	h.ObjectsSize = 100
	h.IndexPosition = h.ObjectsPosition + h.ObjectsSize
	h.IndexSize = 32
	h.HashPosition = h.IndexPosition + h.IndexSize

	require.NoError(t, seekTo(f, OffsetMagic))
	require.NoError(t, h.Save(f))

	var loaded Header
	require.NoError(t, loaded.Load(f))
	require.Equal(t, h, loaded)

	require.Equal(t, OffsetHeader, loaded.ObjectsPosition)
	require.Equal(t, loaded.ObjectsPosition+loaded.ObjectsSize, loaded.IndexPosition)
	require.Equal(t, loaded.IndexPosition+loaded.IndexSize, loaded.HashPosition)
	require.Zero(t, loaded.IndexSize%8)
}

func TestHeaderVersionMismatch(t *testing.T) {
	fn := tmpPath(t)
	f, err := os.OpenFile(fn, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	defer f.Close()

	var h Header
	h.reset()
	h.Version = Version + 1

	require.NoError(t, seekTo(f, OffsetMagic))
	require.NoError(t, h.Save(f))

	var loaded Header
	err = loaded.Load(f)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestMagicRoundTrip(t *testing.T) {
	fn := tmpPath(t)
	f, err := os.OpenFile(fn, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, SaveMagic(f))
	require.NoError(t, LoadMagic(f))
}

func TestMagicMismatch(t *testing.T) {
	fn := tmpPath(t)
	require.NoError(t, os.WriteFile(fn, []byte("NOTASHRD"), 0o644))

	f, err := os.Open(fn)
	require.NoError(t, err)
	defer f.Close()

	err = LoadMagic(f)
	require.ErrorIs(t, err, ErrBadMagic)
}
