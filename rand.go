// rand.go -- random salt generation for the MPHF builder
//
// (c) Sudhi Herle 2018
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package shard

import (
	"crypto/rand"
	"encoding/binary"
	"io"
)

func rand64() uint64 {
	var b [8]byte

	_, err := io.ReadFull(rand.Reader, b[:])
	if err != nil {
		panic("shard: can't read crypto/rand")
	}

	return binary.BigEndian.Uint64(b[:])
}
