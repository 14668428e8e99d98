// Package digest derives stable content hashes (blake2b) for entry IDs,
// callback tokens and effect records.
package digest

import (
	"encoding/binary"
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Hasher writes length-prefixed fields so that ("ab","c") and ("a","bc")
// never collide.
type Hasher struct {
	h hash.Hash
}

// New returns a Hasher producing size-byte digests (1..64).
func New(size int) *Hasher {
	h, err := blake2b.New(size, nil)
	if err != nil {
		panic(err)
	}
	return &Hasher{h: h}
}

func (d *Hasher) Bytes(b []byte) *Hasher {
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(len(b)))
	d.h.Write(l[:])
	d.h.Write(b)
	return d
}

func (d *Hasher) String(s string) *Hasher { return d.Bytes([]byte(s)) }

func (d *Hasher) Uint64(v uint64) *Hasher {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return d.Bytes(b[:])
}

func (d *Hasher) Sum() []byte { return d.h.Sum(nil) }

func (d *Hasher) Hex() string { return hex.EncodeToString(d.Sum()) }

// Sum64 folds the digest into a uint64. The Hasher should be created with size >= 8.
func (d *Hasher) Sum64() uint64 {
	sum := d.Sum()
	return binary.BigEndian.Uint64(sum[:8])
}
