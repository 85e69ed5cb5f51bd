package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
)

// Equal reports whether two secrets are identical without leaking where they
// differ or how their lengths relate. Both sides are reduced to fixed-size
// digests first, so a length mismatch runs the same comparison as a content
// mismatch.
func Equal(a, b string) bool {
	da := sha256.Sum256([]byte(a))
	db := sha256.Sum256([]byte(b))
	la := lengthBytes(uint64(len(a)))
	lb := lengthBytes(uint64(len(b)))

	digests := subtle.ConstantTimeCompare(da[:], db[:])
	lengths := subtle.ConstantTimeCompare(la[:], lb[:])

	return digests&lengths == 1
}

// lengthBytes encodes the full length so no two lengths share an encoding.
func lengthBytes(n uint64) [8]byte {
	var out [8]byte
	binary.BigEndian.PutUint64(out[:], n)
	return out
}
