package object

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash is the lowercase hex SHA-256 digest of an object's payload.
type Hash string

// HashLen is the length of a hex-encoded Hash.
const HashLen = sha256.Size * 2

// HashBytes computes the content address of payload.
func HashBytes(payload []byte) Hash {
	sum := sha256.Sum256(payload)
	return Hash(hex.EncodeToString(sum[:]))
}

// ValidHash reports whether h is a well-formed content address.
func ValidHash(h Hash) bool {
	if len(h) != HashLen {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func (h Hash) String() string { return string(h) }

// Short returns the abbreviated form used in CLI output.
func (h Hash) Short() string {
	if len(h) < 8 {
		return string(h)
	}
	return string(h[:8])
}
