package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Digest domains. The version suffix leaves room to change the
// algorithm without colliding with old digests.
const (
	DomainWatch = "moon/watch/v1"
	DomainTrace = "moon/trace/v1"
)

// Digest returns the hex SHA-256 of domain, a 0x00 separator and the
// canonical encoding of v. Values that differ only in key order or
// Unicode composition have the same digest.
func Digest(domain string, v Value) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // keeps domain and data from running together
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
