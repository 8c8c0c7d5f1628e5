package testutil

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/roach88/moon/internal/cipher"
)

// FixedPrivateKey is the X25519 private key used by FixedBox. Never use it
// outside tests.
var FixedPrivateKey = []byte{
	0x77, 0x07, 0x6d, 0x0a, 0x73, 0x18, 0xa5, 0x7d,
	0x3c, 0x16, 0xc1, 0x72, 0x51, 0xb2, 0x66, 0x45,
	0xdf, 0x4c, 0x2f, 0x87, 0xeb, 0xc0, 0x99, 0x2a,
	0xb1, 0x77, 0xfb, 0xa5, 0x1d, 0xb9, 0x2c, 0x2a,
}

// FixedBox returns a cipher box with FixedPrivateKey whose ephemeral keys
// and nonces come from NewDeterministicReader(seed). Two boxes with the
// same seed produce byte-identical ciphertexts for the same sequence of
// Encrypt calls.
func FixedBox(t testing.TB, seed string) *cipher.Box {
	t.Helper()
	box, err := cipher.NewBox(nil, FixedPrivateKey)
	if err != nil {
		t.Fatalf("cipher.NewBox: %v", err)
	}
	return box.WithRandom(NewDeterministicReader(seed))
}

// DeterministicReader is an endless byte stream derived from a seed:
// SHA-256(seed || counter) blocks, counter starting at 0.
//
// Not safe for concurrent use.
type DeterministicReader struct {
	seed    []byte
	counter uint64
	buf     []byte
}

// NewDeterministicReader creates a reader for seed.
func NewDeterministicReader(seed string) *DeterministicReader {
	return &DeterministicReader{seed: []byte(seed)}
}

// Read fills p completely. It never fails.
func (r *DeterministicReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.buf) == 0 {
			var ctr [8]byte
			binary.BigEndian.PutUint64(ctr[:], r.counter)
			r.counter++
			sum := sha256.Sum256(append(append([]byte(nil), r.seed...), ctr[:]...))
			r.buf = sum[:]
		}
		c := copy(p[n:], r.buf)
		r.buf = r.buf[c:]
		n += c
	}
	return n, nil
}
