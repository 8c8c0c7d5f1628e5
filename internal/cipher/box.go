// Package cipher implements the sealed box behind the encrypt and decrypt
// atoms.
//
// A message is sealed to a recipient's X25519 public key with a fresh
// ephemeral key pair. The shared secret is stretched with HKDF-SHA256 and
// the plaintext is sealed with XChaCha20-Poly1305. The wire form is
//
//	base64(ephemeralPublic || nonce || ciphertext)
//
// Only the holder of the matching private key can open it.
package cipher

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of X25519 public and private keys.
const KeySize = curve25519.ScalarSize

const hkdfInfo = "moon/sealed-box/v1"

var (
	ErrNoPublicKey  = errors.New("no public key configured")
	ErrNoPrivateKey = errors.New("no private key configured")
	ErrInvalidKey   = errors.New("invalid key")
	ErrMalformed    = errors.New("malformed ciphertext")
	ErrAuthFailed   = errors.New("ciphertext authentication failed")
	ErrNotUTF8      = errors.New("plaintext is not valid UTF-8")
)

// Box seals to a public key and opens with a private key. Either half may
// be absent; the operation needing it then fails.
type Box struct {
	public  []byte
	private []byte
	random  io.Reader
}

// NewBox builds a box from raw keys. A nil key disables the operation
// that needs it. When only the private key is given the public key is
// derived from it.
func NewBox(public, private []byte) (*Box, error) {
	if public != nil && len(public) != KeySize {
		return nil, fmt.Errorf("%w: public key is %d bytes, want %d", ErrInvalidKey, len(public), KeySize)
	}
	if private != nil && len(private) != KeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes, want %d", ErrInvalidKey, len(private), KeySize)
	}
	if public == nil && private != nil {
		derived, err := curve25519.X25519(private, curve25519.Basepoint)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		public = derived
	}
	return &Box{public: clone(public), private: clone(private), random: rand.Reader}, nil
}

// WithRandom returns a copy of b that draws ephemeral keys and nonces
// from r. Only tests should need this.
func (b *Box) WithRandom(r io.Reader) *Box {
	cp := *b
	cp.random = r
	return &cp
}

// LoadBox parses base64 keys. Empty strings mean "not configured".
func LoadBox(publicB64, privateB64 string) (*Box, error) {
	var public, private []byte
	var err error
	if publicB64 != "" {
		if public, err = ParseKey(publicB64); err != nil {
			return nil, fmt.Errorf("public key: %w", err)
		}
	}
	if privateB64 != "" {
		if private, err = ParseKey(privateB64); err != nil {
			return nil, fmt.Errorf("private key: %w", err)
		}
	}
	return NewBox(public, private)
}

// PublicKey returns the box's public key, or nil.
func (b *Box) PublicKey() []byte { return clone(b.public) }

// Encrypt seals plaintext to the configured public key.
func (b *Box) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if b.public == nil {
		return "", ErrNoPublicKey
	}

	ephPriv, ephPub, err := generateKeyPair(b.reader())
	if err != nil {
		return "", fmt.Errorf("ephemeral key: %w", err)
	}
	defer zeroBytes(ephPriv)

	shared, err := curve25519.X25519(ephPriv, b.public)
	if err != nil {
		return "", fmt.Errorf("key agreement: %w", err)
	}
	key := deriveKey(shared, ephPub, b.public)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(b.reader(), nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	out := make([]byte, 0, KeySize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, ephPub...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens a message produced by Encrypt with the configured
// private key.
func (b *Box) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if b.private == nil {
		return "", ErrNoPrivateKey
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < KeySize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", fmt.Errorf("%w: %d bytes", ErrMalformed, len(raw))
	}
	ephPub := raw[:KeySize]
	nonce := raw[KeySize : KeySize+chacha20poly1305.NonceSizeX]
	sealed := raw[KeySize+chacha20poly1305.NonceSizeX:]

	shared, err := curve25519.X25519(b.private, ephPub)
	if err != nil {
		// low-order point
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	key := deriveKey(shared, ephPub, b.public)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrAuthFailed
	}
	if !utf8.Valid(plaintext) {
		return "", ErrNotUTF8
	}
	return string(plaintext), nil
}

// GenerateKeyPair returns a fresh X25519 key pair.
func GenerateKeyPair() (private, public []byte, err error) {
	return generateKeyPair(rand.Reader)
}

func generateKeyPair(r io.Reader) (private, public []byte, err error) {
	private = make([]byte, KeySize)
	if _, err := io.ReadFull(r, private); err != nil {
		return nil, nil, err
	}
	public, err = curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return private, public, nil
}

// ParseKey decodes a standard base64 32-byte key.
func ParseKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidKey, len(key), KeySize)
	}
	return key, nil
}

// EncodeKey is the inverse of ParseKey.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func (b *Box) reader() io.Reader {
	if b.random == nil {
		return rand.Reader
	}
	return b.random
}

func deriveKey(shared, ephPub, recipient []byte) []byte {
	salt := make([]byte, 0, 2*KeySize)
	salt = append(salt, ephPub...)
	salt = append(salt, recipient...)
	reader := hkdf.New(sha256.New, shared, salt, []byte(hkdfInfo))
	out := make([]byte, chacha20poly1305.KeySize)
	_, _ = io.ReadFull(reader, out)
	return out
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
