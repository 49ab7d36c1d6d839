// Package token issues and validates the opaque check-in tokens that drivers
// display as QR codes. Only HMAC digests of tokens are ever persisted.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ByteLength is the number of random bytes in a token.
const ByteLength = 32

// ErrEmptyToken is returned when an empty token is hashed.
var ErrEmptyToken = errors.New("empty token")

// Generator creates tokens and derives their storage hashes.
type Generator struct {
	pepper []byte
	random io.Reader
}

// NewGenerator creates a Generator keyed with the server pepper.
func NewGenerator(pepper string) *Generator {
	return &Generator{pepper: []byte(pepper), random: rand.Reader}
}

// Generate returns a fresh plaintext token and its hash.
func (g *Generator) Generate() (plaintext, hash string, err error) {
	buf := make([]byte, ByteLength)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", "", fmt.Errorf("read random bytes: %w", err)
	}

	plaintext = base64.RawURLEncoding.EncodeToString(buf)
	hash, err = g.Hash(plaintext)
	if err != nil {
		return "", "", err
	}
	return plaintext, hash, nil
}

// Hash returns the hex HMAC-SHA256 digest of plaintext. The digest is
// deterministic so it can be used as a lookup key.
func (g *Generator) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyToken
	}
	mac := hmac.New(sha256.New, g.pepper)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Validate reports whether plaintext hashes to hash, in constant time.
func (g *Generator) Validate(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	computed, err := g.Hash(plaintext)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(computed), []byte(hash))
}
