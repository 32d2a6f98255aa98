// Package secret seals access tokens before they are written to the
// database. Sealed values are self-describing, so rows written before a key
// was configured keep working.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// Prefix marks a sealed value.
const Prefix = "sealed:"

const (
	keySize   = 32
	nonceSize = 24
)

var (
	// ErrNoKey is returned when a sealed value is opened without a key.
	ErrNoKey = errors.New("secret: value is sealed but no key is configured")
	// ErrCorrupt is returned when a sealed value fails authentication.
	ErrCorrupt = errors.New("secret: sealed value is corrupt or was sealed with another key")
)

// Box seals and opens values with a symmetric key. A Box without a key
// passes values through unchanged.
type Box struct {
	key *[keySize]byte
}

// New parses a 32 byte key given as hex or base64. An empty key yields a
// pass-through Box.
func New(key string) (*Box, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return &Box{}, nil
	}

	raw, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	var k [keySize]byte
	copy(k[:], raw)
	return &Box{key: &k}, nil
}

func decodeKey(key string) ([]byte, error) {
	if raw, err := hex.DecodeString(key); err == nil && len(raw) == keySize {
		return raw, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(key); err == nil && len(raw) == keySize {
		return raw, nil
	}
	return nil, fmt.Errorf("secret: key must be %d bytes encoded as hex or base64", keySize)
}

// Enabled reports whether values are actually sealed.
func (b *Box) Enabled() bool { return b != nil && b.key != nil }

// Seal returns plaintext sealed under the key, or plaintext itself when no
// key is configured. Empty input stays empty.
func (b *Box) Seal(plaintext string) (string, error) {
	if !b.Enabled() || plaintext == "" {
		return plaintext, nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secret: read nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, b.key)
	return Prefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as-is.
func (b *Box) Open(value string) (string, error) {
	if !strings.HasPrefix(value, Prefix) {
		return value, nil
	}
	if !b.Enabled() {
		return "", ErrNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, b.key)
	if !ok {
		return "", ErrCorrupt
	}
	return string(plain), nil
}
