package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sb1:"

// ErrNoKey is returned when a sealed value is read without a configured key.
var ErrNoKey = errors.New("secrets: sealed value but no key configured")

// Sealer encrypts short secrets (OAuth access tokens) before they are stored.
// A Sealer without a key passes values through unchanged.
type Sealer struct {
	key *[32]byte
}

// NewSealer builds a Sealer from a base64-encoded 32-byte key. An empty key yields a pass-through Sealer.
func NewSealer(encodedKey string) (*Sealer, error) {
	encodedKey = strings.TrimSpace(encodedKey)
	if encodedKey == "" {
		return &Sealer{}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("secrets: decoding key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("secrets: key must be 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &Sealer{key: &key}, nil
}

// Enabled reports whether values are actually encrypted.
func (s *Sealer) Enabled() bool { return s != nil && s.key != nil }

// Seal encrypts plaintext. The nonce is prepended to the box.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if !s.Enabled() {
		return plaintext, nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secrets: generating nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, s.key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(box), nil
}

// Open reverses Seal. Values stored before a key was configured are returned as-is.
func (s *Sealer) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if !s.Enabled() {
		return "", ErrNoKey
	}
	box, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("secrets: decoding sealed value: %w", err)
	}
	if len(box) < 24+secretbox.Overhead {
		return "", errors.New("secrets: sealed value too short")
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, s.key)
	if !ok {
		return "", errors.New("secrets: sealed value failed authentication")
	}
	return string(plain), nil
}
