// File: internal/infra/security/sealer.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const sealPrefix = "v1:"

var ErrMalformedSeal = errors.New("malformed sealed value")

// AESSealer encrypts gateway payloads at rest with AES-GCM.
// Output format: "v1:" + base64(nonce || ciphertext).
type AESSealer struct {
	gcm cipher.AEAD
}

// NewAESSealer accepts a raw key of 16, 24 or 32 bytes, or the standard
// base64 encoding of one.
func NewAESSealer(key string) (*AESSealer, error) {
	k, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &AESSealer{gcm: gcm}, nil
}

func parseKey(key string) ([]byte, error) {
	if validKeyLen(len(key)) {
		return []byte(key), nil
	}
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && validKeyLen(len(b)) {
		return b, nil
	}
	return nil, fmt.Errorf("encryption key must be 16, 24 or 32 bytes (raw or base64); got %d", len(key))
}

func validKeyLen(n int) bool { return n == 16 || n == 24 || n == 32 }

func (s *AESSealer) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

func (s *AESSealer) Decrypt(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealPrefix) {
		return "", ErrMalformedSeal
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSeal, err)
	}
	ns := s.gcm.NonceSize()
	if len(data) < ns {
		return "", ErrMalformedSeal
	}
	pt, err := s.gcm.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}

// PlainSealer stores values as-is. Only for local development.
type PlainSealer struct{}

func (PlainSealer) Encrypt(plaintext string) (string, error) { return plaintext, nil }
