// Package crypto seals datasource configuration at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// hkdfInfo separates this key from anything else derived from the same secret.
	hkdfInfo = "tenancy/v1/datasource-configuration"

	// Sealed values look like enc:v1:<base64(nonce+ciphertext+tag)>.
	ciphertextPrefix = "enc:v1:"
)

// DeriveKey derives a 32-byte AES-256 key from secret using HKDF-SHA256.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("crypto: secret must not be empty")
	}

	hkdfReader := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := hkdfReader.Read(key); err != nil {
		return nil, fmt.Errorf("crypto: hkdf key derivation failed: %w", err)
	}
	return key, nil
}

// Sealer encrypts and decrypts values with a fixed key. A nil *Sealer passes
// values through unencrypted, which is how installations without an
// encryption secret run.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer from secret. An empty secret yields a nil Sealer.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, nil
	}
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return NewSealerWithKey(key)
}

// NewSealerWithKey builds a Sealer from a raw 32-byte key.
func NewSealerWithKey(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCMWithRandomNonce(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: NewGCMWithRandomNonce: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext. Empty input stays empty.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" || s == nil {
		return plaintext, nil
	}
	// The random nonce is generated by the AEAD and prepended to the output.
	ciphertext := s.aead.Seal(nil, nil, []byte(plaintext), nil)
	return ciphertextPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal. Values without the "enc:" prefix are returned as-is so
// rows written before encryption was configured stay readable.
func (s *Sealer) Open(value string) (string, error) {
	if value == "" || !strings.HasPrefix(value, "enc:") {
		return value, nil
	}
	if s == nil {
		return "", fmt.Errorf("crypto: value is encrypted but no encryption secret is configured")
	}
	if !strings.HasPrefix(value, ciphertextPrefix) {
		return "", fmt.Errorf("crypto: unsupported encryption version in prefix %q", value[:min(len(value), 10)])
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, ciphertextPrefix))
	if err != nil {
		return "", fmt.Errorf("crypto: base64 decode: %w", err)
	}

	plaintext, err := s.aead.Open(nil, nil, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decryption failed (wrong key or corrupted data): %w", err)
	}
	return string(plaintext), nil
}

// SealJSON marshals v and seals the result.
func (s *Sealer) SealJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("crypto: marshal: %w", err)
	}
	return s.Seal(string(data))
}

// OpenJSON opens value and unmarshals it into v.
func (s *Sealer) OpenJSON(value string, v any) error {
	plaintext, err := s.Open(value)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plaintext), v); err != nil {
		return fmt.Errorf("crypto: unmarshal: %w", err)
	}
	return nil
}

// IsSealed reports whether value carries the encryption prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, "enc:")
}
