// Package secret seals identity credentials at rest.
//
// A sealed credential is "sg1:" followed by the unpadded base64url encoding
// of salt || nonce || secretbox(plaintext). The secretbox key is derived
// from the installation passphrase and the per-credential salt with scrypt.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	prefix        = "sg1:"
	saltSize      = 16
	nonceSize     = 24
	keySize       = 32
	passphraseLen = 32

	// DefaultCost is the scrypt N parameter used by NewSealer.
	DefaultCost = 1 << 15
)

var (
	// ErrMalformed is returned when a sealed value has an unknown format.
	ErrMalformed = errors.New("malformed sealed credential")
	// ErrDecrypt is returned when a sealed value fails authentication,
	// usually because it was sealed with a different passphrase.
	ErrDecrypt = errors.New("credential decryption failed")
	// ErrEmptyPassphrase is returned by NewSealer for an empty passphrase.
	ErrEmptyPassphrase = errors.New("empty passphrase")
)

// Sealer encrypts and decrypts credentials with one passphrase.
type Sealer struct {
	passphrase []byte
	cost       int
}

// Option configures a Sealer.
type Option func(*Sealer)

// WithCost overrides the scrypt N parameter. It must be a power of two.
func WithCost(n int) Option {
	return func(s *Sealer) {
		s.cost = n
	}
}

// NewSealer returns a Sealer for passphrase.
func NewSealer(passphrase []byte, opts ...Option) (*Sealer, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	s := &Sealer{
		passphrase: append([]byte(nil), passphrase...),
		cost:       DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Seal encrypts plaintext and returns the sealed string form.
func (s *Sealer) Seal(plaintext string) (string, error) {
	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}
	key, err := s.deriveKey(salt[:])
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, []byte(plaintext), &nonce, key)
	return prefix + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, prefix) {
		return "", ErrMalformed
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(sealed, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(raw) < saltSize+nonceSize+secretbox.Overhead {
		return "", ErrMalformed
	}

	salt := raw[:saltSize]
	var nonce [nonceSize]byte
	copy(nonce[:], raw[saltSize:saltSize+nonceSize])

	key, err := s.deriveKey(salt)
	if err != nil {
		return "", err
	}
	plain, ok := secretbox.Open(nil, raw[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// IsSealed reports whether v carries the sealed-credential prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, prefix)
}

func (s *Sealer) deriveKey(salt []byte) (*[keySize]byte, error) {
	k, err := scrypt.Key(s.passphrase, salt, s.cost, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], k)
	return &key, nil
}

// LoadOrCreatePassphrase reads the installation passphrase from path,
// creating a random one with 0600 permissions when the file is missing.
func LoadOrCreatePassphrase(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the state directory
	if err == nil {
		if len(data) == 0 {
			return nil, ErrEmptyPassphrase
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	buf := make([]byte, passphraseLen)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return buf, nil
}
