// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package secrets seals API keys before they are written to the settings
// store.
//
// Values are encrypted with XChaCha20-Poly1305 and stored as
// ENC:base64(nonce|ciphertext|tag). The key is either a random 32-byte key
// file in the data directory or, when a passphrase is configured, derived
// with PBKDF2-SHA-256 from that passphrase and a per-install salt.
package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/jiyu/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// SealedPrefix marks a sealed value.
const SealedPrefix = "ENC:"

// KeySize is the symmetric key size in bytes.
const KeySize = chacha20poly1305.KeySize

// SaltSize is the PBKDF2 salt size in bytes.
const SaltSize = 32

// PBKDF2Iterations follows the OWASP 2023 floor for PBKDF2-SHA-256.
const PBKDF2Iterations = 600000

const (
	keyFileName  = "secret.key"
	saltFileName = "secret.salt"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCiphertext indicates the sealed value is malformed.
	ErrInvalidCiphertext = errors.New("invalid sealed value")

	// ErrDecryptionFailed indicates a wrong key or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// =============================================================================
// SEALER
// =============================================================================

// Sealer encrypts and decrypts short secrets.
type Sealer struct {
	aead cipher.AEAD
}

// New creates a Sealer from a raw key of KeySize bytes.
func New(key []byte) (*Sealer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// FromPassphrase derives the key from passphrase and salt.
func FromPassphrase(passphrase string, salt []byte) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	key := pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
	// SECURITY: Zero key material once the cipher holds its own copy.
	defer ZeroBytes(key)
	return New(key)
}

// Open returns the Sealer for dataDir. With a passphrase the key is derived
// from it and a salt file; otherwise a key file is used. Missing key or salt
// files are created with mode 0600.
func Open(dataDir, passphrase string) (*Sealer, error) {
	if passphrase != "" {
		salt, err := loadOrCreate(filepath.Join(dataDir, saltFileName), SaltSize)
		if err != nil {
			return nil, err
		}
		return FromPassphrase(passphrase, salt)
	}

	key, err := loadOrCreate(filepath.Join(dataDir, keyFileName), KeySize)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key)
	return New(key)
}

// Seal encrypts plaintext. The empty string seals to itself so that unset
// keys stay recognisably unset.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Unseal decrypts a value produced by Seal. Values without the sealed prefix
// are returned unchanged, which covers keys stored before sealing was on.
func (s *Sealer) Unseal(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// ZeroBytes overwrites b with zeros.
// SECURITY: Zero key material to prevent memory disclosure via crash dumps.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// loadOrCreate reads exactly size bytes from path, creating the file with
// random content when it does not exist.
func loadOrCreate(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != size {
			return nil, fmt.Errorf("%s: expected %d bytes, found %d", path, size, len(data))
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	data = make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, data); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to store key material: %w", err)
	}
	return data, nil
}
