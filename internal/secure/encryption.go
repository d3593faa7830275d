// Package secure seals values kept in client storage.
package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of the AES-256 key in bytes.
	KeySize = 32
	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000
	// MinSecretLength is the shortest accepted master secret.
	MinSecretLength = 32
)

var (
	ErrInvalidKey        = errors.New("invalid encryption key: must be at least 32 characters")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Sealer encrypts values with AES-256-GCM under a key derived per scope.
type Sealer struct {
	masterKey []byte

	mu   sync.Mutex
	keys map[string][]byte
}

// NewSealer creates a Sealer from the master secret.
func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrInvalidKey
	}
	hash := sha256.Sum256([]byte(secret))
	return &Sealer{masterKey: hash[:], keys: make(map[string][]byte)}, nil
}

// deriveKey returns the PBKDF2 key for a scope, caching it for reuse.
func (s *Sealer) deriveKey(scope string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[scope]; ok {
		return key
	}
	key := pbkdf2.Key(s.masterKey, []byte("storage:"+scope), PBKDF2Iterations, KeySize, sha256.New)
	s.keys[scope] = key
	return key
}

func (s *Sealer) aead(scope string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.deriveKey(scope))
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext for the given scope and returns base64(nonce || ciphertext).
func (s *Sealer) Seal(plaintext, scope string) (string, error) {
	gcm, err := s.aead(scope)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. A value sealed under another scope fails to open.
func (s *Sealer) Open(sealed, scope string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	gcm, err := s.aead(scope)
	if err != nil {
		return "", err
	}
	if len(raw) <= gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
