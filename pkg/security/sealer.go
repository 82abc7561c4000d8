// Package security seals embedder credentials at rest. Credentials are
// write-only in the API: sealed on create, opened only by the embedding
// worker when it calls the remote endpoint.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize = 32
	keyIter  = 10000
)

// Sealer encrypts and decrypts credential strings with AES-256-GCM. Each
// sealed blob carries its own salt and nonce: salt || nonce || ciphertext.
// Keys are derived per owner so a sealed value cannot be replayed across
// owners.
type Sealer struct {
	masterKey []byte
}

// NewSealer creates a Sealer from the configured master key.
func NewSealer(masterKey string) *Sealer {
	hash := sha256.Sum256([]byte(masterKey))
	return &Sealer{masterKey: hash[:]}
}

// Seal encrypts plaintext under a key derived from the master key and scope.
func (s *Sealer) Seal(plaintext, scope string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := s.aead(scope, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	sealed := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	sealed = append(sealed, salt...)
	sealed = append(sealed, nonce...)
	sealed = append(sealed, ciphertext...)
	return sealed, nil
}

// Open decrypts a blob produced by Seal with the same scope.
func (s *Sealer) Open(sealed []byte, scope string) (string, error) {
	if len(sealed) < saltSize+12 {
		return "", fmt.Errorf("invalid sealed data: too short")
	}

	salt := sealed[:saltSize]
	rest := sealed[saltSize:]

	gcm, err := s.aead(scope, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return "", fmt.Errorf("invalid sealed data: missing nonce")
	}

	plaintext, err := gcm.Open(nil, rest[:nonceSize], rest[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

func (s *Sealer) aead(scope string, salt []byte) (cipher.AEAD, error) {
	info := make([]byte, 0, len(s.masterKey)+len(scope))
	info = append(info, s.masterKey...)
	info = append(info, scope...)
	key := pbkdf2.Key(info, salt, keyIter, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
