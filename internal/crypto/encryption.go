// Package crypto encrypts credentials at rest with AES-256-GCM
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/drallgood/ebook-reader/internal/logger"
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrInvalidKeySize    = errors.New("invalid key size")
)

// KeyFileName is the key file created under the data directory
const KeyFileName = "encryption.key"

// EncryptionManager seals and opens stored token values
type EncryptionManager struct {
	gcm    cipher.AEAD
	logger *logger.Logger
}

// NewEncryptionManager loads the key from encodedKey (base64, 32 bytes) or,
// when empty, from dataDir/encryption.key, generating that file on first use.
func NewEncryptionManager(encodedKey, dataDir string, log *logger.Logger) (*EncryptionManager, error) {
	key, err := loadOrCreateKey(encodedKey, dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption key: %w", err)
	}
	return NewEncryptionManagerWithKey(key, log)
}

// NewEncryptionManagerWithKey creates a manager from a raw 32 byte key
func NewEncryptionManagerWithKey(key []byte, log *logger.Logger) (*EncryptionManager, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeySize
	}
	if log == nil {
		log = logger.Component("crypto")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &EncryptionManager{gcm: gcm, logger: log}, nil
}

// Encrypt returns base64(nonce || ciphertext). Empty input stays empty.
func (em *EncryptionManager) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, em.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		em.logger.Error("Failed to generate nonce", map[string]interface{}{
			"error": err.Error(),
		})
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := em.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt
func (em *EncryptionManager) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	nonceSize := em.gcm.NonceSize()
	if len(data) < nonceSize {
		em.logger.Error("Ciphertext too short", map[string]interface{}{
			"data_length": len(data),
			"nonce_size":  nonceSize,
		})
		return "", ErrInvalidCiphertext
	}

	plaintext, err := em.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		em.logger.Error("Failed to decrypt", map[string]interface{}{
			"error": err.Error(),
		})
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

func loadOrCreateKey(encodedKey, dataDir string) ([]byte, error) {
	if encodedKey != "" {
		return decodeKey(encodedKey, "configuration")
	}

	if dataDir == "" {
		dataDir = "./data"
	}
	keyPath := filepath.Join(dataDir, KeyFileName)
	if data, err := os.ReadFile(keyPath); err == nil {
		return decodeKey(string(data), "file")
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(base64.StdEncoding.EncodeToString(key)), 0600); err != nil {
		return nil, fmt.Errorf("failed to save encryption key: %w", err)
	}
	return key, nil
}

func decodeKey(encoded, source string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key from %s: %w", source, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// DeriveKeyFromPassword derives a 32 byte key from a passphrase.
// Only suitable for tests and throwaway stores.
func DeriveKeyFromPassword(password string) []byte {
	hash := sha256.Sum256([]byte(password))
	return hash[:]
}
