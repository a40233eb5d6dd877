// Package credentials persists the session token pair across restarts
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Keys under which the session tokens are stored
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

// SessionKeys lists both token keys in the order they are written
var SessionKeys = []string{AccessTokenKey, RefreshTokenKey}

// Entry is the result of reading one key
type Entry struct {
	Key     string
	Value   string
	Present bool
}

// Store is a durable, device-scoped key/value store for credentials.
// Writes are not transactional across keys.
type Store interface {
	// Get returns one entry per key, in request order
	Get(ctx context.Context, keys ...string) ([]Entry, error)
	Set(ctx context.Context, key, value string) error
	RemoveAll(ctx context.Context, keys ...string) error
}

// StoreCloser is a Store holding resources that must be released
type StoreCloser interface {
	Store
	io.Closer
}

// Sealer encrypts values before they reach the backend.
// *crypto.EncryptionManager implements it.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// StorageFailure reports a failed read or write of the credential store
type StorageFailure struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface
func (e *StorageFailure) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("credential store %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("credential store %s %s failed: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the backend error
func (e *StorageFailure) Unwrap() error {
	return e.Err
}

// IsStorageFailure reports whether err is, or wraps, a StorageFailure
func IsStorageFailure(err error) bool {
	var sf *StorageFailure
	return errors.As(err, &sf)
}

// Lookup returns the value of key from entries and whether it was present
func Lookup(entries []Entry, key string) (string, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e.Value, e.Present
		}
	}
	return "", false
}

func seal(s Sealer, value string) (string, error) {
	if s == nil {
		return value, nil
	}
	return s.Encrypt(value)
}

func unseal(s Sealer, value string) (string, error) {
	if s == nil {
		return value, nil
	}
	return s.Decrypt(value)
}
