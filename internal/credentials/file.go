package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/drallgood/ebook-reader/internal/logger"
)

const fileFormatVersion = "1"

type fileDocument struct {
	Version   string            `json:"version"`
	UpdatedAt int64             `json:"updated_at"`
	Values    map[string]string `json:"values"`
}

// FileStore keeps credentials in a JSON document. Every write replaces the
// document through a temp file and rename, so a crash never leaves a
// truncated file behind. File I/O is not interruptible; a context that is
// already done fails the call before the file is touched.
type FileStore struct {
	mu     sync.Mutex
	path   string
	sealer Sealer
	logger *logger.Logger
}

// NewFileStore creates a store backed by path. The file is created on first write.
func NewFileStore(path string, sealer Sealer, log *logger.Logger) *FileStore {
	if log == nil {
		log = logger.Component("credentials")
	}
	return &FileStore{path: path, sealer: sealer, logger: log}
}

func (f *FileStore) Get(ctx context.Context, keys ...string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StorageFailure{Op: "get", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, &StorageFailure{Op: "get", Err: err}
	}

	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Key: k}
		sealed, ok := doc.Values[k]
		if !ok {
			continue
		}
		value, err := unseal(f.sealer, sealed)
		if err != nil {
			return nil, &StorageFailure{Op: "get", Key: k, Err: err}
		}
		out[i].Value = value
		out[i].Present = true
	}
	return out, nil
}

func (f *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return &StorageFailure{Op: "set", Key: key, Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return &StorageFailure{Op: "set", Key: key, Err: err}
	}
	sealed, err := seal(f.sealer, value)
	if err != nil {
		return &StorageFailure{Op: "set", Key: key, Err: err}
	}
	doc.Values[key] = sealed

	if err := f.save(doc); err != nil {
		return &StorageFailure{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (f *FileStore) RemoveAll(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return &StorageFailure{Op: "remove", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return &StorageFailure{Op: "remove", Err: err}
	}
	for _, k := range keys {
		delete(doc.Values, k)
	}
	if err := f.save(doc); err != nil {
		return &StorageFailure{Op: "remove", Err: err}
	}
	return nil
}

// Close is a no-op
func (f *FileStore) Close() error { return nil }

func (f *FileStore) load() (*fileDocument, error) {
	doc := &fileDocument{Version: fileFormatVersion, Values: map[string]string{}}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.path, err)
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	if doc.Version != fileFormatVersion {
		f.logger.Warn("Unknown credential file version", map[string]interface{}{
			"path":    f.path,
			"version": doc.Version,
		})
	}
	return doc, nil
}

func (f *FileStore) save(doc *fileDocument) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %q: %w", dir, err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		if _, err := os.Stat(tmpPath); err == nil {
			os.Remove(tmpPath)
		}
	}()

	doc.Version = fileFormatVersion
	doc.UpdatedAt = time.Now().Unix()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync credentials file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("failed to set permissions on temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}

	f.logger.Debug("Credentials saved", map[string]interface{}{
		"path": f.path,
		"keys": len(doc.Values),
	})
	return nil
}
