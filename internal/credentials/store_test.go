package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/ebook-reader/internal/crypto"
	"github.com/drallgood/ebook-reader/internal/database"
)

func testSealer(t *testing.T) Sealer {
	t.Helper()
	em, err := crypto.NewEncryptionManagerWithKey(crypto.DeriveKeyFromPassword("test"), nil)
	require.NoError(t, err)
	return em
}

// backends returns one fresh instance of every store implementation
func backends(t *testing.T) map[string]Store {
	t.Helper()

	db, err := database.Open(database.DefaultDatabaseConfig(t.TempDir()), nil)
	require.NoError(t, err)
	sqlStore := NewSQLStore(db, "device", testSealer(t))
	t.Cleanup(func() { sqlStore.Close() })

	mr := miniredis.RunT(t)
	redisStore := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "device", testSealer(t))
	t.Cleanup(func() { redisStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "creds.json"), testSealer(t), nil),
		"sql":    sqlStore,
		"redis":  redisStore,
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			entries, err := store.Get(ctx, SessionKeys...)
			require.NoError(t, err)
			assert.Equal(t, []Entry{{Key: AccessTokenKey}, {Key: RefreshTokenKey}}, entries)

			require.NoError(t, store.Set(ctx, AccessTokenKey, "T1"))
			require.NoError(t, store.Set(ctx, RefreshTokenKey, "T2"))
			require.NoError(t, store.Set(ctx, AccessTokenKey, "T3"))

			entries, err = store.Get(ctx, RefreshTokenKey, AccessTokenKey, "other")
			require.NoError(t, err)
			assert.Equal(t, []Entry{
				{Key: RefreshTokenKey, Value: "T2", Present: true},
				{Key: AccessTokenKey, Value: "T3", Present: true},
				{Key: "other"},
			}, entries, "entries follow request order")

			require.NoError(t, store.RemoveAll(ctx, SessionKeys...))
			entries, err = store.Get(ctx, SessionKeys...)
			require.NoError(t, err)
			for _, e := range entries {
				assert.False(t, e.Present, e.Key)
			}

			require.NoError(t, store.RemoveAll(ctx, SessionKeys...), "removing absent keys is fine")
		})
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, store := range backends(t) {
		if name != "file" && name != "sql" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			err := store.Set(ctx, AccessTokenKey, "T1")
			require.Error(t, err)
			assert.True(t, IsStorageFailure(err))
			assert.ErrorIs(t, err, context.Canceled)

			_, err = store.Get(ctx, AccessTokenKey)
			assert.ErrorIs(t, err, context.Canceled)

			_, ok := getOne(t, store, AccessTokenKey)
			assert.False(t, ok, "nothing was written")
		})
	}
}

func TestFileStoreEncryptsAtRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "creds.json")
	store := NewFileStore(path, testSealer(t), nil)

	require.NoError(t, store.Set(context.Background(), AccessTokenKey, "secret-token"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-token")
	assert.Contains(t, string(data), `"version": "1"`)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened := NewFileStore(path, testSealer(t), nil)
	value, ok := getOne(t, reopened, AccessTokenKey)
	assert.True(t, ok)
	assert.Equal(t, "secret-token", value)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path, nil, nil).Get(context.Background(), AccessTokenKey)
	require.Error(t, err)
	assert.True(t, IsStorageFailure(err))

	var sf *StorageFailure
	require.True(t, errors.As(err, &sf))
	assert.Equal(t, "get", sf.Op)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "device", nil)
	defer store.Close()
	mr.Close()

	err := store.Set(context.Background(), AccessTokenKey, "T1")
	require.Error(t, err)
	var sf *StorageFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "set", sf.Op)
	assert.Equal(t, AccessTokenKey, sf.Key)
	assert.Contains(t, sf.Error(), "credential store set accessToken failed")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("memory", func(t *testing.T) {
		store, err := Open(ctx, Options{Backend: BackendMemory}, nil)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("file by default", func(t *testing.T) {
		store, err := Open(ctx, Options{DataDir: dir}, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &FileStore{}, store)
		require.NoError(t, store.Set(ctx, AccessTokenKey, "T1"))
		assert.FileExists(t, filepath.Join(dir, "credentials.json"))
		assert.FileExists(t, filepath.Join(dir, crypto.KeyFileName))
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := Open(ctx, Options{Backend: BackendSQLite, DataDir: dir}, nil)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &SQLStore{}, store)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, err := Open(ctx, Options{Backend: BackendRedis, RedisAddr: mr.Addr(), DataDir: dir}, nil)
		require.NoError(t, err)
		defer store.Close()
		require.NoError(t, store.Set(ctx, RefreshTokenKey, "T2"))
		assert.True(t, mr.Exists("ebook-reader:credentials:default"))
	})

	t.Run("redis requires address", func(t *testing.T) {
		_, err := Open(ctx, Options{Backend: BackendRedis, DataDir: dir}, nil)
		assert.Error(t, err)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		_, err := Open(ctx, Options{Backend: BackendPostgres, DataDir: dir}, nil)
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(ctx, Options{Backend: "floppy", DataDir: dir}, nil)
		assert.Error(t, err)
	})
}

func TestLookup(t *testing.T) {
	entries := []Entry{{Key: AccessTokenKey, Value: "T1", Present: true}, {Key: RefreshTokenKey}}

	v, ok := Lookup(entries, AccessTokenKey)
	assert.True(t, ok)
	assert.Equal(t, "T1", v)

	_, ok = Lookup(entries, RefreshTokenKey)
	assert.False(t, ok)
	_, ok = Lookup(entries, "missing")
	assert.False(t, ok)
}

func getOne(t *testing.T, s Store, key string) (string, bool) {
	t.Helper()
	entries, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	return Lookup(entries, key)
}
