package credentials

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drallgood/ebook-reader/internal/crypto"
	"github.com/drallgood/ebook-reader/internal/database"
	"github.com/drallgood/ebook-reader/internal/logger"
)

// Backend names accepted by Open
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Options selects and configures a backend
type Options struct {
	Backend string
	// Path is the JSON file (file) or database file (sqlite)
	Path string
	// DSN is the connection string for postgres and mysql
	DSN           string
	RedisAddr     string
	RedisPassword string
	// Scope separates devices that share a database or redis instance
	Scope         string
	DataDir       string
	EncryptionKey string
}

// Open builds the configured store. Every persistent backend encrypts values.
func Open(ctx context.Context, opts Options, log *logger.Logger) (StoreCloser, error) {
	if log == nil {
		log = logger.Component("credentials")
	}
	if opts.Backend == "" {
		opts.Backend = BackendFile
	}
	if opts.Scope == "" {
		opts.Scope = "default"
	}
	log = log.WithFields(map[string]interface{}{"backend": opts.Backend})

	if opts.Backend == BackendMemory {
		log.Debug("Using in-memory credential store")
		return NewMemoryStore(), nil
	}

	sealer, err := crypto.NewEncryptionManager(opts.EncryptionKey, opts.DataDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up credential encryption: %w", err)
	}

	switch opts.Backend {
	case BackendFile:
		path := opts.Path
		if path == "" {
			path = filepath.Join(dataDir(opts.DataDir), "credentials.json")
		}
		log.Debug("Using file credential store", map[string]interface{}{"path": path})
		return NewFileStore(path, sealer, log), nil

	case BackendSQLite, BackendPostgres, BackendMySQL:
		dbType, err := database.ParseDatabaseType(opts.Backend)
		if err != nil {
			return nil, err
		}
		cfg := database.DefaultDatabaseConfig(dataDir(opts.DataDir))
		cfg.Type = dbType
		cfg.DSN = opts.DSN
		if opts.Path != "" {
			cfg.Path = opts.Path
		}
		db, err := database.Open(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential database: %w", err)
		}
		return NewSQLStore(db, opts.Scope, sealer), nil

	case BackendRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is required for the redis backend")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.RedisAddr, err)
		}
		log.Debug("Using redis credential store", map[string]interface{}{"addr": opts.RedisAddr})
		return NewRedisStore(rdb, opts.Scope, sealer), nil

	default:
		return nil, fmt.Errorf("unknown credential backend %q", opts.Backend)
	}
}

func dataDir(dir string) string {
	if dir == "" {
		return "./data"
	}
	return dir
}
