package credentials

import (
	"context"

	"github.com/drallgood/ebook-reader/internal/database"
)

// SQLStore keeps credentials in the credentials table of a SQL database
type SQLStore struct {
	db     *database.Database
	repo   *database.Repository
	sealer Sealer
}

// NewSQLStore wraps an open database. scope separates devices sharing one database.
func NewSQLStore(db *database.Database, scope string, sealer Sealer) *SQLStore {
	return &SQLStore{
		db:     db,
		repo:   database.NewRepository(db, scope),
		sealer: sealer,
	}
}

func (s *SQLStore) Get(ctx context.Context, keys ...string) ([]Entry, error) {
	rows, err := s.repo.GetCredentials(ctx, keys...)
	if err != nil {
		return nil, &StorageFailure{Op: "get", Err: err}
	}

	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Key: k}
		row, ok := rows[k]
		if !ok {
			continue
		}
		value, err := unseal(s.sealer, row.Value)
		if err != nil {
			return nil, &StorageFailure{Op: "get", Key: k, Err: err}
		}
		out[i].Value = value
		out[i].Present = true
	}
	return out, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	sealed, err := seal(s.sealer, value)
	if err != nil {
		return &StorageFailure{Op: "set", Key: key, Err: err}
	}
	if err := s.repo.SaveCredential(ctx, key, sealed); err != nil {
		return &StorageFailure{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (s *SQLStore) RemoveAll(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.repo.DeleteCredentials(ctx, keys...); err != nil {
		return &StorageFailure{Op: "remove", Err: err}
	}
	return nil
}

// Close closes the underlying database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
