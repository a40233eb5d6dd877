package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads and writes credential rows for one scope
type Repository struct {
	db    *Database
	scope string
}

// NewRepository creates a repository bound to scope
func NewRepository(db *Database, scope string) *Repository {
	return &Repository{db: db, scope: scope}
}

// GetCredentials returns the rows for keys that exist, keyed by name
func (r *Repository) GetCredentials(ctx context.Context, keys ...string) (map[string]Credential, error) {
	var rows []Credential
	err := r.db.GetDB().WithContext(ctx).
		Where("scope = ? AND name IN ?", r.scope, keys).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	out := make(map[string]Credential, len(rows))
	for _, row := range rows {
		out[row.Name] = row
	}
	return out, nil
}

// SaveCredential inserts or replaces one row
func (r *Repository) SaveCredential(ctx context.Context, key, value string) error {
	row := Credential{Scope: r.scope, Name: key, Value: value}
	err := r.db.GetDB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save credential %s: %w", key, err)
	}
	return nil
}

// DeleteCredentials removes the given keys in one transaction
func (r *Repository) DeleteCredentials(ctx context.Context, keys ...string) error {
	return r.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scope = ? AND name IN ?", r.scope, keys).Delete(&Credential{}).Error; err != nil {
			return fmt.Errorf("failed to delete credentials: %w", err)
		}
		return nil
	})
}
