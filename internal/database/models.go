package database

import "time"

// Credential is one stored token, named by its store key.
// Value holds ciphertext, never the token itself.
type Credential struct {
	Scope     string    `gorm:"primaryKey;size:128"`
	Name      string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName pins the table name across dialects
func (Credential) TableName() string {
	return "credentials"
}
