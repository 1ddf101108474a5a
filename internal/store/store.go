// Package store persists users, categories, events and reminders through GORM.
package store

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrUserNotFound is returned when an event references a user that cannot be resolved.
	ErrUserNotFound = errors.New("store: user not found")
	// ErrEmailTaken is returned when registering an email address that already exists.
	ErrEmailTaken = errors.New("store: email already registered")
	// ErrCategoryInUse is returned when deleting a category that still has events.
	ErrCategoryInUse = errors.New("store: category still has events")
)

// Store wraps a GORM handle. All methods are safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by db. The schema must already be migrated.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
