package store

import (
	"context"
	"errors"
	"strings"

	"github.com/pathakanu/eventide/internal/model"
	"gorm.io/gorm"
)

// CreateUser inserts a new user. Emails are stored lower-cased.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	user.Email = normalizeEmail(user.Email)

	_, err := s.FindUserByEmail(ctx, user.Email)
	switch {
	case err == nil:
		return ErrEmailTaken
	case !errors.Is(err, ErrNotFound):
		return err
	}
	return s.insertUser(ctx, user)
}

// insertUser relies on the unique email index for registrations racing past the
// lookup in CreateUser.
func (s *Store) insertUser(ctx context.Context, user *model.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

// FindUserByEmail looks a user up by email address.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return &user, nil
}

// LookupUser resolves the owner of an event. It returns ErrUserNotFound when the id is unknown.
func (s *Store) LookupUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
