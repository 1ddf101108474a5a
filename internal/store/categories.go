package store

import (
	"context"

	"github.com/pathakanu/eventide/internal/model"
	"gorm.io/gorm"
)

func (s *Store) CreateCategory(ctx context.Context, category *model.Category) error {
	return s.db.WithContext(ctx).Create(category).Error
}

// ListCategories returns the user's categories sorted by name.
func (s *Store) ListCategories(ctx context.Context, userID string) ([]model.Category, error) {
	var categories []model.Category
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name ASC, created_at ASC").
		Find(&categories).Error
	return categories, err
}

// GetCategory returns the category with id when it belongs to userID.
func (s *Store) GetCategory(ctx context.Context, userID, id string) (*model.Category, error) {
	var category model.Category
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&category).Error
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return &category, nil
}

// UpdateCategory overwrites the name and description of an existing category.
func (s *Store) UpdateCategory(ctx context.Context, category *model.Category) error {
	return s.db.WithContext(ctx).
		Model(&model.Category{}).
		Where("id = ? AND user_id = ?", category.ID, category.UserID).
		Updates(map[string]any{"name": category.Name, "description": category.Description}).Error
}

// DeleteCategory removes a category. Categories that still own events are kept and
// ErrCategoryInUse is returned.
func (s *Store) DeleteCategory(ctx context.Context, userID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&model.Category{}).Where("id = ? AND user_id = ?", id, userID).Count(&owned).Error; err != nil {
			return err
		}
		if owned == 0 {
			return ErrNotFound
		}

		var events int64
		if err := tx.Model(&model.Event{}).Where("category_id = ?", id).Count(&events).Error; err != nil {
			return err
		}
		if events > 0 {
			return ErrCategoryInUse
		}

		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Category{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
