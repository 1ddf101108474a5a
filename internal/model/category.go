package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category groups events for a single user.
type Category struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"_id"`
	Name        string    `gorm:"size:50;not null" json:"name"`
	Description string    `gorm:"size:500" json:"description,omitempty"`
	UserID      string    `gorm:"index;not null;type:varchar(36)" json:"user"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
