package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is a dated entry owned by exactly one user and one category.
type Event struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"_id"`
	Name        string     `gorm:"size:100;not null" json:"name"`
	Description string     `gorm:"size:1000" json:"description,omitempty"`
	Date        time.Time  `gorm:"not null;index" json:"date"`
	CategoryID  string     `gorm:"index;not null;type:varchar(36)" json:"category"`
	UserID      string     `gorm:"index;not null;type:varchar(36)" json:"user"`
	Reminders   []Reminder `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"reminders"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Date = e.Date.UTC()
	return nil
}

// DueReminders returns pointers to the reminders that are due at now and not yet sent.
// The pointers alias the event's own slice so callers can flip the flag in place.
func (e *Event) DueReminders(now time.Time) []*Reminder {
	var due []*Reminder
	for i := range e.Reminders {
		if e.Reminders[i].IsDue(now) {
			due = append(due, &e.Reminders[i])
		}
	}
	return due
}

// Reminder is a due time attached to an event. Sent only ever moves from false to true.
type Reminder struct {
	ID      string    `gorm:"primaryKey;type:varchar(36)" json:"_id"`
	EventID string    `gorm:"index;not null;type:varchar(36)" json:"-"`
	Time    time.Time `gorm:"column:remind_at;index;not null" json:"time"`
	Sent    bool      `gorm:"index;not null" json:"sent"`
}

// BeforeCreate assigns an id and normalises the due time to UTC so stored values
// compare consistently.
func (r *Reminder) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Time = r.Time.UTC()
	return nil
}

// IsDue reports whether the reminder should be delivered at now.
func (r Reminder) IsDue(now time.Time) bool {
	return !r.Sent && !r.Time.After(now)
}
