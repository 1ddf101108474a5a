package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pathakanu/eventide/internal/model"
	"gorm.io/gorm"
)

// FindEventsWithDueUnsentReminders returns every event that has at least one reminder
// with a due time at or before now that has not been sent. Events are ordered by date
// then id; each event carries all of its reminders ordered by time then id.
func (s *Store) FindEventsWithDueUnsentReminders(ctx context.Context, now time.Time) ([]model.Event, error) {
	db := s.db.WithContext(ctx)

	due := db.Model(&model.Reminder{}).
		Select("event_id").
		Where("sent = ? AND remind_at <= ?", false, now.UTC())

	var events []model.Event
	err := db.Where("id IN (?)", due).
		Preload("Reminders", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("remind_at ASC, id ASC")
		}).
		Order("date ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("find due reminders: %w", err)
	}
	return events, nil
}

// PersistEvent records the sent flags of the event's reminders in a single transaction.
// Only reminders whose flag is set are written, and the write never clears a flag.
// ErrNotFound is returned when the event was deleted in the meantime.
func (s *Store) PersistEvent(ctx context.Context, event *model.Event) error {
	var sent []string
	for _, r := range event.Reminders {
		if r.Sent {
			sent = append(sent, r.ID)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Event{}).Where("id = ?", event.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("persist event %s: %w", event.ID, err)
		}
		if count == 0 {
			return ErrNotFound
		}
		if len(sent) == 0 {
			return nil
		}

		err := tx.Model(&model.Reminder{}).
			Where("event_id = ? AND id IN ? AND sent = ?", event.ID, sent, false).
			Update("sent", true).Error
		if err != nil {
			return fmt.Errorf("persist event %s: %w", event.ID, err)
		}
		return nil
	})
}
