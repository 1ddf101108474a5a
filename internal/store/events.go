package store

import (
	"context"
	"slices"
	"time"

	"github.com/pathakanu/eventide/internal/model"
	"gorm.io/gorm"
)

// Event list orderings.
const (
	SortByDate      = "date"
	SortByCategory  = "category"
	SortByReminders = "reminders"
)

// EventFilter narrows and orders ListEvents.
type EventFilter struct {
	CategoryID string
	Sort       string
}

// EventPatch carries the fields an update may change. Nil fields are left untouched.
type EventPatch struct {
	Name        *string
	Description *string
	Date        *time.Time
	CategoryID  *string
}

func preloadReminders(tx *gorm.DB) *gorm.DB {
	return tx.Order("remind_at ASC, id ASC")
}

// CreateEvent inserts the event together with its reminders.
func (s *Store) CreateEvent(ctx context.Context, event *model.Event) error {
	for i := range event.Reminders {
		event.Reminders[i].Sent = false
	}
	return s.db.WithContext(ctx).Create(event).Error
}

// ListEvents returns the user's events. The default order is by date ascending;
// SortByReminders puts events with the earliest reminder first and events without
// reminders last.
func (s *Store) ListEvents(ctx context.Context, userID string, filter EventFilter) ([]model.Event, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Preload("Reminders", preloadReminders)
	if filter.CategoryID != "" {
		q = q.Where("category_id = ?", filter.CategoryID)
	}

	switch filter.Sort {
	case SortByCategory:
		q = q.Order("category_id ASC, date ASC")
	default:
		q = q.Order("date ASC, id ASC")
	}

	var events []model.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}

	if filter.Sort == SortByReminders {
		slices.SortStableFunc(events, compareEarliestReminder)
	}
	return events, nil
}

func compareEarliestReminder(a, b model.Event) int {
	at, aok := earliestReminder(a)
	bt, bok := earliestReminder(b)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	}
	return at.Compare(bt)
}

func earliestReminder(ev model.Event) (time.Time, bool) {
	var (
		earliest time.Time
		found    bool
	)
	for _, r := range ev.Reminders {
		if !found || r.Time.Before(earliest) {
			earliest = r.Time
			found = true
		}
	}
	return earliest, found
}

// GetEvent returns an event with its reminders regardless of owner; callers check ownership.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var event model.Event
	err := s.db.WithContext(ctx).Preload("Reminders", preloadReminders).Where("id = ?", id).First(&event).Error
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return &event, nil
}

// UpdateEvent applies patch to the event and returns the reloaded record.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch EventPatch) (*model.Event, error) {
	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if patch.Date != nil {
		updates["date"] = patch.Date.UTC()
	}
	if patch.CategoryID != nil {
		updates["category_id"] = *patch.CategoryID
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&model.Event{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
	}
	return s.GetEvent(ctx, id)
}

// DeleteEvent removes the event and its reminders in one transaction.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&model.Reminder{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Event{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AddReminder attaches an unsent reminder to the event and returns the reloaded event.
// Past times are accepted; such reminders are due on the next scheduler tick.
func (s *Store) AddReminder(ctx context.Context, eventID string, at time.Time) (*model.Event, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	reminder := model.Reminder{EventID: eventID, Time: at}
	if err := s.db.WithContext(ctx).Create(&reminder).Error; err != nil {
		return nil, err
	}
	return s.GetEvent(ctx, eventID)
}

// DeleteReminder removes one reminder from the event and returns the reloaded event.
func (s *Store) DeleteReminder(ctx context.Context, eventID, reminderID string) (*model.Event, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND event_id = ?", reminderID, eventID).Delete(&model.Reminder{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetEvent(ctx, eventID)
}
