package api

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/pathakanu/eventide/internal/model"
	"github.com/pathakanu/eventide/internal/store"
)

const (
	maxEventName        = 100
	maxEventDescription = 1000
)

type reminderRequest struct {
	Time *time.Time `json:"time"`
}

type createEventRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Date        *time.Time        `json:"date"`
	Category    string            `json:"category"`
	Reminders   []reminderRequest `json:"reminders"`
}

type updateEventRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date"`
	Category    *string    `json:"category"`
}

func validateEventFields(name, description string) string {
	switch {
	case strings.TrimSpace(name) == "":
		return "Please add an event name"
	case utf8.RuneCountInString(name) > maxEventName:
		return "Name cannot be more than 100 characters"
	case utf8.RuneCountInString(description) > maxEventDescription:
		return "Description cannot be more than 1000 characters"
	}
	return ""
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if msg := validateEventFields(req.Name, req.Description); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Date == nil {
		writeError(w, http.StatusBadRequest, "Please add an event date")
		return
	}
	if req.Category == "" {
		writeError(w, http.StatusBadRequest, "Please select a category")
		return
	}
	if _, err := s.store.GetCategory(r.Context(), userID, req.Category); err != nil {
		s.categoryError(w, r, err)
		return
	}

	event := &model.Event{
		Name:        req.Name,
		Description: req.Description,
		Date:        *req.Date,
		CategoryID:  req.Category,
		UserID:      userID,
	}
	for _, rem := range req.Reminders {
		if rem.Time == nil {
			writeError(w, http.StatusBadRequest, "Please provide a reminder time")
			return
		}
		event.Reminders = append(event.Reminders, model.Reminder{Time: *rem.Time})
	}

	if err := s.store.CreateEvent(r.Context(), event); err != nil {
		s.serverError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, event)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	filter := store.EventFilter{
		CategoryID: r.URL.Query().Get("category"),
		Sort:       r.URL.Query().Get("sort"),
	}
	events, err := s.store.ListEvents(r.Context(), userIDFrom(r.Context()), filter)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "count": len(events), "data": events})
}

// ownedEvent loads the event named in the URL and checks that the caller owns it.
// It writes the error response itself and returns nil on failure.
func (s *Server) ownedEvent(w http.ResponseWriter, r *http.Request, action string) *model.Event {
	event, err := s.store.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Event not found")
			return nil
		}
		s.serverError(w, r, err)
		return nil
	}
	if event.UserID != userIDFrom(r.Context()) {
		writeError(w, http.StatusUnauthorized, "Not authorized to "+action+" this event")
		return nil
	}
	return event
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	event := s.ownedEvent(w, r, "access")
	if event == nil {
		return
	}
	writeData(w, http.StatusOK, event)
}

func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	event := s.ownedEvent(w, r, "update")
	if event == nil {
		return
	}

	var req updateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	name, description := event.Name, event.Description
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
		name = trimmed
	}
	if req.Description != nil {
		description = *req.Description
	}
	if msg := validateEventFields(name, description); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Category != nil {
		if _, err := s.store.GetCategory(r.Context(), event.UserID, *req.Category); err != nil {
			s.categoryError(w, r, err)
			return
		}
	}

	updated, err := s.store.UpdateEvent(r.Context(), event.ID, store.EventPatch{
		Name:        req.Name,
		Description: req.Description,
		Date:        req.Date,
		CategoryID:  req.Category,
	})
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	event := s.ownedEvent(w, r, "delete")
	if event == nil {
		return
	}
	if err := s.store.DeleteEvent(r.Context(), event.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.serverError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

func (s *Server) addReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Time == nil {
		writeError(w, http.StatusBadRequest, "Please provide a reminder time")
		return
	}

	event := s.ownedEvent(w, r, "update")
	if event == nil {
		return
	}
	updated, err := s.store.AddReminder(r.Context(), event.ID, *req.Time)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (s *Server) deleteReminder(w http.ResponseWriter, r *http.Request) {
	event := s.ownedEvent(w, r, "update")
	if event == nil {
		return
	}
	updated, err := s.store.DeleteReminder(r.Context(), event.ID, chi.URLParam(r, "reminderID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Reminder not found")
			return
		}
		s.serverError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}
