package api

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/pathakanu/eventide/internal/model"
	"github.com/pathakanu/eventide/internal/store"
)

const (
	maxCategoryName        = 50
	maxCategoryDescription = 500
)

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (req *categoryRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		return "Please add a category name"
	case utf8.RuneCountInString(req.Name) > maxCategoryName:
		return "Name cannot be more than 50 characters"
	case utf8.RuneCountInString(req.Description) > maxCategoryDescription:
		return "Description cannot be more than 500 characters"
	}
	return ""
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	category := &model.Category{Name: req.Name, Description: req.Description, UserID: userIDFrom(r.Context())}
	if err := s.store.CreateCategory(r.Context(), category); err != nil {
		s.serverError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, category)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true, "count": len(categories), "data": categories})
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	category, err := s.store.GetCategory(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.categoryError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, category)
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	category, err := s.store.GetCategory(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.categoryError(w, r, err)
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	category.Name = req.Name
	category.Description = req.Description
	if err := s.store.UpdateCategory(r.Context(), category); err != nil {
		s.serverError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, category)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteCategory(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrCategoryInUse) {
			writeError(w, http.StatusBadRequest, "Category still has events")
			return
		}
		s.categoryError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{})
}

func (s *Server) categoryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Category not found or not authorized")
		return
	}
	s.serverError(w, r, err)
}
