package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type categoryRequest struct {
	Name *string     `json:"name"`
	Icon *string     `json:"icon"`
	Goal *core.Money `json:"goal"`
}

type categoryResponse struct {
	Message  string        `json:"message"`
	Category core.Category `json:"category"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	listing, err := s.categories.List(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(listing).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	in := services.CategoryInput{Goal: req.Goal}
	if req.Name != nil {
		in.Name = sanitizeInput(*req.Name)
	}
	if req.Icon != nil {
		in.Icon = sanitizeInput(*req.Icon)
	}

	c, err := s.categories.Create(r.Context(), currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(categoryResponse{Message: "Category created successfully", Category: c}).
		Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	c, err := s.categories.Update(r.Context(), currentUser(r).ID, r.PathValue("id"), services.CategoryPatch{
		Name: sanitizePtr(req.Name),
		Icon: sanitizePtr(req.Icon),
		Goal: req.Goal,
	})
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().
		Body(categoryResponse{Message: "Category updated successfully", Category: c}).
		Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.categories.Delete(r.Context(), currentUser(r).ID, r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Message("Category deleted successfully").Write(w)
}
