package http

import (
	"net/http"

	"fintrack/internal/log"
	"fintrack/internal/services"
)

type registerRequest struct {
	Username string  `json:"username"`
	Email    *string `json:"email"`
	Password string  `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Message string `json:"message"`
	services.Session
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "register", err)
		return
	}

	session, err := s.users.Register(r.Context(), services.RegisterInput{
		Username: sanitizeInput(req.Username),
		Email:    sanitizePtr(req.Email),
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, "register", err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).InfoContext(r.Context(), "User registered",
		log.FieldUserID, session.User.ID)
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(sessionResponse{Message: "User registered successfully", Session: session}).
		Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, "login", err)
		return
	}

	session, err := s.users.Login(r.Context(), sanitizeInput(req.Username), req.Password)
	if err != nil {
		writeError(w, r, "login", err)
		return
	}

	NewJSONResponse().
		Body(sessionResponse{Message: "Login successful", Session: session}).
		Write(w)
}
