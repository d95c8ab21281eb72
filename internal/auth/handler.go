package auth

import (
	"net/http"

	"github.com/ayush/todo-auth/internal/api"
	"github.com/ayush/todo-auth/internal/models"
	"github.com/ayush/todo-auth/internal/validation"
)

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc      *Service
	validate *validation.Validator
}

func NewHandler(svc *Service, v *validation.Validator) *Handler {
	return &Handler{svc: svc, validate: v}
}

// Signup creates a new user.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	if err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, "User created successfully", nil)
}

// Login authenticates a user and returns a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.WriteError(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, "Login successful", res)
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		api.Fail(w, http.StatusBadRequest, "bearer token is required")
		return
	}
	api.Success(w, http.StatusOK, "User profile retrieved successfully", p)
}
