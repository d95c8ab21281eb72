package todo

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/todo-auth/internal/api"
	"github.com/ayush/todo-auth/internal/apperr"
	"github.com/ayush/todo-auth/internal/auth"
	"github.com/ayush/todo-auth/internal/models"
	"github.com/ayush/todo-auth/internal/validation"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Handler holds todo HTTP handlers.
type Handler struct {
	svc      *Service
	validate *validation.Validator
}

func NewHandler(svc *Service, v *validation.Validator) *Handler {
	return &Handler{svc: svc, validate: v}
}

// principal returns the caller or writes 401.
func principal(w http.ResponseWriter, r *http.Request) (*models.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		api.WriteError(w, r, apperr.Unauthenticated())
	}
	return p, ok
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*models.TodoRequest, bool) {
	var req models.TodoRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		api.WriteError(w, r, err)
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		api.WriteError(w, r, err)
		return nil, false
	}
	return &req, true
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		api.WriteError(w, r, apperr.Validation("id: must be a positive integer"))
		return 0, false
	}
	return id, true
}

// parsePageRequest reads page, size and sort. sort accepts "id", "id,asc"
// or "id,desc"; the default is newest first.
func parsePageRequest(q url.Values) (models.PageRequest, error) {
	req := models.PageRequest{Page: 0, Size: defaultPageSize, Desc: true}
	var details []string

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			details = append(details, "page: must be a non-negative integer")
		} else {
			req.Page = n
		}
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			details = append(details, "size: must be between 1 and "+strconv.Itoa(maxPageSize))
		} else {
			req.Size = n
		}
	}
	if req.Page > math.MaxInt/req.Size {
		details = append(details, "page: out of range for size "+strconv.Itoa(req.Size))
	}
	if v := q.Get("sort"); v != "" {
		field, dir, _ := strings.Cut(v, ",")
		switch {
		case field != "id":
			details = append(details, "sort: unsupported property "+strconv.Quote(field))
		case dir == "" || strings.EqualFold(dir, "asc"):
			req.Desc = false
		case strings.EqualFold(dir, "desc"):
			req.Desc = true
		default:
			details = append(details, "sort: direction must be asc or desc")
		}
	}

	if len(details) > 0 {
		return req, apperr.Validation(details...)
	}
	return req, nil
}

// Create adds a todo owned by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Create(r.Context(), p, req.Title, req.Description)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, "Todo created successfully", t)
}

// List returns one page of todos visible to the caller.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	page, err := parsePageRequest(r.URL.Query())
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	res, err := h.svc.List(r.Context(), p, page)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, "Todos retrieved successfully", res)
}

// Update replaces a todo's title and description.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	t, err := h.svc.Update(r.Context(), p, id, req.Title, req.Description)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, "Todo updated successfully", t)
}

// Delete removes a todo.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), p, id); err != nil {
		api.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
